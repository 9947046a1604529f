// Package threshold derives the category cut points of a variable and
// classifies values against them.
//
// A threshold set is a closed union: Three (below/above) for three categories
// and Seven (below3..above3) for seven. Both satisfy Set; no other type can.
package threshold

import (
	"errors"
	"fmt"

	"github.com/derickschaefer/composite/internal/model"
)

// Epsilon separates tied cut points.
const Epsilon = 1e-10

var (
	ErrSpec       = errors.New("invalid threshold specification")
	ErrOutOfLimit = errors.New("threshold outside physical limits")
	ErrNoData     = errors.New("no valid values to compute thresholds")
)

// Set is an ordered collection of cut points for one category count.
type Set interface {
	// Cuts returns the cut points from lowest to highest.
	Cuts() []float64
	// Count is the number of categories the cut points delimit.
	Count() model.CategoryCount
	sealed()
}

// Three holds the cut points of the 3-category split.
type Three struct {
	Below float64 `json:"below"`
	Above float64 `json:"above"`
}

func (t Three) Cuts() []float64 { return []float64{t.Below, t.Above} }
func (Three) Count() model.CategoryCount { return model.ThreeCategories }
func (Three) sealed() {}

// Seven holds the cut points of the 7-category split.
type Seven struct {
	Below3 float64 `json:"below3"`
	Below2 float64 `json:"below2"`
	Below1 float64 `json:"below1"`
	Above1 float64 `json:"above1"`
	Above2 float64 `json:"above2"`
	Above3 float64 `json:"above3"`
}

func (s Seven) Cuts() []float64 {
	return []float64{s.Below3, s.Below2, s.Below1, s.Above1, s.Above2, s.Above3}
}
func (Seven) Count() model.CategoryCount { return model.SevenCategories }
func (Seven) sealed() {}

// FromCuts builds the Set matching the number of cut points.
func FromCuts(c []float64) (Set, error) {
	switch len(c) {
	case 2:
		return Three{Below: c[0], Above: c[1]}, nil
	case 6:
		return Seven{Below3: c[0], Below2: c[1], Below1: c[2], Above1: c[3], Above2: c[4], Above3: c[5]}, nil
	}
	return nil, fmt.Errorf("%d cut points: %w", len(c), ErrSpec)
}

// cutLabels names each cut point for error messages.
func cutLabels(n model.CategoryCount) []string {
	if n == model.SevenCategories {
		return []string{"below3", "below2", "below1", "above1", "above2", "above3"}
	}
	return []string{"below", "above"}
}

// ─── Classification ───────────────────────────────────────────────────────────

// exclusiveNormal lists the types whose normal band excludes its cut points.
var exclusiveNormal = map[string]bool{"PPT": true, "NDPPT": true, "RUNOFF": true, "NRAIN": true}

// ExclusiveNormal reports whether typeSeries classifies with an open normal
// band (below, above) instead of the closed [below, above].
func ExclusiveNormal(typeSeries string) bool { return exclusiveNormal[typeSeries] }

// Classify returns the category of v. With a closed normal band the cut points
// belong to the categories nearer normal; with an open band they belong to the
// categories farther from it.
func Classify(s Set, v float64, exclusive bool) model.Category {
	cuts := s.Cuts()
	half := len(cuts) / 2
	inner := func(c float64, x float64) bool { // x lies on the normal side of a lower cut
		if exclusive {
			return x > c
		}
		return x >= c
	}
	innerAbove := func(c float64, x float64) bool { // x lies on the normal side of an upper cut
		if exclusive {
			return x < c
		}
		return x <= c
	}

	for i := 0; i < half; i++ {
		if !inner(cuts[i], v) {
			return model.Category(i)
		}
	}
	for i := half; i < len(cuts); i++ {
		if innerAbove(cuts[i], v) {
			return model.Category(i)
		}
	}
	return model.Category(len(cuts))
}

// ─── Tie separation ───────────────────────────────────────────────────────────

// separate makes cut points strictly increasing: a tied lower cut moves down
// by Epsilon and the upper one up by Epsilon.
func separate(c []float64) []float64 {
	out := make([]float64, len(c))
	copy(out, c)
	for i := 1; i < len(out); i++ {
		if out[i] == out[i-1] {
			if i == 1 || out[i-2] < out[i-1]-Epsilon {
				out[i-1] -= Epsilon
			}
			out[i] += Epsilon
		}
		if out[i] <= out[i-1] {
			out[i] = out[i-1] + Epsilon
		}
	}
	return out
}
