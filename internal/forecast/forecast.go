// Package forecast blends externally supplied phenomenon probabilities with
// the percentages of built contingency tables to give the probability of
// each D category. Every function is pure and performs no I/O.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/derickschaefer/composite/internal/contingency"
	"github.com/derickschaefer/composite/internal/interval"
	"github.com/derickschaefer/composite/internal/model"
)

// SumTolerance is how far the weights of one lag may stray from 100.
const SumTolerance = 1.0

// MaxLag is the largest lag weights may be given for.
const MaxLag = 2

var (
	ErrWeights = errors.New("invalid forecast weights")
	ErrNoTable = errors.New("no contingency table for forecast")
)

// Mode is the combination of I and D category counts a forecast uses.
type Mode string

const (
	Mode3x3 Mode = "3x3"
	Mode3x7 Mode = "3x7"
	Mode7x7 Mode = "7x7"
)

// LagWeights are the phenomenon probabilities of one lag, one per I
// category. In Mode3x7, W holds the weights of Sel.Categories() in order.
type LagWeights struct {
	Mode Mode
	W    []float64
	Sel  contingency.Selection
}

// Weights maps a lag to its phenomenon probabilities.
type Weights map[int]LagWeights

// Lags returns the configured lags in ascending order.
func (w Weights) Lags() []int {
	out := make([]int, 0, len(w))
	for l := range w {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// ParseWeights validates the raw label → probability maps of every lag for a
// run with n categories. Three labels with n = 7 select the restricted 3×7
// mode and must name one below sub-category, normal and one above sub-category.
func ParseWeights(raw map[int]map[string]float64, n model.CategoryCount) (Weights, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("no lags configured: %w", ErrWeights)
	}
	out := make(Weights, len(raw))
	for lag, labels := range raw {
		if lag < 0 || lag > MaxLag {
			return nil, fmt.Errorf("lag %d: must be between 0 and %d: %w", lag, MaxLag, ErrWeights)
		}
		lw, err := parseLag(labels, n)
		if err != nil {
			return nil, fmt.Errorf("lag %d: %w", lag, err)
		}
		out[lag] = lw
	}
	return out, nil
}

func parseLag(labels map[string]float64, n model.CategoryCount) (LagWeights, error) {
	var sum float64
	for label, v := range labels {
		if v < 0 || v > 100 {
			return LagWeights{}, fmt.Errorf("%s = %g outside [0,100]: %w", label, v, ErrWeights)
		}
		sum += v
	}
	if math.Abs(sum-100) > SumTolerance {
		return LagWeights{}, fmt.Errorf("weights sum to %g, need 100±%g: %w", sum, SumTolerance, ErrWeights)
	}

	switch {
	case n == model.ThreeCategories && len(labels) == 3:
		w, err := ordered(labels, n)
		return LagWeights{Mode: Mode3x3, W: w}, err
	case n == model.SevenCategories && len(labels) == 7:
		w, err := ordered(labels, n)
		return LagWeights{Mode: Mode7x7, W: w}, err
	case n == model.SevenCategories && len(labels) == 3:
		return restricted(labels)
	}
	return LagWeights{}, fmt.Errorf("%d weights for %d categories: %w", len(labels), n, ErrWeights)
}

// ordered arranges labels by category index.
func ordered(labels map[string]float64, n model.CategoryCount) ([]float64, error) {
	w := make([]float64, n)
	for label, v := range labels {
		c, err := model.ParseCategory(n, label)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, ErrWeights)
		}
		w[c] = v
	}
	return w, nil
}

func restricted(labels map[string]float64) (LagWeights, error) {
	n := model.SevenCategories
	lw := LagWeights{Mode: Mode3x7, W: make([]float64, 3)}
	var haveBelow, haveNormal, haveAbove bool
	for label, v := range labels {
		c, err := model.ParseCategory(n, label)
		if err != nil {
			return LagWeights{}, fmt.Errorf("%v: %w", err, ErrWeights)
		}
		switch n.Block(c) {
		case model.BlockBelow:
			lw.Sel.Below, lw.W[0], haveBelow = c, v, true
		case model.BlockNormal:
			lw.W[1], haveNormal = v, true
		case model.BlockAbove:
			lw.Sel.Above, lw.W[2], haveAbove = c, v, true
		}
	}
	if !haveBelow || !haveNormal || !haveAbove {
		return LagWeights{}, fmt.Errorf("3x7 weights need one below sub-category, normal and one above sub-category: %w", ErrWeights)
	}
	return lw, nil
}

// ─── Blend ────────────────────────────────────────────────────────────────────

// Blend returns the probability of each D category of t, in percent:
// p[d] = Σ_i pct[i][d] / 100 · w[i]. In Mode7x7 the I sub-categories are first
// folded into their below/normal/above blocks. Blocks whose I categories hold
// no observation are reported.
func Blend(t *model.Table, lw LagWeights) ([]float64, []model.Block, error) {
	pct := t.Pct
	var zero []model.Block
	switch lw.Mode {
	case Mode3x3:
		if t.Categories != model.ThreeCategories {
			return nil, nil, fmt.Errorf("blend %s: table has %d categories: %w", lw.Mode, t.Categories, ErrWeights)
		}
	case Mode7x7:
		if t.Categories != model.SevenCategories {
			return nil, nil, fmt.Errorf("blend %s: table has %d categories: %w", lw.Mode, t.Categories, ErrWeights)
		}
	case Mode3x7:
		var err error
		pct, zero, err = contingency.Restrict(t, lw.Sel)
		if err != nil {
			return nil, nil, fmt.Errorf("blend %s: %w", lw.Mode, err)
		}
	default:
		return nil, nil, fmt.Errorf("blend: unknown mode %q: %w", lw.Mode, ErrWeights)
	}
	if len(lw.W) != len(pct) {
		return nil, nil, fmt.Errorf("blend %s: %d weights for %d I categories: %w", lw.Mode, len(lw.W), len(pct), ErrWeights)
	}

	w := lw.W
	if lw.Mode == Mode7x7 {
		pct, w, zero = blocks(pct, lw.W)
	}
	out := make([]float64, int(t.Categories))
	for i, row := range pct {
		for d, p := range row {
			out[d] += p / 100 * w[i]
		}
	}
	return out, zero, nil
}

// blocks folds the seven I rows of a block-normalized table into below, normal
// and above rows, summing the weights of each block's sub-categories. Blocks
// with no observation are returned as zero.
func blocks(pct [][]float64, w []float64) (rows [][]float64, bw []float64, zero []model.Block) {
	n := model.SevenCategories
	rows = make([][]float64, 3)
	bw = make([]float64, 3)
	for i, row := range pct {
		b := n.Block(model.Category(i))
		if rows[b] == nil {
			rows[b] = make([]float64, len(row))
		}
		for d, p := range row {
			rows[b][d] += p
		}
		bw[b] += w[i]
	}
	for b, row := range rows {
		sum := 0.0
		for _, p := range row {
			sum += p
		}
		if sum == 0 {
			zero = append(zero, model.Block(b))
		}
	}
	return rows, bw, zero
}

// Forecast blends the table of st for lag and the analysis period containing
// date.
func Forecast(st *model.Station, lag int, date time.Time, w Weights, g interval.Granularity) (model.Forecast, error) {
	lw, ok := w[lag]
	if !ok {
		return model.Forecast{}, fmt.Errorf("station %s: no weights for lag %d: %w", st.Code, lag, ErrWeights)
	}
	key := interval.KeyFor(g, date)
	t, ok := st.Table(lag, key)
	if !ok {
		return model.Forecast{}, fmt.Errorf("station %s: lag %d, period %s: %w", st.Code, lag, key.Label(), ErrNoTable)
	}
	prob, _, err := Blend(t, lw)
	if err != nil {
		return model.Forecast{}, fmt.Errorf("station %s: %w", st.Code, err)
	}
	return model.Forecast{
		Station:    st.Code,
		Lag:        lag,
		Date:       date,
		Period:     key,
		Categories: t.Categories,
		Mode:       string(lw.Mode),
		Prob:       prob,
	}, nil
}
