package threshold

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"github.com/derickschaefer/composite/internal/model"
)

// Input is the data a threshold computation runs over.
type Input struct {
	Kind       model.Kind
	TypeSeries string
	// Values are the variable's values inside the process period at the
	// analysis frequency.
	Values []model.Value
	// AnalogValues, when non-nil, are the D values of the analog year.
	AnalogValues []model.Value
	Limits       Limits
}

// Compute derives the cut points of in for n categories.
// The result is validated against the physical limits and strictly increasing.
func Compute(spec Spec, n model.CategoryCount, in Input) (Set, error) {
	if !n.Valid() {
		return nil, fmt.Errorf("%s %s: %d categories: %w", in.Kind, in.TypeSeries, n, ErrSpec)
	}
	values := in.Values
	if spec.Strategy == StrategyDefault {
		switch {
		case in.Kind == model.KindD && in.AnalogValues != nil:
			spec = analogPercentiles(n)
			values = in.AnalogValues
		default:
			d, ok := DefaultSpec(in.TypeSeries, n)
			if !ok {
				return nil, fmt.Errorf("%s %s: no default thresholds for this type, configure them explicitly: %w",
					in.Kind, in.TypeSeries, ErrSpec)
			}
			spec = d
		}
	}
	if len(spec.Params) != int(n)-1 {
		return nil, fmt.Errorf("%s %s: threshold %q has %d values, need %d for %d categories: %w",
			in.Kind, in.TypeSeries, spec, len(spec.Params), int(n)-1, n, ErrSpec)
	}

	clean := model.Present(values)
	needsData := spec.Strategy != StrategyValues || medianRelative[in.TypeSeries]
	if needsData && len(clean) == 0 {
		return nil, fmt.Errorf("%s %s: %w", in.Kind, in.TypeSeries, ErrNoData)
	}

	cuts := make([]float64, len(spec.Params))
	switch spec.Strategy {
	case StrategyPercentile:
		sorted := make([]float64, len(clean))
		copy(sorted, clean)
		sort.Float64s(sorted)
		for i, p := range spec.Params {
			cuts[i] = Percentile(sorted, p)
		}
	case StrategySD:
		if len(clean) < 2 {
			return nil, fmt.Errorf("%s %s: standard deviation needs at least 2 values: %w", in.Kind, in.TypeSeries, ErrNoData)
		}
		med, err := stats.Median(clean)
		if err != nil {
			return nil, fmt.Errorf("%s %s: median: %w", in.Kind, in.TypeSeries, err)
		}
		sd := stat.StdDev(clean, nil)
		for i, k := range spec.Params {
			cuts[i] = med + k*sd
		}
	case StrategyPercentage:
		mean := stat.Mean(clean, nil)
		for i, pct := range spec.Params {
			cuts[i] = mean * pct / 100
		}
	case StrategyValues:
		copy(cuts, spec.Params)
		if medianRelative[in.TypeSeries] {
			med, err := stats.Median(clean)
			if err != nil {
				return nil, fmt.Errorf("%s %s: median: %w", in.Kind, in.TypeSeries, err)
			}
			for i := range cuts {
				cuts[i] += med
			}
		}
	default:
		return nil, fmt.Errorf("%s %s: strategy %q: %w", in.Kind, in.TypeSeries, spec.Strategy, ErrSpec)
	}

	limits := in.Limits
	if spec.Strategy == StrategySD && limits.None() {
		limits = DefaultLimits(in.TypeSeries)
	}
	if err := checkLimits(cuts, limits, n); err != nil {
		return nil, fmt.Errorf("%s %s: %w", in.Kind, in.TypeSeries, err)
	}
	return FromCuts(separate(cuts))
}

// checkLimits fails on the first cut point outside limits, naming its category.
func checkLimits(cuts []float64, l Limits, n model.CategoryCount) error {
	names := cutLabels(n)
	for i, c := range cuts {
		if b, ok := l.Below.Float(); ok && c < b {
			return fmt.Errorf("threshold %s = %g below limit %g: %w", names[i], c, b, ErrOutOfLimit)
		}
		if a, ok := l.Above.Float(); ok && c > a {
			return fmt.Errorf("threshold %s = %g above limit %g: %w", names[i], c, a, ErrOutOfLimit)
		}
	}
	return nil
}

// Percentile returns the p-th percentile (0..100) of sorted data, linearly
// interpolating between closest ranks.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	idx := p / 100 * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
