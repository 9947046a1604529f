// Package frequency re-periodizes variables: daily series into N-day or
// monthly series, and monthly series into bimonthly or trimonthly rolling
// windows. Every operator is a pure function returning a new Variable.
package frequency

import (
	"errors"
	"fmt"
	"time"

	"github.com/derickschaefer/composite/internal/interval"
	"github.com/derickschaefer/composite/internal/model"
)

// MaxNullFraction is the share of null values a bucket may hold and still
// reduce to a value.
const MaxNullFraction = 0.4

// ErrDownConvert is returned when a conversion would refine a series.
var ErrDownConvert = errors.New("cannot convert to a finer frequency")

// ─── Reduce ───────────────────────────────────────────────────────────────────

// Reduce aggregates the values of one bucket. The result is null when the
// bucket is empty, entirely null, or more than MaxNullFraction null; otherwise
// it is the mean or the sum of the present values.
func Reduce(vals []model.Value, mode model.Mode) model.Value {
	if len(vals) == 0 {
		return model.Null()
	}
	present := model.Present(vals)
	if len(present) == 0 {
		return model.Null()
	}
	if float64(len(vals)-len(present))/float64(len(vals)) > MaxNullFraction {
		return model.Null()
	}
	s := sum(present)
	if mode == model.ModeAccumulate {
		return model.Some(s)
	}
	return model.Some(s / float64(len(present)))
}

// ─── Convert ──────────────────────────────────────────────────────────────────

// Convert aggregates v to target. Converting to the current frequency
// returns v unchanged; chains such as daily → trimonthly pass through monthly.
func Convert(v *model.Variable, target model.Frequency) (*model.Variable, error) {
	if v.Frequency == target {
		return v, nil
	}
	if target.Rank() < v.Frequency.Rank() {
		return nil, fmt.Errorf("convert %s %s → %s: %w", v.Kind, v.Frequency, target, ErrDownConvert)
	}

	switch {
	case v.Frequency == model.Daily && target.IsDayBased():
		g, _ := interval.ForFrequency(target)
		return toNDays(v, g), nil
	case v.Frequency == model.Daily && target.Months() > 0:
		monthly := toMonthly(v)
		return Convert(monthly, target)
	case v.Frequency == model.Monthly && target.Months() > 1:
		return toNMonths(v, target), nil
	}
	return nil, fmt.Errorf("convert %s: unsupported conversion %s → %s", v.Kind, v.Frequency, target)
}

// toNDays reduces a daily series into the buckets of g.
func toNDays(v *model.Variable, g interval.Granularity) *model.Variable {
	first, last := v.Start(), v.End()
	out := derived(v, g.Frequency())
	for y := first.Year(); y <= last.Year(); y++ {
		for m := time.January; m <= time.December; m++ {
			for _, d := range interval.Ranges(g) {
				from, to := interval.Bounds(g, y, m, d)
				if to.Before(first) || from.After(last) {
					continue
				}
				vals := interval.ValuesInBucket(v, g, y, m, d)
				out.Obs = append(out.Obs, model.Observation{Date: from, Value: Reduce(vals, v.Mode)})
			}
		}
	}
	return out
}

// toMonthly reduces a daily series into calendar months.
func toMonthly(v *model.Variable) *model.Variable {
	first, last := v.Start(), v.End()
	out := derived(v, model.Monthly)
	for m := time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, time.UTC); !m.After(last); m = m.AddDate(0, 1, 0) {
		vals := model.Values(v.Between(m, m.AddDate(0, 1, -1)))
		out.Obs = append(out.Obs, model.Observation{Date: m, Value: Reduce(vals, v.Mode)})
	}
	return out
}

// toNMonths builds a forward rolling window over a monthly series:
// out[i] reduces months i..i+N-1. Windows running past the end are null.
func toNMonths(v *model.Variable, target model.Frequency) *model.Variable {
	n := target.Months()
	out := derived(v, target)
	out.Obs = make([]model.Observation, len(v.Obs))
	for i, o := range v.Obs {
		val := model.Null()
		if i+n <= len(v.Obs) {
			val = Reduce(model.Values(v.Obs[i:i+n]), v.Mode)
		}
		out.Obs[i] = model.Observation{Date: o.Date, Value: val}
	}
	return out
}

func derived(v *model.Variable, freq model.Frequency) *model.Variable {
	return &model.Variable{
		Kind:       v.Kind,
		TypeSeries: v.TypeSeries,
		Frequency:  freq,
		Mode:       v.Mode,
	}
}

func sum(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

// accumulated lists the internal types whose buckets are summed by default.
var accumulated = map[string]bool{"PPT": true, "NDPPT": true, "RUNOFF": true, "NRAIN": true}

// DefaultMode returns the reduction used for typeSeries when none is configured.
func DefaultMode(typeSeries string) model.Mode {
	if accumulated[typeSeries] {
		return model.ModeAccumulate
	}
	return model.ModeMean
}
