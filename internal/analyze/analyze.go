// Package analyze computes descriptive summaries and trends of input series.
// It is used to inspect station and index files before a run. All functions
// are pure; no I/O.
package analyze

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"github.com/derickschaefer/composite/internal/model"
	"github.com/derickschaefer/composite/internal/threshold"
)

// ─── Summary ──────────────────────────────────────────────────────────────────

// Summary holds descriptive statistics for a series.
type Summary struct {
	Label     string          `json:"label"`
	Type      string          `json:"type"`
	Frequency model.Frequency `json:"frequency"`
	Start     string          `json:"start"`
	End       string          `json:"end"`
	Count     int             `json:"count"`
	Missing   int             `json:"missing"`
	NullPct   float64         `json:"null_pct"`
	Mean      model.Value     `json:"mean"`
	Std       model.Value     `json:"std"`
	Min       model.Value     `json:"min"`
	P25       model.Value     `json:"p25"`
	Median    model.Value     `json:"median"`
	P75       model.Value     `json:"p75"`
	Max       model.Value     `json:"max"`
	// WorstYear is the calendar year with the most nulls, zero when none.
	WorstYear    int     `json:"worst_year,omitempty"`
	WorstYearPct float64 `json:"worst_year_null_pct,omitempty"`
}

// Summarize computes descriptive statistics over the observations of v.
// Nulls are excluded from the numeric fields but counted.
func Summarize(label string, v *model.Variable) Summary {
	s := Summary{Label: label, Type: v.TypeSeries, Frequency: v.Frequency, Count: len(v.Obs)}
	if len(v.Obs) == 0 {
		return s
	}
	s.Start = v.Start().Format("2006-01-02")
	s.End = v.End().Format("2006-01-02")

	vals := model.Values(v.Obs)
	s.Missing = model.CountNull(vals)
	s.NullPct = float64(s.Missing) / float64(s.Count) * 100
	s.WorstYear, s.WorstYearPct = worstYear(v.Obs)

	clean := model.Present(vals)
	if len(clean) == 0 {
		return s
	}
	sorted := append([]float64(nil), clean...)
	sort.Float64s(sorted)

	s.Min = model.Some(sorted[0])
	s.Max = model.Some(sorted[len(sorted)-1])
	if m, err := stats.Mean(clean); err == nil {
		s.Mean = model.Some(m)
	}
	if len(clean) > 1 {
		if sd, err := stats.StandardDeviationSample(clean); err == nil {
			s.Std = model.Some(sd)
		}
	}
	s.P25 = model.Some(threshold.Percentile(sorted, 25))
	if m, err := stats.Median(clean); err == nil {
		s.Median = model.Some(m)
	}
	s.P75 = model.Some(threshold.Percentile(sorted, 75))
	return s
}

func worstYear(obs []model.Observation) (int, float64) {
	total := map[int]int{}
	nulls := map[int]int{}
	for _, o := range obs {
		y := o.Date.Year()
		total[y]++
		if o.Value.IsNull() {
			nulls[y]++
		}
	}
	year, pct := 0, 0.0
	for y, n := range nulls {
		p := float64(n) / float64(total[y]) * 100
		if p > pct || (p == pct && y < year) {
			year, pct = y, p
		}
	}
	return year, pct
}

// ─── Trend ────────────────────────────────────────────────────────────────────

// TrendMethod selects the regression algorithm.
type TrendMethod string

const (
	TrendLinear   TrendMethod = "linear"
	TrendTheilSen TrendMethod = "theil-sen"
)

// ParseTrendMethod validates a trend method name.
func ParseTrendMethod(s string) (TrendMethod, error) {
	switch m := TrendMethod(s); m {
	case TrendLinear, TrendTheilSen:
		return m, nil
	case "":
		return TrendLinear, nil
	default:
		return "", fmt.Errorf("unknown trend method %q (use linear or theil-sen)", s)
	}
}

// TrendResult holds the output of a trend analysis.
type TrendResult struct {
	Method       TrendMethod `json:"method"`
	Slope        float64     `json:"slope"` // units per day
	Intercept    float64     `json:"intercept"`
	R2           float64     `json:"r2"`
	Direction    string      `json:"direction"` // "up", "down", "flat"
	SlopePerYear float64     `json:"slope_per_year"`
}

// Trend fits a trend to the non-null observations of v. X values are days
// since the first non-null observation.
func Trend(v *model.Variable, method TrendMethod) (TrendResult, error) {
	tr := TrendResult{Method: method}

	var xs, ys []float64
	var t0 int64
	for _, o := range v.Obs {
		f, ok := o.Value.Float()
		if !ok {
			continue
		}
		unix := o.Date.Unix()
		if len(xs) == 0 {
			t0 = unix
		}
		xs = append(xs, float64(unix-t0)/86400)
		ys = append(ys, f)
	}
	if len(xs) < 2 {
		return tr, fmt.Errorf("trend: need at least 2 non-null observations, got %d", len(xs))
	}

	switch method {
	case TrendTheilSen:
		tr.Slope = theilSenSlope(xs, ys)
		tr.Intercept = stat.Mean(ys, nil) - tr.Slope*stat.Mean(xs, nil)
	default:
		tr.Intercept, tr.Slope = stat.LinearRegression(xs, ys, nil, false)
	}
	tr.R2 = stat.RSquared(xs, ys, nil, tr.Intercept, tr.Slope)
	if math.IsNaN(tr.R2) {
		tr.R2 = 0
	}
	tr.SlopePerYear = tr.Slope * 365.25

	switch {
	case tr.SlopePerYear > 0.01:
		tr.Direction = "up"
	case tr.SlopePerYear < -0.01:
		tr.Direction = "down"
	default:
		tr.Direction = "flat"
	}
	return tr, nil
}

// theilSenSlope is the median of the pairwise slopes.
func theilSenSlope(xs, ys []float64) float64 {
	var slopes []float64
	for i := 0; i < len(xs); i++ {
		for j := i + 1; j < len(xs); j++ {
			if dx := xs[j] - xs[i]; dx != 0 {
				slopes = append(slopes, (ys[j]-ys[i])/dx)
			}
		}
	}
	m, err := stats.Median(slopes)
	if err != nil {
		return 0
	}
	return m
}

// ─── Report ───────────────────────────────────────────────────────────────────

// Report pairs the summary and trend of one series.
type Report struct {
	Summary Summary      `json:"summary"`
	Trend   *TrendResult `json:"trend,omitempty"`
}
