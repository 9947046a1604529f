// Package interval resolves analysis-interval granularities into concrete
// calendar buckets. N-day granularities split every month into fixed start
// days; the last bucket of a month runs to the month's final day. The
// trimester granularity has no day buckets: its periods are calendar months,
// each opening a three-month window.
package interval

import (
	"fmt"
	"strings"
	"time"

	"github.com/derickschaefer/composite/internal/model"
)

// Granularity is the configured analysis interval.
type Granularity string

const (
	FiveDays    Granularity = "5days"
	TenDays     Granularity = "10days"
	FifteenDays Granularity = "15days"
	Trimester   Granularity = "trimester"
)

var ranges = map[Granularity][]int{
	FiveDays:    {1, 6, 11, 16, 21, 26},
	TenDays:     {1, 11, 21},
	FifteenDays: {1, 16},
	Trimester:   nil,
}

// Parse validates a granularity name.
func Parse(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := ranges[g]; !ok {
		return "", fmt.Errorf("unknown analysis interval %q (use 5days, 10days, 15days or trimester)", s)
	}
	return g, nil
}

// IsDayBased reports whether g splits months into day buckets.
func (g Granularity) IsDayBased() bool { return g != Trimester }

// Frequency is the series frequency the analysis runs at for g.
func (g Granularity) Frequency() model.Frequency {
	switch g {
	case FiveDays:
		return model.FiveDays
	case TenDays:
		return model.TenDays
	case FifteenDays:
		return model.FifteenDays
	}
	return model.Trimonthly
}

// ForFrequency returns the granularity whose buckets a day-based frequency uses.
func ForFrequency(f model.Frequency) (Granularity, bool) {
	switch f {
	case model.FiveDays:
		return FiveDays, true
	case model.TenDays:
		return TenDays, true
	case model.FifteenDays:
		return FifteenDays, true
	}
	return "", false
}

// Ranges returns the bucket start days of g in ascending order.
// Trimester returns nil.
func Ranges(g Granularity) []int {
	r := ranges[g]
	if r == nil {
		return nil
	}
	out := make([]int, len(r))
	copy(out, r)
	return out
}

// Locate returns the start day of the bucket containing day: the largest
// bucket start <= day. Trimester buckets are whole months and always start on 1.
func Locate(g Granularity, day int) int {
	r := ranges[g]
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] <= day {
			return r[i]
		}
	}
	return 1
}

// Bounds returns the first and last date of the bucket containing the given day.
func Bounds(g Granularity, year int, month time.Month, day int) (time.Time, time.Time) {
	start := Locate(g, day)
	first := time.Date(year, month, start, 0, 0, 0, 0, time.UTC)
	lastOfMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)

	r := ranges[g]
	for i, s := range r {
		if s == start && i+1 < len(r) {
			return first, time.Date(year, month, r[i+1]-1, 0, 0, 0, 0, time.UTC)
		}
	}
	return first, lastOfMonth
}

// Shift moves the bucket starting at year/month/start by n buckets
// (negative n moves backwards), crossing month and year boundaries.
func Shift(g Granularity, year int, month time.Month, start, n int) (int, time.Month, int) {
	r := ranges[g]
	if r == nil {
		t := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
		return t.Year(), t.Month(), 1
	}
	k := len(r)
	pos := 0
	for i, s := range r {
		if s == start {
			pos = i
		}
	}
	idx := (year*12+int(month)-1)*k + pos + n
	perYear := 12 * k
	y := floorDiv(idx, perYear)
	rem := idx - y*perYear
	return y, time.Month(rem/k + 1), r[rem%k]
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Periods enumerates the analysis periods of one year for g.
func Periods(g Granularity) []model.PeriodKey {
	var out []model.PeriodKey
	for m := 1; m <= 12; m++ {
		if g == Trimester {
			out = append(out, model.PeriodKey{Month: m})
			continue
		}
		for _, d := range ranges[g] {
			out = append(out, model.PeriodKey{Month: m, Day: d})
		}
	}
	return out
}

// KeyFor returns the analysis period containing date.
func KeyFor(g Granularity, date time.Time) model.PeriodKey {
	if g == Trimester {
		return model.PeriodKey{Month: int(date.Month())}
	}
	return model.PeriodKey{Month: int(date.Month()), Day: Locate(g, date.Day())}
}

// ─── Bucket lookups ───────────────────────────────────────────────────────────

// ValuesInBucket returns every value of v that falls in the g bucket
// containing year/month/day. Trimester buckets are calendar months.
func ValuesInBucket(v *model.Variable, g Granularity, year int, month time.Month, day int) []model.Value {
	from, to := Bounds(g, year, month, day)
	return model.Values(v.Between(from, to))
}

// LaggedValuesInBucket is ValuesInBucket for the bucket lag buckets before the
// one containing year/month/day.
func LaggedValuesInBucket(v *model.Variable, g Granularity, year int, month time.Month, day, lag int) []model.Value {
	y, m, d := Shift(g, year, month, Locate(g, day), -lag)
	return ValuesInBucket(v, g, y, m, d)
}
