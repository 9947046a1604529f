// Package period computes the process period shared by every station of a
// run and checks that each series is consistent inside it.
package period

import (
	"errors"
	"fmt"
	"time"

	"github.com/derickschaefer/composite/internal/model"
)

// MinYears is the shortest process period the statistics are defined for.
const MinYears = 3

// DefaultNullTolerance is the default maximum percentage of null values a
// variable may hold inside the process period.
const DefaultNullTolerance = 15.0

var (
	ErrNoCommonPeriod = errors.New("stations have no common period")
	ErrPeriodTooShort = errors.New("process period too short")
	ErrOutsideCommon  = errors.New("process period outside the common period")
	ErrTooManyNulls   = errors.New("too many null values in process period")
)

// Common intersects the date ranges of D and I for every station and across
// stations. One year is kept back on each side of the intersection for lags,
// so the usable period is [first year + 1, last year - 1].
func Common(stations []*model.Station) (model.Period, error) {
	if len(stations) == 0 {
		return model.Period{}, fmt.Errorf("common period: no stations: %w", ErrNoCommonPeriod)
	}
	var from, to time.Time
	for i, st := range stations {
		sFrom, sTo := latest(st.D.Start(), st.I.Start()), earliest(st.D.End(), st.I.End())
		if i == 0 {
			from, to = sFrom, sTo
			continue
		}
		from, to = latest(from, sFrom), earliest(to, sTo)
	}
	if from.After(to) {
		return model.Period{}, fmt.Errorf("common period: %w", ErrNoCommonPeriod)
	}
	p := model.Period{StartYear: from.Year() + 1, EndYear: to.Year() - 1}
	if p.Years() < MinYears {
		return model.Period{}, fmt.Errorf("common period %s spans %d years, need at least %d: %w",
			p, p.Years(), MinYears, ErrPeriodTooShort)
	}
	return p, nil
}

// Resolve returns the process period for a run: common, or override when one
// is configured. An override must lie inside common and span MinYears.
func Resolve(common model.Period, override *model.Period) (model.Period, error) {
	if override == nil {
		return common, nil
	}
	if !common.Contains(*override) {
		return model.Period{}, fmt.Errorf("process period %s: maximum common period is %s: %w",
			override, common, ErrOutsideCommon)
	}
	if override.Years() < MinYears {
		return model.Period{}, fmt.Errorf("process period %s spans %d years, need at least %d: %w",
			override, override.Years(), MinYears, ErrPeriodTooShort)
	}
	return *override, nil
}

// NullRatio returns the percentage of null values of v inside p.
func NullRatio(v *model.Variable, p model.Period) float64 {
	obs := v.InPeriod(p)
	if len(obs) == 0 {
		return 100
	}
	return float64(model.CountNull(model.Values(obs))) / float64(len(obs)) * 100
}

// CheckNulls fails when D or I of st holds tolerance percent or more nulls inside p.
func CheckNulls(st *model.Station, p model.Period, tolerance float64) error {
	for _, v := range []*model.Variable{st.D, st.I} {
		if r := NullRatio(v, p); r >= tolerance {
			return fmt.Errorf("station %s: variable %s (%s) is %.1f%% null in %s (tolerance %.1f%%): %w",
				st.Code, v.Kind, v.TypeSeries, r, p, tolerance, ErrTooManyNulls)
		}
	}
	return nil
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
