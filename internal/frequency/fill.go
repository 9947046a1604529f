package frequency

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/derickschaefer/composite/internal/model"
)

// ErrInsufficientBoundary is returned when an incomplete first or last year
// lacks the months needed to pad it safely.
var ErrInsufficientBoundary = errors.New("insufficient data in boundary year")

// FillBoundaryYears pads an incomplete first and last calendar year with nulls
// so the series starts on January 1 and ends on December 31 (or January and
// December for monthly series). The first year must already cover November and
// December, the last year January and February.
func FillBoundaryYears(v *model.Variable) (*model.Variable, error) {
	if v.Frequency != model.Daily && v.Frequency != model.Monthly {
		return nil, fmt.Errorf("fill %s: boundary filling needs a daily or monthly series, got %s", v.Kind, v.Frequency)
	}
	first, last := v.Start(), v.End()
	yearStart := time.Date(first.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := time.Date(last.Year(), 12, 31, 0, 0, 0, 0, time.UTC)
	if v.Frequency == model.Monthly {
		yearEnd = time.Date(last.Year(), 12, 1, 0, 0, 0, 0, time.UTC)
	}

	headOK := !first.After(time.Date(first.Year(), 11, 1, 0, 0, 0, 0, time.UTC))
	tailOK := !last.Before(lastFebruaryDate(last.Year(), v.Frequency))
	var missing []string
	if first.After(yearStart) && !headOK {
		missing = append(missing, fmt.Sprintf("first year %d starts %s (needs November and December)",
			first.Year(), first.Format("2006-01-02")))
	}
	if last.Before(yearEnd) && !tailOK {
		missing = append(missing, fmt.Sprintf("last year %d ends %s (needs January and February)",
			last.Year(), last.Format("2006-01-02")))
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("fill %s (%s): %s: %w", v.Kind, v.TypeSeries, strings.Join(missing, "; "), ErrInsufficientBoundary)
	}

	out := derived(v, v.Frequency)
	out.Obs = make([]model.Observation, 0, len(v.Obs)+400)
	for d := yearStart; d.Before(first); d = model.Step(d, v.Frequency) {
		out.Obs = append(out.Obs, model.Observation{Date: d, Value: model.Null()})
	}
	out.Obs = append(out.Obs, v.Obs...)
	for d := model.Step(last, v.Frequency); !d.After(yearEnd); d = model.Step(d, v.Frequency) {
		out.Obs = append(out.Obs, model.Observation{Date: d, Value: model.Null()})
	}
	return out, nil
}

func lastFebruaryDate(year int, freq model.Frequency) time.Time {
	if freq == model.Monthly {
		return time.Date(year, 2, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(year, 3, 0, 0, 0, 0, 0, time.UTC)
}
