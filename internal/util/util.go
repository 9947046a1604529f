// Package util provides shared utilities: date and value parsing for series
// files, and an error collector for multi-field validation.
package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/derickschaefer/composite/internal/model"
)

// ─── Date Parsing ─────────────────────────────────────────────────────────────

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// ParseDate parses a YYYY-MM-DD string into a time.Time (UTC midnight).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// ParseSeriesDate parses YYYY-MM-DD or YYYY-MM. Month-only dates fall on the
// first of the month.
func ParseSeriesDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(monthLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or YYYY-MM", s)
}

// FormatDate formats a time.Time as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// ─── Observation Value Parsing ────────────────────────────────────────────────

var nullTokens = map[string]bool{"": true, ".": true, "nan": true, "na": true, "null": true}

// ParseValue parses an observation value. Missing-value tokens ("", ".",
// nan, NA, null, any case) give a null Value; anything else must be a number.
// Uses strconv.ParseFloat to avoid locale issues.
func ParseValue(s string) (model.Value, error) {
	s = strings.TrimSpace(s)
	if nullTokens[strings.ToLower(s)] {
		return model.Null(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return model.Null(), fmt.Errorf("invalid value %q", s)
	}
	return model.Some(v), nil
}

// FormatValue formats a value for display, showing "nan" when missing.
func FormatValue(v model.Value) string {
	return v.String()
}

// FormatFloat formats f with prec decimals, trimming trailing zeros.
func FormatFloat(f float64, prec int) string {
	s := strconv.FormatFloat(f, 'f', prec, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	if s == "-0" {
		s = "0"
	}
	return s
}

// ─── Error Helpers ────────────────────────────────────────────────────────────

// MultiError collects multiple errors and presents them as one.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

func (m *MultiError) Error() string {
	msgs := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error { return m.Errors }
