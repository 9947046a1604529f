// Package runctx holds the immutable context of one run: the settings, the
// frequency-data state shared by every station and the process period.
// The context is built once before the per-station loop; a change of state
// returns a new Context instead of mutating the current one.
package runctx

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/derickschaefer/composite/internal/forecast"
	"github.com/derickschaefer/composite/internal/interval"
	"github.com/derickschaefer/composite/internal/model"
	"github.com/derickschaefer/composite/internal/period"
	"github.com/derickschaefer/composite/internal/threshold"
)

var (
	ErrInconsistentState = errors.New("stations have inconsistent data frequencies")
	ErrUnsupportedInput  = errors.New("input frequency must be daily or monthly")
	ErrIllegalInterval   = errors.New("analysis interval not allowed for the data frequencies")
)

// ─── State ────────────────────────────────────────────────────────────────────

// State classifies the (daily|monthly) combination of D and I.
type State int

const (
	DailyDaily     State = 1 // D daily, I daily
	DailyMonthly   State = 2 // D daily, I monthly
	MonthlyDaily   State = 3 // D monthly, I daily
	MonthlyMonthly State = 4 // D monthly, I monthly
)

func (s State) String() string {
	switch s {
	case DailyDaily:
		return "D daily, I daily"
	case DailyMonthly:
		return "D daily, I monthly"
	case MonthlyDaily:
		return "D monthly, I daily"
	case MonthlyMonthly:
		return "D monthly, I monthly"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Classify returns the state of one D/I frequency pair.
func Classify(d, i model.Frequency) (State, error) {
	daily := func(f model.Frequency) (bool, error) {
		switch f {
		case model.Daily:
			return true, nil
		case model.Monthly:
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", f, ErrUnsupportedInput)
	}
	dd, err := daily(d)
	if err != nil {
		return 0, fmt.Errorf("D %w", err)
	}
	id, err := daily(i)
	if err != nil {
		return 0, fmt.Errorf("I %w", err)
	}
	switch {
	case dd && id:
		return DailyDaily, nil
	case dd:
		return DailyMonthly, nil
	case id:
		return MonthlyDaily, nil
	}
	return MonthlyMonthly, nil
}

// StateOf classifies every station and fails unless all agree.
func StateOf(stations []*model.Station) (State, error) {
	var first State
	for k, st := range stations {
		s, err := Classify(st.D.Frequency, st.I.Frequency)
		if err != nil {
			return 0, fmt.Errorf("station %s: %w", st.Code, err)
		}
		if k == 0 {
			first = s
			continue
		}
		if s != first {
			return 0, fmt.Errorf("station %s is %q but station %s is %q: %w",
				st.Code, s, stations[0].Code, first, ErrInconsistentState)
		}
	}
	return first, nil
}

// transitions lists, per analysis interval, the states it is legal in and
// the state the run moves to.
var transitions = map[interval.Granularity]struct {
	from []State
	to   State
}{
	interval.FiveDays:    {from: []State{DailyDaily}, to: DailyDaily},
	interval.TenDays:     {from: []State{DailyDaily}, to: DailyDaily},
	interval.FifteenDays: {from: []State{DailyDaily}, to: DailyDaily},
	interval.Trimester:   {from: []State{DailyDaily, DailyMonthly, MonthlyDaily, MonthlyMonthly}, to: MonthlyMonthly},
}

// Transition returns the state reached by analysing state s at interval g.
func Transition(s State, g interval.Granularity) (State, error) {
	t, ok := transitions[g]
	if !ok {
		return 0, fmt.Errorf("interval %q: %w", g, ErrIllegalInterval)
	}
	for _, f := range t.from {
		if f == s {
			return t.to, nil
		}
	}
	return 0, fmt.Errorf("interval %s with %s (use trimester): %w", g, s, ErrIllegalInterval)
}

// ─── Settings ─────────────────────────────────────────────────────────────────

// VariableSettings configures how one variable is thresholded and reduced.
type VariableSettings struct {
	Threshold threshold.Spec
	// Limits is the raw limits setting: "default", "none" or "below above".
	Limits string
	// Mode overrides the default reduction of the type when set.
	Mode model.Mode
}

// Settings is the parsed configuration of a run.
type Settings struct {
	Categories     model.CategoryCount
	Lags           []int
	Interval       interval.Granularity
	D              VariableSettings
	I              VariableSettings
	AnalogYear     int
	PeriodOverride *model.Period
	NullTolerance  float64
	Weights        forecast.Weights
	ForecastDate   time.Time
}

// HasForecast reports whether forecast weights and a date are configured.
func (s Settings) HasForecast() bool { return len(s.Weights) > 0 && !s.ForecastDate.IsZero() }

// Validate checks the settings that do not depend on the data.
func (s Settings) Validate() error {
	if !s.Categories.Valid() {
		return fmt.Errorf("categories: %d (use 3 or 7)", s.Categories)
	}
	if len(s.Lags) == 0 {
		return errors.New("lags: at least one lag is required")
	}
	for _, l := range s.Lags {
		if l < 0 || l > forecast.MaxLag {
			return fmt.Errorf("lags: %d outside 0..%d", l, forecast.MaxLag)
		}
	}
	for _, l := range s.Weights.Lags() {
		if !slices.Contains(s.Lags, l) {
			return fmt.Errorf("forecast weights: lag %d is not in lags %v", l, s.Lags)
		}
	}
	if _, ok := transitions[s.Interval]; !ok {
		return fmt.Errorf("analysis interval: %q: %w", s.Interval, ErrIllegalInterval)
	}
	if s.NullTolerance <= 0 || s.NullTolerance > 100 {
		return fmt.Errorf("consistent data tolerance: %g outside (0,100]", s.NullTolerance)
	}
	return nil
}

// ─── Context ──────────────────────────────────────────────────────────────────

// Context is the immutable state of a run.
type Context struct {
	settings Settings
	state    State
	common   model.Period
	period   model.Period
	analysis bool
}

// New validates settings, classifies the stations and resolves the process
// period. It must run once, before any per-station computation.
func New(settings Settings, stations []*model.Station) (Context, error) {
	if err := settings.Validate(); err != nil {
		return Context{}, err
	}
	state, err := StateOf(stations)
	if err != nil {
		return Context{}, err
	}
	common, err := period.Common(stations)
	if err != nil {
		return Context{}, err
	}
	p, err := period.Resolve(common, settings.PeriodOverride)
	if err != nil {
		return Context{}, err
	}
	return Context{settings: settings, state: state, common: common, period: p}, nil
}

// ForAnalysis returns the context after moving to the configured analysis
// interval. The receiver is left unchanged.
func (c Context) ForAnalysis() (Context, error) {
	if c.analysis {
		return c, nil
	}
	next, err := Transition(c.state, c.settings.Interval)
	if err != nil {
		return Context{}, err
	}
	out := c
	out.state = next
	out.analysis = true
	return out, nil
}

// Settings returns the run settings.
func (c Context) Settings() Settings { return c.settings }

// State returns the current frequency-data state.
func (c Context) State() State { return c.state }

// Common returns the maximum common period of the stations.
func (c Context) Common() model.Period { return c.common }

// Period returns the process period.
func (c Context) Period() model.Period { return c.period }

// Interval returns the analysis interval.
func (c Context) Interval() interval.Granularity { return c.settings.Interval }

// AnalysisFrequency is the frequency both variables are converted to.
func (c Context) AnalysisFrequency() model.Frequency { return c.settings.Interval.Frequency() }
