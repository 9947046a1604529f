package runctx_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/composite/internal/forecast"
	"github.com/derickschaefer/composite/internal/interval"
	"github.com/derickschaefer/composite/internal/model"
	"github.com/derickschaefer/composite/internal/period"
	"github.com/derickschaefer/composite/internal/runctx"
	"github.com/derickschaefer/composite/internal/threshold"
)

func series(t *testing.T, kind model.Kind, freq model.Frequency, fromYear, toYear int) *model.Variable {
	t.Helper()
	from := time.Date(fromYear, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(toYear, 12, 31, 0, 0, 0, 0, time.UTC)
	var obs []model.Observation
	for d := from; !d.After(to); d = model.Step(d, freq) {
		obs = append(obs, model.Observation{Date: d, Value: model.Some(1)})
	}
	v, err := model.NewVariable(kind, "X", freq, model.ModeMean, obs)
	require.NoError(t, err)
	return v
}

func station(t *testing.T, code string, dFreq, iFreq model.Frequency) *model.Station {
	return &model.Station{
		Code: code,
		D:    series(t, model.KindD, dFreq, 2000, 2006),
		I:    series(t, model.KindI, iFreq, 2000, 2006),
	}
}

func settings(g interval.Granularity) runctx.Settings {
	return runctx.Settings{
		Categories:    model.ThreeCategories,
		Lags:          []int{0, 1},
		Interval:      g,
		D:             runctx.VariableSettings{Threshold: threshold.Spec{Strategy: threshold.StrategyDefault}},
		I:             runctx.VariableSettings{Threshold: threshold.Spec{Strategy: threshold.StrategyDefault}},
		NullTolerance: period.DefaultNullTolerance,
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		d, i model.Frequency
		want runctx.State
	}{
		{model.Daily, model.Daily, runctx.DailyDaily},
		{model.Daily, model.Monthly, runctx.DailyMonthly},
		{model.Monthly, model.Daily, runctx.MonthlyDaily},
		{model.Monthly, model.Monthly, runctx.MonthlyMonthly},
	}
	for _, c := range cases {
		s, err := runctx.Classify(c.d, c.i)
		require.NoError(t, err)
		assert.Equal(t, c.want, s)
	}
	_, err := runctx.Classify(model.TenDays, model.Monthly)
	assert.ErrorIs(t, err, runctx.ErrUnsupportedInput)
}

func TestStateOfInconsistent(t *testing.T) {
	stations := []*model.Station{
		station(t, "A", model.Monthly, model.Monthly),
		station(t, "B", model.Daily, model.Monthly),
	}
	_, err := runctx.StateOf(stations)
	require.Error(t, err)
	assert.ErrorIs(t, err, runctx.ErrInconsistentState)
	assert.Contains(t, err.Error(), "station B")
}

func TestTransitionTable(t *testing.T) {
	for _, g := range []interval.Granularity{interval.FiveDays, interval.TenDays, interval.FifteenDays} {
		s, err := runctx.Transition(runctx.DailyDaily, g)
		require.NoError(t, err)
		assert.Equal(t, runctx.DailyDaily, s)

		for _, from := range []runctx.State{runctx.DailyMonthly, runctx.MonthlyDaily, runctx.MonthlyMonthly} {
			_, err := runctx.Transition(from, g)
			assert.ErrorIs(t, err, runctx.ErrIllegalInterval, "%s from %s", g, from)
		}
	}
	for _, from := range []runctx.State{runctx.DailyDaily, runctx.DailyMonthly, runctx.MonthlyDaily, runctx.MonthlyMonthly} {
		s, err := runctx.Transition(from, interval.Trimester)
		require.NoError(t, err)
		assert.Equal(t, runctx.MonthlyMonthly, s)
	}
}

func TestNewResolvesPeriod(t *testing.T) {
	stations := []*model.Station{station(t, "A", model.Monthly, model.Monthly)}
	c, err := runctx.New(settings(interval.Trimester), stations)
	require.NoError(t, err)
	assert.Equal(t, model.Period{StartYear: 2001, EndYear: 2005}, c.Period())
	assert.Equal(t, c.Period(), c.Common())
	assert.Equal(t, runctx.MonthlyMonthly, c.State())

	s := settings(interval.Trimester)
	s.PeriodOverride = &model.Period{StartYear: 1990, EndYear: 2004}
	_, err = runctx.New(s, stations)
	assert.ErrorIs(t, err, period.ErrOutsideCommon)
}

func TestForAnalysisReturnsNewContext(t *testing.T) {
	stations := []*model.Station{station(t, "A", model.Daily, model.Monthly)}
	c, err := runctx.New(settings(interval.Trimester), stations)
	require.NoError(t, err)

	next, err := c.ForAnalysis()
	require.NoError(t, err)
	assert.Equal(t, runctx.DailyMonthly, c.State())
	assert.Equal(t, runctx.MonthlyMonthly, next.State())
	assert.Equal(t, model.Trimonthly, next.AnalysisFrequency())

	c, err = runctx.New(settings(interval.TenDays), stations)
	require.NoError(t, err)
	_, err = c.ForAnalysis()
	assert.ErrorIs(t, err, runctx.ErrIllegalInterval)
}

func TestSettingsValidate(t *testing.T) {
	s := settings(interval.Trimester)
	require.NoError(t, s.Validate())

	bad := s
	bad.Categories = 5
	assert.Error(t, bad.Validate())

	bad = s
	bad.Lags = []int{3}
	assert.Error(t, bad.Validate())

	bad = s
	bad.Lags = nil
	assert.Error(t, bad.Validate())

	bad = s
	bad.NullTolerance = 0
	assert.Error(t, bad.Validate())

	assert.False(t, s.HasForecast())
}

func TestSettingsValidateWeightLags(t *testing.T) {
	w, err := forecast.ParseWeights(map[int]map[string]float64{
		2: {"below": 30, "normal": 40, "above": 30},
	}, model.ThreeCategories)
	require.NoError(t, err)

	s := settings(interval.Trimester)
	s.Weights = w
	err = s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lag 2")

	s.Lags = []int{0, 1, 2}
	assert.NoError(t, s.Validate())
}
