package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/composite/internal/engine"
	"github.com/derickschaefer/composite/internal/forecast"
	"github.com/derickschaefer/composite/internal/interval"
	"github.com/derickschaefer/composite/internal/model"
	"github.com/derickschaefer/composite/internal/period"
	"github.com/derickschaefer/composite/internal/runctx"
	"github.com/derickschaefer/composite/internal/threshold"
)

// monthly builds a monthly variable over whole years; f gives the value of
// each year/month.
func monthly(t *testing.T, kind model.Kind, typ string, from, to int, f func(y, m int) float64) *model.Variable {
	t.Helper()
	var obs []model.Observation
	for y := from; y <= to; y++ {
		for m := 1; m <= 12; m++ {
			obs = append(obs, model.Observation{
				Date:  time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC),
				Value: model.Some(f(y, m)),
			})
		}
	}
	v, err := model.NewVariable(kind, typ, model.Monthly, model.ModeMean, obs)
	require.NoError(t, err)
	return v
}

func phase(y, _ int) float64 { return float64(y%3 - 1) }

func newStation(t *testing.T, code string, iValue func(y, m int) float64) *model.Station {
	return &model.Station{
		Code: code,
		D:    monthly(t, model.KindD, "PPT", 1990, 2000, func(y, m int) float64 { return 100 + 50*phase(y, m) + float64(m) }),
		I:    monthly(t, model.KindI, "ONI", 1990, 2000, iValue),
	}
}

func mustSpec(t *testing.T, s string) threshold.Spec {
	spec, err := threshold.ParseSpec(s)
	require.NoError(t, err)
	return spec
}

func baseSettings(t *testing.T) runctx.Settings {
	return runctx.Settings{
		Categories:    model.ThreeCategories,
		Lags:          []int{0, 1},
		Interval:      interval.Trimester,
		D:             runctx.VariableSettings{Threshold: mustSpec(t, "p33 p66"), Limits: "default"},
		I:             runctx.VariableSettings{Threshold: mustSpec(t, "default"), Limits: "none"},
		NullTolerance: period.DefaultNullTolerance,
	}
}

func TestRunBuildsTablesForEveryLagAndPeriod(t *testing.T) {
	stations := []*model.Station{newStation(t, "S1", phase), newStation(t, "S2", phase)}
	rep, err := engine.New(nil, nil).Run(context.Background(), baseSettings(t), stations)
	require.NoError(t, err)

	assert.Equal(t, model.Period{StartYear: 1991, EndYear: 1999}, rep.Context.Period())
	assert.Equal(t, runctx.MonthlyMonthly, rep.Context.State())
	require.Len(t, rep.Thresholds, 2)
	assert.Equal(t, []float64{-0.5, 0.5}, rep.Thresholds[0].ICuts)

	for _, st := range stations {
		assert.Len(t, st.Tables, 24)
		for key, tbl := range st.Tables {
			assert.Equal(t, key.Lag, tbl.Lag)
			for _, row := range tbl.Pct {
				var sum float64
				for _, p := range row {
					sum += p
				}
				if sum != 0 {
					assert.InDelta(t, 100, sum, 0.1)
				}
			}
		}
	}
	assert.Empty(t, rep.Forecasts)
}

func TestRunWarnsOncePerBlock(t *testing.T) {
	st := newStation(t, "S1", func(int, int) float64 { return 0 })
	rep, err := engine.New(nil, nil).Run(context.Background(), baseSettings(t), []*model.Station{st})
	require.NoError(t, err)
	assert.Len(t, rep.Warnings, 2)
	assert.Equal(t, [3]bool{true, false, true}, st.ThresholdProblem)
}

func TestRunForecasts(t *testing.T) {
	s := baseSettings(t)
	w, err := forecast.ParseWeights(map[int]map[string]float64{
		0: {"below": 20, "normal": 60, "above": 20},
		1: {"below": 10, "normal": 30, "above": 60},
	}, model.ThreeCategories)
	require.NoError(t, err)
	s.Weights = w
	s.ForecastDate = time.Date(1995, 1, 15, 0, 0, 0, 0, time.UTC)

	rep, err := engine.New(nil, nil).Run(context.Background(), s, []*model.Station{newStation(t, "S1", phase)})
	require.NoError(t, err)
	require.Len(t, rep.Forecasts, 2)
	f := rep.Forecasts[0]
	assert.Equal(t, model.PeriodKey{Month: 1}, f.Period)
	var sum float64
	for _, p := range f.Prob {
		sum += p
	}
	assert.InDelta(t, 100, sum, 0.5)
}

func TestRunRejectsIllegalInterval(t *testing.T) {
	s := baseSettings(t)
	s.Interval = interval.TenDays
	_, err := engine.New(nil, nil).Run(context.Background(), s, []*model.Station{newStation(t, "S1", phase)})
	assert.ErrorIs(t, err, runctx.ErrIllegalInterval)
}

func TestRunRejectsTooManyNulls(t *testing.T) {
	st := newStation(t, "S1", phase)
	for k := 12; k < 60; k += 2 {
		st.D.Obs[k].Value = model.Null()
	}
	_, err := engine.New(nil, nil).Run(context.Background(), baseSettings(t), []*model.Station{st})
	assert.ErrorIs(t, err, period.ErrTooManyNulls)
}

func TestRunRejectsOutOfLimitThresholds(t *testing.T) {
	s := baseSettings(t)
	s.D.Threshold = mustSpec(t, "-10 50")
	_, err := engine.New(nil, nil).Run(context.Background(), s, []*model.Station{newStation(t, "S1", phase)})
	assert.ErrorIs(t, err, threshold.ErrOutOfLimit)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.New(nil, nil).Run(ctx, baseSettings(t), []*model.Station{newStation(t, "S1", phase)})
	assert.ErrorIs(t, err, context.Canceled)
}
