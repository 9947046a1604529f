package frequency_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/composite/internal/frequency"
	"github.com/derickschaefer/composite/internal/model"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

func day(y, m, d int) time.Time { return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC) }

// constDaily builds a daily variable holding val on every day of [from, to].
func constDaily(t *testing.T, mode model.Mode, from, to time.Time, val float64) *model.Variable {
	t.Helper()
	var obs []model.Observation
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		obs = append(obs, model.Observation{Date: d, Value: model.Some(val)})
	}
	v, err := model.NewVariable(model.KindD, "PPT", model.Daily, mode, obs)
	require.NoError(t, err)
	return v
}

// monthly builds a monthly variable starting at year/month.
func monthly(t *testing.T, mode model.Mode, year, month int, vals ...model.Value) *model.Variable {
	t.Helper()
	obs := make([]model.Observation, len(vals))
	for i, v := range vals {
		obs[i] = model.Observation{Date: day(year, month+i, 1), Value: v}
	}
	v, err := model.NewVariable(model.KindI, "ONI1", model.Monthly, mode, obs)
	require.NoError(t, err)
	return v
}

func some(fs ...float64) []model.Value {
	out := make([]model.Value, len(fs))
	for i, f := range fs {
		out[i] = model.Some(f)
	}
	return out
}

// ─── Reduce ───────────────────────────────────────────────────────────────────

func TestReduceMeanAndAccumulate(t *testing.T) {
	vals := some(1, 2, 3, 4)
	assert.Equal(t, "2.5", frequency.Reduce(vals, model.ModeMean).String())
	assert.Equal(t, "10", frequency.Reduce(vals, model.ModeAccumulate).String())
}

func TestReduceNullThreshold(t *testing.T) {
	// 2 of 5 null = 40%: still reduces, over the present values only.
	vals := append(some(1, 2, 3), model.Null(), model.Null())
	assert.Equal(t, "2", frequency.Reduce(vals, model.ModeMean).String())
	assert.Equal(t, "6", frequency.Reduce(vals, model.ModeAccumulate).String())

	// 3 of 5 null = 60%: null.
	vals = append(some(1, 2), model.Null(), model.Null(), model.Null())
	assert.True(t, frequency.Reduce(vals, model.ModeMean).IsNull())
	assert.True(t, frequency.Reduce(vals, model.ModeAccumulate).IsNull())
}

func TestReduceSingleValueBucket(t *testing.T) {
	assert.Equal(t, "7", frequency.Reduce(some(7), model.ModeMean).String())
	assert.True(t, frequency.Reduce([]model.Value{model.Null()}, model.ModeMean).IsNull())
	assert.True(t, frequency.Reduce(nil, model.ModeAccumulate).IsNull())
}

// ─── Convert ──────────────────────────────────────────────────────────────────

func TestConvertDailyToMonthly(t *testing.T) {
	v := constDaily(t, model.ModeAccumulate, day(2001, 1, 1), day(2001, 3, 31), 1)
	out, err := frequency.Convert(v, model.Monthly)
	require.NoError(t, err)
	require.Len(t, out.Obs, 3)
	assert.Equal(t, model.Monthly, out.Frequency)
	assert.Equal(t, day(2001, 2, 1), out.Obs[1].Date)
	assert.Equal(t, "31", out.Obs[0].Value.String())
	assert.Equal(t, "28", out.Obs[1].Value.String())

	mean := constDaily(t, model.ModeMean, day(2001, 1, 1), day(2001, 1, 31), 4)
	out, err = frequency.Convert(mean, model.Monthly)
	require.NoError(t, err)
	assert.Equal(t, "4", out.Obs[0].Value.String())
}

func TestConvertDailyToTenDays(t *testing.T) {
	v := constDaily(t, model.ModeAccumulate, day(2001, 1, 1), day(2001, 2, 28), 1)
	out, err := frequency.Convert(v, model.TenDays)
	require.NoError(t, err)
	require.Len(t, out.Obs, 6)
	assert.Equal(t, day(2001, 1, 21), out.Obs[2].Date)
	assert.Equal(t, "10", out.Obs[0].Value.String())
	assert.Equal(t, "11", out.Obs[2].Value.String()) // Jan 21..31
	assert.Equal(t, "8", out.Obs[5].Value.String())  // Feb 21..28
}

func TestConvertNullBucket(t *testing.T) {
	v := constDaily(t, model.ModeMean, day(2001, 1, 1), day(2001, 1, 15), 2)
	for i := 0; i < 3; i++ {
		v.Obs[i].Value = model.Null()
	}
	out, err := frequency.Convert(v, model.FifteenDays)
	require.NoError(t, err)
	require.Len(t, out.Obs, 1)
	assert.Equal(t, "2", out.Obs[0].Value.String())

	for i := 0; i < 7; i++ {
		v.Obs[i].Value = model.Null()
	}
	out, err = frequency.Convert(v, model.FifteenDays)
	require.NoError(t, err)
	assert.True(t, out.Obs[0].Value.IsNull())
}

func TestConvertMonthlyToTrimonthly(t *testing.T) {
	v := monthly(t, model.ModeMean, 2000, 1, some(1, 2, 3, 4, 5)...)
	out, err := frequency.Convert(v, model.Trimonthly)
	require.NoError(t, err)
	require.Len(t, out.Obs, 5)
	assert.Equal(t, "2", out.Obs[0].Value.String())
	assert.Equal(t, "4", out.Obs[2].Value.String())
	assert.True(t, out.Obs[3].Value.IsNull())
	assert.True(t, out.Obs[4].Value.IsNull())
}

func TestConvertMonthlyToBimonthlyNulls(t *testing.T) {
	v := monthly(t, model.ModeAccumulate, 2000, 1, model.Some(1), model.Null(), model.Some(3))
	out, err := frequency.Convert(v, model.Bimonthly)
	require.NoError(t, err)
	// A window of two with one null is 50% null.
	assert.True(t, out.Obs[0].Value.IsNull())
	assert.True(t, out.Obs[1].Value.IsNull())
	assert.True(t, out.Obs[2].Value.IsNull())
}

func TestConvertChainDailyToTrimonthly(t *testing.T) {
	v := constDaily(t, model.ModeAccumulate, day(2001, 1, 1), day(2001, 4, 30), 1)
	out, err := frequency.Convert(v, model.Trimonthly)
	require.NoError(t, err)
	require.Len(t, out.Obs, 4)
	assert.Equal(t, "90", out.Obs[0].Value.String()) // 31+28+31
	assert.Equal(t, "89", out.Obs[1].Value.String()) // 28+31+30
}

func TestConvertSameFrequencyIsNoOp(t *testing.T) {
	v := monthly(t, model.ModeMean, 2000, 1, some(1, 2, 3)...)
	out, err := frequency.Convert(v, model.Monthly)
	require.NoError(t, err)
	assert.Same(t, v, out)
}

func TestConvertRefusesFinerFrequency(t *testing.T) {
	v := monthly(t, model.ModeMean, 2000, 1, some(1, 2, 3)...)
	_, err := frequency.Convert(v, model.Daily)
	assert.True(t, errors.Is(err, frequency.ErrDownConvert))
}

func TestDefaultMode(t *testing.T) {
	assert.Equal(t, model.ModeAccumulate, frequency.DefaultMode("PPT"))
	assert.Equal(t, model.ModeMean, frequency.DefaultMode("TMAX"))
}

// ─── FillBoundaryYears ────────────────────────────────────────────────────────

func TestFillBoundaryYearsDaily(t *testing.T) {
	v := constDaily(t, model.ModeMean, day(2000, 3, 15), day(2002, 6, 30), 1)
	out, err := frequency.FillBoundaryYears(v)
	require.NoError(t, err)
	assert.Equal(t, day(2000, 1, 1), out.Start())
	assert.Equal(t, day(2002, 12, 31), out.End())
	assert.True(t, out.Obs[0].Value.IsNull())
	assert.True(t, out.Obs[len(out.Obs)-1].Value.IsNull())
	// 2000, 2001, 2002 with a leap year: 366 + 365 + 365.
	assert.Len(t, out.Obs, 1096)
}

func TestFillBoundaryYearsMonthly(t *testing.T) {
	v := monthly(t, model.ModeMean, 2000, 10, some(1, 2, 3, 4, 5, 6)...)
	out, err := frequency.FillBoundaryYears(v)
	require.NoError(t, err)
	assert.Len(t, out.Obs, 24)
	assert.Equal(t, day(2001, 12, 1), out.End())
}

func TestFillBoundaryYearsRejectsLateStart(t *testing.T) {
	v := constDaily(t, model.ModeMean, day(2000, 11, 5), day(2001, 12, 31), 1)
	_, err := frequency.FillBoundaryYears(v)
	assert.True(t, errors.Is(err, frequency.ErrInsufficientBoundary))
}

func TestFillBoundaryYearsRejectsEarlyEnd(t *testing.T) {
	v := monthly(t, model.ModeMean, 2000, 1, some(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13)...)
	_, err := frequency.FillBoundaryYears(v)
	assert.True(t, errors.Is(err, frequency.ErrInsufficientBoundary))
}

func TestFillBoundaryYearsCompleteYearsUnchanged(t *testing.T) {
	v := constDaily(t, model.ModeMean, day(2000, 1, 1), day(2000, 12, 31), 1)
	out, err := frequency.FillBoundaryYears(v)
	require.NoError(t, err)
	assert.Len(t, out.Obs, len(v.Obs))
}
