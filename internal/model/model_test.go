package model_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/composite/internal/model"
)

func day(y, m, d int) time.Time { return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC) }

func TestValueNullHandling(t *testing.T) {
	assert.True(t, model.Null().IsNull())
	assert.True(t, model.Some(math.NaN()).IsNull())
	assert.True(t, model.Some(math.Inf(1)).IsNull())

	v := model.Some(2.5)
	f, ok := v.Float()
	require.True(t, ok)
	assert.Equal(t, 2.5, f)
	assert.Equal(t, "nan", model.Null().String())
	assert.Equal(t, 7.0, model.Null().Or(7))
}

func TestValueJSON(t *testing.T) {
	b, err := json.Marshal([]model.Value{model.Some(1.5), model.Null()})
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5, null]`, string(b))

	var back []model.Value
	require.NoError(t, json.Unmarshal(b, &back))
	assert.False(t, back[0].IsNull())
	assert.True(t, back[1].IsNull())
}

func TestNewVariableDensifiesDailyGaps(t *testing.T) {
	obs := []model.Observation{
		{Date: day(2000, 1, 3), Value: model.Some(3)},
		{Date: day(2000, 1, 1), Value: model.Some(1)},
	}
	v, err := model.NewVariable(model.KindD, "PPT", model.Daily, model.ModeAccumulate, obs)
	require.NoError(t, err)
	require.Len(t, v.Obs, 3)
	assert.Equal(t, day(2000, 1, 2), v.Obs[1].Date)
	assert.True(t, v.Obs[1].Value.IsNull())
	assert.Equal(t, day(2000, 1, 1), v.Start())
	assert.Equal(t, day(2000, 1, 3), v.End())
}

func TestNewVariableDensifiesMonthlyAcrossYear(t *testing.T) {
	obs := []model.Observation{
		{Date: day(1999, 11, 1), Value: model.Some(1)},
		{Date: day(2000, 2, 1), Value: model.Some(2)},
	}
	v, err := model.NewVariable(model.KindI, "ONI1", model.Monthly, model.ModeMean, obs)
	require.NoError(t, err)
	require.Len(t, v.Obs, 4)
	assert.Equal(t, day(2000, 1, 1), v.Obs[2].Date)
}

func TestNewVariableDensifiesNDayGaps(t *testing.T) {
	obs := []model.Observation{
		{Date: day(2000, 1, 21), Value: model.Some(1)},
		{Date: day(2000, 2, 11), Value: model.Some(2)},
	}
	v, err := model.NewVariable(model.KindD, "PPT", model.TenDays, model.ModeAccumulate, obs)
	require.NoError(t, err)
	require.Len(t, v.Obs, 3)
	assert.Equal(t, day(2000, 2, 1), v.Obs[1].Date)
	assert.True(t, v.Obs[1].Value.IsNull())

	v, err = model.NewVariable(model.KindD, "PPT", model.FiveDays, model.ModeAccumulate, []model.Observation{
		{Date: day(2000, 2, 26), Value: model.Some(1)},
		{Date: day(2000, 3, 11), Value: model.Some(2)},
	})
	require.NoError(t, err)
	require.Len(t, v.Obs, 4) // Feb 26, Mar 1, Mar 6, Mar 11
	assert.Equal(t, day(2000, 3, 6), v.Obs[2].Date)
}

func TestNewVariableRejectsOffBucketNDayDates(t *testing.T) {
	obs := []model.Observation{
		{Date: day(2000, 1, 1), Value: model.Some(1)},
		{Date: day(2000, 1, 20), Value: model.Some(2)},
	}
	_, err := model.NewVariable(model.KindD, "PPT", model.TenDays, model.ModeAccumulate, obs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2000-01-20")
}

func TestStepNDays(t *testing.T) {
	assert.Equal(t, day(2000, 1, 16), model.Step(day(2000, 1, 1), model.FifteenDays))
	assert.Equal(t, day(2000, 2, 1), model.Step(day(2000, 1, 16), model.FifteenDays))
	assert.Equal(t, day(2001, 1, 1), model.Step(day(2000, 12, 26), model.FiveDays))
}

func TestNewVariableRejectsDuplicates(t *testing.T) {
	obs := []model.Observation{
		{Date: day(2000, 1, 1), Value: model.Some(1)},
		{Date: day(2000, 1, 1), Value: model.Some(2)},
	}
	_, err := model.NewVariable(model.KindD, "PPT", model.Daily, model.ModeMean, obs)
	assert.Error(t, err)
}

func TestVariableLookups(t *testing.T) {
	obs := make([]model.Observation, 0, 24)
	for i := 0; i < 24; i++ {
		obs = append(obs, model.Observation{Date: day(2000, 1+i, 1), Value: model.Some(float64(i))})
	}
	v, err := model.NewVariable(model.KindI, "ONI1", model.Monthly, model.ModeMean, obs)
	require.NoError(t, err)

	assert.Equal(t, "13", v.At(day(2001, 2, 1)).String())
	assert.True(t, v.At(day(2005, 1, 1)).IsNull())
	assert.Len(t, v.InPeriod(model.Period{StartYear: 2001, EndYear: 2001}), 12)
	assert.Len(t, v.Between(day(2000, 3, 1), day(2000, 5, 1)), 3)
}

func TestPeriodKeyLabels(t *testing.T) {
	assert.Equal(t, "JFM", model.PeriodKey{Month: 1}.Label())
	assert.Equal(t, "NDJ", model.PeriodKey{Month: 11}.Label())
	assert.Equal(t, "DJF", model.PeriodKey{Month: 12}.Label())
	assert.Equal(t, "Mar 11", model.PeriodKey{Month: 3, Day: 11}.Label())
	assert.Equal(t, "mar_11", model.PeriodKey{Month: 3, Day: 11}.Slug())
}

func TestParsePeriod(t *testing.T) {
	p, err := model.ParsePeriod("1981-2010")
	require.NoError(t, err)
	assert.Equal(t, 30, p.Years())
	assert.True(t, p.Contains(model.Period{StartYear: 1990, EndYear: 2000}))
	assert.False(t, p.Contains(model.Period{StartYear: 1980, EndYear: 2000}))

	_, err = model.ParsePeriod("2010-1981")
	assert.Error(t, err)
	_, err = model.ParsePeriod("abc")
	assert.Error(t, err)
}

func TestCategoryBlocks(t *testing.T) {
	n := model.SevenCategories
	assert.Equal(t, model.Category(3), n.Normal())
	assert.Equal(t, model.BlockBelow, n.Block(2))
	assert.Equal(t, model.BlockNormal, n.Block(3))
	assert.Equal(t, model.BlockAbove, n.Block(4))
	assert.Equal(t, []model.Category{4, 5, 6}, n.Members(model.BlockAbove))

	c, err := model.ParseCategory(model.ThreeCategories, "Above")
	require.NoError(t, err)
	assert.Equal(t, model.Category(2), c)
	_, err = model.ParseCategory(model.ThreeCategories, "below3")
	assert.Error(t, err)
}

func TestFrequencyHelpers(t *testing.T) {
	f, err := model.ParseFrequency("Monthly")
	require.NoError(t, err)
	assert.Equal(t, 1, f.Months())
	assert.Equal(t, 3, model.Trimonthly.Months())
	assert.True(t, model.TenDays.IsDayBased())
	assert.Less(t, model.FifteenDays.Rank(), model.Monthly.Rank())
	_, err = model.ParseFrequency("weekly")
	assert.Error(t, err)
}
