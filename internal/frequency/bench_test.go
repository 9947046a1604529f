package frequency_test

import (
	"testing"

	"github.com/derickschaefer/composite/internal/frequency"
	"github.com/derickschaefer/composite/internal/model"
)

// thirtyYearsDaily is the typical size of a station series in a run.
func thirtyYearsDaily(b *testing.B) *model.Variable {
	b.Helper()
	var obs []model.Observation
	for d := day(1981, 1, 1); d.Before(day(2011, 1, 1)); d = d.AddDate(0, 0, 1) {
		obs = append(obs, model.Observation{Date: d, Value: model.Some(float64(d.YearDay() % 17))})
	}
	v, err := model.NewVariable(model.KindD, "PPT", model.Daily, model.ModeAccumulate, obs)
	if err != nil {
		b.Fatal(err)
	}
	return v
}

func benchConvert(b *testing.B, target model.Frequency) {
	v := thirtyYearsDaily(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := frequency.Convert(v, target); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkConvertDailyTo10Days(b *testing.B) { benchConvert(b, model.TenDays) }
func BenchmarkConvertDailyToMonthly(b *testing.B) { benchConvert(b, model.Monthly) }
func BenchmarkConvertDailyToTrimonthly(b *testing.B) { benchConvert(b, model.Trimonthly) }

func BenchmarkFillBoundaryYears(b *testing.B) {
	v := thirtyYearsDaily(b)
	v.Obs = v.Obs[59 : len(v.Obs)-31] // starts in March, ends in November
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := frequency.FillBoundaryYears(v); err != nil {
			b.Fatal(err)
		}
	}
}
