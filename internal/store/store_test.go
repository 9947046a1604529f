package store_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/derickschaefer/composite/internal/model"
	"github.com/derickschaefer/composite/internal/store"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// testDB opens a fresh isolated database in t.TempDir().
// It is closed and deleted automatically when the test ends.
func testDB(t testing.TB) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// frozenClock pins store timestamps to at for the duration of the test.
func frozenClock(t *testing.T, at time.Time) *clockwork.FakeClock {
	t.Helper()
	fc := clockwork.NewFakeClockAt(at)
	store.SetClock(fc)
	t.Cleanup(func() { store.SetClock(nil) })
	return fc
}

func makeTable(lag, month int) *model.Table {
	return &model.Table{
		Lag:         lag,
		Period:      model.PeriodKey{Month: month},
		Categories:  model.ThreeCategories,
		Counts:      [][]int{{2, 0, 0}, {0, 2, 0}, {0, 0, 2}},
		Pct:         [][]float64{{100, 0, 0}, {0, 100, 0}, {0, 0, 100}},
		DThresholds: []float64{10, 20},
		IThresholds: []float64{-0.5, 0.5},
		Pairs:       6,
		Stats: model.Significance{
			Pearson:    model.Some(0.9),
			PearsonP:   model.Some(0.01),
			ChiSquare:  model.Some(12),
			ChiSquareP: model.Null(),
			DF:         4,
		},
	}
}

func makeRun(name string) store.Run {
	return store.Run{
		Name:       name,
		Runfile:    "runs/" + name + ".yaml",
		Categories: model.ThreeCategories,
		Interval:   "trimester",
		Lags:       []int{0, 1},
		Period:     model.Period{StartYear: 1981, EndYear: 2010},
		State:      4,
		Stations: []store.StationResult{{
			Code:        "S1",
			Name:        "Station One",
			Lat:         4.6,
			Lon:         -74.1,
			Alt:         2546,
			DType:       "PPT",
			IType:       "ONI",
			DThresholds: []float64{10, 20},
			IThresholds: []float64{-0.5, 0.5},
			Tables:      []*model.Table{makeTable(0, 1), makeTable(1, 1)},
		}},
	}
}

// ─── Open / Path ──────────────────────────────────────────────────────────────

func TestOpenCreatesDB(t *testing.T) {
	s := testDB(t)
	if s.Path() == "" {
		t.Error("Path() should return the db path after open")
	}
}

func TestOpenCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c", "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open with nested path: %v", err)
	}
	defer s.Close()
	if s.Path() != path {
		t.Errorf("Path: expected %q, got %q", path, s.Path())
	}
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	run, err := s.PutRun(makeRun("first"))
	if err != nil {
		t.Fatalf("PutRun: %v", err)
	}
	_ = s.Close()

	s, err = store.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, err := s.GetRun(run.ID); err != nil {
		t.Errorf("run should survive reopen: %v", err)
	}
}

// ─── Runs ─────────────────────────────────────────────────────────────────────

func TestPutRunAssignsIDAndTimestamp(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	frozenClock(t, at)
	s := testDB(t)

	run, err := s.PutRun(makeRun("enso"))
	if err != nil {
		t.Fatalf("PutRun: %v", err)
	}
	if len(run.ID) != 36 {
		t.Errorf("ID should be a uuid, got %q", run.ID)
	}
	if !run.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt: expected %v, got %v", at, run.CreatedAt)
	}
}

func TestPutGetRunRoundTrip(t *testing.T) {
	s := testDB(t)
	put, err := s.PutRun(makeRun("enso"))
	if err != nil {
		t.Fatalf("PutRun: %v", err)
	}

	got, err := s.GetRun(put.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Name != "enso" || got.Period != put.Period || got.Categories != model.ThreeCategories {
		t.Errorf("run fields not preserved: %+v", got)
	}
	if len(got.Stations) != 1 || len(got.Stations[0].Tables) != 2 {
		t.Fatalf("stations/tables not preserved: %+v", got.Stations)
	}
	tbl := got.Stations[0].Tables[1]
	if tbl.Lag != 1 || tbl.Counts[1][1] != 2 || tbl.Pct[2][2] != 100 {
		t.Errorf("table not preserved: %+v", tbl)
	}
	if r, ok := tbl.Stats.Pearson.Float(); !ok || r != 0.9 {
		t.Errorf("Pearson: expected 0.9, got %v", tbl.Stats.Pearson)
	}
	if !tbl.Stats.ChiSquareP.IsNull() {
		t.Errorf("null statistic should stay null, got %v", tbl.Stats.ChiSquareP)
	}
}

func TestGetRunByPrefix(t *testing.T) {
	s := testDB(t)
	run := makeRun("enso")
	run.ID = "abc123-run"
	if _, err := s.PutRun(run); err != nil {
		t.Fatalf("PutRun: %v", err)
	}

	got, err := s.GetRun("abc")
	if err != nil {
		t.Fatalf("GetRun prefix: %v", err)
	}
	if got.ID != "abc123-run" {
		t.Errorf("expected abc123-run, got %q", got.ID)
	}
}

func TestGetRunAmbiguousPrefix(t *testing.T) {
	s := testDB(t)
	for _, id := range []string{"abc1", "abc2"} {
		run := makeRun(id)
		run.ID = id
		if _, err := s.PutRun(run); err != nil {
			t.Fatalf("PutRun: %v", err)
		}
	}
	if _, err := s.GetRun("abc"); !errors.Is(err, store.ErrAmbiguousRun) {
		t.Errorf("expected ErrAmbiguousRun, got %v", err)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := testDB(t)
	for _, id := range []string{"missing", ""} {
		if _, err := s.GetRun(id); !errors.Is(err, store.ErrRunNotFound) {
			t.Errorf("GetRun(%q): expected ErrRunNotFound, got %v", id, err)
		}
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	fc := frozenClock(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s := testDB(t)

	for _, name := range []string{"old", "mid", "new"} {
		if _, err := s.PutRun(makeRun(name)); err != nil {
			t.Fatalf("PutRun: %v", err)
		}
		fc.Advance(time.Hour)
	}

	runs, err := s.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	for i, name := range []string{"new", "mid", "old"} {
		if runs[i].Name != name {
			t.Errorf("runs[%d]: expected %s, got %s", i, name, runs[i].Name)
		}
	}
	if runs[0].Stations != 1 {
		t.Errorf("summary station count: expected 1, got %d", runs[0].Stations)
	}
}

func TestModelStationsRebuildsTables(t *testing.T) {
	stations := makeRun("enso").ModelStations()
	if len(stations) != 1 {
		t.Fatalf("expected 1 station, got %d", len(stations))
	}
	st := stations[0]
	if st.Code != "S1" || st.Period.StartYear != 1981 {
		t.Errorf("station fields not carried: %+v", st)
	}
	if _, ok := st.Table(1, model.PeriodKey{Month: 1}); !ok {
		t.Error("lag 1 JFM table should be indexed")
	}
	if _, ok := st.Table(2, model.PeriodKey{Month: 1}); ok {
		t.Error("lag 2 was never built")
	}
}

// ─── Forecasts ────────────────────────────────────────────────────────────────

func makeForecast(station string, lag int) model.Forecast {
	return model.Forecast{
		Station:    station,
		Lag:        lag,
		Date:       time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
		Period:     model.PeriodKey{Month: 2},
		Categories: model.ThreeCategories,
		Mode:       "3x3",
		Prob:       []float64{26, 52, 22},
	}
}

func TestForecastKey(t *testing.T) {
	got := store.ForecastKey("run1", makeForecast("S1", 2))
	want := "run1|S1|lag:2|2024-02-10"
	if got != want {
		t.Errorf("ForecastKey: expected %q, got %q", want, got)
	}
}

func TestPutListForecasts(t *testing.T) {
	s := testDB(t)
	fs := []model.Forecast{makeForecast("S1", 0), makeForecast("S1", 1), makeForecast("S2", 0)}
	if err := s.PutForecasts("run1", fs); err != nil {
		t.Fatalf("PutForecasts: %v", err)
	}
	if err := s.PutForecasts("run10", fs[:1]); err != nil {
		t.Fatalf("PutForecasts: %v", err)
	}

	got, err := s.ListForecasts("run1")
	if err != nil {
		t.Fatalf("ListForecasts: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 forecasts for run1 (run10 excluded), got %d", len(got))
	}
	if got[0].Prob[1] != 52 || !got[0].Date.Equal(fs[0].Date) {
		t.Errorf("forecast not preserved: %+v", got[0])
	}
}

func TestDeleteRunRemovesForecasts(t *testing.T) {
	s := testDB(t)
	run, err := s.PutRun(makeRun("enso"))
	if err != nil {
		t.Fatalf("PutRun: %v", err)
	}
	if err := s.PutForecasts(run.ID, []model.Forecast{makeForecast("S1", 0)}); err != nil {
		t.Fatalf("PutForecasts: %v", err)
	}

	if err := s.DeleteRun(run.ID); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if _, err := s.GetRun(run.ID); !errors.Is(err, store.ErrRunNotFound) {
		t.Errorf("run should be gone, got %v", err)
	}
	fs, err := s.ListForecasts(run.ID)
	if err != nil {
		t.Fatalf("ListForecasts: %v", err)
	}
	if len(fs) != 0 {
		t.Errorf("forecasts should be deleted with their run, got %d", len(fs))
	}
	if err := s.DeleteRun(run.ID); !errors.Is(err, store.ErrRunNotFound) {
		t.Errorf("second delete: expected ErrRunNotFound, got %v", err)
	}
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

func TestStatsCountsRows(t *testing.T) {
	s := testDB(t)
	if _, err := s.PutRun(makeRun("enso")); err != nil {
		t.Fatalf("PutRun: %v", err)
	}
	if err := s.PutForecasts("x", []model.Forecast{makeForecast("S1", 0), makeForecast("S1", 1)}); err != nil {
		t.Fatalf("PutForecasts: %v", err)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	counts := map[string]int{}
	for _, b := range stats {
		counts[b.Name] = b.Count
		if b.Count > 0 && b.Bytes == 0 {
			t.Errorf("bucket %s: non-empty bucket should report bytes", b.Name)
		}
	}
	if counts["runs"] != 1 || counts["forecasts"] != 2 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestClearBucket(t *testing.T) {
	s := testDB(t)
	if _, err := s.PutRun(makeRun("enso")); err != nil {
		t.Fatalf("PutRun: %v", err)
	}
	if err := s.ClearBucket("runs"); err != nil {
		t.Fatalf("ClearBucket: %v", err)
	}
	runs, _ := s.ListRuns()
	if len(runs) != 0 {
		t.Errorf("runs should be empty after clear, got %d", len(runs))
	}
}

func TestClearBucketUnknown(t *testing.T) {
	s := testDB(t)
	if err := s.ClearBucket("nope"); err == nil {
		t.Error("clearing an unknown bucket should fail")
	}
}

func TestClearAll(t *testing.T) {
	s := testDB(t)
	if _, err := s.PutRun(makeRun("enso")); err != nil {
		t.Fatalf("PutRun: %v", err)
	}
	if err := s.PutForecasts("x", []model.Forecast{makeForecast("S1", 0)}); err != nil {
		t.Fatalf("PutForecasts: %v", err)
	}
	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	stats, _ := s.Stats()
	for _, b := range stats {
		if b.Count != 0 {
			t.Errorf("bucket %s: expected empty, got %d", b.Name, b.Count)
		}
	}
}
