package output_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/composite/internal/interval"
	"github.com/derickschaefer/composite/internal/model"
	"github.com/derickschaefer/composite/internal/output"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func diagonal(lag int, key model.PeriodKey) *model.Table {
	return &model.Table{
		Lag:         lag,
		Period:      key,
		Categories:  model.ThreeCategories,
		Counts:      [][]int{{2, 0, 0}, {0, 2, 0}, {1, 0, 1}},
		Pct:         [][]float64{{100, 0, 0}, {0, 100, 0}, {50, 0, 50}},
		DThresholds: []float64{10, 20.5},
		IThresholds: []float64{-0.5, 0.5},
		Pairs:       6,
		Stats: model.Significance{
			Pearson:    model.Some(0.75),
			PearsonP:   model.Some(0.0862),
			ChiSquare:  model.Null(),
			ChiSquareP: model.Null(),
		},
	}
}

func station(code string, lat float64) *model.Station {
	st := &model.Station{Code: code, Name: "Station " + code, Lat: lat, Lon: -74, Alt: 100,
		Tables: map[model.TableKey]*model.Table{}}
	for _, key := range interval.Periods(interval.Trimester) {
		st.Tables[model.TableKey{Lag: 0, Period: key}] = diagonal(0, key)
	}
	return st
}

func TestWriteResultTable(t *testing.T) {
	dir := t.TempDir()
	path, err := output.WriteResultTable(dir, station("S1", 4.5), 0, interval.Trimester, model.ThreeCategories)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "S1_lag0.csv"), path)

	rows := readCSV(t, path)
	require.Len(t, rows, 13)
	header := rows[0]
	assert.Equal(t, []string{"period", "pairs", "d_threshold_1", "d_threshold_2", "i_threshold_1", "i_threshold_2"}, header[:6])
	assert.Equal(t, "n_i_below_d_below", header[6])
	assert.Equal(t, "pct_i_above_d_above", header[23])
	assert.Equal(t, []string{"pearson", "pearson_p", "chi_square", "chi_square_p", "df"}, header[24:])

	jfm := rows[1]
	require.Len(t, jfm, len(header))
	assert.Equal(t, "JFM", jfm[0])
	assert.Equal(t, "6", jfm[1])
	assert.Equal(t, "20.5", jfm[3])
	assert.Equal(t, "2", jfm[6])
	assert.Equal(t, "50", jfm[21])
	assert.Equal(t, "0.75", jfm[24])
	assert.Equal(t, "", jfm[26], "null statistic is an empty cell")
	assert.Equal(t, "DJF", rows[12][0])
}

func TestWriteResultTableSkipsMissingLag(t *testing.T) {
	path, err := output.WriteResultTable(t.TempDir(), station("S1", 0), 2, interval.Trimester, model.ThreeCategories)
	require.NoError(t, err)
	assert.Len(t, readCSV(t, path), 1)
}

func TestWriteMapData(t *testing.T) {
	dir := t.TempDir()
	stations := []*model.Station{station("S1", 4.5), station("S2", 6.25)}
	key := model.PeriodKey{Month: 12}
	paths, err := output.WriteMapData(dir, stations, 0, key, model.ThreeCategories)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(dir, "map_lag0_djf_below.csv"), paths[0])

	below := readCSV(t, paths[0])
	require.Len(t, below, 3)
	assert.Equal(t, []string{"S2", "Station S2", "6.25", "-74", "100", "100", "0", "0", "-100"}, below[2])

	above := readCSV(t, paths[2])
	assert.Equal(t, []string{"50", "0", "50", "0"}, above[1][5:])
}

func TestWriteForecasts(t *testing.T) {
	path := filepath.Join(t.TempDir(), output.ForecastsName)
	fs := []model.Forecast{{
		Station:    "S1",
		Lag:        1,
		Date:       time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
		Period:     model.PeriodKey{Month: 2},
		Categories: model.ThreeCategories,
		Mode:       "3x3",
		Prob:       []float64{26, 52, 22},
	}}
	require.NoError(t, output.WriteForecasts(path, fs))
	rows := readCSV(t, path)
	assert.Equal(t, []string{"station", "lag", "date", "period", "mode", "prob_below", "prob_normal", "prob_above"}, rows[0])
	assert.Equal(t, []string{"S1", "1", "2024-02-10", "FMA", "3x3", "26", "52", "22"}, rows[1])
}

func TestWriteRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	stations := []*model.Station{station("S1", 1)}
	paths, err := output.WriteRun(dir, stations, []int{0}, interval.Trimester, model.ThreeCategories, nil)
	require.NoError(t, err)
	// one result table plus 12 periods x 3 I categories of map data
	assert.Len(t, paths, 1+12*3)
	for _, p := range paths {
		assert.FileExists(t, p)
	}
}
