// Package output writes the files a run produces: one result table per
// station and lag, map data per lag, period and I category, and the forecast
// probabilities.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/derickschaefer/composite/internal/contingency"
	"github.com/derickschaefer/composite/internal/interval"
	"github.com/derickschaefer/composite/internal/model"
	"github.com/derickschaefer/composite/internal/util"
)

// Decimals used for percentages, thresholds and statistics.
const precision = 4

// ─── Result Tables ────────────────────────────────────────────────────────────

// ResultTableName is the file name of the result table of station code at lag.
func ResultTableName(code string, lag int) string {
	return fmt.Sprintf("%s_lag%d.csv", code, lag)
}

// WriteResultTable writes one row per analysis period of g for st at lag:
// the thresholds, counts[I][D], percentages and association statistics.
func WriteResultTable(dir string, st *model.Station, lag int, g interval.Granularity, n model.CategoryCount) (string, error) {
	labels := n.Labels()
	header := []string{"period", "pairs"}
	for _, side := range []string{"d", "i"} {
		for k := 0; k < int(n)-1; k++ {
			header = append(header, fmt.Sprintf("%s_threshold_%d", side, k+1))
		}
	}
	for _, prefix := range []string{"n", "pct"} {
		for _, il := range labels {
			for _, dl := range labels {
				header = append(header, fmt.Sprintf("%s_i_%s_d_%s", prefix, il, dl))
			}
		}
	}
	header = append(header, "pearson", "pearson_p", "chi_square", "chi_square_p", "df")

	rows := [][]string{header}
	for _, key := range interval.Periods(g) {
		t, ok := st.Table(lag, key)
		if !ok {
			continue
		}
		row := []string{key.Label(), strconv.Itoa(t.Pairs)}
		row = appendFloats(row, t.DThresholds)
		row = appendFloats(row, t.IThresholds)
		for _, cnt := range t.Counts {
			for _, c := range cnt {
				row = append(row, strconv.Itoa(c))
			}
		}
		for _, pct := range t.Pct {
			row = appendFloats(row, pct)
		}
		row = append(row,
			formatValue(t.Stats.Pearson),
			formatValue(t.Stats.PearsonP),
			formatValue(t.Stats.ChiSquare),
			formatValue(t.Stats.ChiSquareP),
			strconv.Itoa(t.Stats.DF),
		)
		rows = append(rows, row)
	}

	path := filepath.Join(dir, ResultTableName(st.Code, lag))
	return path, writeCSV(path, rows)
}

// ─── Map Data ─────────────────────────────────────────────────────────────────

// MapDataName is the file name of the map data for lag, period and I category.
func MapDataName(lag int, key model.PeriodKey, iLabel string) string {
	return fmt.Sprintf("map_lag%d_%s_%s.csv", lag, key.Slug(), iLabel)
}

// WriteMapData writes one file per I category for lag and key, with one row
// per station holding its location, the D block percentages of that I
// category and the map index. Stations without the table are skipped.
func WriteMapData(dir string, stations []*model.Station, lag int, key model.PeriodKey, n model.CategoryCount) ([]string, error) {
	var paths []string
	for i, il := range n.Labels() {
		rows := [][]string{{"station", "name", "lat", "lon", "alt", "pct_below", "pct_normal", "pct_above", "index"}}
		for _, st := range stations {
			t, ok := st.Table(lag, key)
			if !ok {
				continue
			}
			blocks := blockPct(t, i)
			row := []string{st.Code, st.Name, fmtFloat(st.Lat), fmtFloat(st.Lon), fmtFloat(st.Alt)}
			row = appendFloats(row, blocks[:])
			row = append(row, fmtFloat(contingency.MapIndex(t)[i]))
			rows = append(rows, row)
		}
		path := filepath.Join(dir, MapDataName(lag, key, il))
		if err := writeCSV(path, rows); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// blockPct sums the percentages of I category i over the D blocks.
func blockPct(t *model.Table, i int) [3]float64 {
	var out [3]float64
	for d, p := range t.Pct[i] {
		out[t.Categories.Block(model.Category(d))] += p
	}
	return out
}

// ─── Forecasts ────────────────────────────────────────────────────────────────

// ForecastsName is the file name of the forecast probabilities.
const ForecastsName = "forecast.csv"

// WriteForecasts writes one row per forecast with the probability of every
// D category.
func WriteForecasts(path string, fs []model.Forecast) error {
	n := model.ThreeCategories
	if len(fs) > 0 {
		n = fs[0].Categories
	}
	header := []string{"station", "lag", "date", "period", "mode"}
	for _, l := range n.Labels() {
		header = append(header, "prob_"+l)
	}
	rows := [][]string{header}
	for _, f := range fs {
		row := []string{f.Station, strconv.Itoa(f.Lag), util.FormatDate(f.Date), f.Period.Label(), f.Mode}
		rows = append(rows, appendFloats(row, f.Prob))
	}
	return writeCSV(path, rows)
}

// ─── Run ──────────────────────────────────────────────────────────────────────

// WriteRun writes every file of a run into dir and returns their paths.
func WriteRun(dir string, stations []*model.Station, lags []int, g interval.Granularity, n model.CategoryCount, fs []model.Forecast) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	lags = append([]int(nil), lags...)
	sort.Ints(lags)

	var paths []string
	for _, st := range stations {
		for _, lag := range lags {
			p, err := WriteResultTable(dir, st, lag, g, n)
			if err != nil {
				return paths, err
			}
			paths = append(paths, p)
		}
	}
	for _, lag := range lags {
		for _, key := range interval.Periods(g) {
			ps, err := WriteMapData(dir, stations, lag, key, n)
			paths = append(paths, ps...)
			if err != nil {
				return paths, err
			}
		}
	}
	if len(fs) > 0 {
		p := filepath.Join(dir, ForecastsName)
		if err := WriteForecasts(p, fs); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func appendFloats(row []string, fs []float64) []string {
	for _, f := range fs {
		row = append(row, fmtFloat(f))
	}
	return row
}

func fmtFloat(f float64) string { return util.FormatFloat(f, precision) }

func formatValue(v model.Value) string {
	f, ok := v.Float()
	if !ok {
		return ""
	}
	return fmtFloat(f)
}
