// Package input reads dated series files into observations. Supported
// formats: CSV and TSV (date,value), JSONL ({"date","value"}) and XLSX
// (first sheet, date and value columns). Dates are YYYY-MM-DD or YYYY-MM;
// missing-value tokens become null values.
package input

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/derickschaefer/composite/internal/model"
	"github.com/derickschaefer/composite/internal/util"
)

// Format is a series file format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatTSV   Format = "tsv"
	FormatJSONL Format = "jsonl"
	FormatXLSX  Format = "xlsx"
)

// FormatFor picks the format of path from its extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".tsv", ".tab":
		return FormatTSV, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%s: unsupported series file (use .csv, .tsv, .jsonl or .xlsx)", path)
}

// ReadFile reads the series stored at path.
func ReadFile(path string) ([]model.Observation, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	if format == FormatXLSX {
		obs, err := ReadXLSX(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return obs, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening series: %w", err)
	}
	defer f.Close()

	obs, err := Read(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return obs, nil
}

// Read reads a CSV, TSV or JSONL series from r.
func Read(r io.Reader, format Format) ([]model.Observation, error) {
	switch format {
	case FormatJSONL:
		return ReadJSONL(r)
	case FormatCSV, FormatTSV:
		cr := csv.NewReader(r)
		cr.Comment = '#'
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		if format == FormatTSV {
			cr.Comma = '\t'
		}
		rows, err := cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", format, err)
		}
		return parseRows(rows)
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// parseRows converts raw rows into observations. A first row whose date cell
// does not parse is treated as a header; a header may name the date and
// value columns, otherwise they are the first two.
func parseRows(rows [][]string) ([]model.Observation, error) {
	dateCol, valueCol := 0, 1
	start := 0
	if len(rows) > 0 && len(rows[0]) > 0 {
		if _, err := util.ParseSeriesDate(rows[0][0]); err != nil {
			for i, h := range rows[0] {
				switch strings.ToLower(strings.TrimSpace(h)) {
				case "date", "fecha":
					dateCol = i
				case "value", "valor":
					valueCol = i
				}
			}
			start = 1
		}
	}

	var obs []model.Observation
	for i := start; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		if dateCol >= len(row) {
			return nil, fmt.Errorf("row %d: missing date column", i+1)
		}
		date, err := util.ParseSeriesDate(row[dateCol])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		var cell string
		if valueCol < len(row) {
			cell = row[valueCol]
		}
		v, err := util.ParseValue(cell)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		obs = append(obs, model.Observation{Date: date, Value: v})
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("no observations found")
	}
	return obs, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ─── Frequency Inference ──────────────────────────────────────────────────────

var bucketDays = []struct {
	freq model.Frequency
	days map[int]bool
}{
	{model.Monthly, map[int]bool{1: true}},
	{model.FifteenDays, map[int]bool{1: true, 16: true}},
	{model.TenDays, map[int]bool{1: true, 11: true, 21: true}},
	{model.FiveDays, map[int]bool{1: true, 6: true, 11: true, 16: true, 21: true, 26: true}},
}

// InferFrequency guesses the native frequency of obs from the days of month
// it is dated on. Bimonthly and trimonthly series look monthly and must be
// declared explicitly.
func InferFrequency(obs []model.Observation) model.Frequency {
	seen := make(map[int]bool)
	for _, o := range obs {
		seen[o.Date.Day()] = true
	}
	for _, b := range bucketDays {
		if subset(seen, b.days) {
			return b.freq
		}
	}
	return model.Daily
}

func subset(a, b map[int]bool) bool {
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
