package cmd

import (
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/derickschaefer/composite/internal/engine"
	"github.com/derickschaefer/composite/internal/interval"
	"github.com/derickschaefer/composite/internal/model"
	"github.com/derickschaefer/composite/internal/render"
)

// resolveFormat returns the effective format string, falling back to "table".
func resolveFormat(cfgFormat string) string {
	if globalFlags.Format != "" {
		return globalFlags.Format
	}
	if cfgFormat != "" {
		return cfgFormat
	}
	return render.FormatTable
}

// outputWriter returns the --out file when set, otherwise def. The returned
// closer must always be called.
func outputWriter(def io.Writer) (io.Writer, func() error, error) {
	if globalFlags.Out == "" {
		return def, func() error { return nil }, nil
	}
	f, err := os.Create(globalFlags.Out)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// emit renders result to --out or w and prints the footer unless quiet.
func emit(w io.Writer, result *model.Result, format string, verbose, quiet bool) error {
	out, closeFn, err := outputWriter(w)
	if err != nil {
		return err
	}
	if err := render.Render(out, result, format); err != nil {
		_ = closeFn()
		return err
	}
	if err := closeFn(); err != nil {
		return err
	}
	if !quiet {
		render.PrintFooter(os.Stderr, result, verbose)
	}
	return nil
}

// newResult wraps data in a Result envelope.
func newResult(kind, command string, data interface{}, items int, start time.Time, warnings []string) *model.Result {
	return &model.Result{
		Kind:        kind,
		GeneratedAt: time.Now(),
		Command:     command,
		Data:        data,
		Warnings:    warnings,
		Stats: model.ResultStats{
			DurationMs: time.Since(start).Milliseconds(),
			Items:      items,
		},
	}
}

// stationTables orders the tables of every station by lag then period,
// keeping only lag when it is non-negative and periods whose label matches
// period when it is set.
func stationTables(stations []*model.Station, g interval.Granularity, lag int, period string) []model.StationTables {
	var out []model.StationTables
	for _, st := range stations {
		var lags []int
		seen := make(map[int]bool)
		for key := range st.Tables {
			if !seen[key.Lag] {
				seen[key.Lag] = true
				lags = append(lags, key.Lag)
			}
		}
		sort.Ints(lags)

		set := model.StationTables{Station: st.Code}
		for _, l := range lags {
			if lag >= 0 && l != lag {
				continue
			}
			for _, key := range interval.Periods(g) {
				if period != "" && !strings.EqualFold(key.Label(), period) {
					continue
				}
				if t, ok := st.Table(l, key); ok {
					set.Tables = append(set.Tables, t)
				}
			}
		}
		out = append(out, set)
	}
	return out
}

// stationThresholds pairs the engine thresholds with the station types.
func stationThresholds(stations []*model.Station, ths []engine.Thresholds) []model.StationThresholds {
	types := make(map[string][2]string, len(stations))
	for _, st := range stations {
		types[st.Code] = [2]string{st.D.TypeSeries, st.I.TypeSeries}
	}
	out := make([]model.StationThresholds, len(ths))
	for i, th := range ths {
		out[i] = model.StationThresholds{
			Station: th.Station,
			DType:   types[th.Station][0],
			IType:   types[th.Station][1],
			D:       th.DCuts,
			I:       th.ICuts,
		}
	}
	return out
}

// tableCount returns the number of tables built across stations.
func tableCount(stations []*model.Station) int {
	n := 0
	for _, st := range stations {
		n += len(st.Tables)
	}
	return n
}
