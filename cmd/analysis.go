package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/composite/internal/analyze"
	"github.com/derickschaefer/composite/internal/engine"
	"github.com/derickschaefer/composite/internal/frequency"
	"github.com/derickschaefer/composite/internal/input"
	"github.com/derickschaefer/composite/internal/model"
	"github.com/derickschaefer/composite/internal/period"
	"github.com/derickschaefer/composite/internal/render"
	"github.com/derickschaefer/composite/internal/runctx"
	"github.com/derickschaefer/composite/internal/runfile"
)

// ─── period ───────────────────────────────────────────────────────────────────

var periodCmd = &cobra.Command{
	Use:   "period <RUNFILE>",
	Short: "Show the data state and the common and process periods of a runfile",
	Example: `  composite period enso.yaml
  composite period enso.yaml --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		rf, err := runfile.Load(args[0])
		if err != nil {
			return err
		}
		if err := engine.FillStations(rf.Stations); err != nil {
			return err
		}
		rc, err := runctx.New(rf.Settings, rf.Stations)
		if err != nil {
			return err
		}

		var warnings []string
		for _, st := range rf.Stations {
			if err := period.CheckNulls(st, rc.Period(), rf.Settings.NullTolerance); err != nil {
				warnings = append(warnings, err.Error())
			}
		}

		rep := model.PeriodReport{
			State:    rc.State().String(),
			Stations: len(rf.Stations),
			Common:   rc.Common(),
			Process:  rc.Period(),
		}
		result := newResult(model.KindPeriod, "period "+args[0], rep, 1, start, warnings)
		return emit(cmd.OutOrStdout(), result, resolveFormat(deps.Config.Format), deps.Config.Verbose, deps.Config.Quiet)
	},
}

// ─── thresholds ───────────────────────────────────────────────────────────────

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds <RUNFILE>",
	Short: "Compute the D and I thresholds of every station without writing results",
	Example: `  composite thresholds enso.yaml
  composite thresholds enso.yaml --format csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		rf, err := runfile.Load(args[0])
		if err != nil {
			return err
		}
		eng := deps.Engine()
		rc, err := eng.Prepare(rf.Settings, rf.Stations)
		if err != nil {
			return err
		}
		var (
			ths      []engine.Thresholds
			warnings []string
		)
		for _, st := range rf.Stations {
			th, w, err := eng.ProcessStation(rc, st)
			if err != nil {
				return err
			}
			ths = append(ths, th)
			warnings = append(warnings, w...)
		}
		rows := stationThresholds(rf.Stations, ths)
		result := newResult(model.KindThresholds, "thresholds "+args[0], rows, len(rows), start, warnings)
		return emit(cmd.OutOrStdout(), result, resolveFormat(deps.Config.Format), deps.Config.Verbose, deps.Config.Quiet)
	},
}

// ─── tables ───────────────────────────────────────────────────────────────────

var (
	tablesLag    int
	tablesPeriod string
)

var tablesCmd = &cobra.Command{
	Use:   "tables <RUNFILE>",
	Short: "Print the contingency tables of a runfile without writing results",
	Example: `  composite tables enso.yaml --lag 0 --period DJF
  composite tables enso.yaml --format md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		rf, err := runfile.Load(args[0])
		if err != nil {
			return err
		}
		rf.Settings.Weights = nil
		rep, err := deps.Engine().Run(commandContext(cmd), rf.Settings, rf.Stations)
		if err != nil {
			return err
		}
		sets := stationTables(rf.Stations, rep.Context.Interval(), tablesLag, tablesPeriod)
		result := newResult(model.KindTables, "tables "+args[0], sets, countTables(sets), start, rep.Warnings)
		return emit(cmd.OutOrStdout(), result, resolveFormat(deps.Config.Format), deps.Config.Verbose, deps.Config.Quiet)
	},
}

func countTables(sets []model.StationTables) int {
	n := 0
	for _, s := range sets {
		n += len(s.Tables)
	}
	return n
}

// ─── convert ──────────────────────────────────────────────────────────────────

var (
	convertTo   string
	convertFrom string
	convertType string
	convertMode string
)

var convertCmd = &cobra.Command{
	Use:   "convert <SERIES_FILE>",
	Short: "Convert a series file to a coarser frequency",
	Long: `Read a series (csv, tsv, jsonl or xlsx), fill its boundary years and
convert it to the target frequency with the reduction of its type (or --mode).
An --out path ending in .xlsx or .jsonl is written as a series file.

Targets: 5days, 10days, 15days, monthly, bimonthly, trimonthly.`,
	Example: `  composite convert station.csv --type PPT --to monthly
  composite convert oni.csv --type ONI --to trimonthly --format jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		v, err := readVariable(args[0])
		if err != nil {
			return err
		}
		target, err := model.ParseFrequency(convertTo)
		if err != nil {
			return err
		}
		filled := v
		if v.Frequency == model.Daily || v.Frequency == model.Monthly {
			if filled, err = frequency.FillBoundaryYears(v); err != nil {
				deps.Log.Warnw("boundary years not filled", "file", args[0], "error", err)
				filled = v
			}
		}
		out, err := frequency.Convert(filled, target)
		if err != nil {
			return err
		}
		deps.Log.Debugw("series converted", "from", v.Frequency, "to", target, "mode", v.Mode, "obs", len(out.Obs))

		if path := globalFlags.Out; path != "" {
			switch strings.ToLower(filepath.Ext(path)) {
			case ".xlsx":
				return input.WriteXLSX(path, out.Obs)
			case ".jsonl", ".ndjson":
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				if err := input.WriteJSONL(f, out.Obs); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			}
		}

		// Piped output defaults to JSONL so conversions chain into other tools.
		format := resolveFormat(deps.Config.Format)
		if globalFlags.Format == "" && !input.IsTTY() {
			format = render.FormatJSONL
		}
		result := newResult(model.KindSeries, "convert "+args[0], out, len(out.Obs), start, nil)
		return emit(cmd.OutOrStdout(), result, format, deps.Config.Verbose, deps.Config.Quiet)
	},
}

// readVariable reads a series file as a D variable of --type.
func readVariable(path string) (*model.Variable, error) {
	obs, err := input.ReadFile(path)
	if err != nil {
		return nil, err
	}
	freq := input.InferFrequency(obs)
	if convertFrom != "" {
		if freq, err = model.ParseFrequency(convertFrom); err != nil {
			return nil, err
		}
	}
	mode := frequency.DefaultMode(convertType)
	if convertMode != "" {
		if mode, err = model.ParseMode(convertMode); err != nil {
			return nil, err
		}
	}
	return model.NewVariable(model.KindD, convertType, freq, mode, obs)
}

// ─── describe ─────────────────────────────────────────────────────────────────

var describeTrend string

var describeCmd = &cobra.Command{
	Use:   "describe <SERIES_FILE...>",
	Short: "Summarise series files: coverage, nulls, distribution and trend",
	Long: `Summarise one or more series files before using them in a run.

The worst year column names the calendar year with the highest share of
nulls, which is what most often trips the consistent_data tolerance.`,
	Example: `  composite describe data/87585.csv data/oni.csv --type PPT
  composite describe data/87585.csv --trend theil-sen --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		method, err := analyze.ParseTrendMethod(describeTrend)
		if err != nil {
			return err
		}
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		var (
			reports  []analyze.Report
			warnings []string
		)
		for _, path := range args {
			v, err := readVariable(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			rep := analyze.Report{Summary: analyze.Summarize(path, v)}
			if tr, err := analyze.Trend(v, method); err == nil {
				rep.Trend = &tr
			} else {
				warnings = append(warnings, fmt.Sprintf("%s: %v", path, err))
			}
			reports = append(reports, rep)
		}
		result := newResult(model.KindSummary, "describe", reports, len(reports), start, warnings)
		return emit(cmd.OutOrStdout(), result, resolveFormat(deps.Config.Format), deps.Config.Verbose, deps.Config.Quiet)
	},
}

func init() {
	rootCmd.AddCommand(periodCmd, thresholdsCmd, tablesCmd, convertCmd, describeCmd)

	describeCmd.Flags().StringVar(&convertType, "type", "", "series type, e.g. PPT or TMAX")
	describeCmd.Flags().StringVar(&convertFrom, "from", "", "source frequency (default: inferred from the dates)")
	describeCmd.Flags().StringVar(&describeTrend, "trend", "linear", "trend method: linear|theil-sen")

	tablesCmd.Flags().IntVar(&tablesLag, "lag", -1, "only this lag (default: all)")
	tablesCmd.Flags().StringVar(&tablesPeriod, "period", "", "only this period label, e.g. DJF or \"Jan 11\"")

	cf := convertCmd.Flags()
	cf.StringVar(&convertTo, "to", "", "target frequency (required)")
	cf.StringVar(&convertFrom, "from", "", "source frequency (default: inferred from the dates)")
	cf.StringVar(&convertType, "type", "", "series type, e.g. PPT or TMAX (selects the default reduction)")
	cf.StringVar(&convertMode, "mode", "", "reduction: mean|accumulate")
	_ = convertCmd.MarkFlagRequired("to")
}
