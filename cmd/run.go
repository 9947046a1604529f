package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/composite/internal/app"
	"github.com/derickschaefer/composite/internal/engine"
	"github.com/derickschaefer/composite/internal/model"
	"github.com/derickschaefer/composite/internal/output"
	"github.com/derickschaefer/composite/internal/runfile"
	"github.com/derickschaefer/composite/internal/store"
)

var runNoWrite bool

var runCmd = &cobra.Command{
	Use:   "run <RUNFILE>",
	Short: "Build contingency tables (and forecasts) for every station of a runfile",
	Long: `Run the composite analysis described by a YAML runfile.

Every station series is filled, converted to the analysis frequency and
thresholded; one contingency table is built per lag and analysis period.
When the runfile has a forecast section, forecasts are blended too.

Result tables, map data and forecasts are written to <output-dir>/<name>/,
and the run is saved to the local store for later 'forecast --run'.`,
	Example: `  composite run enso.yaml
  composite run enso.yaml --output-dir results --format json
  composite run enso.yaml --no-store --no-write`,
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
		rep, err := deps.Engine().Run(commandContext(cmd), rf.Settings, rf.Stations)
		if err != nil {
			return err
		}

		summary := model.RunReport{
			Name:      rf.Name,
			State:     rep.Context.State().String(),
			Period:    rep.Context.Period(),
			Interval:  string(rep.Context.Interval()),
			Lags:      rf.Settings.Lags,
			Stations:  len(rf.Stations),
			Tables:    tableCount(rf.Stations),
			Forecasts: rep.Forecasts,
		}

		if !runNoWrite {
			dir := filepath.Join(deps.Config.OutputDir, rf.Name)
			files, err := output.WriteRun(dir, rf.Stations, rf.Settings.Lags, rep.Context.Interval(), rf.Settings.Categories, rep.Forecasts)
			if err != nil {
				return err
			}
			summary.Files = files
			deps.Log.Infow("results written", "dir", dir, "files", len(files))
		}

		if !deps.Config.NoStore {
			id, err := saveRun(deps, rf, rep)
			if err != nil {
				return err
			}
			summary.RunID = id
		}

		result := newResult(model.KindRun, "run "+args[0], summary, summary.Tables, start, rep.Warnings)
		return emit(cmd.OutOrStdout(), result, resolveFormat(deps.Config.Format), deps.Config.Verbose, deps.Config.Quiet)
	},
}

// saveRun stores rep and its forecasts and returns the new run ID.
func saveRun(deps *app.Deps, rf *runfile.Runfile, rep *engine.Report) (string, error) {
	if err := deps.RequireStore(); err != nil {
		return "", err
	}
	run := store.Run{
		Name:       rf.Name,
		Runfile:    rf.Path,
		Categories: rf.Settings.Categories,
		Interval:   string(rep.Context.Interval()),
		Lags:       rf.Settings.Lags,
		Period:     rep.Context.Period(),
		State:      int(rep.Context.State()),
		Warnings:   rep.Warnings,
	}
	cuts := make(map[string]engine.Thresholds, len(rep.Thresholds))
	for _, th := range rep.Thresholds {
		cuts[th.Station] = th
	}
	for _, st := range rf.Stations {
		sr := store.StationResult{
			Code:        st.Code,
			Name:        st.Name,
			Lat:         st.Lat,
			Lon:         st.Lon,
			Alt:         st.Alt,
			DType:       st.D.TypeSeries,
			IType:       st.I.TypeSeries,
			DThresholds: cuts[st.Code].DCuts,
			IThresholds: cuts[st.Code].ICuts,
		}
		for _, set := range stationTables([]*model.Station{st}, rep.Context.Interval(), -1, "") {
			sr.Tables = append(sr.Tables, set.Tables...)
		}
		run.Stations = append(run.Stations, sr)
	}

	saved, err := deps.Store.PutRun(run)
	if err != nil {
		return "", fmt.Errorf("saving run: %w", err)
	}
	if len(rep.Forecasts) > 0 {
		if err := deps.Store.PutForecasts(saved.ID, rep.Forecasts); err != nil {
			return "", fmt.Errorf("saving forecasts: %w", err)
		}
	}
	deps.Log.Infow("run stored", "id", saved.ID, "db", deps.Store.Path())
	return saved.ID, nil
}

// commandContext returns the command context, or a background context when
// the command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runNoWrite, "no-write", false, "do not write result files")
}
