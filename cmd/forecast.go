package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/composite/internal/chart"
	"github.com/derickschaefer/composite/internal/forecast"
	"github.com/derickschaefer/composite/internal/interval"
	"github.com/derickschaefer/composite/internal/model"
	"github.com/derickschaefer/composite/internal/runfile"
)

var (
	forecastRunID   string
	forecastWeights string
	forecastDate    string
	forecastChart   bool
	forecastSave    bool
)

var forecastCmd = &cobra.Command{
	Use:   "forecast [RUNFILE]",
	Short: "Blend phenomenon probabilities into D-category forecasts",
	Long: `Blend per-lag phenomenon probabilities with contingency percentages.

With a RUNFILE the analysis is run first; its forecast section supplies the
weights unless --weights is given. With --run the tables of a stored run
are reused and --weights is required.

A weights file holds the forecast date and, per lag (0..2), the probability
of each I category in percent:

  date: 2024-02-01
  weights:
    0: {below: 20, normal: 60, above: 20}
    1: {below: 10, normal: 30, above: 60}`,
	Example: `  composite forecast enso.yaml
  composite forecast --run 3f2a --weights weights.yaml
  composite forecast --run 3f2a --weights weights.yaml --date 2024-03-15 --chart`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		if (forecastRunID == "") == (len(args) == 0) {
			return errors.New("give either a RUNFILE or --run <ID>")
		}
		if forecastRunID != "" && forecastWeights == "" {
			return errors.New("--weights is required with --run")
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		runID := forecastRunID
		var (
			stations []*model.Station
			g        interval.Granularity
			n        model.CategoryCount
			warnings []string
			fs       []model.Forecast
		)

		if runID != "" {
			if err := deps.RequireStore(); err != nil {
				return err
			}
			run, err := deps.Store.GetRun(forecastRunID)
			if err != nil {
				return storeLookupError(forecastRunID, err)
			}
			runID = run.ID
			stations, n = run.ModelStations(), run.Categories
			if g, err = interval.Parse(run.Interval); err != nil {
				return fmt.Errorf("stored run %s: %w", run.ID, err)
			}
			date, w, err := loadWeights(n)
			if err != nil {
				return err
			}
			for _, st := range stations {
				for _, lag := range w.Lags() {
					f, err := forecast.Forecast(st, lag, date, w, g)
					if err != nil {
						return err
					}
					deps.Metrics.Forecasts.Inc()
					fs = append(fs, f)
				}
			}
		} else {
			rf, err := runfile.Load(args[0])
			if err != nil {
				return err
			}
			if forecastWeights != "" {
				date, w, err := loadWeights(rf.Settings.Categories)
				if err != nil {
					return err
				}
				rf.Settings.ForecastDate, rf.Settings.Weights = date, w
			}
			if !rf.Settings.HasForecast() {
				return fmt.Errorf("%s has no forecast section; pass --weights", args[0])
			}
			rep, err := deps.Engine().Run(commandContext(cmd), rf.Settings, rf.Stations)
			if err != nil {
				return err
			}
			fs, warnings = rep.Forecasts, rep.Warnings
		}

		if forecastSave && runID != "" {
			if err := deps.Store.PutForecasts(runID, fs); err != nil {
				return fmt.Errorf("saving forecasts: %w", err)
			}
		}

		if forecastChart {
			for _, f := range fs {
				if err := chart.Forecast(cmd.OutOrStdout(), f, 0); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		}
		result := newResult(model.KindForecast, "forecast", fs, len(fs), start, warnings)
		return emit(cmd.OutOrStdout(), result, resolveFormat(deps.Config.Format), deps.Config.Verbose, deps.Config.Quiet)
	},
}

// loadWeights reads --weights for n categories; --date overrides its date.
func loadWeights(n model.CategoryCount) (time.Time, forecast.Weights, error) {
	data, err := os.ReadFile(forecastWeights)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("reading weights: %w", err)
	}
	fc, err := runfile.DecodeForecast(data)
	if err != nil {
		return time.Time{}, nil, err
	}
	if forecastDate != "" {
		fc.Date = forecastDate
	}
	return fc.Parse(n)
}

func init() {
	rootCmd.AddCommand(forecastCmd)
	f := forecastCmd.Flags()
	f.StringVar(&forecastRunID, "run", "", "stored run ID (or unique prefix) to forecast from")
	f.StringVar(&forecastWeights, "weights", "", "YAML file with the forecast date and per-lag weights")
	f.StringVar(&forecastDate, "date", "", "forecast date YYYY-MM-DD (overrides the weights file)")
	f.BoolVar(&forecastChart, "chart", false, "draw the probabilities as bar charts")
	f.BoolVar(&forecastSave, "save", false, "save the forecasts with the stored run (--run only)")
}
