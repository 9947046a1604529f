// Package cmd implements the composite CLI command tree.
// This file defines the root command and registers all global persistent flags.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/composite/internal/app"
	"github.com/derickschaefer/composite/internal/config"
)

// globalFlags holds the parsed values of all persistent (global) flags.
// Commands read from this struct via the deps they receive.
var globalFlags struct {
	Format    string
	Out       string
	OutputDir string
	NoStore   bool
	Quiet     bool
	Verbose   bool
	Debug     bool
}

// rootCmd is the base command. Running `composite` with no subcommand
// prints help.
var rootCmd = &cobra.Command{
	Use:   "composite",
	Short: "Climate composite analysis and affectation forecasts",
	Long: `composite relates a climate-variability index (I) to a station-measured
variable (D): it builds contingency tables of I categories against D
categories per lag and analysis period, and blends phenomenon probabilities
into category forecasts.

Quick start:
  composite config init                 # create a config.json
  composite period run.yaml             # check the common process period
  composite run run.yaml                # build tables, write results, store the run
  composite forecast --run <ID> --weights weights.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// buildDeps resolves config and constructs the dependency container.
// Called at the start of each command's RunE.
func buildDeps() (*app.Deps, error) {
	cfg, err := config.Load(globalFlags.OutputDir)
	if err != nil {
		return nil, err
	}

	// Apply CLI flag overrides
	cfg.NoStore = globalFlags.NoStore
	cfg.Quiet = globalFlags.Quiet
	cfg.Verbose = globalFlags.Verbose
	cfg.Debug = globalFlags.Debug

	if globalFlags.Format != "" {
		cfg.Format = globalFlags.Format
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return app.New(cfg)
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&globalFlags.Format, "format", "",
		"output format: table|json|jsonl|csv|tsv|md (default: table)")
	pf.StringVar(&globalFlags.Out, "out", "",
		"write output to file instead of stdout")
	pf.StringVar(&globalFlags.OutputDir, "output-dir", "",
		"directory for result files (overrides env COMPOSITE_OUTPUT_DIR and config.json)")
	pf.BoolVar(&globalFlags.NoStore, "no-store", false,
		"do not read or write the local run store")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false,
		"suppress all non-error output")
	pf.BoolVar(&globalFlags.Verbose, "verbose", false,
		"show debug logs and timing stats after output")
	pf.BoolVar(&globalFlags.Debug, "debug", false,
		"development logging with caller information")
}
