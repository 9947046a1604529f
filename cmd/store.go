package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/composite/internal/interval"
	"github.com/derickschaefer/composite/internal/model"
	"github.com/derickschaefer/composite/internal/store"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and manage stored runs",
	Long: `Commands for inspecting the runs saved in the local bbolt database.

Every 'composite run' saves its thresholds and contingency tables unless
--no-store is set. Stored runs feed 'composite forecast --run'. Data persists
until you delete it.`,
}

// ─── store list ───────────────────────────────────────────────────────────────

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	Example: `  composite store list
  composite store list --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		runs, err := deps.Store.ListRuns()
		if err != nil {
			return fmt.Errorf("reading store: %w", err)
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs in local database.")
			fmt.Fprintln(cmd.OutOrStdout(), "  Use: composite run <RUNFILE>")
			return nil
		}
		result := newResult(model.KindRuns, "store list", runs, len(runs), start, nil)
		return emit(cmd.OutOrStdout(), result, resolveFormat(deps.Config.Format), deps.Config.Verbose, deps.Config.Quiet)
	},
}

// ─── store show ───────────────────────────────────────────────────────────────

var (
	showStation string
	showLag     int
	showPeriod  string
)

var storeShowCmd = &cobra.Command{
	Use:   "show <RUN_ID>",
	Short: "Print the contingency tables of a stored run",
	Long: `Print the contingency tables of a stored run. RUN_ID may be any unique
prefix of the full ID shown by 'composite store list'.`,
	Example: `  composite store show 3f2a
  composite store show 3f2a --station 87585 --lag 1 --format md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		run, err := deps.Store.GetRun(args[0])
		if err != nil {
			return storeLookupError(args[0], err)
		}
		g, err := interval.Parse(run.Interval)
		if err != nil {
			return err
		}
		stations := run.ModelStations()
		if showStation != "" {
			stations = filterStations(stations, showStation)
			if len(stations) == 0 {
				return fmt.Errorf("station %q not in run %s", showStation, run.ID)
			}
		}
		sets := stationTables(stations, g, showLag, showPeriod)
		result := newResult(model.KindTables, "store show "+args[0], sets, countTables(sets), start, run.Warnings)
		return emit(cmd.OutOrStdout(), result, resolveFormat(deps.Config.Format), deps.Config.Verbose, deps.Config.Quiet)
	},
}

// ─── store delete ─────────────────────────────────────────────────────────────

var storeDeleteCmd = &cobra.Command{
	Use:     "delete <RUN_ID>",
	Short:   "Delete a stored run and its forecasts",
	Example: `  composite store delete 3f2a`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		run, err := deps.Store.GetRun(args[0])
		if err != nil {
			return storeLookupError(args[0], err)
		}
		if err := deps.Store.DeleteRun(run.ID); err != nil {
			return fmt.Errorf("deleting run %s: %w", run.ID, err)
		}
		deps.Log.Infow("run deleted", "id", run.ID, "name", run.Name)
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted run %s (%s)\n", run.ID, run.Name)
		return nil
	},
}

// ─── store stats ──────────────────────────────────────────────────────────────

var storeStatsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show row counts and sizes for each bucket",
	Example: `  composite store stats`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		stats, err := deps.Store.Stats()
		if err != nil {
			return fmt.Errorf("reading store stats: %w", err)
		}
		sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })

		if !deps.Config.Quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "Database: %s\n", deps.Store.Path())
		}
		result := newResult(model.KindStoreStats, "store stats", stats, len(stats), start, nil)
		return emit(cmd.OutOrStdout(), result, resolveFormat(deps.Config.Format), deps.Config.Verbose, deps.Config.Quiet)
	},
}

// ─── store clear ──────────────────────────────────────────────────────────────

var (
	storeClearAll    bool
	storeClearBucket string
)

var storeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete entries from the local store",
	Long: `Delete entries from one or all buckets.

bbolt does not shrink the database file after clearing. Free pages are
reused on the next write.`,
	Example: `  composite store clear --all
  composite store clear --bucket forecasts`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !storeClearAll && storeClearBucket == "" {
			return fmt.Errorf("specify --all or --bucket <name>\n\nBuckets: %s", strings.Join(store.AllBuckets, ", "))
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		if storeClearAll {
			if err := deps.Store.ClearAll(); err != nil {
				return fmt.Errorf("clearing all buckets: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Cleared all buckets")
			return nil
		}
		if err := deps.Store.ClearBucket(storeClearBucket); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared bucket %q\n", storeClearBucket)
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeListCmd, storeShowCmd, storeDeleteCmd, storeStatsCmd, storeClearCmd)

	storeShowCmd.Flags().StringVar(&showStation, "station", "", "only this station code")
	storeShowCmd.Flags().IntVar(&showLag, "lag", -1, "only this lag (default: all)")
	storeShowCmd.Flags().StringVar(&showPeriod, "period", "", "only this period label, e.g. DJF")

	storeClearCmd.Flags().BoolVar(&storeClearAll, "all", false, "clear all buckets")
	storeClearCmd.Flags().StringVar(&storeClearBucket, "bucket", "", "clear a specific bucket: runs|forecasts")
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func filterStations(stations []*model.Station, code string) []*model.Station {
	var out []*model.Station
	for _, st := range stations {
		if strings.EqualFold(st.Code, code) {
			out = append(out, st)
		}
	}
	return out
}

// storeLookupError adds a hint to run lookup failures.
func storeLookupError(id string, err error) error {
	switch {
	case errors.Is(err, store.ErrRunNotFound):
		return fmt.Errorf("%w: %s\n\n  Use: composite store list", err, id)
	case errors.Is(err, store.ErrAmbiguousRun):
		return fmt.Errorf("%w: %s\n\n  Use a longer prefix", err, id)
	default:
		return err
	}
}
