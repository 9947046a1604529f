package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/composite/internal/store"
)

// Version and BuildTime are set with -ldflags -X at release time.
var (
	Version   = "v0.1.0"
	BuildTime = ""
)

type versionInfo struct {
	Version     string `json:"version"`
	StoreSchema int    `json:"store_schema"`
	GoVersion   string `json:"go_version"`
	GOOS        string `json:"goos"`
	GOARCH      string `json:"goarch"`
	BuildTime   string `json:"build_time,omitempty"`
}

func currentVersion() versionInfo {
	return versionInfo{
		Version:     Version,
		StoreSchema: store.SchemaVersion,
		GoVersion:   runtime.Version(),
		GOOS:        runtime.GOOS,
		GOARCH:      runtime.GOARCH,
		BuildTime:   BuildTime,
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the composite version, store schema and build information",
	Example: `  composite version
  composite version --format json | jq .store_schema`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := currentVersion()
		w := cmd.OutOrStdout()
		switch globalFlags.Format {
		case "json", "jsonl":
			enc := json.NewEncoder(w)
			if globalFlags.Format == "json" {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(info)
		}
		fmt.Fprintf(w, "composite %s\n", info.Version)
		fmt.Fprintf(w, "store     schema %d\n", info.StoreSchema)
		fmt.Fprintf(w, "go        %s\n", info.GoVersion)
		fmt.Fprintf(w, "os        %s/%s\n", info.GOOS, info.GOARCH)
		if info.BuildTime != "" {
			fmt.Fprintf(w, "built     %s\n", info.BuildTime)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
