package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/composite/internal/config"
	"github.com/derickschaefer/composite/internal/render"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage composite configuration",
	Long:  `Read and write composite configuration stored in config.json.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template config.json in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config.json already exists at %s (delete it first to re-initialise)", path)
		}
		if err := config.WriteFile(path, config.Template()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "  Results are written under output_dir; runs are stored in db_path.")
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(globalFlags.OutputDir)
		if err != nil {
			return err
		}

		src := "(not found)"
		if cfg.ConfigPath != "" {
			src = cfg.ConfigPath
		}
		metrics := cfg.MetricsFile
		if metrics == "" {
			metrics = "(disabled)"
		}

		switch resolveFormat(cfg.Format) {
		case render.FormatJSON:
			type configOut struct {
				Format      string `json:"default_format"`
				OutputDir   string `json:"output_dir"`
				DBPath      string `json:"db_path"`
				LogLevel    string `json:"log_level"`
				MetricsFile string `json:"metrics_file"`
				ConfigFile  string `json:"config_file"`
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(configOut{
				Format:      cfg.Format,
				OutputDir:   cfg.OutputDir,
				DBPath:      cfg.DBPath,
				LogLevel:    cfg.LogLevel,
				MetricsFile: cfg.MetricsFile,
				ConfigFile:  src,
			})
		default:
			printKVTable(cmd, [][]string{
				{"default_format", cfg.Format},
				{"output_dir", cfg.OutputDir},
				{"db_path", cfg.DBPath},
				{"log_level", cfg.LogLevel},
				{"metrics_file", metrics},
				{"config_file", src},
			})
			return nil
		}
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in config.json",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.ToLower(args[0])
		val := args[1]

		var f config.File
		existing, path, err := loadConfigFile()
		if err != nil {
			path = config.DefaultConfigFile
			f = config.Template()
		} else {
			f = *existing
		}

		switch key {
		case "default_format", "format":
			f.DefaultFormat = val
		case "output_dir":
			f.OutputDir = val
		case "db_path":
			f.DBPath = val
		case "log_level":
			f.LogLevel = strings.ToLower(val)
		case "metrics_file":
			f.MetricsFile = val
		default:
			return fmt.Errorf("unknown config key: %q\n\nValid keys: default_format, output_dir, db_path, log_level, metrics_file", key)
		}

		check := config.Config{Format: f.DefaultFormat, OutputDir: f.OutputDir, LogLevel: f.LogLevel}
		if check.Format == "" {
			check.Format = config.DefaultFormat
		}
		if check.LogLevel == "" {
			check.LogLevel = config.DefaultLogLevel
		}
		if check.OutputDir == "" {
			check.OutputDir = config.DefaultOutputDir
		}
		if err := check.Validate(); err != nil {
			return err
		}

		if err := config.WriteFile(path, f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s in %s\n", key, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}

// loadConfigFile reads config.json from cwd; used by configSetCmd.
func loadConfigFile() (*config.File, string, error) {
	path := config.DefaultConfigFile
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	var f config.File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", err
	}
	return &f, path, nil
}

// printKVTable renders a two-column key/value table using aligned columns.
func printKVTable(cmd *cobra.Command, rows [][]string) {
	maxKey := 0
	for _, r := range rows {
		if len(r[0]) > maxKey {
			maxKey = len(r[0])
		}
	}
	for _, r := range rows {
		padding := strings.Repeat(" ", maxKey-len(r[0]))
		fmt.Fprintf(cmd.OutOrStdout(), "  %s%s  %s\n", r[0], padding, r[1])
	}
}
