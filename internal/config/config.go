// Package config handles loading and resolving composite configuration.
// Resolution order (first non-empty value wins):
//  1. CLI flag --output-dir
//  2. Environment variables COMPOSITE_OUTPUT_DIR / COMPOSITE_DB_PATH,
//     including those set by a .env file in the working directory
//  3. config.json in the current working directory
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultConfigFile = "config.json"
	DefaultEnvFile    = ".env"
	DefaultFormat     = "table"
	DefaultOutputDir  = "output"
	DefaultLogLevel   = "info"
	EnvOutputDir      = "COMPOSITE_OUTPUT_DIR"
	EnvDBPath         = "COMPOSITE_DB_PATH"
)

var (
	validFormats   = []string{"table", "json", "jsonl", "csv", "tsv", "md"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// File is the on-disk representation of config.json.
type File struct {
	DefaultFormat string `json:"default_format"`
	OutputDir     string `json:"output_dir"`
	DBPath        string `json:"db_path"`
	LogLevel      string `json:"log_level"`
	MetricsFile   string `json:"metrics_file"`
}

// Config is the fully-resolved runtime configuration.
// All callers use this struct; the File is only read during loading.
type Config struct {
	Format      string
	OutputDir   string
	DBPath      string
	LogLevel    string
	MetricsFile string
	ConfigPath  string // path of the config.json that was loaded (empty if none found)

	// Runtime overrides set from CLI flags after Load()
	NoStore bool
	Quiet   bool
	Verbose bool
	Debug   bool
}

// Load resolves configuration from all sources.
// flagOutputDir is the value of --output-dir (empty string if not set).
func Load(flagOutputDir string) (*Config, error) {
	cfg := &Config{
		Format:    DefaultFormat,
		OutputDir: DefaultOutputDir,
		LogLevel:  DefaultLogLevel,
	}

	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(DefaultEnvFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", DefaultEnvFile, err)
	}

	// Layer 1: config.json (lowest priority)
	if f, path, err := loadFile(); err == nil {
		applyFile(cfg, f, path)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// Layer 2: environment variables
	if v := os.Getenv(EnvOutputDir); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}

	// Layer 3: CLI flag (highest priority)
	if flagOutputDir != "" {
		cfg.OutputDir = flagOutputDir
	}

	// Set default DB path if still unset
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DBPath = filepath.Join(home, ".composite", "composite.db")
		}
	}

	return cfg, nil
}

// Validate returns an error if a field holds an unsupported value.
func (c *Config) Validate() error {
	if !contains(validFormats, c.Format) {
		return fmt.Errorf("default_format %q: use one of %s", c.Format, strings.Join(validFormats, ", "))
	}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("log_level %q: use one of %s", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// loadFile attempts to read config.json from the current working directory.
// A missing file is reported with an error satisfying os.IsNotExist.
func loadFile() (*File, string, error) {
	path, err := filepath.Abs(DefaultConfigFile)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("reading config.json: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("parsing config.json: %w", err)
	}
	return &f, path, nil
}

// applyFile copies values from a parsed File into cfg,
// skipping any fields that are zero/empty.
func applyFile(cfg *Config, f *File, path string) {
	cfg.ConfigPath = path
	if f.DefaultFormat != "" {
		cfg.Format = f.DefaultFormat
	}
	if f.OutputDir != "" {
		cfg.OutputDir = f.OutputDir
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
	if f.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(f.LogLevel)
	}
	if f.MetricsFile != "" {
		cfg.MetricsFile = f.MetricsFile
	}
}

// Template returns a File populated with sensible defaults, suitable for
// writing an initial config.json via `composite config init`.
func Template() File {
	return File{
		DefaultFormat: DefaultFormat,
		OutputDir:     DefaultOutputDir,
		LogLevel:      DefaultLogLevel,
	}
}

// WriteFile serialises a File to the given path.
func WriteFile(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}
