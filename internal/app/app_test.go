package app_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/derickschaefer/composite/internal/app"
	"github.com/derickschaefer/composite/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Format:    config.DefaultFormat,
		OutputDir: filepath.Join(dir, "out"),
		DBPath:    filepath.Join(dir, "composite.db"),
		LogLevel:  "error",
	}
}

func TestNewLoggerLevels(t *testing.T) {
	cfg := testConfig(t)
	for _, mod := range []func(*config.Config){
		func(c *config.Config) {},
		func(c *config.Config) { c.Quiet = true },
		func(c *config.Config) { c.Debug = true },
		func(c *config.Config) { c.Verbose = true },
	} {
		c := *cfg
		mod(&c)
		if _, err := app.NewLogger(&c); err != nil {
			t.Errorf("NewLogger: %v", err)
		}
	}

	cfg.LogLevel = "loud"
	if _, err := app.NewLogger(cfg); err == nil {
		t.Error("unknown log level should fail")
	}
}

func TestRequireStore(t *testing.T) {
	deps, err := app.New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if deps.Store != nil {
		t.Fatal("store should open lazily")
	}
	if err := deps.RequireStore(); err != nil {
		t.Fatalf("RequireStore: %v", err)
	}
	if deps.Store == nil {
		t.Fatal("store should be open")
	}
	if err := deps.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if deps.Store != nil {
		t.Error("Close should release the store")
	}
}

func TestRequireStoreDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.NoStore = true
	deps, err := app.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := deps.RequireStore(); err == nil || !strings.Contains(err.Error(), "--no-store") {
		t.Errorf("expected --no-store error, got %v", err)
	}
}

func TestCloseWritesMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.MetricsFile = filepath.Join(t.TempDir(), "composite.prom")
	deps, err := app.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	deps.Metrics.Forecasts.Inc()
	if err := deps.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(cfg.MetricsFile)
	if err != nil {
		t.Fatalf("reading metrics: %v", err)
	}
	if !strings.Contains(string(data), "composite_forecasts_total 1") {
		t.Errorf("metrics file missing forecast counter:\n%s", data)
	}
}
