// Package app wires together configuration, the logger, the local run store
// and run metrics into a single Deps struct that commands receive at runtime.
package app

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/derickschaefer/composite/internal/config"
	"github.com/derickschaefer/composite/internal/engine"
	"github.com/derickschaefer/composite/internal/metrics"
	"github.com/derickschaefer/composite/internal/store"
)

// Deps holds all runtime dependencies injected into command Run functions.
// Store is nil until RequireStore is called.
type Deps struct {
	Config  *config.Config
	Log     *zap.SugaredLogger
	Metrics *metrics.Metrics
	Store   *store.Store
}

// New builds a Deps from resolved config.
func New(cfg *config.Config) (*Deps, error) {
	log, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	return &Deps{
		Config:  cfg,
		Log:     log,
		Metrics: metrics.New(),
	}, nil
}

// NewLogger builds the logger for cfg: a no-op logger when quiet, the zap
// development logger with --debug, and the production logger at the
// configured level otherwise.
func NewLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	if cfg.Quiet {
		return zap.NewNop().Sugar(), nil
	}
	if cfg.Debug {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
		return l.Sugar(), nil
	}

	zc := zap.NewProductionConfig()
	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("log_level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	if cfg.Verbose && zc.Level.Level() > zapcore.DebugLevel {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return l.Sugar(), nil
}

// Engine returns an analysis engine sharing the logger and metrics of d.
func (d *Deps) Engine() *engine.Engine {
	return engine.New(d.Log, d.Metrics)
}

// RequireStore opens the local run store unless --no-store is set.
func (d *Deps) RequireStore() error {
	if d.Store != nil {
		return nil
	}
	if d.Config.NoStore {
		return fmt.Errorf("the local store is disabled by --no-store")
	}
	s, err := store.Open(d.Config.DBPath)
	if err != nil {
		return err
	}
	d.Store = s
	return nil
}

// Close writes the metrics textfile when configured, closes the store and
// flushes the logger.
func (d *Deps) Close() error {
	var err error
	if d.Config.MetricsFile != "" {
		if werr := d.Metrics.WriteTextfile(d.Config.MetricsFile); werr != nil {
			err = fmt.Errorf("writing metrics: %w", werr)
		}
	}
	if d.Store != nil {
		if cerr := d.Store.Close(); cerr != nil && err == nil {
			err = cerr
		}
		d.Store = nil
	}
	_ = d.Log.Sync()
	return err
}
