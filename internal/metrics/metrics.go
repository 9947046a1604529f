// Package metrics collects the counters of a run in a private Prometheus
// registry and writes them as a node-exporter textfile when the run ends.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "composite"

// Metrics holds the counters, histograms and gauges of one run.
type Metrics struct {
	registry *prometheus.Registry

	StationsProcessed prometheus.Counter
	TablesBuilt       *prometheus.CounterVec // labels: lag
	PairsCollected    prometheus.Counter
	ZeroColumns       *prometheus.CounterVec // labels: block={below,normal,above}
	Forecasts         prometheus.Counter

	StationDuration prometheus.Histogram
	RunDuration     prometheus.Gauge
	ProcessYears    prometheus.Gauge
}

// New creates the run metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		StationsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stations_processed_total",
			Help:      "Stations whose contingency tables were built.",
		}),
		TablesBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tables_built_total",
			Help:      "Contingency tables built, by lag.",
		}, []string{"lag"}),
		PairsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_collected_total",
			Help:      "D/I value pairs classified into contingency tables.",
		}),
		ZeroColumns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zero_columns_total",
			Help:      "Contingency columns with no observation, by block.",
		}, []string{"block"}),
		Forecasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecasts_total",
			Help:      "Forecasts blended.",
		}),
		StationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "station_duration_seconds",
			Help:      "Time spent converting and tabulating one station.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last run.",
		}),
		ProcessYears: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_period_years",
			Help:      "Length of the process period of the last run.",
		}),
	}
	m.registry.MustRegister(
		m.StationsProcessed,
		m.TablesBuilt,
		m.PairsCollected,
		m.ZeroColumns,
		m.Forecasts,
		m.StationDuration,
		m.RunDuration,
		m.ProcessYears,
	)
	return m
}

// Registry exposes the registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes every metric to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
