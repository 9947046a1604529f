// Package engine runs the composite analysis: it fills and converts every
// station's series, resolves the run context once, then computes thresholds,
// contingency tables and forecasts station by station.
package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/derickschaefer/composite/internal/contingency"
	"github.com/derickschaefer/composite/internal/forecast"
	"github.com/derickschaefer/composite/internal/frequency"
	"github.com/derickschaefer/composite/internal/interval"
	"github.com/derickschaefer/composite/internal/metrics"
	"github.com/derickschaefer/composite/internal/model"
	"github.com/derickschaefer/composite/internal/period"
	"github.com/derickschaefer/composite/internal/runctx"
	"github.com/derickschaefer/composite/internal/threshold"
)

// Engine runs the analysis pipeline.
type Engine struct {
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

// New returns an Engine. A nil logger discards output; nil metrics are
// replaced by a private set.
func New(log *zap.SugaredLogger, m *metrics.Metrics) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Engine{log: log, metrics: m}
}

// Thresholds are the cut points computed for one station.
type Thresholds struct {
	Station string        `json:"station" msgpack:"station"`
	D       threshold.Set `json:"-" msgpack:"-"`
	I       threshold.Set `json:"-" msgpack:"-"`
	DCuts   []float64     `json:"d" msgpack:"d"`
	ICuts   []float64     `json:"i" msgpack:"i"`
}

// Report is the outcome of a run.
type Report struct {
	Context    runctx.Context
	Stations   []*model.Station
	Thresholds []Thresholds
	Forecasts  []model.Forecast
	Warnings   []string
}

// ─── Prepare ──────────────────────────────────────────────────────────────────

// Prepare fills the boundary years of every series and builds the run
// context. It establishes the data state and the process period once, before
// any per-station computation.
func (e *Engine) Prepare(settings runctx.Settings, stations []*model.Station) (runctx.Context, error) {
	if err := FillStations(stations); err != nil {
		return runctx.Context{}, err
	}

	rc, err := runctx.New(settings, stations)
	if err != nil {
		return runctx.Context{}, err
	}
	for _, st := range stations {
		if err := period.CheckNulls(st, rc.Period(), settings.NullTolerance); err != nil {
			return runctx.Context{}, err
		}
		st.Period = rc.Period()
	}
	e.log.Infow("run context resolved",
		"stations", len(stations),
		"state", rc.State().String(),
		"common_period", rc.Common().String(),
		"process_period", rc.Period().String(),
	)

	rc, err = rc.ForAnalysis()
	if err != nil {
		return runctx.Context{}, err
	}
	e.metrics.ProcessYears.Set(float64(rc.Period().Years()))
	return rc, nil
}

// FillStations pads the boundary years of the D and I series of every station
// in place.
func FillStations(stations []*model.Station) error {
	for _, st := range stations {
		for _, v := range []**model.Variable{&st.D, &st.I} {
			filled, err := frequency.FillBoundaryYears(*v)
			if err != nil {
				return fmt.Errorf("station %s: %w", st.Code, err)
			}
			*v = filled
		}
	}
	return nil
}

// ─── Run ──────────────────────────────────────────────────────────────────────

// Run prepares the context and processes every station in order. Any error
// aborts the whole run.
func (e *Engine) Run(ctx context.Context, settings runctx.Settings, stations []*model.Station) (*Report, error) {
	start := time.Now()
	rc, err := e.Prepare(settings, stations)
	if err != nil {
		return nil, err
	}

	rep := &Report{Context: rc, Stations: stations}
	for _, st := range stations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		th, warnings, err := e.ProcessStation(rc, st)
		if err != nil {
			return nil, err
		}
		rep.Thresholds = append(rep.Thresholds, th)
		rep.Warnings = append(rep.Warnings, warnings...)

		if settings.HasForecast() {
			for _, lag := range settings.Weights.Lags() {
				f, err := forecast.Forecast(st, lag, settings.ForecastDate, settings.Weights, rc.Interval())
				if err != nil {
					return nil, err
				}
				e.metrics.Forecasts.Inc()
				rep.Forecasts = append(rep.Forecasts, f)
			}
		}
	}

	e.metrics.RunDuration.Set(time.Since(start).Seconds())
	e.log.Infow("run complete",
		"stations", len(stations),
		"forecasts", len(rep.Forecasts),
		"warnings", len(rep.Warnings),
		"duration", time.Since(start).String(),
	)
	return rep, nil
}

// ProcessStation converts the series of st to the analysis frequency,
// computes its thresholds and builds one table per lag and analysis period.
// Zero-observation blocks are warned about once per station.
func (e *Engine) ProcessStation(rc runctx.Context, st *model.Station) (Thresholds, []string, error) {
	start := time.Now()
	s := rc.Settings()
	target := rc.AnalysisFrequency()

	d, err := convert(st.D, s.D.Mode, target)
	if err != nil {
		return Thresholds{}, nil, fmt.Errorf("station %s: %w", st.Code, err)
	}
	i, err := convert(st.I, s.I.Mode, target)
	if err != nil {
		return Thresholds{}, nil, fmt.Errorf("station %s: %w", st.Code, err)
	}

	dSet, err := e.thresholds(rc, d, s.D)
	if err != nil {
		return Thresholds{}, nil, fmt.Errorf("station %s: %w", st.Code, err)
	}
	iSet, err := e.thresholds(rc, i, s.I)
	if err != nil {
		return Thresholds{}, nil, fmt.Errorf("station %s: %w", st.Code, err)
	}

	rule := contingency.RuleFor(d.TypeSeries, i.TypeSeries)
	st.Tables = make(map[model.TableKey]*model.Table)
	var warnings []string
	for _, lag := range s.Lags {
		for _, key := range interval.Periods(rc.Interval()) {
			pairs := contingency.Collect(d, i, rc.Interval(), key, lag, rc.Period())
			t, zero, err := contingency.Build(pairs, dSet, iSet, rule)
			if err != nil {
				return Thresholds{}, nil, fmt.Errorf("station %s: lag %d, period %s: %w", st.Code, lag, key.Label(), err)
			}
			t.Lag, t.Period = lag, key
			st.Tables[model.TableKey{Lag: lag, Period: key}] = t

			for _, b := range zero {
				e.metrics.ZeroColumns.WithLabelValues(b.String()).Inc()
				if st.ThresholdProblem[b] {
					continue
				}
				st.ThresholdProblem[b] = true
				msg := fmt.Sprintf("station %s: no %s observations of I (lag %d, period %s); percentages set to 0",
					st.Code, b, lag, key.Label())
				warnings = append(warnings, msg)
				e.log.Warnw("zero observations in contingency column",
					"station", st.Code, "block", b.String(), "lag", lag, "period", key.Label())
			}
			e.metrics.PairsCollected.Add(float64(len(pairs)))
		}
		e.metrics.TablesBuilt.WithLabelValues(strconv.Itoa(lag)).Add(float64(len(interval.Periods(rc.Interval()))))
	}

	e.metrics.StationsProcessed.Inc()
	e.metrics.StationDuration.Observe(time.Since(start).Seconds())
	e.log.Debugw("station processed",
		"station", st.Code,
		"d_thresholds", dSet.Cuts(),
		"i_thresholds", iSet.Cuts(),
		"tables", len(st.Tables),
	)
	return Thresholds{Station: st.Code, D: dSet, I: iSet, DCuts: dSet.Cuts(), ICuts: iSet.Cuts()}, warnings, nil
}

// convert applies the configured reduction mode, or the type default, and
// converts v to target.
func convert(v *model.Variable, mode model.Mode, target model.Frequency) (*model.Variable, error) {
	if mode == "" {
		mode = frequency.DefaultMode(v.TypeSeries)
	}
	src := *v
	src.Mode = mode
	return frequency.Convert(&src, target)
}

// thresholds computes the cut points of v over the process period.
func (e *Engine) thresholds(rc runctx.Context, v *model.Variable, vs runctx.VariableSettings) (threshold.Set, error) {
	s := rc.Settings()
	limits, err := threshold.ParseLimits(vs.Limits, v.TypeSeries)
	if err != nil {
		return nil, fmt.Errorf("%s limits: %w", v.Kind, err)
	}
	in := threshold.Input{
		Kind:       v.Kind,
		TypeSeries: v.TypeSeries,
		Values:     model.Values(v.InPeriod(rc.Period())),
		Limits:     limits,
	}
	if v.Kind == model.KindD && s.AnalogYear != 0 {
		in.AnalogValues = model.Values(v.InPeriod(model.Period{StartYear: s.AnalogYear, EndYear: s.AnalogYear}))
	}
	return threshold.Compute(vs.Threshold, s.Categories, in)
}
