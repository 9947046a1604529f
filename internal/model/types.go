// Package model defines the canonical data types used throughout composite.
// These types are the single source of truth for stations, series, categories,
// contingency tables and the result envelope that every command returns.
package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ─── Frequency ────────────────────────────────────────────────────────────────

// Frequency is the sampling frequency of a series.
type Frequency string

const (
	Daily       Frequency = "daily"
	FiveDays    Frequency = "5days"
	TenDays     Frequency = "10days"
	FifteenDays Frequency = "15days"
	Monthly     Frequency = "monthly"
	Bimonthly   Frequency = "bimonthly"
	Trimonthly  Frequency = "trimonthly"
)

var frequencyRank = map[Frequency]int{
	Daily:       0,
	FiveDays:    1,
	TenDays:     2,
	FifteenDays: 3,
	Monthly:     4,
	Bimonthly:   5,
	Trimonthly:  6,
}

// ParseFrequency validates a frequency name.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := frequencyRank[f]; !ok {
		return "", fmt.Errorf("unknown frequency %q (use daily, 5days, 10days, 15days, monthly, bimonthly, trimonthly)", s)
	}
	return f, nil
}

// Rank orders frequencies from finest (daily) to coarsest (trimonthly).
func (f Frequency) Rank() int { return frequencyRank[f] }

// IsDayBased reports whether observations are dated by day (daily or N-day buckets).
func (f Frequency) IsDayBased() bool {
	return f == Daily || f == FiveDays || f == TenDays || f == FifteenDays
}

// Months returns the window length in months of a month-based frequency, 0 otherwise.
func (f Frequency) Months() int {
	switch f {
	case Monthly:
		return 1
	case Bimonthly:
		return 2
	case Trimonthly:
		return 3
	}
	return 0
}

// ─── Variables ────────────────────────────────────────────────────────────────

// Kind identifies the role of a variable in the analysis.
type Kind string

const (
	KindD Kind = "D" // dependent, measured at the station
	KindI Kind = "I" // independent, climate index
)

// Mode is the reduction applied when a series is aggregated.
type Mode string

const (
	ModeMean       Mode = "mean"
	ModeAccumulate Mode = "accumulate"
)

// ParseMode validates a reduction mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeMean, ModeAccumulate:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q (use mean or accumulate)", s)
}

// Observation is a single dated value.
type Observation struct {
	Date  time.Time `json:"date"`
	Value Value     `json:"value"`
}

// Variable is a typed, dense time series.
// Obs is ascending with no duplicates; consecutive observations are exactly one
// native step apart (day, bucket or month). Missing data is a null Value.
type Variable struct {
	Kind       Kind
	TypeSeries string
	Frequency  Frequency
	Mode       Mode
	Obs        []Observation
}

// NewVariable validates and densifies raw observations: gaps are filled with
// nulls. N-day observations must be dated on a bucket start (1, 6, 11...).
func NewVariable(kind Kind, typeSeries string, freq Frequency, mode Mode, obs []Observation) (*Variable, error) {
	if len(obs) == 0 {
		return nil, fmt.Errorf("variable %s (%s): no observations", kind, typeSeries)
	}
	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	for i, o := range sorted {
		if i > 0 && o.Date.Equal(sorted[i-1].Date) {
			return nil, fmt.Errorf("variable %s (%s): duplicate date %s",
				kind, typeSeries, o.Date.Format("2006-01-02"))
		}
		if n := bucketDays(freq); n > 0 && !onBucketStart(o.Date.Day(), n) {
			return nil, fmt.Errorf("variable %s (%s): %s is not the start of a %s bucket",
				kind, typeSeries, o.Date.Format("2006-01-02"), freq)
		}
	}

	return &Variable{Kind: kind, TypeSeries: typeSeries, Frequency: freq, Mode: mode, Obs: densify(sorted, freq)}, nil
}

// densify inserts null observations for every missing native step.
func densify(obs []Observation, freq Frequency) []Observation {
	out := make([]Observation, 0, len(obs))
	out = append(out, obs[0])
	for _, o := range obs[1:] {
		next := Step(out[len(out)-1].Date, freq)
		for next.Before(o.Date) {
			out = append(out, Observation{Date: next, Value: Null()})
			next = Step(next, freq)
		}
		out = append(out, o)
	}
	return out
}

// Step returns the next native date after t. N-day buckets start every n days
// from the 1st; the last bucket of a month runs to its end.
func Step(t time.Time, freq Frequency) time.Time {
	if freq == Daily {
		return t.AddDate(0, 0, 1)
	}
	if n := bucketDays(freq); n > 0 {
		if next := t.Day() + n; onBucketStart(next, n) {
			return time.Date(t.Year(), t.Month(), next, 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

func bucketDays(freq Frequency) int {
	switch freq {
	case FiveDays:
		return 5
	case TenDays:
		return 10
	case FifteenDays:
		return 15
	}
	return 0
}

// onBucketStart reports whether day opens an n-day bucket: 1, 1+n, ... up to 31-n.
func onBucketStart(day, n int) bool {
	return (day-1)%n == 0 && day <= 31-n
}

// Start returns the first date of the series.
func (v *Variable) Start() time.Time { return v.Obs[0].Date }

// End returns the last date of the series.
func (v *Variable) End() time.Time { return v.Obs[len(v.Obs)-1].Date }

// Index returns the position of date in the series.
func (v *Variable) Index(date time.Time) (int, bool) {
	i := sort.Search(len(v.Obs), func(i int) bool { return !v.Obs[i].Date.Before(date) })
	if i < len(v.Obs) && v.Obs[i].Date.Equal(date) {
		return i, true
	}
	return 0, false
}

// At returns the value at date, or null when the date is not in the series.
func (v *Variable) At(date time.Time) Value {
	if i, ok := v.Index(date); ok {
		return v.Obs[i].Value
	}
	return Null()
}

// Between returns the observations with from <= date <= to.
func (v *Variable) Between(from, to time.Time) []Observation {
	lo := sort.Search(len(v.Obs), func(i int) bool { return !v.Obs[i].Date.Before(from) })
	hi := sort.Search(len(v.Obs), func(i int) bool { return v.Obs[i].Date.After(to) })
	if lo >= hi {
		return nil
	}
	return v.Obs[lo:hi]
}

// InPeriod returns the observations inside the years of p.
func (v *Variable) InPeriod(p Period) []Observation {
	return v.Between(
		time.Date(p.StartYear, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(p.EndYear, 12, 31, 0, 0, 0, 0, time.UTC),
	)
}

// Values extracts the values of obs.
func Values(obs []Observation) []Value {
	out := make([]Value, len(obs))
	for i, o := range obs {
		out[i] = o.Value
	}
	return out
}

// ─── Period ───────────────────────────────────────────────────────────────────

// Period is an inclusive range of years.
type Period struct {
	StartYear int `json:"start_year" msgpack:"start_year"`
	EndYear   int `json:"end_year" msgpack:"end_year"`
}

// Years returns the number of years covered by p.
func (p Period) Years() int { return p.EndYear - p.StartYear + 1 }

// Contains reports whether q lies inside p.
func (p Period) Contains(q Period) bool {
	return q.StartYear >= p.StartYear && q.EndYear <= p.EndYear
}

func (p Period) String() string { return fmt.Sprintf("%d-%d", p.StartYear, p.EndYear) }

// ParsePeriod parses "YYYY-YYYY".
func ParsePeriod(s string) (Period, error) {
	var p Period
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d-%d", &p.StartYear, &p.EndYear); err != nil {
		return Period{}, fmt.Errorf("invalid period %q: expected YYYY-YYYY", s)
	}
	if p.EndYear < p.StartYear {
		return Period{}, fmt.Errorf("invalid period %q: end year before start year", s)
	}
	return p, nil
}

// PeriodKey identifies one analysis period inside a year: a trimester starting
// at Month (Day == 0), or the N-day bucket starting at Month/Day.
type PeriodKey struct {
	Month int `json:"month" msgpack:"month"`
	Day   int `json:"day,omitempty" msgpack:"day"`
}

var trimesterLetters = "JFMAMJJASOND"

// Label is a short human name: "JFM" for a trimester, "Jan 11" for a bucket.
func (k PeriodKey) Label() string {
	if k.Day == 0 {
		b := make([]byte, 3)
		for i := 0; i < 3; i++ {
			b[i] = trimesterLetters[(k.Month-1+i)%12]
		}
		return string(b)
	}
	return fmt.Sprintf("%s %d", time.Month(k.Month).String()[:3], k.Day)
}

// Slug is a filesystem-safe form of Label.
func (k PeriodKey) Slug() string {
	return strings.ToLower(strings.ReplaceAll(k.Label(), " ", "_"))
}

// TableKey identifies one contingency table of a station.
type TableKey struct {
	Lag    int
	Period PeriodKey
}

// ─── Station ──────────────────────────────────────────────────────────────────

// Station is a measurement point with its D and I series and the tables built
// for it during a run.
type Station struct {
	Code string
	Name string
	Lat  float64
	Lon  float64
	Alt  float64

	D *Variable
	I *Variable

	Period Period
	Tables map[TableKey]*Table

	// ThresholdProblem flags a below/normal/above block that already produced a
	// zero-observation warning, so it is reported once per station.
	ThresholdProblem [3]bool
}

// Table returns the contingency table for lag and period.
func (s *Station) Table(lag int, key PeriodKey) (*Table, bool) {
	t, ok := s.Tables[TableKey{Lag: lag, Period: key}]
	return t, ok
}

// ─── Contingency ──────────────────────────────────────────────────────────────

// Significance holds the association statistics of one table.
// A statistic is null when the sample cannot support it.
type Significance struct {
	Pearson    Value `json:"pearson" msgpack:"pearson"`
	PearsonP   Value `json:"pearson_p" msgpack:"pearson_p"`
	ChiSquare  Value `json:"chi_square" msgpack:"chi_square"`
	ChiSquareP Value `json:"chi_square_p" msgpack:"chi_square_p"`
	DF         int   `json:"df" msgpack:"df"`
}

// Table is a contingency table: Counts[i][d] is the number of years whose I
// value fell in category i and D value in category d. Pct holds the column
// percentages.
type Table struct {
	Lag         int           `json:"lag" msgpack:"lag"`
	Period      PeriodKey     `json:"period" msgpack:"period"`
	Categories  CategoryCount `json:"categories" msgpack:"categories"`
	Counts      [][]int       `json:"counts" msgpack:"counts"`
	Pct         [][]float64   `json:"pct" msgpack:"pct"`
	DThresholds []float64     `json:"d_thresholds" msgpack:"d_thresholds"`
	IThresholds []float64     `json:"i_thresholds" msgpack:"i_thresholds"`
	Pairs       int           `json:"pairs" msgpack:"pairs"`
	Stats       Significance  `json:"stats" msgpack:"stats"`
}

// Forecast is the probability of each D category for one station, lag and
// analysis period, in percent.
type Forecast struct {
	Station    string        `json:"station" msgpack:"station"`
	Lag        int           `json:"lag" msgpack:"lag"`
	Date       time.Time     `json:"date" msgpack:"date"`
	Period     PeriodKey     `json:"period" msgpack:"period"`
	Categories CategoryCount `json:"categories" msgpack:"categories"`
	Mode       string        `json:"mode" msgpack:"mode"`
	Prob       []float64     `json:"prob" msgpack:"prob"`
}

// ─── Command Payloads ─────────────────────────────────────────────────────────

// StationTables is the tables of one station in period order.
type StationTables struct {
	Station string   `json:"station"`
	Tables  []*Table `json:"tables"`
}

// StationThresholds is the cut points computed for one station.
type StationThresholds struct {
	Station string    `json:"station"`
	DType   string    `json:"d_type"`
	IType   string    `json:"i_type"`
	D       []float64 `json:"d"`
	I       []float64 `json:"i"`
}

// PeriodReport describes the resolved data state and periods of a run.
type PeriodReport struct {
	State    string `json:"state"`
	Stations int    `json:"stations"`
	Common   Period `json:"common_period"`
	Process  Period `json:"process_period"`
}

// RunReport summarises a completed run.
type RunReport struct {
	RunID     string     `json:"run_id,omitempty"`
	Name      string     `json:"name"`
	State     string     `json:"state"`
	Period    Period     `json:"process_period"`
	Interval  string     `json:"analysis_interval"`
	Lags      []int      `json:"lags"`
	Stations  int        `json:"stations"`
	Tables    int        `json:"tables"`
	Forecasts []Forecast `json:"forecasts,omitempty"`
	Files     []string   `json:"files,omitempty"`
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries timing metadata for a command result.
type ResultStats struct {
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every command.
// The Data field holds the typed payload; Kind identifies what is in it.
// Renderers switch on Kind to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindTables     = "tables"
	KindThresholds = "thresholds"
	KindForecast   = "forecast"
	KindSeries     = "series"
	KindPeriod     = "period"
	KindRuns       = "runs"
	KindRun        = "run"
	KindStoreStats = "store_stats"
	KindSummary    = "summary"
)
