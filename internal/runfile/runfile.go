// Package runfile loads a composite run description from YAML: the analysis
// settings plus the stations and the series files they read.
//
// Relative file paths are resolved against the runfile's directory.
package runfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/derickschaefer/composite/internal/forecast"
	"github.com/derickschaefer/composite/internal/frequency"
	"github.com/derickschaefer/composite/internal/input"
	"github.com/derickschaefer/composite/internal/interval"
	"github.com/derickschaefer/composite/internal/model"
	"github.com/derickschaefer/composite/internal/period"
	"github.com/derickschaefer/composite/internal/runctx"
	"github.com/derickschaefer/composite/internal/threshold"
	"github.com/derickschaefer/composite/internal/util"
)

// ErrInvalid is wrapped by every settings validation failure.
var ErrInvalid = errors.New("invalid runfile")

// Variable configures one side (D or I) of the analysis.
type Variable struct {
	Type      string `yaml:"type"`
	Threshold string `yaml:"threshold"`
	Limits    string `yaml:"limits"`
	Mode      string `yaml:"mode"`
	Frequency string `yaml:"frequency"`
	// File is the series shared by every station that sets none of its own.
	File string `yaml:"file"`
}

// Forecast configures forecast blending.
type Forecast struct {
	Date    string                     `yaml:"date"`
	Weights map[int]map[string]float64 `yaml:"weights"`
}

// Station is one station entry.
type Station struct {
	Code  string  `yaml:"code"`
	Name  string  `yaml:"name"`
	Lat   float64 `yaml:"lat"`
	Lon   float64 `yaml:"lon"`
	Alt   float64 `yaml:"alt"`
	DFile string  `yaml:"d_file"`
	IFile string  `yaml:"i_file"`
}

// File is the on-disk representation of a runfile.
type File struct {
	Name           string    `yaml:"name"`
	Categories     int       `yaml:"categories"`
	Lags           []int     `yaml:"lags"`
	Interval       string    `yaml:"analysis_interval"`
	Period         string    `yaml:"period"`
	AnalogYear     int       `yaml:"analog_year"`
	ConsistentData float64   `yaml:"consistent_data"`
	Dependent      Variable  `yaml:"dependent"`
	Independent    Variable  `yaml:"independent"`
	Forecast       *Forecast `yaml:"forecast"`
	Stations       []Station `yaml:"stations"`
}

// Runfile is a loaded, validated run.
type Runfile struct {
	Path     string
	Name     string
	Settings runctx.Settings
	Stations []*model.Station
}

// Load reads the runfile at path, validates its settings and reads every
// station series.
func Load(path string) (*Runfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading runfile: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	settings, err := f.Settings()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	stations, err := f.LoadStations(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	name := f.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &Runfile{Path: path, Name: name, Settings: settings, Stations: stations}, nil
}

// Parse decodes runfile YAML. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing runfile: %w", err)
	}
	return &f, nil
}

// ─── Settings ─────────────────────────────────────────────────────────────────

// Settings converts f into run settings. Every invalid field is reported.
func (f *File) Settings() (runctx.Settings, error) {
	var errs util.MultiError
	invalid := func(field string, err error) {
		errs.Add(fmt.Errorf("%s: %w: %w", field, ErrInvalid, err))
	}

	s := runctx.Settings{
		Categories:    model.CategoryCount(f.Categories),
		Lags:          f.Lags,
		AnalogYear:    f.AnalogYear,
		NullTolerance: f.ConsistentData,
	}
	if s.Categories == 0 {
		s.Categories = model.ThreeCategories
	}
	if !s.Categories.Valid() {
		invalid("categories", fmt.Errorf("%d (use 3 or 7)", f.Categories))
	}
	if len(s.Lags) == 0 {
		s.Lags = []int{0}
	}
	if s.NullTolerance == 0 {
		s.NullTolerance = period.DefaultNullTolerance
	}

	g, err := interval.Parse(f.Interval)
	if err != nil {
		invalid("analysis_interval", err)
	}
	s.Interval = g

	if f.Period != "" {
		p, err := model.ParsePeriod(f.Period)
		if err != nil {
			invalid("period", err)
		} else {
			s.PeriodOverride = &p
		}
	}

	s.D = variableSettings("dependent", f.Dependent, invalid)
	s.I = variableSettings("independent", f.Independent, invalid)

	if f.Forecast != nil {
		date, w, err := f.Forecast.Parse(s.Categories)
		if err != nil {
			invalid("forecast", err)
		}
		s.ForecastDate, s.Weights = date, w
	}

	if len(f.Stations) == 0 {
		invalid("stations", errors.New("at least one station is required"))
	}
	seen := make(map[string]bool)
	for i, st := range f.Stations {
		field := fmt.Sprintf("stations[%d]", i)
		switch {
		case st.Code == "":
			invalid(field+".code", errors.New("required"))
		case seen[st.Code]:
			invalid(field+".code", fmt.Errorf("duplicate station %q", st.Code))
		}
		seen[st.Code] = true
		if st.DFile == "" {
			invalid(field+".d_file", errors.New("required"))
		}
		if st.IFile == "" && f.Independent.File == "" {
			invalid(field+".i_file", errors.New("required when independent.file is unset"))
		}
	}

	if errs.Err() == nil {
		if err := s.Validate(); err != nil {
			invalid("settings", err)
		}
	}
	if err := errs.Err(); err != nil {
		return runctx.Settings{}, err
	}
	return s, nil
}

func variableSettings(field string, v Variable, invalid func(string, error)) runctx.VariableSettings {
	var vs runctx.VariableSettings
	if v.Type == "" {
		invalid(field+".type", errors.New("required"))
	}
	spec, err := threshold.ParseSpec(v.Threshold)
	if err != nil {
		invalid(field+".threshold", err)
	}
	vs.Threshold = spec

	vs.Limits = v.Limits
	if _, err := threshold.ParseLimits(v.Limits, strings.ToUpper(v.Type)); err != nil {
		invalid(field+".limits", err)
	}

	if v.Mode != "" {
		m, err := model.ParseMode(v.Mode)
		if err != nil {
			invalid(field+".mode", err)
		}
		vs.Mode = m
	}
	if v.Frequency != "" {
		if _, err := model.ParseFrequency(v.Frequency); err != nil {
			invalid(field+".frequency", err)
		}
	}
	return vs
}

// Parse validates the forecast date and weights for n categories.
func (fc *Forecast) Parse(n model.CategoryCount) (time.Time, forecast.Weights, error) {
	date, err := util.ParseDate(fc.Date)
	if err != nil {
		return time.Time{}, nil, err
	}
	w, err := forecast.ParseWeights(fc.Weights, n)
	if err != nil {
		return time.Time{}, nil, err
	}
	return date, w, nil
}

// DecodeForecast decodes a standalone forecast YAML document (date and
// weights) without validating it.
func DecodeForecast(data []byte) (*Forecast, error) {
	var fc Forecast
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("parsing forecast: %w", err)
	}
	return &fc, nil
}

// ParseForecast decodes and validates a standalone forecast document for n
// categories.
func ParseForecast(data []byte, n model.CategoryCount) (time.Time, forecast.Weights, error) {
	fc, err := DecodeForecast(data)
	if err != nil {
		return time.Time{}, nil, err
	}
	return fc.Parse(n)
}

// ─── Stations ─────────────────────────────────────────────────────────────────

// LoadStations reads the D and I series of every station. Relative paths are
// resolved against dir; a shared independent file is read once.
func (f *File) LoadStations(dir string) ([]*model.Station, error) {
	cache := make(map[string][]model.Observation)
	read := func(path string) ([]model.Observation, error) {
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if obs, ok := cache[path]; ok {
			return obs, nil
		}
		obs, err := input.ReadFile(path)
		if err != nil {
			return nil, err
		}
		cache[path] = obs
		return obs, nil
	}

	out := make([]*model.Station, 0, len(f.Stations))
	for _, sc := range f.Stations {
		st := &model.Station{Code: sc.Code, Name: sc.Name, Lat: sc.Lat, Lon: sc.Lon, Alt: sc.Alt}

		dObs, err := read(sc.DFile)
		if err != nil {
			return nil, fmt.Errorf("station %s: %w", sc.Code, err)
		}
		if st.D, err = newVariable(model.KindD, f.Dependent, dObs); err != nil {
			return nil, fmt.Errorf("station %s: %w", sc.Code, err)
		}

		iFile := sc.IFile
		if iFile == "" {
			iFile = f.Independent.File
		}
		iObs, err := read(iFile)
		if err != nil {
			return nil, fmt.Errorf("station %s: %w", sc.Code, err)
		}
		if st.I, err = newVariable(model.KindI, f.Independent, iObs); err != nil {
			return nil, fmt.Errorf("station %s: %w", sc.Code, err)
		}
		out = append(out, st)
	}
	return out, nil
}

// newVariable builds a variable with the declared or inferred frequency and
// the configured or type-default reduction mode.
func newVariable(kind model.Kind, v Variable, obs []model.Observation) (*model.Variable, error) {
	freq := input.InferFrequency(obs)
	if v.Frequency != "" {
		f, err := model.ParseFrequency(v.Frequency)
		if err != nil {
			return nil, err
		}
		freq = f
	}
	typ := strings.ToUpper(v.Type)
	mode := frequency.DefaultMode(typ)
	if v.Mode != "" {
		m, err := model.ParseMode(v.Mode)
		if err != nil {
			return nil, err
		}
		mode = m
	}
	return model.NewVariable(kind, typ, freq, mode, obs)
}
