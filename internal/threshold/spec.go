package threshold

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/derickschaefer/composite/internal/model"
)

// Strategy selects how cut points are derived.
type Strategy string

const (
	StrategyDefault    Strategy = "default"
	StrategyPercentile Strategy = "percentile"
	StrategySD         Strategy = "sd"
	StrategyPercentage Strategy = "percentage"
	StrategyValues     Strategy = "values"
)

// Spec is a parsed threshold specification such as "p33 p66", "sd-1 sd1",
// "30% 60%" or "-0.5 0.5".
type Spec struct {
	Strategy Strategy
	Params   []float64
}

func (s Spec) String() string {
	if s.Strategy == StrategyDefault {
		return "default"
	}
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		f := strconv.FormatFloat(p, 'g', -1, 64)
		switch s.Strategy {
		case StrategyPercentile:
			parts[i] = "p" + f
		case StrategySD:
			parts[i] = "sd" + f
		case StrategyPercentage:
			parts[i] = f + "%"
		default:
			parts[i] = f
		}
	}
	return strings.Join(parts, " ")
}

// ParseSpec parses a threshold specification. Tokens are separated by spaces
// or commas and must all use the same strategy with rising parameters.
func ParseSpec(s string) (Spec, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "default") {
		return Spec{Strategy: StrategyDefault}, nil
	}
	tokens := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })

	var spec Spec
	for i, tok := range tokens {
		strategy, raw := classifyToken(tok)
		if i == 0 {
			spec.Strategy = strategy
		} else if strategy != spec.Strategy {
			return Spec{}, fmt.Errorf("threshold %q: mixed strategies %s and %s: %w", s, spec.Strategy, strategy, ErrSpec)
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Spec{}, fmt.Errorf("threshold %q: bad value %q: %w", s, tok, ErrSpec)
		}
		if strategy == StrategyPercentile && (f < 0 || f > 100) {
			return Spec{}, fmt.Errorf("threshold %q: percentile %v outside [0,100]: %w", s, f, ErrSpec)
		}
		if i > 0 && f <= spec.Params[i-1] {
			return Spec{}, fmt.Errorf("threshold %q: values must be rising: %w", s, ErrSpec)
		}
		spec.Params = append(spec.Params, f)
	}
	return spec, nil
}

func classifyToken(tok string) (Strategy, string) {
	lower := strings.ToLower(tok)
	switch {
	case strings.HasPrefix(lower, "sd"):
		return StrategySD, lower[2:]
	case strings.HasPrefix(lower, "p"):
		return StrategyPercentile, lower[1:]
	case strings.HasSuffix(lower, "%"):
		return StrategyPercentage, strings.TrimSuffix(lower, "%")
	}
	return StrategyValues, lower
}

// ─── Physical limits ──────────────────────────────────────────────────────────

// Limits bound the values a cut point may take. A null side is unbounded.
type Limits struct {
	Below model.Value
	Above model.Value
}

// None reports whether neither side is bounded.
func (l Limits) None() bool { return l.Below.IsNull() && l.Above.IsNull() }

func (l Limits) String() string {
	if l.None() {
		return "none"
	}
	return l.Below.String() + " " + l.Above.String()
}

// defaultLimits holds the physical range of the internal types that have one.
var defaultLimits = map[string]Limits{
	"PPT":    {Below: model.Some(0)},
	"NDPPT":  {Below: model.Some(0), Above: model.Some(31)},
	"NRAIN":  {Below: model.Some(0), Above: model.Some(31)},
	"RUNOFF": {Below: model.Some(0)},
	"TMAX":   {Below: model.Some(-60), Above: model.Some(60)},
	"TMIN":   {Below: model.Some(-60), Above: model.Some(60)},
	"TEMP":   {Below: model.Some(-60), Above: model.Some(60)},
	"RH":     {Below: model.Some(0), Above: model.Some(100)},
}

// DefaultLimits returns the physical limits of typeSeries, unbounded when unknown.
func DefaultLimits(typeSeries string) Limits { return defaultLimits[typeSeries] }

// ParseLimits parses "default", "none" or two numbers "below above"; either
// number may be "none" to leave that side unbounded.
func ParseLimits(s, typeSeries string) (Limits, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "default":
		return DefaultLimits(typeSeries), nil
	case "none":
		return Limits{}, nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })
	if len(parts) != 2 {
		return Limits{}, fmt.Errorf("limits %q: expected \"below above\": %w", s, ErrSpec)
	}
	var out [2]model.Value
	for i, p := range parts {
		if strings.EqualFold(p, "none") {
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return Limits{}, fmt.Errorf("limits %q: bad value %q: %w", s, p, ErrSpec)
		}
		out[i] = model.Some(f)
	}
	lim := Limits{Below: out[0], Above: out[1]}
	b, okB := lim.Below.Float()
	a, okA := lim.Above.Float()
	if okB && okA && b >= a {
		return Limits{}, fmt.Errorf("limits %q: below must be less than above: %w", s, ErrSpec)
	}
	return lim, nil
}
