package threshold

import "github.com/derickschaefer/composite/internal/model"

// builtin holds the default specification of each internal type for 3 and
// 7 categories.
type builtin struct {
	three Spec
	seven Spec
}

var (
	percentileTerciles = builtin{
		three: Spec{Strategy: StrategyPercentile, Params: []float64{33, 66}},
		seven: Spec{Strategy: StrategyPercentile, Params: []float64{11, 22, 33, 66, 77, 88}},
	}
	sdBands = builtin{
		three: Spec{Strategy: StrategySD, Params: []float64{-1, 1}},
		seven: Spec{Strategy: StrategySD, Params: []float64{-2, -1.5, -1, 1, 1.5, 2}},
	}
	halfDegree = builtin{
		three: Spec{Strategy: StrategyValues, Params: []float64{-0.5, 0.5}},
		seven: Spec{Strategy: StrategyValues, Params: []float64{-1.5, -1, -0.5, 0.5, 1, 1.5}},
	}
)

var builtins = map[string]builtin{
	// station variables
	"PPT":    percentileTerciles,
	"NDPPT":  percentileTerciles,
	"NRAIN":  percentileTerciles,
	"RUNOFF": percentileTerciles,
	"RH":     percentileTerciles,
	"TMAX":   sdBands,
	"TMIN":   sdBands,
	"TEMP":   sdBands,

	// climate indices
	"ONI":  halfDegree,
	"ONI1": halfDegree,
	"ONI2": halfDegree,
	"MEI":  halfDegree,
	"PDO":  halfDegree,
	"AMO":  halfDegree,
	"NAO":  halfDegree,
	"AO":   halfDegree,
	"AAO":  halfDegree,
	"SOI": {
		three: Spec{Strategy: StrategyValues, Params: []float64{-7, 7}},
		seven: Spec{Strategy: StrategyValues, Params: []float64{-20, -14, -7, 7, 14, 20}},
	},
}

// DefaultSpec returns the built-in specification of typeSeries for n categories.
func DefaultSpec(typeSeries string, n model.CategoryCount) (Spec, bool) {
	b, ok := builtins[typeSeries]
	if !ok {
		return Spec{}, false
	}
	if n == model.SevenCategories {
		return b.seven, true
	}
	return b.three, true
}

// analogPercentiles are the cut points used with an analog year.
func analogPercentiles(n model.CategoryCount) Spec {
	if n == model.SevenCategories {
		return percentileTerciles.seven
	}
	return percentileTerciles.three
}

// medianRelative lists the types whose literal thresholds are offsets from
// the median.
var medianRelative = map[string]bool{"TMIN": true, "TMAX": true, "TEMP": true}
