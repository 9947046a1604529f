// Package contingency builds the contingency tables relating the categories
// of the independent variable to those of the dependent variable, and derives
// the percentages, significance statistics and map index from them.
package contingency

import (
	"errors"
	"fmt"
	"time"

	"github.com/derickschaefer/composite/internal/interval"
	"github.com/derickschaefer/composite/internal/model"
	"github.com/derickschaefer/composite/internal/threshold"
)

var ErrCategoryMismatch = errors.New("D and I thresholds have different category counts")

// Pair is one year's D value with the lagged I value it is compared against.
type Pair struct {
	Year int
	D    float64
	I    float64
}

// Rule carries the normal-band inclusivity of each variable.
type Rule struct {
	DExclusive bool
	IExclusive bool
}

// RuleFor returns the classification rule for a D and an I type.
func RuleFor(dType, iType string) Rule {
	return Rule{DExclusive: threshold.ExclusiveNormal(dType), IExclusive: threshold.ExclusiveNormal(iType)}
}

// ─── Pairing ──────────────────────────────────────────────────────────────────

// Collect pairs the D value of period key in every year of p with the I value
// lag periods earlier. Both variables must already be at the analysis
// frequency of g, so each bucket holds a single observation. Years where
// either value is null are skipped.
func Collect(d, i *model.Variable, g interval.Granularity, key model.PeriodKey, lag int, p model.Period) []Pair {
	day := key.Day
	if day == 0 {
		day = 1
	}
	month := time.Month(key.Month)
	var out []Pair
	for y := p.StartYear; y <= p.EndYear; y++ {
		dv, ok := single(interval.ValuesInBucket(d, g, y, month, day))
		if !ok {
			continue
		}
		iv, ok := single(interval.LaggedValuesInBucket(i, g, y, month, day, lag))
		if !ok {
			continue
		}
		out = append(out, Pair{Year: y, D: dv, I: iv})
	}
	return out
}

func single(vals []model.Value) (float64, bool) {
	if len(vals) != 1 {
		return 0, false
	}
	return vals[0].Float()
}

// ─── Build ────────────────────────────────────────────────────────────────────

// Build classifies every pair and returns the table of counts[I][D] with its
// percentages and significance statistics. The blocks whose I categories
// hold no observation are returned so the caller can warn about them.
func Build(pairs []Pair, dSet, iSet threshold.Set, rule Rule) (*model.Table, []model.Block, error) {
	n := dSet.Count()
	if iSet.Count() != n {
		return nil, nil, fmt.Errorf("build table: D has %d, I has %d categories: %w", n, iSet.Count(), ErrCategoryMismatch)
	}
	counts := newCounts(int(n))
	for _, p := range pairs {
		ic := threshold.Classify(iSet, p.I, rule.IExclusive)
		dc := threshold.Classify(dSet, p.D, rule.DExclusive)
		counts[ic][dc]++
	}
	pct, zero := Percentages(counts, n)
	t := &model.Table{
		Categories:  n,
		Counts:      counts,
		Pct:         pct,
		DThresholds: dSet.Cuts(),
		IThresholds: iSet.Cuts(),
		Pairs:       len(pairs),
		Stats:       Significance(pairs, counts),
	}
	return t, zero, nil
}

func newCounts(n int) [][]int {
	c := make([][]int, n)
	for i := range c {
		c[i] = make([]int, n)
	}
	return c
}

// ─── Percentages ──────────────────────────────────────────────────────────────

// Percentages divides each I category's counts by its total. With seven
// categories the below and above sub-categories share their block total.
// An empty total yields 0% and its block is reported once.
func Percentages(counts [][]int, n model.CategoryCount) ([][]float64, []model.Block) {
	blockTotal := map[model.Block]int{}
	for i, row := range counts {
		blockTotal[n.Block(model.Category(i))] += rowSum(row)
	}

	pct := make([][]float64, len(counts))
	var zero []model.Block
	seen := map[model.Block]bool{}
	for i, row := range counts {
		pct[i] = make([]float64, len(row))
		b := n.Block(model.Category(i))
		total := rowSum(row)
		if n == model.SevenCategories && b != model.BlockNormal {
			total = blockTotal[b]
		}
		if total == 0 {
			if !seen[b] {
				seen[b] = true
				zero = append(zero, b)
			}
			continue
		}
		for d, c := range row {
			pct[i][d] = float64(c) / float64(total) * 100
		}
	}
	return pct, zero
}

func rowSum(row []int) int {
	s := 0
	for _, c := range row {
		s += c
	}
	return s
}

// ─── Restricted mode ──────────────────────────────────────────────────────────

// Selection names the three I sub-categories a 3×7 forecast uses: one below
// sub-category, normal, and one above sub-category.
type Selection struct {
	Below model.Category
	Above model.Category
}

// Categories returns the selected I categories in ascending order.
func (s Selection) Categories() [3]model.Category {
	return [3]model.Category{s.Below, model.SevenCategories.Normal(), s.Above}
}

// Validate checks that the selection picks a below and an above sub-category.
func (s Selection) Validate() error {
	n := model.SevenCategories
	if n.Block(s.Below) != model.BlockBelow || int(s.Below) < 0 {
		return fmt.Errorf("restricted selection: %d is not a below sub-category", s.Below)
	}
	if n.Block(s.Above) != model.BlockAbove || int(s.Above) >= int(n) {
		return fmt.Errorf("restricted selection: %d is not an above sub-category", s.Above)
	}
	return nil
}

// Restrict recomputes the percentages of a 7-category table over only the
// three selected I sub-categories, each divided by its own total. Row k of
// the result belongs to the k-th selected category.
func Restrict(t *model.Table, sel Selection) ([][]float64, []model.Block, error) {
	if t.Categories != model.SevenCategories {
		return nil, nil, fmt.Errorf("restrict: table has %d categories, need 7", t.Categories)
	}
	if err := sel.Validate(); err != nil {
		return nil, nil, err
	}
	out := make([][]float64, 3)
	var zero []model.Block
	for k, c := range sel.Categories() {
		row := t.Counts[c]
		out[k] = make([]float64, len(row))
		total := rowSum(row)
		if total == 0 {
			zero = append(zero, t.Categories.Block(c))
			continue
		}
		for d, v := range row {
			out[k][d] = float64(v) / float64(total) * 100
		}
	}
	return out, zero, nil
}

// ─── Map index ────────────────────────────────────────────────────────────────

// MapIndex returns, per I category, the signed magnitude of the dominant
// non-normal D block: -below when below wins, +above when above wins, 0 on a tie.
func MapIndex(t *model.Table) []float64 {
	n := t.Categories
	out := make([]float64, len(t.Pct))
	for i, row := range t.Pct {
		var below, above float64
		for d, p := range row {
			switch n.Block(model.Category(d)) {
			case model.BlockBelow:
				below += p
			case model.BlockAbove:
				above += p
			}
		}
		switch {
		case below > above:
			out[i] = -below
		case above > below:
			out[i] = above
		}
	}
	return out
}
