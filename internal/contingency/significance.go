package contingency

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/derickschaefer/composite/internal/model"
)

// Significance returns the Pearson correlation of the paired values with its
// two-sided Student-t p-value, and the chi-square test of independence of
// counts. Statistics the sample cannot support are null.
func Significance(pairs []Pair, counts [][]int) model.Significance {
	var s model.Significance
	s.Pearson, s.PearsonP = pearson(pairs)
	s.ChiSquare, s.ChiSquareP, s.DF = chiSquare(counts)
	return s
}

func pearson(pairs []Pair) (model.Value, model.Value) {
	n := len(pairs)
	if n < 3 {
		return model.Null(), model.Null()
	}
	xs := make([]float64, n)
	ys := make([]float64, n)
	for k, p := range pairs {
		xs[k], ys[k] = p.I, p.D
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return model.Null(), model.Null()
	}
	if 1-r*r <= 0 {
		return model.Some(r), model.Some(0)
	}
	t := r * math.Sqrt(float64(n-2)/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	return model.Some(r), model.Some(2 * (1 - dist.CDF(math.Abs(t))))
}

func chiSquare(counts [][]int) (model.Value, model.Value, int) {
	rows := make([]float64, len(counts))
	var cols []float64
	var total float64
	for i, row := range counts {
		if cols == nil {
			cols = make([]float64, len(row))
		}
		for d, c := range row {
			rows[i] += float64(c)
			cols[d] += float64(c)
			total += float64(c)
		}
	}
	if total == 0 {
		return model.Null(), model.Null(), 0
	}

	var chi float64
	for i, row := range counts {
		for d, c := range row {
			e := rows[i] * cols[d] / total
			if e > 0 {
				diff := float64(c) - e
				chi += diff * diff / e
			}
		}
	}
	df := (nonZero(rows) - 1) * (nonZero(cols) - 1)
	if df <= 0 {
		return model.Some(chi), model.Null(), 0
	}
	dist := distuv.ChiSquared{K: float64(df)}
	return model.Some(chi), model.Some(1 - dist.CDF(chi)), df
}

func nonZero(xs []float64) int {
	n := 0
	for _, x := range xs {
		if x > 0 {
			n++
		}
	}
	return n
}
