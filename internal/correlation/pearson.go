// Package correlation computes gene-gene Pearson correlation matrices and
// the z-score transforms used to merge correlations from two screens.
package correlation

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/nvandessel/depcorr/internal/matrix"
)

// ErrNoOverlap is returned by Merge when the inputs share no genes.
var ErrNoOverlap = errors.New("correlation matrices share no genes")

// Pearson correlates the columns of m. Rows are observations (cell lines).
//
// Missing values are handled pairwise: each pair of columns is correlated
// over the rows where both are present. A pair with fewer than two shared
// observations, or where either side is constant, is NaN. The diagonal is
// exactly 1 for every column with non-zero variance.
func Pearson(m *matrix.Matrix) (*matrix.Matrix, error) {
	genes := m.ColLabels()
	r, c := m.Dims()
	out := make([]float64, c*c)

	switch {
	case c == 0:
	case r < 2:
		fill(out, math.NaN())
	case !m.HasNaN():
		complete(m.Dense(), out, c)
	default:
		pairwise(m.Dense(), out, r, c)
	}
	return matrix.New(genes, genes, out)
}

func complete(x mat.Matrix, out []float64, c int) {
	var sym mat.SymDense
	stat.CorrelationMatrix(&sym, x, nil)
	for i := 0; i < c; i++ {
		for j := i; j < c; j++ {
			v := sym.At(i, j)
			switch {
			case i != j:
				v = clamp(v)
			case !math.IsNaN(v):
				// constant columns come back as NaN from 0/0
				v = 1
			}
			out[i*c+j] = v
			out[j*c+i] = v
		}
	}
}

func pairwise(x mat.Matrix, out []float64, r, c int) {
	cols := make([][]float64, c)
	for j := range cols {
		cols[j] = mat.Col(nil, j, x)
	}
	xs := make([]float64, 0, r)
	ys := make([]float64, 0, r)

	for i := 0; i < c; i++ {
		for j := i; j < c; j++ {
			xs, ys = xs[:0], ys[:0]
			for k := 0; k < r; k++ {
				a, b := cols[i][k], cols[j][k]
				if math.IsNaN(a) || math.IsNaN(b) {
					continue
				}
				xs = append(xs, a)
				ys = append(ys, b)
			}
			v := math.NaN()
			if len(xs) >= 2 && varies(xs) && varies(ys) {
				if i == j {
					v = 1
				} else {
					v = clamp(stat.Correlation(xs, ys, nil))
				}
			}
			out[i*c+j] = v
			out[j*c+i] = v
		}
	}
}

func varies(x []float64) bool {
	for _, v := range x[1:] {
		if v != x[0] {
			return true
		}
	}
	return false
}

// clamp trims rounding drift outside [-1, 1].
func clamp(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}

func fill(s []float64, v float64) {
	for i := range s {
		s[i] = v
	}
}

// SampleSizes counts, for every pair of columns, the rows where both are
// present.
func SampleSizes(m *matrix.Matrix) *matrix.Matrix {
	genes := m.ColLabels()
	r, c := m.Dims()
	out := make([]float64, c*c)
	if r > 0 && c > 0 {
		present := mat.NewDense(r, c, nil)
		x := m.Dense()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if !math.IsNaN(x.At(i, j)) {
					present.Set(i, j, 1)
				}
			}
		}
		var n mat.Dense
		n.Mul(present.T(), present)
		copy(out, n.RawMatrix().Data)
	}
	res, _ := matrix.New(genes, genes, out)
	return res
}

// RemoveSelf replaces the diagonal of a square correlation matrix with NaN.
func RemoveSelf(m *matrix.Matrix) *matrix.Matrix {
	rows, cols := m.RowLabels(), m.ColLabels()
	r, c := m.Dims()
	out := make([]float64, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out[i*c+j] = m.At(i, j)
		}
	}
	for i := 0; i < r && i < c; i++ {
		if rows[i] == cols[i] {
			out[i*c+i] = math.NaN()
		}
	}
	res, _ := matrix.New(rows, cols, out)
	return res
}
