package correlation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/nvandessel/depcorr/internal/matrix"
)

// ZMethod selects how correlations are turned into z-scores.
type ZMethod string

const (
	// ZStandard is (r - mean) / sd over the finite off-diagonal values.
	ZStandard ZMethod = "standard"
	// ZStudentT converts r to a t statistic with n-2 degrees of freedom.
	ZStudentT ZMethod = "t"
	// ZBeta uses the exact null distribution of r, a Beta(n/2-1, n/2-1)
	// on [-1, 1].
	ZBeta ZMethod = "beta"
)

// ParseZMethod validates a method name.
func ParseZMethod(s string) (ZMethod, error) {
	switch m := ZMethod(s); m {
	case ZStandard, ZStudentT, ZBeta:
		return m, nil
	}
	return "", fmt.Errorf("unknown z-score method %q (valid: standard, t, beta)", s)
}

// MergeMethod selects how two z-score matrices are combined.
type MergeMethod string

const (
	MergeAverage  MergeMethod = "average"
	MergeStouffer MergeMethod = "stouffer"
)

// ParseMergeMethod validates a method name.
func ParseMergeMethod(s string) (MergeMethod, error) {
	switch m := MergeMethod(s); m {
	case MergeAverage, MergeStouffer:
		return m, nil
	}
	return "", fmt.Errorf("unknown merge method %q (valid: average, stouffer)", s)
}

// ZScores converts a correlation matrix to z-scores. n holds the pairwise
// sample sizes (see SampleSizes) and is only read by the t and beta
// methods; it may be nil for ZStandard.
func ZScores(corr, n *matrix.Matrix, method ZMethod) (*matrix.Matrix, error) {
	genes := corr.ColLabels()
	r, c := corr.Dims()
	if r != c {
		return nil, fmt.Errorf("z-scores need a square matrix, got %dx%d", r, c)
	}

	out := make([]float64, r*c)
	switch method {
	case ZStandard:
		var finite []float64
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if v := corr.At(i, j); i != j && !math.IsNaN(v) && !math.IsInf(v, 0) {
					finite = append(finite, v)
				}
			}
		}
		if len(finite) == 0 {
			return nil, fmt.Errorf("no finite correlations to standardize")
		}
		mean, sd := stat.PopMeanStdDev(finite, nil)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				out[i*c+j] = (corr.At(i, j) - mean) / sd
			}
		}

	case ZStudentT, ZBeta:
		if n == nil {
			return nil, fmt.Errorf("%s z-scores need sample sizes", method)
		}
		for i, a := range genes {
			for j, b := range genes {
				size, ok := n.Value(a, b)
				if !ok {
					return nil, fmt.Errorf("no sample size for %s/%s", a, b)
				}
				out[i*c+j] = pvalueZ(corr.At(i, j), size, method)
			}
		}

	default:
		return nil, fmt.Errorf("unknown z-score method %q", method)
	}

	return matrix.New(genes, genes, out)
}

// pvalueZ maps a correlation to the normal quantile of its one-sided
// p-value under the null of no correlation, signed like r.
func pvalueZ(r, n float64, method ZMethod) float64 {
	if math.IsNaN(r) || n <= 2 {
		return math.NaN()
	}
	abs := math.Abs(r)
	if abs >= 1 {
		return math.Copysign(math.Inf(1), r)
	}

	// log p: p itself underflows for strong r over many cell lines
	var logp float64
	if method == ZStudentT {
		// P(T > t) = I_{nu/(nu+t^2)}(nu/2, 1/2) / 2 with nu/(nu+t^2) = 1 - r^2
		nu := n - 2
		logp = math.Log(0.5) + logRegIncBeta(nu/2, 0.5, (1-abs)*(1+abs))
	} else {
		ab := n/2 - 1
		logp = logRegIncBeta(ab, ab, (1-abs)/2)
	}
	z := normalTailZ(min(logp, math.Log(0.5)))
	if r < 0 {
		return -z
	}
	if r == 0 {
		return 0
	}
	return z
}

// Merge combines two z-score matrices over the genes they share, in the
// gene order of a.
func Merge(a, b *matrix.Matrix, method MergeMethod) (*matrix.Matrix, error) {
	var combine func(x, y float64) float64
	switch method {
	case MergeAverage:
		combine = func(x, y float64) float64 { return (x + y) / 2 }
	case MergeStouffer:
		combine = func(x, y float64) float64 { return (x + y) / math.Sqrt2 }
	default:
		return nil, fmt.Errorf("unknown merge method %q", method)
	}

	var shared []string
	for _, g := range a.ColLabels() {
		if _, ok := b.ColIndex(g); ok {
			if _, ok := a.RowIndex(g); !ok {
				continue
			}
			if _, ok := b.RowIndex(g); !ok {
				continue
			}
			shared = append(shared, g)
		}
	}
	if len(shared) == 0 {
		return nil, ErrNoOverlap
	}

	k := len(shared)
	out := make([]float64, k*k)
	for i, x := range shared {
		for j, y := range shared {
			va, _ := a.Value(x, y)
			vb, _ := b.Value(x, y)
			out[i*k+j] = combine(va, vb)
		}
	}
	return matrix.New(shared, shared, out)
}
