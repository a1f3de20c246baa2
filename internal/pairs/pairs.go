// Package pairs flattens a correlation matrix into ranked gene pairs.
package pairs

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/nvandessel/depcorr/internal/matrix"
)

// DefaultThreshold is the minimum |r| (exclusive) for a pair to be kept.
const DefaultThreshold = 0.5

// ErrNotSquare is returned when the input is not a gene x gene matrix with
// matching row and column labels.
var ErrNotSquare = errors.New("correlation matrix is not square")

// Pair is one off-diagonal entry of a correlation matrix.
type Pair struct {
	GeneA       string  `json:"gene_a"`
	GeneB       string  `json:"gene_b"`
	Correlation float64 `json:"correlation"`
	Magnitude   float64 `json:"magnitude"`
}

// Scope decides how an allow-list restricts pairs.
type Scope string

const (
	// ScopeBoth keeps pairs where both genes are listed.
	ScopeBoth Scope = "both"
	// ScopeEither keeps pairs where at least one gene is listed.
	ScopeEither Scope = "either"
)

// ParseScope validates a scope name. The empty string means ScopeBoth.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeBoth:
		return ScopeBoth, nil
	case ScopeEither:
		return ScopeEither, nil
	}
	return "", fmt.Errorf("unknown gene scope %q (valid: both, either)", s)
}

// Options controls Filter.
type Options struct {
	// Threshold drops pairs with |r| <= Threshold.
	Threshold float64

	// KeepSymmetric emits both (a, b) and (b, a). Otherwise each unordered
	// pair appears once, as (row gene, column gene) from the upper triangle.
	KeepSymmetric bool

	// DropUnit also removes off-diagonal pairs with |r| == 1.
	DropUnit bool

	// Genes, when non-empty, restricts pairs to the allow-list.
	Genes []string
	Scope Scope

	// Limit truncates the sorted result when positive.
	Limit int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, Scope: ScopeBoth}
}

// Filter lists the pairs of corr whose magnitude exceeds the threshold,
// strongest first. Ties are broken by GeneA then GeneB.
func Filter(corr *matrix.Matrix, opts Options) ([]Pair, error) {
	genes := corr.ColLabels()
	r, c := corr.Dims()
	if r != c || !slices.Equal(genes, corr.RowLabels()) {
		return nil, fmt.Errorf("%w: %dx%d", ErrNotSquare, r, c)
	}

	allowed := allowFunc(opts)
	out := []Pair{}
	for i := 0; i < r; i++ {
		start := i + 1
		if opts.KeepSymmetric {
			start = 0
		}
		for j := start; j < c; j++ {
			a, b := genes[i], genes[j]
			if a == b {
				continue
			}
			v := corr.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			mag := math.Abs(v)
			if mag <= opts.Threshold {
				continue
			}
			if opts.DropUnit && mag == 1 {
				continue
			}
			if !allowed(a, b) {
				continue
			}
			out = append(out, Pair{GeneA: a, GeneB: b, Correlation: v, Magnitude: mag})
		}
	}

	Sort(out)
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func allowFunc(opts Options) func(a, b string) bool {
	if len(opts.Genes) == 0 {
		return func(string, string) bool { return true }
	}
	set := make(map[string]bool, len(opts.Genes))
	for _, g := range opts.Genes {
		set[g] = true
	}
	if opts.Scope == ScopeEither {
		return func(a, b string) bool { return set[a] || set[b] }
	}
	return func(a, b string) bool { return set[a] && set[b] }
}

// Sort orders pairs by descending magnitude, then GeneA, then GeneB.
func Sort(ps []Pair) {
	slices.SortStableFunc(ps, func(x, y Pair) int {
		if c := cmp.Compare(y.Magnitude, x.Magnitude); c != 0 {
			return c
		}
		if c := cmp.Compare(x.GeneA, y.GeneA); c != 0 {
			return c
		}
		return cmp.Compare(x.GeneB, y.GeneB)
	})
}

// Subset keeps the pairs allowed by genes under scope, preserving order.
func Subset(ps []Pair, genes []string, scope Scope) []Pair {
	allowed := allowFunc(Options{Genes: genes, Scope: scope})
	out := make([]Pair, 0, len(ps))
	for _, p := range ps {
		if allowed(p.GeneA, p.GeneB) {
			out = append(out, p)
		}
	}
	return out
}
