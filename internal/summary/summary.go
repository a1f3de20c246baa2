// Package summary answers ad hoc questions about an essentiality matrix and
// its correlations.
package summary

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/nvandessel/depcorr/internal/matrix"
)

// ErrUnknownGene is returned by Lookup for a gene the matrix does not hold.
var ErrUnknownGene = errors.New("unknown gene")

// Order is the sort direction of ColumnMeans.
type Order string

const (
	// Ascending puts the most negative mean, the most essential gene, first.
	Ascending  Order = "asc"
	Descending Order = "desc"
)

// ParseOrder validates an order name. The empty string means Ascending.
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case "", Ascending:
		return Ascending, nil
	case Descending:
		return Descending, nil
	}
	return "", fmt.Errorf("unknown order %q (valid: asc, desc)", s)
}

// Mean is the average score of one gene across cell lines.
type Mean struct {
	Gene  string  `json:"gene"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"` // non-missing observations
}

// ColumnMeans averages each listed column of m, skipping NaN cells.
// Labels that are not columns of m are ignored; an empty list means every
// column. Columns with no observations have a NaN mean and sort last.
func ColumnMeans(m *matrix.Matrix, labels []string, order Order) []Mean {
	if len(labels) == 0 {
		labels = m.ColLabels()
	}
	seen := make(map[string]bool, len(labels))
	out := make([]Mean, 0, len(labels))
	for _, g := range labels {
		col, ok := m.Column(g)
		if !ok || seen[g] {
			continue
		}
		seen[g] = true
		vals := col[:0]
		for _, v := range col {
			if !math.IsNaN(v) {
				vals = append(vals, v)
			}
		}
		mean := math.NaN()
		if len(vals) > 0 {
			mean = stat.Mean(vals, nil)
		}
		out = append(out, Mean{Gene: g, Mean: mean, Count: len(vals)})
	}

	slices.SortStableFunc(out, func(a, b Mean) int {
		an, bn := math.IsNaN(a.Mean), math.IsNaN(b.Mean)
		switch {
		case an && bn:
			return cmp.Compare(a.Gene, b.Gene)
		case an:
			return 1
		case bn:
			return -1
		}
		c := cmp.Compare(a.Mean, b.Mean)
		if order == Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.Gene, b.Gene)
	})
	return out
}

// Lookup returns the correlation between genes a and b.
func Lookup(corr *matrix.Matrix, a, b string) (float64, error) {
	if _, ok := corr.RowIndex(a); !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownGene, a)
	}
	v, ok := corr.Value(a, b)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownGene, b)
	}
	return v, nil
}
