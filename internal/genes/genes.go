// Package genes intersects curated gene allow-lists with a matrix.
package genes

import "github.com/nvandessel/depcorr/internal/matrix"

// Selection splits an allow-list into genes that are columns of a matrix
// and genes that are not. Both keep the order of the list.
type Selection struct {
	Present []string `json:"present"`
	Missing []string `json:"missing"`
}

// Intersect checks every listed gene against the columns of m.
func Intersect(list []string, m *matrix.Matrix) Selection {
	sel := Selection{Present: []string{}, Missing: []string{}}
	seen := make(map[string]bool, len(list))
	for _, g := range list {
		if seen[g] {
			continue
		}
		seen[g] = true
		if _, ok := m.ColIndex(g); ok {
			sel.Present = append(sel.Present, g)
		} else {
			sel.Missing = append(sel.Missing, g)
		}
	}
	return sel
}

// Subset restricts m to the present genes of sel.
func (s Selection) Subset(m *matrix.Matrix) *matrix.Matrix {
	return m.SelectColumns(s.Present)
}

// Coverage is the fraction of listed genes found in the matrix.
func (s Selection) Coverage() float64 {
	total := len(s.Present) + len(s.Missing)
	if total == 0 {
		return 0
	}
	return float64(len(s.Present)) / float64(total)
}
