// Package matrix provides a labeled dense float64 table backed by gonum.
// Rows and columns carry string labels; missing values are NaN.
package matrix

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Matrix is an immutable labeled table. Operations that reshape the table
// return a new Matrix and leave the receiver untouched.
type Matrix struct {
	rows   []string
	cols   []string
	data   *mat.Dense // nil when either dimension is zero
	rowIdx map[string]int
	colIdx map[string]int
}

// New builds a matrix from row-major data. len(data) must equal
// len(rows)*len(cols). The slices are copied.
func New(rows, cols []string, data []float64) (*Matrix, error) {
	if len(data) != len(rows)*len(cols) {
		return nil, fmt.Errorf("matrix: %d values for %d rows x %d columns", len(data), len(rows), len(cols))
	}
	var d *mat.Dense
	if len(rows) > 0 && len(cols) > 0 {
		d = mat.NewDense(len(rows), len(cols), slices.Clone(data))
	}
	return build(slices.Clone(rows), slices.Clone(cols), d), nil
}

// FromDense wraps a gonum matrix with labels. The values are copied.
func FromDense(rows, cols []string, src mat.Matrix) (*Matrix, error) {
	r, c := src.Dims()
	if r != len(rows) || c != len(cols) {
		return nil, fmt.Errorf("matrix: dense is %dx%d, labels are %dx%d", r, c, len(rows), len(cols))
	}
	var d *mat.Dense
	if r > 0 && c > 0 {
		d = mat.DenseCopyOf(src)
	}
	return build(slices.Clone(rows), slices.Clone(cols), d), nil
}

func build(rows, cols []string, d *mat.Dense) *Matrix {
	return &Matrix{
		rows:   rows,
		cols:   cols,
		data:   d,
		rowIdx: indexOf(rows),
		colIdx: indexOf(cols),
	}
}

// indexOf maps each label to its first position.
func indexOf(labels []string) map[string]int {
	idx := make(map[string]int, len(labels))
	for i, l := range labels {
		if _, ok := idx[l]; !ok {
			idx[l] = i
		}
	}
	return idx
}

// Dims returns the number of rows and columns.
func (m *Matrix) Dims() (int, int) {
	return len(m.rows), len(m.cols)
}

// RowLabels returns a copy of the row labels.
func (m *Matrix) RowLabels() []string { return slices.Clone(m.rows) }

// ColLabels returns a copy of the column labels.
func (m *Matrix) ColLabels() []string { return slices.Clone(m.cols) }

// At returns the value at row i, column j. It panics when out of range.
func (m *Matrix) At(i, j int) float64 {
	if m.data == nil {
		panic(mat.ErrIndexOutOfRange)
	}
	return m.data.At(i, j)
}

// Dense exposes the values as a read-only gonum matrix. It returns nil
// for an empty matrix.
func (m *Matrix) Dense() mat.Matrix {
	if m.data == nil {
		return nil
	}
	return m.data
}

// Value looks a cell up by labels.
func (m *Matrix) Value(row, col string) (float64, bool) {
	i, ok := m.rowIdx[row]
	if !ok {
		return 0, false
	}
	j, ok := m.colIdx[col]
	if !ok {
		return 0, false
	}
	return m.data.At(i, j), true
}

// RowIndex returns the position of the first row with the given label.
func (m *Matrix) RowIndex(label string) (int, bool) {
	i, ok := m.rowIdx[label]
	return i, ok
}

// ColIndex returns the position of the first column with the given label.
func (m *Matrix) ColIndex(label string) (int, bool) {
	j, ok := m.colIdx[label]
	return j, ok
}

// Column returns a copy of the named column.
func (m *Matrix) Column(label string) ([]float64, bool) {
	j, ok := m.colIdx[label]
	if !ok {
		return nil, false
	}
	if m.data == nil {
		return []float64{}, true
	}
	return mat.Col(nil, j, m.data), true
}

// Transpose swaps rows and columns.
func (m *Matrix) Transpose() *Matrix {
	var d *mat.Dense
	if m.data != nil {
		d = mat.DenseCopyOf(m.data.T())
	}
	return build(slices.Clone(m.cols), slices.Clone(m.rows), d)
}

// SelectColumns keeps the listed columns in the given order. Unknown and
// repeated labels are skipped.
func (m *Matrix) SelectColumns(labels []string) *Matrix {
	seen := make(map[string]bool, len(labels))
	idx := make([]int, 0, len(labels))
	for _, l := range labels {
		j, ok := m.colIdx[l]
		if !ok || seen[l] {
			continue
		}
		seen[l] = true
		idx = append(idx, j)
	}
	return m.pickColumns(idx)
}

// DropDuplicateColumns keeps the first occurrence of each column label.
func (m *Matrix) DropDuplicateColumns() *Matrix {
	idx := make([]int, 0, len(m.cols))
	for j, l := range m.cols {
		if m.colIdx[l] == j {
			idx = append(idx, j)
		}
	}
	if len(idx) == len(m.cols) {
		return m
	}
	return m.pickColumns(idx)
}

// NormalizeLabels rewrites column labels of the form "SYMBOL (ID)" to
// "SYMBOL". Labels without whitespace are left alone.
func (m *Matrix) NormalizeLabels() *Matrix {
	cols := make([]string, len(m.cols))
	for j, l := range m.cols {
		cols[j] = NormalizeLabel(l)
	}
	var d *mat.Dense
	if m.data != nil {
		d = mat.DenseCopyOf(m.data)
	}
	return build(slices.Clone(m.rows), cols, d)
}

// NormalizeLabel returns the first whitespace-separated field of label.
func NormalizeLabel(label string) string {
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return label
	}
	return fields[0]
}

// DropNaNColumns removes every column that holds at least one NaN.
func (m *Matrix) DropNaNColumns() *Matrix {
	r, c := m.Dims()
	idx := make([]int, 0, c)
	for j := 0; j < c; j++ {
		clean := true
		for i := 0; i < r; i++ {
			if math.IsNaN(m.data.At(i, j)) {
				clean = false
				break
			}
		}
		if clean {
			idx = append(idx, j)
		}
	}
	if len(idx) == c {
		return m
	}
	return m.pickColumns(idx)
}

// SampleColumns returns n randomly chosen columns in their original order.
// n <= 0 or n >= the column count returns m unchanged.
func (m *Matrix) SampleColumns(n int, rng *rand.Rand) *Matrix {
	_, c := m.Dims()
	if n <= 0 || n >= c {
		return m
	}
	idx := rng.Perm(c)[:n]
	slices.Sort(idx)
	return m.pickColumns(idx)
}

// HasNaN reports whether any cell is NaN.
func (m *Matrix) HasNaN() bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(m.data.At(i, j)) {
				return true
			}
		}
	}
	return false
}

// Equal reports whether both matrices have the same labels and every pair
// of cells differs by at most tol. Two NaN cells are equal.
func (m *Matrix) Equal(other *Matrix, tol float64) bool {
	if other == nil {
		return false
	}
	if !slices.Equal(m.rows, other.rows) || !slices.Equal(m.cols, other.cols) {
		return false
	}
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			a, b := m.data.At(i, j), other.data.At(i, j)
			if math.IsNaN(a) || math.IsNaN(b) {
				if math.IsNaN(a) != math.IsNaN(b) {
					return false
				}
				continue
			}
			if math.Abs(a-b) > tol {
				return false
			}
		}
	}
	return true
}

func (m *Matrix) pickColumns(idx []int) *Matrix {
	r := len(m.rows)
	cols := make([]string, len(idx))
	for k, j := range idx {
		cols[k] = m.cols[j]
	}
	if r == 0 || len(idx) == 0 {
		return build(slices.Clone(m.rows), cols, nil)
	}
	d := mat.NewDense(r, len(idx), nil)
	for k, j := range idx {
		for i := 0; i < r; i++ {
			d.Set(i, k, m.data.At(i, j))
		}
	}
	return build(slices.Clone(m.rows), cols, d)
}
