package matrix

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustNew(t *testing.T, rows, cols []string, data []float64) *Matrix {
	t.Helper()
	m, err := New(rows, cols, data)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		rows    []string
		cols    []string
		data    []float64
		wantErr bool
	}{
		{"valid", []string{"r1", "r2"}, []string{"A"}, []float64{1, 2}, false},
		{"empty", nil, nil, nil, false},
		{"rows without columns", []string{"r1"}, nil, nil, false},
		{"too few values", []string{"r1", "r2"}, []string{"A", "B"}, []float64{1, 2, 3}, true},
		{"too many values", []string{"r1"}, []string{"A"}, []float64{1, 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.rows, tt.cols, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_CopiesInput(t *testing.T) {
	rows := []string{"r1"}
	data := []float64{1}
	m := mustNew(t, rows, []string{"A"}, data)
	rows[0] = "changed"
	data[0] = 99

	if got := m.RowLabels()[0]; got != "r1" {
		t.Errorf("RowLabels()[0] = %q, want %q", got, "r1")
	}
	if got := m.At(0, 0); got != 1 {
		t.Errorf("At(0, 0) = %v, want 1", got)
	}
}

func TestTranspose(t *testing.T) {
	m := mustNew(t, []string{"TP53", "KRAS"}, []string{"ACH-1", "ACH-2", "ACH-3"}, []float64{
		1, 2, 3,
		4, 5, 6,
	})
	tr := m.Transpose()

	r, c := tr.Dims()
	if r != 3 || c != 2 {
		t.Fatalf("Dims() = %d, %d, want 3, 2", r, c)
	}
	if diff := cmp.Diff([]string{"ACH-1", "ACH-2", "ACH-3"}, tr.RowLabels()); diff != "" {
		t.Errorf("RowLabels() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"TP53", "KRAS"}, tr.ColLabels()); diff != "" {
		t.Errorf("ColLabels() mismatch (-want +got):\n%s", diff)
	}
	if v, _ := tr.Value("ACH-3", "KRAS"); v != 6 {
		t.Errorf("Value(ACH-3, KRAS) = %v, want 6", v)
	}
	if !tr.Transpose().Equal(m, 0) {
		t.Error("Transpose().Transpose() should equal the original")
	}
}

func TestValue(t *testing.T) {
	m := mustNew(t, []string{"r1"}, []string{"A", "B"}, []float64{0.5, -1})

	tests := []struct {
		name   string
		row    string
		col    string
		want   float64
		wantOK bool
	}{
		{"present", "r1", "B", -1, true},
		{"unknown row", "r2", "A", 0, false},
		{"unknown column", "r1", "C", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Value(tt.row, tt.col)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Value(%q, %q) = %v, %v, want %v, %v", tt.row, tt.col, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestColumn(t *testing.T) {
	m := mustNew(t, []string{"r1", "r2"}, []string{"A", "B"}, []float64{1, 2, 3, 4})

	got, ok := m.Column("B")
	if !ok {
		t.Fatal("Column(B) not found")
	}
	if diff := cmp.Diff([]float64{2, 4}, got); diff != "" {
		t.Errorf("Column(B) mismatch (-want +got):\n%s", diff)
	}
	if _, ok := m.Column("Z"); ok {
		t.Error("Column(Z) should not be found")
	}
}

func TestSelectColumns(t *testing.T) {
	m := mustNew(t, []string{"r1"}, []string{"A", "B", "C"}, []float64{1, 2, 3})

	tests := []struct {
		name     string
		labels   []string
		wantCols []string
		wantVals []float64
	}{
		{"given order", []string{"C", "A"}, []string{"C", "A"}, []float64{3, 1}},
		{"unknown skipped", []string{"X", "B"}, []string{"B"}, []float64{2}},
		{"repeats skipped", []string{"A", "A", "B"}, []string{"A", "B"}, []float64{1, 2}},
		{"none", []string{"X"}, []string{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.SelectColumns(tt.labels)
			if diff := cmp.Diff(tt.wantCols, got.ColLabels()); diff != "" {
				t.Errorf("ColLabels() mismatch (-want +got):\n%s", diff)
			}
			for j, want := range tt.wantVals {
				if v := got.At(0, j); v != want {
					t.Errorf("At(0, %d) = %v, want %v", j, v, want)
				}
			}
		})
	}
}

func TestDropDuplicateColumns(t *testing.T) {
	m := mustNew(t, []string{"r1"}, []string{"A", "B", "A", "C", "B"}, []float64{1, 2, 3, 4, 5})
	got := m.DropDuplicateColumns()

	if diff := cmp.Diff([]string{"A", "B", "C"}, got.ColLabels()); diff != "" {
		t.Errorf("ColLabels() mismatch (-want +got):\n%s", diff)
	}
	if v, _ := got.Value("r1", "A"); v != 1 {
		t.Errorf("Value(r1, A) = %v, want first occurrence 1", v)
	}
	if v, _ := got.Value("r1", "C"); v != 4 {
		t.Errorf("Value(r1, C) = %v, want 4", v)
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"TP53 (7157)", "TP53"},
		{"KRAS", "KRAS"},
		{"  MYC   (4609) ", "MYC"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeLabel(tt.in); got != tt.want {
				t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeLabels_ThenDedup(t *testing.T) {
	m := mustNew(t, []string{"r1"}, []string{"A (1)", "B (2)", "A (3)"}, []float64{1, 2, 3})
	got := m.NormalizeLabels().DropDuplicateColumns()

	if diff := cmp.Diff([]string{"A", "B"}, got.ColLabels()); diff != "" {
		t.Errorf("ColLabels() mismatch (-want +got):\n%s", diff)
	}
	// receiver unchanged
	if m.ColLabels()[0] != "A (1)" {
		t.Errorf("receiver labels modified: %v", m.ColLabels())
	}
}

func TestDropNaNColumns(t *testing.T) {
	nan := math.NaN()
	m := mustNew(t, []string{"r1", "r2"}, []string{"A", "B", "C"}, []float64{
		1, nan, 3,
		4, 5, 6,
	})
	if !m.HasNaN() {
		t.Fatal("HasNaN() = false, want true")
	}

	got := m.DropNaNColumns()
	if diff := cmp.Diff([]string{"A", "C"}, got.ColLabels()); diff != "" {
		t.Errorf("ColLabels() mismatch (-want +got):\n%s", diff)
	}
	if got.HasNaN() {
		t.Error("HasNaN() after DropNaNColumns = true, want false")
	}
}

func TestSampleColumns(t *testing.T) {
	cols := []string{"A", "B", "C", "D", "E", "F"}
	data := []float64{1, 2, 3, 4, 5, 6}
	m := mustNew(t, []string{"r1"}, cols, data)

	t.Run("subset keeps order", func(t *testing.T) {
		got := m.SampleColumns(3, rand.New(rand.NewPCG(1, 2)))
		labels := got.ColLabels()
		if len(labels) != 3 {
			t.Fatalf("len(ColLabels()) = %d, want 3", len(labels))
		}
		last := -1
		for _, l := range labels {
			j, ok := m.ColIndex(l)
			if !ok {
				t.Fatalf("sampled unknown column %q", l)
			}
			if j <= last {
				t.Errorf("columns out of original order: %v", labels)
			}
			last = j
		}
	})

	t.Run("deterministic for a seed", func(t *testing.T) {
		a := m.SampleColumns(2, rand.New(rand.NewPCG(7, 7)))
		b := m.SampleColumns(2, rand.New(rand.NewPCG(7, 7)))
		if !a.Equal(b, 0) {
			t.Errorf("same seed sampled %v and %v", a.ColLabels(), b.ColLabels())
		}
	})

	for _, n := range []int{0, -1, 6, 10} {
		if got := m.SampleColumns(n, rand.New(rand.NewPCG(1, 1))); got != m {
			t.Errorf("SampleColumns(%d) should return the receiver", n)
		}
	}
}

func TestEqual(t *testing.T) {
	nan := math.NaN()
	base := mustNew(t, []string{"r"}, []string{"A", "B"}, []float64{1, nan})

	tests := []struct {
		name  string
		other *Matrix
		tol   float64
		want  bool
	}{
		{"identical", mustNew(t, []string{"r"}, []string{"A", "B"}, []float64{1, nan}), 0, true},
		{"within tolerance", mustNew(t, []string{"r"}, []string{"A", "B"}, []float64{1 + 1e-13, nan}), 1e-12, true},
		{"outside tolerance", mustNew(t, []string{"r"}, []string{"A", "B"}, []float64{1.1, nan}), 1e-12, false},
		{"nan mismatch", mustNew(t, []string{"r"}, []string{"A", "B"}, []float64{1, 2}), 1, false},
		{"label mismatch", mustNew(t, []string{"r"}, []string{"A", "C"}, []float64{1, nan}), 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Equal(tt.other, tt.tol); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}
