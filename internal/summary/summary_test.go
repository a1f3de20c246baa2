package summary

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/nvandessel/depcorr/internal/matrix"
)

func scores(t *testing.T) *matrix.Matrix {
	t.Helper()
	nan := math.NaN()
	m, err := matrix.New(
		[]string{"ACH-1", "ACH-2", "ACH-3"},
		[]string{"RPL3", "TP53", "KRAS", "GONE", "MYC"},
		[]float64{
			-2.0, 0.1, -1.0, nan, -1.0,
			-2.2, 0.3, nan, nan, -1.0,
			-1.8, 0.2, -1.0, nan, -1.0,
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestColumnMeans(t *testing.T) {
	m := scores(t)
	approx := cmpopts.EquateApprox(0, 1e-12)
	nanOK := cmpopts.EquateNaNs()

	tests := []struct {
		name   string
		labels []string
		order  Order
		want   []Mean
	}{
		{
			name:   "ascending with tie",
			labels: []string{"TP53", "MYC", "RPL3", "KRAS"},
			order:  Ascending,
			want: []Mean{
				{Gene: "RPL3", Mean: -2.0, Count: 3},
				{Gene: "KRAS", Mean: -1.0, Count: 2},
				{Gene: "MYC", Mean: -1.0, Count: 3},
				{Gene: "TP53", Mean: 0.2, Count: 3},
			},
		},
		{
			name:   "descending",
			labels: []string{"RPL3", "TP53"},
			order:  Descending,
			want: []Mean{
				{Gene: "TP53", Mean: 0.2, Count: 3},
				{Gene: "RPL3", Mean: -2.0, Count: 3},
			},
		},
		{
			name:   "unknown and repeated labels skipped",
			labels: []string{"NOPE", "TP53", "TP53"},
			order:  Ascending,
			want:   []Mean{{Gene: "TP53", Mean: 0.2, Count: 3}},
		},
		{
			name:   "all missing sorts last",
			labels: []string{"GONE", "TP53"},
			order:  Descending,
			want: []Mean{
				{Gene: "TP53", Mean: 0.2, Count: 3},
				{Gene: "GONE", Mean: math.NaN(), Count: 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ColumnMeans(m, tt.labels, tt.order)
			if diff := cmp.Diff(tt.want, got, approx, nanOK); diff != "" {
				t.Errorf("ColumnMeans() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestColumnMeans_AllColumns(t *testing.T) {
	got := ColumnMeans(scores(t), nil, Ascending)
	if len(got) != 5 {
		t.Fatalf("len(ColumnMeans()) = %d, want 5", len(got))
	}
	if got[0].Gene != "RPL3" || got[4].Gene != "GONE" {
		t.Errorf("ColumnMeans() order = %v", got)
	}
}

func TestLookup(t *testing.T) {
	corr, err := matrix.New([]string{"A", "B"}, []string{"A", "B"}, []float64{1, -0.4, -0.4, 1})
	if err != nil {
		t.Fatal(err)
	}

	v, err := Lookup(corr, "A", "B")
	if err != nil || v != -0.4 {
		t.Errorf("Lookup(A, B) = %v, %v, want -0.4, nil", v, err)
	}

	for _, pair := range [][2]string{{"X", "A"}, {"A", "Y"}} {
		_, err := Lookup(corr, pair[0], pair[1])
		if !errors.Is(err, ErrUnknownGene) {
			t.Errorf("Lookup(%s, %s) error = %v, want ErrUnknownGene", pair[0], pair[1], err)
		}
	}
}

func TestParseOrder(t *testing.T) {
	if o, err := ParseOrder(""); err != nil || o != Ascending {
		t.Errorf("ParseOrder(\"\") = %q, %v", o, err)
	}
	if o, err := ParseOrder("desc"); err != nil || o != Descending {
		t.Errorf("ParseOrder(desc) = %q, %v", o, err)
	}
	if _, err := ParseOrder("up"); err == nil {
		t.Error("ParseOrder(up) should fail")
	}
}
