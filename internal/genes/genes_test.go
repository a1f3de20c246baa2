package genes

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nvandessel/depcorr/internal/matrix"
)

func TestIntersect(t *testing.T) {
	m, err := matrix.New([]string{"ACH-1"}, []string{"HMGCR", "SQLE", "TP53"}, []float64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		list        []string
		wantPresent []string
		wantMissing []string
		wantCover   float64
	}{
		{"all present", []string{"TP53", "HMGCR"}, []string{"TP53", "HMGCR"}, []string{}, 1},
		{"some missing", []string{"LSS", "SQLE"}, []string{"SQLE"}, []string{"LSS"}, 0.5},
		{"repeats collapsed", []string{"SQLE", "SQLE"}, []string{"SQLE"}, []string{}, 1},
		{"empty list", nil, []string{}, []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := Intersect(tt.list, m)
			if diff := cmp.Diff(tt.wantPresent, sel.Present); diff != "" {
				t.Errorf("Present mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantMissing, sel.Missing); diff != "" {
				t.Errorf("Missing mismatch (-want +got):\n%s", diff)
			}
			if got := sel.Coverage(); got != tt.wantCover {
				t.Errorf("Coverage() = %v, want %v", got, tt.wantCover)
			}
		})
	}
}

func TestSelection_Subset(t *testing.T) {
	m, err := matrix.New([]string{"ACH-1", "ACH-2"}, []string{"A", "B", "C"}, []float64{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatal(err)
	}
	sub := Intersect([]string{"C", "X", "A"}, m).Subset(m)

	if diff := cmp.Diff([]string{"C", "A"}, sub.ColLabels()); diff != "" {
		t.Errorf("ColLabels() mismatch (-want +got):\n%s", diff)
	}
	if v, _ := sub.Value("ACH-2", "C"); v != 6 {
		t.Errorf("Value(ACH-2, C) = %v, want 6", v)
	}
}
