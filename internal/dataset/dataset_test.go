package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const ceres = `gene,ACH-000001,ACH-000002,ACH-000003
TP53 (7157),-0.10,-0.25,0.05
KRAS (3845),-1.20,-0.90,
MYC (4609),-2.00,NA,-1.75
TP53 (7157),9,9,9
`

func TestReadCSV_GenesAsRows(t *testing.T) {
	opts := ReadOptions{GenesAsRows: true, NormalizeLabels: true, DropDuplicates: true}
	m, err := ReadCSV(strings.NewReader(ceres), opts)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}

	if diff := cmp.Diff([]string{"ACH-000001", "ACH-000002", "ACH-000003"}, m.RowLabels()); diff != "" {
		t.Errorf("RowLabels() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"TP53", "KRAS", "MYC"}, m.ColLabels()); diff != "" {
		t.Errorf("ColLabels() mismatch (-want +got):\n%s", diff)
	}

	if v, _ := m.Value("ACH-000002", "KRAS"); v != -0.90 {
		t.Errorf("Value(ACH-000002, KRAS) = %v, want -0.90", v)
	}
	// first TP53 row wins over the duplicate
	if v, _ := m.Value("ACH-000001", "TP53"); v != -0.10 {
		t.Errorf("Value(ACH-000001, TP53) = %v, want -0.10", v)
	}
	for _, cell := range [][2]string{{"ACH-000003", "KRAS"}, {"ACH-000002", "MYC"}} {
		if v, _ := m.Value(cell[0], cell[1]); !math.IsNaN(v) {
			t.Errorf("Value(%s, %s) = %v, want NaN", cell[0], cell[1], v)
		}
	}
}

func TestReadCSV_CellLinesAsRows(t *testing.T) {
	in := "DepMap_ID,A (1),B (2)\nACH-1,1,2\nACH-2,3,4\n"
	m, err := ReadCSV(strings.NewReader(in), ReadOptions{NormalizeLabels: true})
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if diff := cmp.Diff([]string{"ACH-1", "ACH-2"}, m.RowLabels()); diff != "" {
		t.Errorf("RowLabels() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"A", "B"}, m.ColLabels()); diff != "" {
		t.Errorf("ColLabels() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSV_DropNaN(t *testing.T) {
	m, err := ReadCSV(strings.NewReader(ceres), ReadOptions{GenesAsRows: true, NormalizeLabels: true, DropDuplicates: true, DropNaN: true})
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if diff := cmp.Diff([]string{"TP53"}, m.ColLabels()); diff != "" {
		t.Errorf("ColLabels() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSV_Tab(t *testing.T) {
	in := "gene\tc1\tc2\nA\t1\t2\n"
	m, err := ReadCSV(strings.NewReader(in), ReadOptions{Comma: '\t', GenesAsRows: true})
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if r, c := m.Dims(); r != 2 || c != 1 {
		t.Errorf("Dims() = %d, %d, want 2, 1", r, c)
	}
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantLine   int
		wantColumn int
		wantEmpty  bool
	}{
		{name: "empty", input: "", wantEmpty: true},
		{name: "ragged row", input: "g,c1,c2\nA,1,2\nB,1\n", wantLine: 3},
		{name: "non-numeric", input: "g,c1,c2\nA,1,abc\n", wantLine: 2, wantColumn: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input), ReadOptions{})
			if err == nil {
				t.Fatal("ReadCSV() error = nil, want error")
			}
			if tt.wantEmpty {
				if !errors.Is(err, ErrEmptyInput) {
					t.Errorf("ReadCSV() error = %v, want ErrEmptyInput", err)
				}
				return
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("ReadCSV() error = %T %v, want *ParseError", err, err)
			}
			if pe.Line != tt.wantLine {
				t.Errorf("ParseError.Line = %d, want %d", pe.Line, tt.wantLine)
			}
			if tt.wantColumn != 0 && pe.Column != tt.wantColumn {
				t.Errorf("ParseError.Column = %d, want %d", pe.Column, tt.wantColumn)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "effect.tsv")
	content := "gene\tc1\tc2\tc3\nA\t1\t2\t3\nB\t3\t2\t1\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	m, src, err := LoadFile(path, ReadOptions{GenesAsRows: true})
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if diff := cmp.Diff([]string{"A", "B"}, m.ColLabels()); diff != "" {
		t.Errorf("ColLabels() mismatch (-want +got):\n%s", diff)
	}

	sum := sha256.Sum256([]byte(content))
	if src.SHA256 != hex.EncodeToString(sum[:]) {
		t.Errorf("Source.SHA256 = %s, want %s", src.SHA256, hex.EncodeToString(sum[:]))
	}
	if src.Size != int64(len(content)) {
		t.Errorf("Source.Size = %d, want %d", src.Size, len(content))
	}
	if !filepath.IsAbs(src.Path) {
		t.Errorf("Source.Path = %q, want absolute", src.Path)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, _, err := LoadFile(filepath.Join(t.TempDir(), "nope.csv"), ReadOptions{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadFile() error = %v, want os.ErrNotExist", err)
	}
}

func TestDelimiterFor(t *testing.T) {
	tests := []struct {
		path string
		want rune
	}{
		{"a.csv", ','},
		{"a.TSV", '\t'},
		{"a.tab", '\t'},
		{"a", ','},
	}
	for _, tt := range tests {
		if got := DelimiterFor(tt.path); got != tt.want {
			t.Errorf("DelimiterFor(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestReadGeneList(t *testing.T) {
	in := "# cholesterol biosynthesis\nHMGCR\n\n  SQLE  \nHMGCR\nLSS\n"
	got, err := ReadGeneList(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadGeneList() error = %v", err)
	}
	if diff := cmp.Diff([]string{"HMGCR", "SQLE", "LSS"}, got); diff != "" {
		t.Errorf("ReadGeneList() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadGeneList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genes.txt")
	if err := os.WriteFile(path, []byte("A\nB\n"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := LoadGeneList(path)
	if err != nil {
		t.Fatalf("LoadGeneList() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("LoadGeneList() = %v, want 2 genes", got)
	}
}
