// Package dataset reads essentiality matrices and gene allow-lists from
// delimited text.
package dataset

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/depcorr/internal/matrix"
	"github.com/nvandessel/depcorr/internal/pathutil"
)

// ErrEmptyInput is returned when the input has no header row.
var ErrEmptyInput = errors.New("empty input")

// ReadOptions controls how a matrix file is interpreted.
type ReadOptions struct {
	// Comma is the field delimiter. Zero means ',' (or '\t' for .tsv files
	// opened with LoadFile).
	Comma rune

	// GenesAsRows marks files laid out genes x cell lines. They are
	// transposed so the result always has cell lines as rows.
	GenesAsRows bool

	// NormalizeLabels reduces "SYMBOL (ID)" gene labels to "SYMBOL".
	NormalizeLabels bool

	// DropDuplicates keeps only the first column for each gene label.
	DropDuplicates bool

	// DropNaN removes genes with any missing value.
	DropNaN bool
}

// DefaultReadOptions matches the layout of the CERES gene effect export.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{
		Comma:          ',',
		GenesAsRows:    true,
		DropDuplicates: true,
	}
}

// ParseError reports a malformed cell or row.
type ParseError struct {
	Line   int // 1-based line in the input
	Column int // 1-based field number, 0 when the whole row is at fault
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == 0 {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d, column %d: %v", e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Source describes the bytes a matrix was read from.
type Source struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// ReadCSV parses a labeled matrix. The first row holds the column labels
// (its first cell is ignored) and the first column holds the row labels.
// The returned matrix has cell lines as rows and genes as columns.
func ReadCSV(r io.Reader, opts ReadOptions) (*matrix.Matrix, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, csvError(err)
	}
	cols := make([]string, 0, len(header))
	for _, h := range header[1:] {
		cols = append(cols, strings.TrimSpace(h))
	}

	var rows []string
	var data []float64
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) != len(header) {
			return nil, &ParseError{
				Line: line,
				Err:  fmt.Errorf("expected %d fields, got %d", len(header), len(rec)),
			}
		}
		rows = append(rows, strings.TrimSpace(rec[0]))
		for j, cell := range rec[1:] {
			v, err := parseCell(cell)
			if err != nil {
				return nil, &ParseError{Line: line, Column: j + 2, Err: err}
			}
			data = append(data, v)
		}
	}

	m, err := matrix.New(rows, cols, data)
	if err != nil {
		return nil, err
	}
	if opts.GenesAsRows {
		m = m.Transpose()
	}
	return prepare(m, opts), nil
}

func prepare(m *matrix.Matrix, opts ReadOptions) *matrix.Matrix {
	if opts.NormalizeLabels {
		m = m.NormalizeLabels()
	}
	if opts.DropDuplicates {
		m = m.DropDuplicateColumns()
	}
	if opts.DropNaN {
		m = m.DropNaNColumns()
	}
	return m
}

func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "NA", "NaN", "nan", "NAN", "N/A":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.Line, Column: pe.Column, Err: pe.Err}
	}
	return fmt.Errorf("reading input: %w", err)
}

// LoadFile reads a matrix from disk and describes the file content.
func LoadFile(path string, opts ReadOptions) (*matrix.Matrix, Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Source{}, fmt.Errorf("opening input %s: %w", pathutil.RedactPath(path), err)
	}
	defer f.Close()

	if opts.Comma == 0 {
		opts.Comma = DelimiterFor(path)
	}

	h := sha256.New()
	counter := &countingReader{r: io.TeeReader(f, h)}
	m, err := ReadCSV(counter, opts)
	if err != nil {
		return nil, Source{}, fmt.Errorf("parsing %s: %w", pathutil.RedactPath(path), err)
	}
	// csv stops at EOF, but drain anything left so the digest covers the file
	if _, err := io.Copy(io.Discard, counter); err != nil {
		return nil, Source{}, fmt.Errorf("hashing %s: %w", pathutil.RedactPath(path), err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return m, Source{
		Path:   abs,
		SHA256: hex.EncodeToString(h.Sum(nil)),
		Size:   counter.n,
	}, nil
}

// DelimiterFor picks the field delimiter implied by a file extension.
func DelimiterFor(path string) rune {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".tab":
		return '\t'
	default:
		return ','
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
