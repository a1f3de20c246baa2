package cache

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/depcorr/internal/matrix"
)

// FormatVersion is the version written in every entry header.
const FormatVersion = 1

// MaxDecompressedSize bounds the Arrow payload of one entry (8 GiB, about a
// 30000 x 30000 float64 matrix).
const MaxDecompressedSize = 8 << 30

// MetaKey is the Arrow schema metadata key naming the stored kind.
const MetaKey = "depcorr.key"

// labelField is the first Arrow column, holding the row labels.
const labelField = "gene"

// ErrChecksum reports an entry whose payload does not match its header.
var ErrChecksum = errors.New("checksum mismatch")

// Kind names what an entry holds.
type Kind string

const (
	KindCorrelation Kind = "corr"
	KindZScore      Kind = "zscore"
)

// Header is the plain JSON first line of an entry.
type Header struct {
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	Key          string    `json:"key"`
	Kind         Kind      `json:"kind"`
	Checksum     string    `json:"checksum"`
	Genes        int       `json:"genes"`
	Compressed   bool      `json:"compressed"`
	SourceSHA256 string    `json:"source_sha256,omitempty"`
}

// Encode writes m as one entry: the header line followed by a gzip
// compressed Arrow IPC stream. Checksum, Genes and Compressed are filled
// in from the payload; the returned header is what was written.
func Encode(w io.Writer, h Header, m *matrix.Matrix) (Header, error) {
	var compressed bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&compressed, gzip.BestSpeed)
	if err != nil {
		return Header{}, fmt.Errorf("creating gzip writer: %w", err)
	}
	if err := writeArrow(gzw, h.Kind, m); err != nil {
		return Header{}, err
	}
	if err := gzw.Close(); err != nil {
		return Header{}, fmt.Errorf("closing gzip writer: %w", err)
	}

	_, cols := m.Dims()
	h.Version = FormatVersion
	h.Checksum = checksum(compressed.Bytes())
	h.Genes = cols
	h.Compressed = true

	line, err := json.Marshal(h)
	if err != nil {
		return Header{}, fmt.Errorf("marshaling header: %w", err)
	}
	if _, err := w.Write(append(line, '\n')); err != nil {
		return Header{}, fmt.Errorf("writing header: %w", err)
	}
	if _, err := w.Write(compressed.Bytes()); err != nil {
		return Header{}, fmt.Errorf("writing payload: %w", err)
	}
	return h, nil
}

func writeArrow(w io.Writer, kind Kind, m *matrix.Matrix) error {
	rows, cols := m.RowLabels(), m.ColLabels()

	fields := make([]arrow.Field, 0, len(cols)+1)
	fields = append(fields, arrow.Field{Name: labelField, Type: arrow.BinaryTypes.String})
	for _, g := range cols {
		fields = append(fields, arrow.Field{Name: g, Type: arrow.PrimitiveTypes.Float64})
	}
	md := arrow.NewMetadata([]string{MetaKey}, []string{string(kind)})
	schema := arrow.NewSchema(fields, &md)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()

	b.Field(0).(*array.StringBuilder).AppendValues(rows, nil)
	col := make([]float64, len(rows))
	for j := range cols {
		for i := range rows {
			col[i] = m.At(i, j)
		}
		b.Field(j + 1).(*array.Float64Builder).AppendValues(col, nil)
	}
	rec := b.NewRecord()
	defer rec.Release()

	iw := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(memory.DefaultAllocator))
	if err := iw.Write(rec); err != nil {
		_ = iw.Close()
		return fmt.Errorf("writing arrow record: %w", err)
	}
	if err := iw.Close(); err != nil {
		return fmt.Errorf("closing arrow stream: %w", err)
	}
	return nil
}

// Decode reads an entry, verifies its checksum and rebuilds the matrix.
func Decode(r io.Reader) (*matrix.Matrix, Header, error) {
	br := bufio.NewReader(r)
	h, err := readHeader(br)
	if err != nil {
		return nil, Header{}, err
	}
	payload, err := io.ReadAll(br)
	if err != nil {
		return nil, Header{}, fmt.Errorf("reading payload: %w", err)
	}
	if got := checksum(payload); got != h.Checksum {
		return nil, Header{}, fmt.Errorf("%w: expected %s, got %s", ErrChecksum, h.Checksum, got)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, Header{}, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()
	raw, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, Header{}, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(raw)) > MaxDecompressedSize {
		return nil, Header{}, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", int64(MaxDecompressedSize))
	}

	m, kind, err := readArrow(bytes.NewReader(raw))
	if err != nil {
		return nil, Header{}, err
	}
	if kind != h.Kind {
		return nil, Header{}, fmt.Errorf("payload kind %q does not match header kind %q", kind, h.Kind)
	}
	return m, h, nil
}

func readArrow(r io.Reader) (*matrix.Matrix, Kind, error) {
	rdr, err := ipc.NewReader(r, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, "", fmt.Errorf("opening arrow stream: %w", err)
	}
	defer rdr.Release()

	schema := rdr.Schema()
	md := schema.Metadata()
	idx := md.FindKey(MetaKey)
	if idx < 0 {
		return nil, "", fmt.Errorf("arrow schema has no %s metadata", MetaKey)
	}
	kind := Kind(md.Values()[idx])

	fields := schema.Fields()
	if len(fields) == 0 || fields[0].Name != labelField || fields[0].Type.ID() != arrow.STRING {
		return nil, "", fmt.Errorf("arrow schema must start with a %q string column", labelField)
	}
	cols := make([]string, len(fields)-1)
	for j, f := range fields[1:] {
		if f.Type.ID() != arrow.FLOAT64 {
			return nil, "", fmt.Errorf("column %q is %s, want float64", f.Name, f.Type)
		}
		cols[j] = f.Name
	}

	var rows []string
	values := make([][]float64, len(cols))
	for rdr.Next() {
		rec := rdr.Record()
		labels := rec.Column(0).(*array.String)
		for i := 0; i < labels.Len(); i++ {
			rows = append(rows, labels.Value(i))
		}
		for j := range cols {
			arr := rec.Column(j + 1).(*array.Float64)
			for i := 0; i < arr.Len(); i++ {
				v := arr.Value(i)
				if arr.IsNull(i) {
					v = math.NaN()
				}
				values[j] = append(values[j], v)
			}
		}
	}
	if err := rdr.Err(); err != nil {
		return nil, "", fmt.Errorf("reading arrow stream: %w", err)
	}

	data := make([]float64, len(rows)*len(cols))
	for j, col := range values {
		if len(col) != len(rows) {
			return nil, "", fmt.Errorf("column %q has %d values for %d rows", cols[j], len(col), len(rows))
		}
		for i, v := range col {
			data[i*len(cols)+j] = v
		}
	}
	m, err := matrix.New(rows, cols, data)
	if err != nil {
		return nil, "", err
	}
	return m, kind, nil
}

// ReadHeader reads only the header line.
func ReadHeader(r io.Reader) (Header, error) {
	return readHeader(bufio.NewReader(r))
}

func readHeader(br *bufio.Reader) (Header, error) {
	line, err := br.ReadBytes('\n')
	if err != nil {
		return Header{}, fmt.Errorf("reading header line: %w", err)
	}
	var h Header
	if err := json.Unmarshal(bytes.TrimSpace(line), &h); err != nil {
		return Header{}, fmt.Errorf("parsing header: %w", err)
	}
	if h.Version != FormatVersion {
		return Header{}, fmt.Errorf("unsupported cache format version %d", h.Version)
	}
	return h, nil
}

// VerifyChecksum checks the payload against the header without decoding it.
func VerifyChecksum(r io.Reader) (Header, error) {
	br := bufio.NewReader(r)
	h, err := readHeader(br)
	if err != nil {
		return Header{}, err
	}
	hash := sha256.New()
	if _, err := io.Copy(hash, br); err != nil {
		return Header{}, fmt.Errorf("reading payload: %w", err)
	}
	if got := "sha256:" + hex.EncodeToString(hash.Sum(nil)); got != h.Checksum {
		return h, fmt.Errorf("%w: expected %s, got %s", ErrChecksum, h.Checksum, got)
	}
	return h, nil
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}
