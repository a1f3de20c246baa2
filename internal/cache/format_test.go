package cache

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/nvandessel/depcorr/internal/matrix"
)

func TestEncodeDecode(t *testing.T) {
	m := testMatrix(t)
	var buf bytes.Buffer
	h, err := Encode(&buf, Header{Key: "corr-x", Kind: KindCorrelation, SourceSHA256: "abc"}, m)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !strings.HasPrefix(h.Checksum, "sha256:") {
		t.Errorf("Checksum = %q, want sha256: prefix", h.Checksum)
	}

	hdr, err := ReadHeader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadHeader() error = %v", err)
	}
	if hdr.Key != "corr-x" || hdr.Genes != 3 {
		t.Errorf("ReadHeader() = %+v", hdr)
	}

	got, _, err := Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !got.Equal(m, 1e-12) {
		t.Errorf("Decode() matrix differs")
	}
}

func TestEncodeDecode_Empty(t *testing.T) {
	m, err := matrix.New(nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := Encode(&buf, Header{Key: "corr-e", Kind: KindCorrelation}, m); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, _, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if r, c := got.Dims(); r != 0 || c != 0 {
		t.Errorf("Dims() = %d, %d, want 0, 0", r, c)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "not json", input: "hello\n"},
		{name: "future version", input: `{"version":99}` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Decode(strings.NewReader(tt.input)); err == nil {
				t.Error("Decode() error = nil, want error")
			}
		})
	}
}

func TestDecode_KindMismatch(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Encode(&buf, Header{Key: "corr-x", Kind: KindCorrelation}, testMatrix(t)); err != nil {
		t.Fatal(err)
	}
	// rewrite the header kind; the checksum only covers the payload
	line, rest, _ := bytes.Cut(buf.Bytes(), []byte("\n"))
	line = bytes.Replace(line, []byte(`"kind":"corr"`), []byte(`"kind":"zscore"`), 1)
	tampered := append(append(line, '\n'), rest...)

	_, _, err := Decode(bytes.NewReader(tampered))
	if err == nil || errors.Is(err, ErrChecksum) {
		t.Errorf("Decode() error = %v, want kind mismatch", err)
	}
}

func TestVerifyChecksum(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Encode(&buf, Header{Key: "corr-x", Kind: KindCorrelation}, testMatrix(t)); err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyChecksum(bytes.NewReader(buf.Bytes())); err != nil {
		t.Errorf("VerifyChecksum() error = %v", err)
	}

	b := bytes.Clone(buf.Bytes())
	b[len(b)-1] ^= 0x01
	if _, err := VerifyChecksum(bytes.NewReader(b)); !errors.Is(err, ErrChecksum) {
		t.Errorf("VerifyChecksum(tampered) error = %v, want ErrChecksum", err)
	}
}
