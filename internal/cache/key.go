package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/nvandessel/depcorr/internal/dataset"
)

// Fingerprint lists every option that changes the cached matrix.
type Fingerprint struct {
	Kind            Kind     `json:"kind"`
	GenesAsRows     bool     `json:"genes_as_rows"`
	NormalizeLabels bool     `json:"normalize_labels"`
	DropDuplicates  bool     `json:"drop_duplicates"`
	DropNaN         bool     `json:"dropna"`
	Sample          int      `json:"sample,omitempty"`
	Seed            uint64   `json:"seed,omitempty"`
	Extra           []string `json:"extra,omitempty"`
}

// Key derives the content address of a matrix computed from source with
// the options in fp. The file path is not part of the key, only its content.
func Key(source dataset.Source, fp Fingerprint) string {
	if fp.Sample <= 0 {
		fp.Sample, fp.Seed = 0, 0
	}
	opts, _ := json.Marshal(fp)

	h := sha256.New()
	h.Write([]byte(source.SHA256))
	h.Write([]byte{0})
	h.Write(opts)
	sum := hex.EncodeToString(h.Sum(nil))

	kind := fp.Kind
	if kind == "" {
		kind = KindCorrelation
	}
	return string(kind) + "-" + sum[:40]
}

// ValidKey reports whether s looks like a key produced by Key.
func ValidKey(s string) bool {
	kind, sum, ok := strings.Cut(s, "-")
	if !ok || kind == "" || len(sum) != 40 {
		return false
	}
	for _, r := range kind {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	_, err := hex.DecodeString(sum)
	return err == nil
}
