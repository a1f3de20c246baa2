package pairs

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteTSV writes pairs as tab-separated rows with a header.
func WriteTSV(w io.Writer, ps []Pair) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write([]string{"gene_a", "gene_b", "correlation"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, p := range ps {
		rec := []string{p.GeneA, p.GeneB, strconv.FormatFloat(p.Correlation, 'g', -1, 64)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing pair %s/%s: %w", p.GeneA, p.GeneB, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
