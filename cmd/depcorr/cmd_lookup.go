package main

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/nvandessel/depcorr/internal/matrix"
	"github.com/nvandessel/depcorr/internal/sanitize"
	"github.com/nvandessel/depcorr/internal/summary"
)

func newLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <effect-file> <gene-a> <gene-b>",
		Short: "Print the correlation between two genes",
		Long: `Print the correlation between two genes, computing the correlation
matrix first if it is not cached.

Examples:
  depcorr lookup gene_effect.csv BRAF MAPK1
  depcorr lookup gene_effect.csv "BRAF (673)" "MAPK1 (5594)" --json`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.trace.Close()

			req, err := a.request(cmd, args[0])
			if err != nil {
				return err
			}
			geneA, geneB := args[1], args[2]
			if req.Read.NormalizeLabels {
				geneA, geneB = matrix.NormalizeLabel(geneA), matrix.NormalizeLabel(geneB)
			}

			p, err := a.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			res, err := p.Correlate(cmd.Context(), req)
			if err != nil {
				return err
			}
			r, err := summary.Lookup(res.Corr, geneA, geneB)
			if err != nil {
				return err
			}
			if err := a.finish(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"gene_a":      geneA,
					"gene_b":      geneB,
					"correlation": jsonNumber(r),
					"cache_hit":   res.CacheHit,
				})
			}
			if math.IsNaN(r) {
				fmt.Fprintf(out, "%s / %s: undefined (too few shared observations or constant scores)\n", sanitize.Label(geneA), sanitize.Label(geneB))
				return nil
			}
			fmt.Fprintf(out, "%s / %s: %+.4f\n", sanitize.Label(geneA), sanitize.Label(geneB), r)
			return nil
		},
	}

	addReadFlags(cmd)
	addSampleFlags(cmd)
	return cmd
}
