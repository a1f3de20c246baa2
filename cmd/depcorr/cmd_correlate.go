package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/depcorr/internal/pathutil"
)

func newCorrelateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correlate <effect-file>",
		Short: "Compute and cache the gene x gene correlation matrix",
		Long: `Load a gene effect file and compute the Pearson correlation between
every pair of genes across cell lines. The matrix is cached under a key
derived from the file content and read options, so later commands over
the same file reuse it.

Examples:
  depcorr correlate gene_effect.csv
  depcorr correlate gene_effect.csv --sample 500 --seed 7
  depcorr correlate gene_effect.csv --recompute`,
		Args: cobra.ExactArgs(1),
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
			p, err := a.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			res, err := p.Correlate(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := a.finish(); err != nil {
				return err
			}

			cellLines, genes := res.Data.Dims()
			out := cmd.OutOrStdout()
			if a.jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"input":      pathutil.RedactPath(res.Source.Path),
					"sha256":     res.Source.SHA256,
					"cache_key":  res.CacheKey,
					"cache_hit":  res.CacheHit,
					"genes":      genes,
					"cell_lines": cellLines,
				})
			}

			status := "computed"
			if res.CacheHit {
				status = "cached"
			}
			fmt.Fprintf(out, "Correlated %d genes across %d cell lines (%s)\n", genes, cellLines, status)
			fmt.Fprintf(out, "Cache key: %s\n", res.CacheKey)
			return nil
		},
	}

	addReadFlags(cmd)
	addSampleFlags(cmd)
	return cmd
}
