package main

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/nvandessel/depcorr/internal/sanitize"
	"github.com/nvandessel/depcorr/internal/summary"
)

func newMeansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "means <effect-file>",
		Short: "Rank genes by mean essentiality score",
		Long: `Average each gene's score across cell lines, skipping missing values.
Ascending order (the default) lists the most essential genes first.

Examples:
  depcorr means gene_effect.csv --limit 20
  depcorr means gene_effect.csv --genes kinases.txt --order desc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.trace.Close()

			orderFlag, _ := cmd.Flags().GetString("order")
			order, err := summary.ParseOrder(orderFlag)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			if limit < 0 {
				return fmt.Errorf("--limit must be non-negative, got %d", limit)
			}

			req, err := a.request(cmd, args[0])
			if err != nil {
				return err
			}
			p, err := a.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			res, err := p.Load(cmd.Context(), req)
			if err != nil {
				return err
			}

			means := []summary.Mean{}
			switch {
			case res.Selection == nil:
				means = summary.ColumnMeans(res.Data, nil, order)
			case len(res.Selection.Present) > 0:
				means = summary.ColumnMeans(res.Data, res.Selection.Present, order)
			}
			if limit > 0 && len(means) > limit {
				means = means[:limit]
			}
			if err := a.finish(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				type jsonMean struct {
					Gene  string `json:"gene"`
					Mean  any    `json:"mean"`
					Count int    `json:"count"`
				}
				entries := make([]jsonMean, 0, len(means))
				for _, m := range means {
					entries = append(entries, jsonMean{Gene: m.Gene, Mean: jsonNumber(m.Mean), Count: m.Count})
				}
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"means": entries,
					"count": len(entries),
					"order": order,
				})
			}

			if len(means) == 0 {
				fmt.Fprintln(out, "No genes to summarize.")
				return nil
			}
			for _, m := range means {
				if math.IsNaN(m.Mean) {
					fmt.Fprintf(out, "  %-12s %8s  (n=0)\n", sanitize.Label(m.Gene), "-")
					continue
				}
				fmt.Fprintf(out, "  %-12s %+8.4f  (n=%d)\n", sanitize.Label(m.Gene), m.Mean, m.Count)
			}
			return nil
		},
	}

	addReadFlags(cmd)
	cmd.Flags().String("genes", "", "Gene list file restricting the summary")
	cmd.Flags().String("order", "asc", "Sort order: asc (most essential first) or desc")
	cmd.Flags().Int("limit", 0, "Show only the first N genes (0 = all)")
	return cmd
}
