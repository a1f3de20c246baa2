package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/depcorr/internal/sanitize"
)

func newGenesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genes <effect-file>",
		Short: "Check a gene list against an effect file",
		Long: `Report which genes of a list are present in the effect file and
which are missing, in list order.

Examples:
  depcorr genes gene_effect.csv --genes kinases.txt`,
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
			if req.GeneList == "" {
				return fmt.Errorf("--genes is required")
			}
			p, err := a.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			res, err := p.Load(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := a.finish(); err != nil {
				return err
			}

			sel := res.Selection
			out := cmd.OutOrStdout()
			if a.jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"present":  sel.Present,
					"missing":  sel.Missing,
					"coverage": sel.Coverage(),
				})
			}

			fmt.Fprintf(out, "%d of %d listed genes present (%.1f%%)\n",
				len(sel.Present), len(sel.Present)+len(sel.Missing), sel.Coverage()*100)
			for _, g := range sel.Missing {
				fmt.Fprintf(out, "  missing: %s\n", sanitize.Label(g))
			}
			return nil
		},
	}

	addReadFlags(cmd)
	cmd.Flags().String("genes", "", "Gene list file, one symbol per line (required)")
	return cmd
}
