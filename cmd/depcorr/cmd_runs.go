package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/depcorr/internal/constants"
	"github.com/nvandessel/depcorr/internal/pathutil"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse recorded pairs runs",
		Long: `Every 'depcorr pairs' invocation is recorded with its input digest,
cache key, threshold and pairs. Use these commands to look runs up later.

Examples:
  depcorr runs list
  depcorr runs show 3f2a...`,
	}

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
	)

	return cmd
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.trace.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			store, err := a.openResults(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"runs":  runs,
					"count": len(runs),
				})
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(out, "  %s  %s  %5d pairs  |r| > %.2f  %s\n",
					r.ID, r.CreatedAt.Local().Format(time.DateTime), r.PairCount, r.Threshold, pathutil.RedactPath(r.Input))
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", constants.DefaultRunsLimit, "Maximum runs to list (0 = all)")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and its strongest pairs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.trace.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			store, err := a.openResults(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ps, err := store.RunPairs(cmd.Context(), run.ID, limit)
			if err != nil {
				return fmt.Errorf("failed to read pairs of run %s: %w", run.ID, err)
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"run":   run,
					"pairs": ps,
				})
			}

			fmt.Fprintf(out, "Run %s\n", run.ID)
			fmt.Fprintf(out, "  created:   %s\n", run.CreatedAt.Local().Format(time.DateTime))
			fmt.Fprintf(out, "  input:     %s\n", pathutil.RedactPath(run.Input))
			fmt.Fprintf(out, "  sha256:    %s\n", run.InputSHA256)
			fmt.Fprintf(out, "  cache key: %s (hit: %v)\n", run.CacheKey, run.CacheHit)
			fmt.Fprintf(out, "  threshold: %.2f\n", run.Threshold)
			fmt.Fprintf(out, "  genes:     %d\n", run.Genes)
			if run.GeneList != "" {
				fmt.Fprintf(out, "  gene list: %s\n", pathutil.RedactPath(run.GeneList))
			}
			fmt.Fprintf(out, "  pairs:     %d\n", run.PairCount)
			printPairs(out, ps, len(ps))
			return nil
		},
	}

	cmd.Flags().Int("limit", constants.DefaultDisplayPairs, "Maximum pairs to show (0 = all)")
	return cmd
}
