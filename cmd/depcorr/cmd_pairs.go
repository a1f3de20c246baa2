package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/depcorr/internal/constants"
	"github.com/nvandessel/depcorr/internal/pairs"
	"github.com/nvandessel/depcorr/internal/pathutil"
	"github.com/nvandessel/depcorr/internal/pipeline"
	"github.com/nvandessel/depcorr/internal/results"
	"github.com/nvandessel/depcorr/internal/sanitize"
)

func newPairsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pairs <effect-file>",
		Short: "List strongly co-essential gene pairs",
		Long: `List gene pairs whose correlation magnitude exceeds the threshold,
strongest first. Self pairs are never reported. Each run is recorded in
the results store unless --no-record is given.

Examples:
  depcorr pairs gene_effect.csv
  depcorr pairs gene_effect.csv --threshold 0.6 --limit 100
  depcorr pairs gene_effect.csv --genes kinases.txt --scope either
  depcorr pairs gene_effect.csv --out pairs.tsv`,
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
			if err := applyPairFlags(cmd, &req); err != nil {
				return err
			}

			outPath, _ := cmd.Flags().GetString("out")
			if outPath != "" {
				dirs, err := pathutil.OutputDirs(a.root)
				if err != nil {
					return err
				}
				if err := pathutil.ValidatePath(outPath, dirs); err != nil {
					return fmt.Errorf("invalid --out: %w", err)
				}
			}

			p, err := a.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			res, err := p.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			if outPath != "" {
				if err := writePairsFile(outPath, res.Pairs); err != nil {
					return err
				}
			}

			var run *results.Run
			if noRecord, _ := cmd.Flags().GetBool("no-record"); !noRecord {
				recorded, err := recordRun(cmd, a, req, res)
				if err != nil {
					return err
				}
				run = &recorded
			}
			if err := a.finish(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				payload := map[string]interface{}{
					"pairs":     res.Pairs,
					"count":     len(res.Pairs),
					"threshold": req.Pairs.Threshold,
					"cache_key": res.CacheKey,
					"cache_hit": res.CacheHit,
				}
				if run != nil {
					payload["run_id"] = run.ID
				}
				if res.Selection != nil {
					payload["missing_genes"] = res.Selection.Missing
				}
				if outPath != "" {
					payload["out"] = outPath
				}
				return json.NewEncoder(out).Encode(payload)
			}

			if res.Selection != nil && len(res.Selection.Missing) > 0 {
				fmt.Fprintf(out, "%d listed genes not in the matrix: %v\n", len(res.Selection.Missing), sanitize.Labels(res.Selection.Missing))
			}
			fmt.Fprintf(out, "%d pairs with |r| > %.2f\n", len(res.Pairs), req.Pairs.Threshold)
			printPairs(out, res.Pairs, constants.DefaultDisplayPairs)
			if outPath != "" {
				fmt.Fprintf(out, "Wrote %s\n", outPath)
			}
			if run != nil {
				fmt.Fprintf(out, "Run: %s\n", run.ID)
			}
			return nil
		},
	}

	addReadFlags(cmd)
	addSampleFlags(cmd)
	cmd.Flags().Float64("threshold", 0, "Minimum |r| (exclusive) (default from config, 0.5)")
	cmd.Flags().String("genes", "", "Gene list file restricting the pairs")
	cmd.Flags().String("scope", "", "With --genes: both genes listed (both) or at least one (either)")
	cmd.Flags().Int("limit", 0, "Keep only the strongest N pairs (0 = all)")
	cmd.Flags().Bool("keep-symmetric", false, "Report both (a, b) and (b, a)")
	cmd.Flags().Bool("drop-unit", false, "Also drop pairs with |r| == 1")
	cmd.Flags().String("out", "", "Write the pairs as TSV to this file")
	cmd.Flags().Bool("no-record", false, "Do not record the run in the results store")
	return cmd
}

// applyPairFlags overrides the configured pair options with the flags the
// user set.
func applyPairFlags(cmd *cobra.Command, req *pipeline.Request) error {
	flags := cmd.Flags()
	if flags.Changed("threshold") {
		req.Pairs.Threshold, _ = flags.GetFloat64("threshold")
	}
	if req.Pairs.Threshold < 0 || req.Pairs.Threshold >= 1 {
		return fmt.Errorf("threshold must be in [0, 1), got %v", req.Pairs.Threshold)
	}
	if flags.Changed("scope") {
		s, _ := flags.GetString("scope")
		req.Pairs.Scope = pairs.Scope(s)
	}
	scope, err := pairs.ParseScope(string(req.Pairs.Scope))
	if err != nil {
		return err
	}
	req.Pairs.Scope = scope
	if flags.Changed("limit") {
		req.Pairs.Limit, _ = flags.GetInt("limit")
	}
	if req.Pairs.Limit < 0 {
		return fmt.Errorf("--limit must be non-negative, got %d", req.Pairs.Limit)
	}
	if flags.Changed("keep-symmetric") {
		req.Pairs.KeepSymmetric, _ = flags.GetBool("keep-symmetric")
	}
	if flags.Changed("drop-unit") {
		req.Pairs.DropUnit, _ = flags.GetBool("drop-unit")
	}
	return nil
}

func recordRun(cmd *cobra.Command, a *app, req pipeline.Request, res *pipeline.Result) (results.Run, error) {
	store, err := a.openResults(cmd.Context())
	if err != nil {
		return results.Run{}, err
	}
	defer store.Close()

	genes, _ := res.Corr.Dims()
	run, err := store.RecordRun(cmd.Context(), results.Run{
		Input:       res.Source.Path,
		InputSHA256: res.Source.SHA256,
		CacheKey:    res.CacheKey,
		CacheHit:    res.CacheHit,
		Threshold:   req.Pairs.Threshold,
		Genes:       genes,
		GeneList:    req.GeneList,
	}, res.Pairs)
	if err != nil {
		return results.Run{}, fmt.Errorf("failed to record run: %w", err)
	}
	a.logger.Debug("run recorded", "id", run.ID, "pairs", run.PairCount)
	return run, nil
}

func writePairsFile(path string, ps []pairs.Pair) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", pathutil.RedactPath(path), err)
	}
	if err := pairs.WriteTSV(f, ps); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", pathutil.RedactPath(path), err)
	}
	return f.Close()
}

// printPairs writes up to max pairs as an aligned table.
func printPairs(w io.Writer, ps []pairs.Pair, max int) {
	for i, p := range ps {
		if i == max {
			fmt.Fprintf(w, "  ... and %d more\n", len(ps)-max)
			break
		}
		fmt.Fprintf(w, "  %-12s %-12s %+.4f\n", sanitize.Label(p.GeneA), sanitize.Label(p.GeneB), p.Correlation)
	}
}
