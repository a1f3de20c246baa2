package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/depcorr/internal/constants"
	"github.com/nvandessel/depcorr/internal/correlation"
	"github.com/nvandessel/depcorr/internal/pairs"
	"github.com/nvandessel/depcorr/internal/pathutil"
	"github.com/nvandessel/depcorr/internal/pipeline"
	"github.com/nvandessel/depcorr/internal/sanitize"
)

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <screen-a> <screen-b>",
		Short: "Merge the correlations of two screens as z-scores",
		Long: `Correlate two effect files (typically a CRISPR and an RNAi screen),
convert each correlation matrix to z-scores and combine them over the
genes both screens share. Prints the strongest merged pairs.

Z-score methods: standard, t, beta. Merge methods: average, stouffer.

Examples:
  depcorr merge crispr.csv rnai.csv
  depcorr merge crispr.csv rnai.csv --z-method t --merge-method average
  depcorr merge crispr.csv rnai.csv --sample 500 --seed 7
  depcorr merge crispr.csv rnai.csv --b-genes-as-rows=false --out merged.tsv`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.trace.Close()

			flags := cmd.Flags()
			zName, _ := flags.GetString("z-method")
			zMethod, err := correlation.ParseZMethod(zName)
			if err != nil {
				return err
			}
			mergeName, _ := flags.GetString("merge-method")
			mergeMethod, err := correlation.ParseMergeMethod(mergeName)
			if err != nil {
				return err
			}
			minZ, _ := flags.GetFloat64("min-z")
			limit, _ := flags.GetInt("limit")
			sample, _ := flags.GetInt("sample")
			seed, _ := flags.GetUint64("seed")
			if minZ < 0 || limit < 0 || sample < 0 {
				return fmt.Errorf("--min-z, --limit and --sample must be non-negative")
			}

			readA, err := a.readOptions(cmd)
			if err != nil {
				return err
			}
			readB := readA
			if flags.Changed("b-genes-as-rows") {
				readB.GenesAsRows, _ = flags.GetBool("b-genes-as-rows")
			}
			keepSelf, _ := flags.GetBool("keep-self")
			dropNaN, _ := flags.GetBool("dropna-genes")
			recompute, _ := flags.GetBool("recompute")

			outPath, _ := flags.GetString("out")
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
			res, err := p.Merge(cmd.Context(), pipeline.MergeRequest{
				A:           pipeline.Input{Path: args[0], Read: readA},
				B:           pipeline.Input{Path: args[1], Read: readB},
				ZMethod:     zMethod,
				MergeMethod: mergeMethod,
				RemoveSelf:  !keepSelf,
				DropNaN:     dropNaN,
				Sample:      sample,
				Seed:        seed,
				Recompute:   recompute,
			})
			if err != nil {
				return err
			}

			top, err := pairs.Filter(res.Z, pairs.Options{Threshold: minZ, Limit: limit})
			if err != nil {
				return err
			}
			if outPath != "" {
				if err := writePairsFile(outPath, top); err != nil {
					return err
				}
			}
			if err := a.finish(); err != nil {
				return err
			}

			genes, _ := res.Z.Dims()
			out := cmd.OutOrStdout()
			if a.jsonOut {
				type jsonPair struct {
					GeneA string `json:"gene_a"`
					GeneB string `json:"gene_b"`
					Z     any    `json:"z"`
				}
				entries := make([]jsonPair, 0, len(top))
				for _, pr := range top {
					entries = append(entries, jsonPair{GeneA: pr.GeneA, GeneB: pr.GeneB, Z: jsonNumber(pr.Correlation)})
				}
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"genes":        genes,
					"z_method":     zMethod,
					"merge_method": mergeMethod,
					"cache_key":    res.CacheKey,
					"cache_hit":    res.CacheHit,
					"pairs":        entries,
				})
			}

			fmt.Fprintf(out, "Merged %d shared genes (%s z-scores, %s)\n", genes, zMethod, mergeMethod)
			fmt.Fprintf(out, "Cache key: %s\n", res.CacheKey)
			for _, pr := range top {
				fmt.Fprintf(out, "  %-12s %-12s %+.3f\n", sanitize.Label(pr.GeneA), sanitize.Label(pr.GeneB), pr.Correlation)
			}
			return nil
		},
	}

	addReadFlags(cmd)
	cmd.Flags().Bool("b-genes-as-rows", true, "Layout of the second file (default: same as --genes-as-rows)")
	cmd.Flags().String("z-method", constants.DefaultZMethod, "Correlation to z-score conversion: standard, t or beta")
	cmd.Flags().String("merge-method", constants.DefaultMergeMethod, "How to combine z-scores: average or stouffer")
	cmd.Flags().Bool("keep-self", false, "Keep the diagonal of the merged matrix")
	cmd.Flags().Bool("dropna-genes", false, "Drop genes with no finite merged z-score")
	cmd.Flags().Float64("min-z", 0, "Only report pairs with |z| above this")
	cmd.Flags().Int("limit", constants.DefaultDisplayPairs, "Report the strongest N pairs (0 = all)")
	cmd.Flags().Int("sample", 0, "Keep a random subset of this many merged genes")
	cmd.Flags().Uint64("seed", constants.DefaultSampleSeed, "Seed for --sample")
	cmd.Flags().Bool("recompute", false, "Ignore cached matrices and replace them")
	cmd.Flags().String("out", "", "Write the reported pairs as TSV to this file")
	return cmd
}
