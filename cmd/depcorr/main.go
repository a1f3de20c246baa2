package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set by -ldflags at release time.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := notifyContext(context.Background())
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "depcorr",
		Short: "Gene co-essentiality from CRISPR knockout screens",
		Long: `depcorr correlates gene essentiality scores across cancer cell lines.

It loads a CERES gene effect matrix, computes the gene x gene Pearson
correlation matrix (cached by input content), and reports the strongly
co-essential gene pairs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (default from config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newCorrelateCmd(),
		newPairsCmd(),
		newLookupCmd(),
		newMeansCmd(),
		newGenesCmd(),
		newMergeCmd(),
		newCacheCmd(),
		newRunsCmd(),
		newConfigCmd(),
	)

	return rootCmd
}
