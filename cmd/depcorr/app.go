package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/depcorr/internal/cache"
	"github.com/nvandessel/depcorr/internal/config"
	"github.com/nvandessel/depcorr/internal/constants"
	"github.com/nvandessel/depcorr/internal/dataset"
	"github.com/nvandessel/depcorr/internal/logging"
	"github.com/nvandessel/depcorr/internal/metrics"
	"github.com/nvandessel/depcorr/internal/pairs"
	"github.com/nvandessel/depcorr/internal/pathutil"
	"github.com/nvandessel/depcorr/internal/pipeline"
	"github.com/nvandessel/depcorr/internal/results"
)

// app carries what every command builds from config and global flags.
type app struct {
	cfg     *config.DepcorrConfig
	root    string
	jsonOut bool
	logger  *slog.Logger
	trace   *logging.TraceLogger
	metrics *metrics.Metrics
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level, _ = cmd.Flags().GetString("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	root, _ := cmd.Flags().GetString("root")
	jsonOut, _ := cmd.Flags().GetBool("json")
	return &app{
		cfg:     cfg,
		root:    root,
		jsonOut: jsonOut,
		logger:  logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()),
		trace:   logging.NewTraceLogger(pathutil.ProjectDir(root), cfg.Logging.Level),
		metrics: metrics.New(),
	}, nil
}

// finish closes the trace log and dumps metrics when a textfile is set.
func (a *app) finish() error {
	a.trace.Close()
	path := a.cfg.Metrics.Textfile
	if path == "" {
		return nil
	}
	dirs, err := pathutil.OutputDirs(a.root)
	if err != nil {
		return err
	}
	if err := pathutil.ValidatePath(path, dirs); err != nil {
		return fmt.Errorf("metrics textfile: %w", err)
	}
	return a.metrics.WriteTextfile(path)
}

func (a *app) openCache(ctx context.Context) (*cache.Cache, error) {
	dir := a.cfg.Cache.Dir
	if dir == "" {
		dir = cache.DefaultDir(pathutil.ProjectDir(a.root))
	}
	s3 := a.cfg.Cache.S3
	return cache.Open(ctx, cache.Config{
		Driver: a.cfg.Cache.Driver,
		Dir:    dir,
		S3: cache.S3Config{
			Bucket:    s3.Bucket,
			Region:    s3.Region,
			Endpoint:  s3.Endpoint,
			PathStyle: s3.PathStyle,
			Prefix:    s3.Prefix,
		},
	})
}

func (a *app) openResults(ctx context.Context) (results.Store, error) {
	driver, err := results.ParseDriver(a.cfg.Results.Driver)
	if err != nil {
		return nil, err
	}
	path := a.cfg.Results.SQLitePath
	if path == "" {
		path = filepath.Join(pathutil.ProjectDir(a.root), results.DBFile)
	}
	store, err := results.Open(ctx, results.Config{
		Driver:      driver,
		SQLitePath:  path,
		PostgresDSN: a.cfg.Results.PostgresDSN,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open results store: %w", err)
	}
	return store, nil
}

func (a *app) pipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	c, err := a.openCache(ctx)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("cache opened", "driver", c.Driver())
	return pipeline.New(c, &pipeline.Config{Logger: a.logger, Metrics: a.metrics, Trace: a.trace}), nil
}

// addReadFlags registers the input layout flags. Unset flags fall back to
// the input section of the config.
func addReadFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("genes-as-rows", true, "Input rows are genes and columns are cell lines")
	cmd.Flags().Bool("normalize-labels", true, `Reduce "SYMBOL (ID)" gene labels to SYMBOL`)
	cmd.Flags().Bool("dropna", false, "Drop genes with any missing value")
	cmd.Flags().String("delimiter", "", `Field delimiter: "," or tab (default from file extension)`)
}

func (a *app) readOptions(cmd *cobra.Command) (dataset.ReadOptions, error) {
	in := a.cfg.Input
	flags := cmd.Flags()
	if flags.Changed("delimiter") {
		in.Delimiter, _ = flags.GetString("delimiter")
		if in.Delimiter != "" && in.Delimiter != "," && in.Delimiter != "tab" {
			return dataset.ReadOptions{}, fmt.Errorf("invalid --delimiter %q (valid: \",\", tab)", in.Delimiter)
		}
	}
	opts := dataset.ReadOptions{
		Comma:           in.DelimiterRune(),
		GenesAsRows:     in.GenesAsRows,
		NormalizeLabels: in.NormalizeLabels,
		DropDuplicates:  in.DropDuplicates,
		DropNaN:         in.DropNaN,
	}
	if flags.Changed("genes-as-rows") {
		opts.GenesAsRows, _ = flags.GetBool("genes-as-rows")
	}
	if flags.Changed("normalize-labels") {
		opts.NormalizeLabels, _ = flags.GetBool("normalize-labels")
	}
	if flags.Changed("dropna") {
		opts.DropNaN, _ = flags.GetBool("dropna")
	}
	return opts, nil
}

// addSampleFlags registers the gene sampling and cache bypass flags.
func addSampleFlags(cmd *cobra.Command) {
	cmd.Flags().Int("sample", 0, "Correlate a random subset of this many genes")
	cmd.Flags().Uint64("seed", constants.DefaultSampleSeed, "Seed for --sample")
	cmd.Flags().Bool("recompute", false, "Ignore a cached correlation matrix and replace it")
}

func (a *app) request(cmd *cobra.Command, input string) (pipeline.Request, error) {
	read, err := a.readOptions(cmd)
	if err != nil {
		return pipeline.Request{}, err
	}
	req := pipeline.Request{
		Input: input,
		Read:  read,
		Pairs: pairs.Options{
			Threshold:     a.cfg.Pairs.Threshold,
			KeepSymmetric: a.cfg.Pairs.KeepSymmetric,
			DropUnit:      a.cfg.Pairs.DropUnit,
			Scope:         pairs.Scope(a.cfg.Pairs.Scope),
			Limit:         a.cfg.Pairs.Limit,
		},
	}
	if cmd.Flags().Lookup("sample") != nil {
		req.Sample, _ = cmd.Flags().GetInt("sample")
		req.Seed, _ = cmd.Flags().GetUint64("seed")
		req.Recompute, _ = cmd.Flags().GetBool("recompute")
		if req.Sample < 0 {
			return pipeline.Request{}, fmt.Errorf("--sample must be non-negative, got %d", req.Sample)
		}
	}
	if cmd.Flags().Lookup("genes") != nil {
		req.GeneList, _ = cmd.Flags().GetString("genes")
	}
	return req, nil
}

// jsonNumber returns nil for values encoding/json cannot represent.
func jsonNumber(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
