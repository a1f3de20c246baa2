// Package pipeline runs the depcorr stages in order: load the effect
// matrix, intersect the gene list, correlate through the cache, and filter
// the pairs. Each stage is timed into metrics and the trace log.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/nvandessel/depcorr/internal/cache"
	"github.com/nvandessel/depcorr/internal/correlation"
	"github.com/nvandessel/depcorr/internal/dataset"
	"github.com/nvandessel/depcorr/internal/genes"
	"github.com/nvandessel/depcorr/internal/logging"
	"github.com/nvandessel/depcorr/internal/matrix"
	"github.com/nvandessel/depcorr/internal/metrics"
	"github.com/nvandessel/depcorr/internal/pairs"
	"github.com/nvandessel/depcorr/internal/pathutil"
)

// Stage names as they appear in metrics and the trace log.
const (
	StageLoad      = "load"
	StageGenes     = "genes"
	StageCorrelate = "correlate"
	StageFilter    = "filter"
	StageMerge     = "merge"
)

// Request describes one run over a single effect file.
type Request struct {
	Input    string
	GeneList string
	Read     dataset.ReadOptions

	// Sample, when positive, correlates a random subset of that many genes.
	Sample int
	Seed   uint64

	Pairs pairs.Options

	// Recompute ignores a cached correlation matrix and replaces it.
	Recompute bool
}

// Result collects what the stages produced. Later fields are nil when the
// run stopped early.
type Result struct {
	Data      *matrix.Matrix
	Source    dataset.Source
	Selection *genes.Selection

	Corr     *matrix.Matrix
	CacheKey string
	CacheHit bool

	Pairs []pairs.Pair
}

// Subset returns the loaded data restricted to the selected genes, or all
// of it when no gene list was given.
func (r *Result) Subset() *matrix.Matrix {
	if r.Selection == nil {
		return r.Data
	}
	return r.Selection.Subset(r.Data)
}

// Config holds the optional collaborators of a Pipeline.
type Config struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Trace   *logging.TraceLogger
}

// Pipeline wires the stages to a cache.
type Pipeline struct {
	cache   *cache.Cache
	logger  *slog.Logger
	metrics *metrics.Metrics
	trace   *logging.TraceLogger
	now     func() time.Time
}

// New creates a pipeline over c. A nil cfg logs nothing.
func New(c *cache.Cache, cfg *Config) *Pipeline {
	p := &Pipeline{cache: c, logger: logging.Discard(), now: time.Now}
	if cfg != nil {
		if cfg.Logger != nil {
			p.logger = cfg.Logger
		}
		p.metrics = cfg.Metrics
		p.trace = cfg.Trace
	}
	return p
}

// Load runs the load and gene-list stages.
func (p *Pipeline) Load(ctx context.Context, req Request) (*Result, error) {
	res := &Result{}

	err := p.stage(ctx, StageLoad, func() (map[string]any, error) {
		data, src, err := dataset.LoadFile(req.Input, req.Read)
		if err != nil {
			return nil, err
		}
		if req.Sample > 0 {
			data = data.SampleColumns(req.Sample, rand.New(rand.NewPCG(req.Seed, req.Seed)))
		}
		res.Data, res.Source = data, src
		rows, cols := data.Dims()
		p.metrics.SetLoaded(rows, cols)
		return map[string]any{"cell_lines": rows, "genes": cols, "sha256": src.SHA256}, nil
	})
	if err != nil {
		return nil, err
	}

	if req.GeneList != "" {
		err := p.stage(ctx, StageGenes, func() (map[string]any, error) {
			list, err := dataset.LoadGeneList(req.GeneList)
			if err != nil {
				return nil, err
			}
			sel := genes.Intersect(list, res.Data)
			res.Selection = &sel
			if len(sel.Missing) > 0 {
				p.logger.Debug("genes not in matrix", "count", len(sel.Missing), "genes", sel.Missing)
			}
			return map[string]any{"listed": len(list), "present": len(sel.Present), "missing": len(sel.Missing)}, nil
		})
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Correlate loads the input and returns its correlation matrix, from the
// cache when an entry for the same content and options exists.
func (p *Pipeline) Correlate(ctx context.Context, req Request) (*Result, error) {
	res, err := p.Load(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := p.correlate(ctx, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) correlate(ctx context.Context, req Request, res *Result) error {
	res.CacheKey = cache.Key(res.Source, fingerprint(req, cache.KindCorrelation))
	return p.stage(ctx, StageCorrelate, func() (map[string]any, error) {
		corr, hit, err := p.cache.GetOrCompute(ctx, res.CacheKey, cache.KindCorrelation, res.Source.SHA256, func() (*matrix.Matrix, error) {
			p.logger.Info("computing correlation matrix", "genes", len(res.Data.ColLabels()), "input", pathutil.RedactPath(res.Source.Path))
			return correlation.Pearson(res.Data)
		}, req.Recompute)
		if err != nil {
			return nil, err
		}
		res.Corr, res.CacheHit = corr, hit
		p.metrics.CacheRequest(hit, req.Recompute)
		return map[string]any{"key": res.CacheKey, "cache_hit": hit}, nil
	})
}

// Run performs every stage and returns the filtered pairs. When a gene
// list is given, pairs are restricted to it under req.Pairs.Scope.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	res, err := p.Correlate(ctx, req)
	if err != nil {
		return nil, err
	}

	opts := req.Pairs
	if res.Selection != nil {
		opts.Genes = res.Selection.Present
	}
	err = p.stage(ctx, StageFilter, func() (map[string]any, error) {
		ps, err := pairs.Filter(res.Corr, opts)
		if err != nil {
			return nil, err
		}
		res.Pairs = ps
		p.metrics.SetPairs(len(ps))
		return map[string]any{"pairs": len(ps), "threshold": opts.Threshold}, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func fingerprint(req Request, kind cache.Kind) cache.Fingerprint {
	return cache.Fingerprint{
		Kind:            kind,
		GenesAsRows:     req.Read.GenesAsRows,
		NormalizeLabels: req.Read.NormalizeLabels,
		DropDuplicates:  req.Read.DropDuplicates,
		DropNaN:         req.Read.DropNaN,
		Sample:          req.Sample,
		Seed:            req.Seed,
	}
}

// stage runs fn and records its duration, outcome and attributes.
func (p *Pipeline) stage(ctx context.Context, name string, fn func() (map[string]any, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := p.now()
	attrs, err := fn()
	elapsed := p.now().Sub(start)

	p.metrics.ObserveStage(name, elapsed, err)
	p.trace.Stage(name, elapsed, err, attrs)
	if err != nil {
		p.logger.Debug("stage failed", "stage", name, "elapsed", elapsed, "error", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	p.logger.Debug("stage done", "stage", name, "elapsed", elapsed)
	return nil
}
