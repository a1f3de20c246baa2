package pipeline

import (
	"context"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"

	"github.com/nvandessel/depcorr/internal/cache"
	"github.com/nvandessel/depcorr/internal/correlation"
	"github.com/nvandessel/depcorr/internal/dataset"
	"github.com/nvandessel/depcorr/internal/matrix"
)

// Input is one effect file of a merge.
type Input struct {
	Path string
	Read dataset.ReadOptions
}

// MergeRequest combines two screens of the same genes, typically a CRISPR
// and an RNAi screen, into one z-score matrix.
type MergeRequest struct {
	A, B Input

	ZMethod     correlation.ZMethod
	MergeMethod correlation.MergeMethod

	// RemoveSelf sets the diagonal of the merged matrix to NaN.
	RemoveSelf bool

	// DropNaN removes genes whose merged row holds no finite value.
	DropNaN bool

	// Sample, when positive, keeps a random subset of that many genes of
	// the merged matrix. The cached matrix always holds every gene.
	Sample int
	Seed   uint64

	Recompute bool
}

// MergeResult is the merged z-score matrix and where it came from.
type MergeResult struct {
	Z        *matrix.Matrix
	Sources  [2]dataset.Source
	CacheKey string
	CacheHit bool
}

// Merge correlates both inputs (each through the cache), converts the
// correlations to z-scores and combines them. The merged matrix is cached
// under its own key.
func (p *Pipeline) Merge(ctx context.Context, req MergeRequest) (*MergeResult, error) {
	a, err := p.Correlate(ctx, Request{Input: req.A.Path, Read: req.A.Read, Recompute: req.Recompute})
	if err != nil {
		return nil, err
	}
	b, err := p.Correlate(ctx, Request{Input: req.B.Path, Read: req.B.Read, Recompute: req.Recompute})
	if err != nil {
		return nil, err
	}

	out := &MergeResult{Sources: [2]dataset.Source{a.Source, b.Source}}
	fp := fingerprint(Request{Read: req.A.Read}, cache.KindZScore)
	fp.Extra = []string{
		b.Source.SHA256,
		b.CacheKey,
		string(req.ZMethod),
		string(req.MergeMethod),
		strconv.FormatBool(req.RemoveSelf),
		strconv.FormatBool(req.DropNaN),
	}
	out.CacheKey = cache.Key(a.Source, fp)

	err = p.stage(ctx, StageMerge, func() (map[string]any, error) {
		z, hit, err := p.cache.GetOrCompute(ctx, out.CacheKey, cache.KindZScore, a.Source.SHA256, func() (*matrix.Matrix, error) {
			return mergeScreens(a, b, req)
		}, req.Recompute)
		if err != nil {
			return nil, err
		}
		out.Z, out.CacheHit = z, hit
		p.metrics.CacheRequest(hit, req.Recompute)
		n, _ := z.Dims()
		return map[string]any{"key": out.CacheKey, "cache_hit": hit, "genes": n, "method": string(req.MergeMethod)}, nil
	})
	if err != nil {
		return nil, err
	}
	if req.Sample > 0 {
		out.Z = sampleGenes(out.Z, req.Sample, rand.New(rand.NewPCG(req.Seed, req.Seed)))
	}
	return out, nil
}

func mergeScreens(a, b *Result, req MergeRequest) (*matrix.Matrix, error) {
	za, err := zscores(a, req.ZMethod)
	if err != nil {
		return nil, err
	}
	zb, err := zscores(b, req.ZMethod)
	if err != nil {
		return nil, err
	}
	z, err := correlation.Merge(za, zb, req.MergeMethod)
	if err != nil {
		return nil, err
	}
	if req.DropNaN {
		z = dropEmptyGenes(z)
	}
	if req.RemoveSelf {
		z = correlation.RemoveSelf(z)
	}
	return z, nil
}

func zscores(r *Result, method correlation.ZMethod) (*matrix.Matrix, error) {
	var n *matrix.Matrix
	if method != correlation.ZStandard {
		n = correlation.SampleSizes(r.Data)
	}
	return correlation.ZScores(r.Corr, n, method)
}

// dropEmptyGenes removes genes of a square matrix whose off-diagonal
// entries are all NaN.
func dropEmptyGenes(z *matrix.Matrix) *matrix.Matrix {
	genes := z.ColLabels()
	var keep []int
	for i := range genes {
		for j := range genes {
			if i != j && !math.IsNaN(z.At(i, j)) {
				keep = append(keep, i)
				break
			}
		}
	}
	if len(keep) == len(genes) {
		return z
	}
	return subsetGenes(z, keep)
}

// sampleGenes keeps n randomly chosen genes of a square matrix, in their
// original order.
func sampleGenes(z *matrix.Matrix, n int, rng *rand.Rand) *matrix.Matrix {
	k, _ := z.Dims()
	if n >= k {
		return z
	}
	keep := rng.Perm(k)[:n]
	slices.Sort(keep)
	return subsetGenes(z, keep)
}

// subsetGenes restricts a square matrix to the genes at idx, rows and
// columns alike.
func subsetGenes(z *matrix.Matrix, idx []int) *matrix.Matrix {
	genes := z.ColLabels()
	labels := make([]string, len(idx))
	for k, i := range idx {
		labels[k] = genes[i]
	}
	data := make([]float64, 0, len(idx)*len(idx))
	for _, i := range idx {
		for _, j := range idx {
			data = append(data, z.At(i, j))
		}
	}
	out, _ := matrix.New(labels, labels, data)
	return out
}
