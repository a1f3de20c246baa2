package results

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/nvandessel/depcorr/internal/pairs"
)

// Memory keeps runs in process memory.
type Memory struct {
	mu    sync.RWMutex
	runs  map[string]Run
	pairs map[string][]pairs.Pair
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{runs: map[string]Run{}, pairs: map[string][]pairs.Pair{}}
}

func (m *Memory) RecordRun(ctx context.Context, run Run, ps []pairs.Pair) (Run, error) {
	run = prepareRun(run, ps)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; ok {
		return Run{}, fmt.Errorf("run %s already recorded", run.ID)
	}
	m.runs[run.ID] = run
	m.pairs[run.ID] = append([]pairs.Pair{}, ps...)
	return run, nil
}

func (m *Memory) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Run) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, nil
}

func (m *Memory) RunPairs(ctx context.Context, id string, limit int) ([]pairs.Pair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ps, ok := m.pairs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if limit > 0 && len(ps) > limit {
		ps = ps[:limit]
	}
	return append([]pairs.Pair{}, ps...), nil
}

func (m *Memory) Close() error { return nil }
