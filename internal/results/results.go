// Package results keeps a ledger of pair runs: what was read, which cache
// entry served it, and the pairs it produced.
package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nvandessel/depcorr/internal/pairs"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// Driver identifies a backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverMemory   Driver = "memory"
)

// Run is one recorded pairs invocation.
type Run struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Input       string    `json:"input"`
	InputSHA256 string    `json:"input_sha256"`
	CacheKey    string    `json:"cache_key"`
	CacheHit    bool      `json:"cache_hit"`
	Threshold   float64   `json:"threshold"`
	Genes       int       `json:"genes"`
	GeneList    string    `json:"gene_list,omitempty"`
	PairCount   int       `json:"pair_count"`
}

// Store persists runs and their pairs.
type Store interface {
	// RecordRun saves run and its pairs in rank order. An empty ID is
	// replaced with a fresh UUID and a zero CreatedAt with the current time.
	RecordRun(ctx context.Context, run Run, ps []pairs.Pair) (Run, error)
	// ListRuns returns the newest runs first. limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetRun(ctx context.Context, id string) (Run, error)
	// RunPairs returns the pairs of a run in rank order.
	RunPairs(ctx context.Context, id string, limit int) ([]pairs.Pair, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver      Driver
	SQLitePath  string
	PostgresDSN string
}

// Open returns the store described by cfg. An empty driver means sqlite.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		return NewSQLite(ctx, cfg.SQLitePath)
	case DriverPostgres:
		return NewPostgres(ctx, cfg.PostgresDSN)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown results driver %q (valid: sqlite, postgres, memory)", cfg.Driver)
	}
}

// ParseDriver validates a driver name. The empty string means sqlite.
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(s); d {
	case "":
		return DriverSQLite, nil
	case DriverSQLite, DriverPostgres, DriverMemory:
		return d, nil
	}
	return "", fmt.Errorf("unknown results driver %q (valid: sqlite, postgres, memory)", s)
}
