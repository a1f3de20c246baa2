// Package cache stores computed correlation matrices under a content
// address so repeated runs over the same input skip the computation.
package cache

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nvandessel/depcorr/internal/blob"
	"github.com/nvandessel/depcorr/internal/matrix"
)

// Extension is appended to a key to form its object name.
const Extension = ".depc"

const contentType = "application/vnd.depcorr.matrix"

// ErrMiss is returned by Load when no entry exists for a key.
var ErrMiss = errors.New("cache miss")

// S3Config configures the s3 driver.
type S3Config = blob.S3Config

// Config selects the backing store.
type Config struct {
	Driver string // fs, s3 or memory; empty means fs
	Dir    string // fs driver directory
	S3     S3Config
}

// DefaultDir is the fs cache directory inside a project root.
func DefaultDir(projectDir string) string {
	return filepath.Join(projectDir, "cache")
}

// Entry describes one cached matrix.
type Entry struct {
	Key          string    `json:"key"`
	Kind         Kind      `json:"kind"`
	Size         int64     `json:"size_bytes"`
	Genes        int       `json:"genes"`
	CreatedAt    time.Time `json:"created_at"`
	SourceSHA256 string    `json:"source_sha256,omitempty"`
}

// Cache reads and writes entries in a blob store.
type Cache struct {
	store blob.Store
	now   func() time.Time
}

// New wraps an existing store.
func New(store blob.Store) *Cache {
	return &Cache{store: store, now: time.Now}
}

// Open builds the store described by cfg and wraps it.
func Open(ctx context.Context, cfg Config) (*Cache, error) {
	store, err := blob.Open(ctx, blob.Config{Driver: blob.Driver(cfg.Driver), Root: cfg.Dir, S3: cfg.S3})
	if err != nil {
		return nil, fmt.Errorf("opening cache store: %w", err)
	}
	return New(store), nil
}

// Driver reports the backing store driver.
func (c *Cache) Driver() string {
	return string(c.store.Driver())
}

// Load returns the matrix stored under key.
func (c *Cache) Load(ctx context.Context, key string) (*matrix.Matrix, Header, error) {
	_, rc, err := c.store.Get(ctx, objectName(key))
	if errors.Is(err, blob.ErrNotFound) {
		return nil, Header{}, fmt.Errorf("%w: %s", ErrMiss, key)
	}
	if err != nil {
		return nil, Header{}, fmt.Errorf("reading cache entry %s: %w", key, err)
	}
	defer rc.Close()

	m, h, err := Decode(rc)
	if err != nil {
		return nil, Header{}, fmt.Errorf("decoding cache entry %s: %w", key, err)
	}
	if h.Key != key {
		return nil, Header{}, fmt.Errorf("cache entry %s holds key %s", key, h.Key)
	}
	return m, h, nil
}

// Store writes m under key, replacing any existing entry.
func (c *Cache) Store(ctx context.Context, key string, kind Kind, sourceSHA string, m *matrix.Matrix) (Header, error) {
	var buf bytes.Buffer
	h, err := Encode(&buf, Header{
		CreatedAt:    c.now().UTC(),
		Key:          key,
		Kind:         kind,
		SourceSHA256: sourceSHA,
	}, m)
	if err != nil {
		return Header{}, fmt.Errorf("encoding cache entry %s: %w", key, err)
	}

	name := objectName(key)
	if _, err := c.store.Delete(ctx, name); err != nil {
		return Header{}, fmt.Errorf("replacing cache entry %s: %w", key, err)
	}
	_, err = c.store.Put(ctx, name, &buf, blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"kind":          string(kind),
			"genes":         strconv.Itoa(h.Genes),
			"created-at":    h.CreatedAt.Format(time.RFC3339Nano),
			"source-sha256": sourceSHA,
		},
	})
	if err != nil {
		return Header{}, fmt.Errorf("writing cache entry %s: %w", key, err)
	}
	return h, nil
}

// GetOrCompute returns the cached matrix for key, or runs compute and
// stores its result. force skips the lookup. The bool reports a hit.
func (c *Cache) GetOrCompute(ctx context.Context, key string, kind Kind, sourceSHA string, compute func() (*matrix.Matrix, error), force bool) (*matrix.Matrix, bool, error) {
	if !force {
		m, _, err := c.Load(ctx, key)
		if err == nil {
			return m, true, nil
		}
		if !errors.Is(err, ErrMiss) {
			return nil, false, err
		}
	}

	m, err := compute()
	if err != nil {
		return nil, false, err
	}
	if _, err := c.Store(ctx, key, kind, sourceSHA, m); err != nil {
		return nil, false, err
	}
	return m, false, nil
}

// List returns all entries, newest first.
func (c *Cache) List(ctx context.Context) ([]Entry, error) {
	infos, err := c.store.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing cache: %w", err)
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		key, ok := strings.CutSuffix(info.Key, Extension)
		if !ok {
			continue
		}
		entries = append(entries, entryFromInfo(key, info))
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return entries, nil
}

func entryFromInfo(key string, info blob.Info) Entry {
	e := Entry{
		Key:          key,
		Kind:         Kind(info.Metadata["kind"]),
		Size:         info.Size,
		CreatedAt:    info.LastModified,
		SourceSHA256: info.Metadata["source-sha256"],
	}
	if n, err := strconv.Atoi(info.Metadata["genes"]); err == nil {
		e.Genes = n
	}
	if ts, err := time.Parse(time.RFC3339Nano, info.Metadata["created-at"]); err == nil {
		e.CreatedAt = ts
	}
	return e
}

// Verify checks the stored checksum of key without decoding the matrix.
func (c *Cache) Verify(ctx context.Context, key string) (Header, error) {
	_, rc, err := c.store.Get(ctx, objectName(key))
	if errors.Is(err, blob.ErrNotFound) {
		return Header{}, fmt.Errorf("%w: %s", ErrMiss, key)
	}
	if err != nil {
		return Header{}, fmt.Errorf("reading cache entry %s: %w", key, err)
	}
	defer rc.Close()

	h, err := VerifyChecksum(rc)
	if err != nil {
		return h, err
	}
	if h.Key != key {
		return h, fmt.Errorf("cache entry %s holds key %s", key, h.Key)
	}
	return h, nil
}

// Remove deletes key. It reports whether an entry existed.
func (c *Cache) Remove(ctx context.Context, key string) (bool, error) {
	ok, err := c.store.Delete(ctx, objectName(key))
	if err != nil {
		return false, fmt.Errorf("removing cache entry %s: %w", key, err)
	}
	return ok, nil
}

// Prune removes every entry the policy does not keep and returns the
// removed keys.
func (c *Cache) Prune(ctx context.Context, policy RetentionPolicy) ([]string, error) {
	entries, err := c.List(ctx)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool)
	for _, e := range policy.Apply(entries) {
		keep[e.Key] = true
	}

	var removed []string
	for _, e := range entries {
		if keep[e.Key] {
			continue
		}
		if _, err := c.Remove(ctx, e.Key); err != nil {
			return removed, err
		}
		removed = append(removed, e.Key)
	}
	return removed, nil
}

func objectName(key string) string {
	return key + Extension
}
