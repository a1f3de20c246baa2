// Package metrics records pipeline timings and sizes in a per-process
// Prometheus registry. Batch runs dump it in the node-exporter textfile
// format instead of serving it.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "depcorr"

// Metrics is nil-safe: every method on a nil *Metrics is a no-op.
type Metrics struct {
	reg           *prometheus.Registry
	stageDuration *prometheus.HistogramVec
	cacheRequests *prometheus.CounterVec
	genes         prometheus.Gauge
	cellLines     prometheus.Gauge
	pairs         prometheus.Gauge
}

// New creates the collectors in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4min
		}, []string{"stage", "status"}),
		cacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Correlation cache lookups by result",
		}, []string{"result"}),
		genes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "genes_loaded",
			Help:      "Genes in the loaded matrix",
		}),
		cellLines: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cell_lines_loaded",
			Help:      "Cell lines in the loaded matrix",
		}),
		pairs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pairs_emitted",
			Help:      "Pairs emitted by the last filter",
		}),
	}
}

// ObserveStage records how long a stage took and whether it failed.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.stageDuration.WithLabelValues(stage, status).Observe(elapsed.Seconds())
}

// CacheRequest counts a cache lookup. recompute marks a forced miss.
func (m *Metrics) CacheRequest(hit, recompute bool) {
	if m == nil {
		return
	}
	result := "miss"
	switch {
	case hit:
		result = "hit"
	case recompute:
		result = "recompute"
	}
	m.cacheRequests.WithLabelValues(result).Inc()
}

// SetLoaded records the shape of the loaded matrix.
func (m *Metrics) SetLoaded(cellLines, genes int) {
	if m == nil {
		return
	}
	m.cellLines.Set(float64(cellLines))
	m.genes.Set(float64(genes))
}

// SetPairs records how many pairs the filter emitted.
func (m *Metrics) SetPairs(n int) {
	if m == nil {
		return
	}
	m.pairs.Set(float64(n))
}

// Gatherer exposes the registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.reg
}

// WriteTextfile writes the registry to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
