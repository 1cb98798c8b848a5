// =============================================================================
// Invoice Normalizer - Batch Metrics
// =============================================================================
//
// Counters and timings for one process invocation, kept in a private
// Prometheus registry. The CLI is short-lived, so instead of serving them the
// registry is written once in text exposition format (node_exporter textfile
// collector style) when a metrics file is configured.
//
// A nil *Recorder is valid and records nothing.
//
// =============================================================================

package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "invoice_normalizer"

// Recorder collects batch metrics.
type Recorder struct {
	registry *prometheus.Registry
	items    *prometheus.CounterVec
	rows     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	batches  *prometheus.CounterVec
	merged   prometheus.Gauge
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Batch items processed, by provider and status.",
		}, []string{"provider", "status"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Canonical rows produced, by provider.",
		}, []string{"provider"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_duration_seconds",
			Help:      "Time spent normalizing one file.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"provider"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batch runs, by status.",
		}, []string{"status"}),
		merged: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "merged_rows",
			Help:      "Rows in the last merged output.",
		}),
	}
	r.registry.MustRegister(r.items, r.rows, r.duration, r.batches, r.merged)
	return r
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveItem records one normalized (or failed) file.
func (r *Recorder) ObserveItem(provider string, rows int, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	r.items.WithLabelValues(provider, status(err)).Inc()
	r.duration.WithLabelValues(provider).Observe(elapsed.Seconds())
	if err == nil {
		r.rows.WithLabelValues(provider).Add(float64(rows))
	}
}

// ObserveBatch records the end of a batch and the size of its merged output.
func (r *Recorder) ObserveBatch(mergedRows int, err error) {
	if r == nil {
		return
	}
	r.batches.WithLabelValues(status(err)).Inc()
	if err == nil {
		r.merged.Set(float64(mergedRows))
	}
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// WriteTextfile writes every metric to path in text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
