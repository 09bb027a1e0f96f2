// Package prompush implements a Prometheus Pushgateway backend for the
// internal/metrics package.
//
// Counters and histograms accumulate in a private registry; Flush pushes the
// whole registry to the gateway under the configured job name, replacing the
// previous push. Short-lived pipeline runs get their metrics out this way
// without running a scrape target.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"serpcarousel/internal/metrics"
)

// Backend implements metrics.Backend against a Pushgateway.
type Backend struct {
	pusher *push.Pusher

	items       *prometheus.CounterVec
	lookups     *prometheus.CounterVec
	runs        *prometheus.CounterVec
	rowsStored  *prometheus.CounterVec
	runDuration prometheus.Histogram
}

// NewBackend builds a backend pushing to gatewayURL under jobName. Nothing
// touches the network until Flush.
func NewBackend(jobName, gatewayURL string) *Backend {
	b := &Backend{
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.MetricItems,
			Help: "Carousel items by category and extraction status.",
		}, []string{"category", "status"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.MetricImageLookups,
			Help: "Script image recovery attempts by category and outcome.",
		}, []string{"category", "status"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.MetricRuns,
			Help: "Pipeline runs by final status.",
		}, []string{"status"}),
		rowsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.MetricRowsStored,
			Help: "Rows accepted by a storage backend.",
		}, []string{"backend"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metrics.MetricRunDuration,
			Help:    "Wall-clock seconds per pipeline run.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(b.items, b.lookups, b.runs, b.rowsStored, b.runDuration)
	b.pusher = push.New(gatewayURL, jobName).Gatherer(reg)

	return b
}

// IncCounter implements metrics.Backend. Unknown metric names are dropped.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	switch name {
	case metrics.MetricItems:
		b.items.With(prometheus.Labels{
			"category": orUnknown(labels["category"]),
			"status":   orUnknown(labels["status"]),
		}).Add(delta)

	case metrics.MetricImageLookups:
		b.lookups.With(prometheus.Labels{
			"category": orUnknown(labels["category"]),
			"status":   orUnknown(labels["status"]),
		}).Add(delta)

	case metrics.MetricRuns:
		b.runs.With(prometheus.Labels{"status": orUnknown(labels["status"])}).Add(delta)

	case metrics.MetricRowsStored:
		b.rowsStored.With(prometheus.Labels{"backend": orUnknown(labels["backend"])}).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend. Unknown histograms are dropped.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	if name == metrics.MetricRunDuration {
		b.runDuration.Observe(value)
	}
}

// Flush pushes the accumulated registry to the gateway, replacing the job's
// previous push.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// Close pushes one final snapshot. The backend keeps no background state, so
// closing twice is safe.
func (b *Backend) Close() error {
	return b.Flush()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

var _ metrics.Backend = (*Backend)(nil)
