// Package metrics is the minimal instrumentation facade for the carousel
// pipeline.
//
// The core extraction code stays free of vendor SDKs: it reports through the
// package-level helpers here, and a process wires a concrete Backend
// (Datadog, Pushgateway) at startup. With no backend configured every call is
// a no-op, so library code never has to guard its instrumentation.
package metrics

import "sync"

// Labels attaches dimensions to one metric sample.
type Labels map[string]string

// Backend receives metric samples. Implementations must be safe for
// concurrent use; Flush pushes anything buffered to the sink.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Metric names shared by every backend. Backends translate these to their
// sink's naming scheme; unknown names are dropped silently so an older
// backend keeps working when a new series appears.
const (
	// MetricItems counts per-category extraction outcomes.
	// Labels: category, status (extracted|dropped).
	MetricItems = "carousel_items_total"

	// MetricImageLookups counts script image recovery attempts.
	// Labels: category, status (recovered|miss).
	MetricImageLookups = "carousel_image_lookups_total"

	// MetricRuns counts whole pipeline runs. Labels: status (ok|error).
	MetricRuns = "carousel_runs_total"

	// MetricRunDuration observes wall-clock seconds per run. No labels.
	MetricRunDuration = "carousel_run_duration_seconds"

	// MetricRowsStored counts rows handed to a storage backend.
	// Labels: backend.
	MetricRowsStored = "carousel_rows_stored_total"
)

// nopBackend drops everything. It is the default until SetBackend runs.
type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels) {}

func (nopBackend) ObserveHistogram(string, float64, Labels) {}

func (nopBackend) Flush() error { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. Passing nil restores
// the no-op backend. Call it once during startup, before any goroutine
// reports metrics.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to the named counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample of the named histogram.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush pushes buffered samples through the configured backend.
func Flush() error {
	return current().Flush()
}

// RecordItems reports one category's extraction outcome counts.
func RecordItems(category string, extracted, dropped int) {
	if extracted > 0 {
		IncCounter(MetricItems, float64(extracted), Labels{"category": category, "status": "extracted"})
	}
	if dropped > 0 {
		IncCounter(MetricItems, float64(dropped), Labels{"category": category, "status": "dropped"})
	}
}

// RecordImageLookups reports one category's image recovery outcomes.
func RecordImageLookups(category string, recovered, misses int) {
	if recovered > 0 {
		IncCounter(MetricImageLookups, float64(recovered), Labels{"category": category, "status": "recovered"})
	}
	if misses > 0 {
		IncCounter(MetricImageLookups, float64(misses), Labels{"category": category, "status": "miss"})
	}
}

// RecordRun reports one finished pipeline run and its duration.
func RecordRun(ok bool, seconds float64) {
	status := "ok"
	if !ok {
		status = "error"
	}
	IncCounter(MetricRuns, 1, Labels{"status": status})
	ObserveHistogram(MetricRunDuration, seconds, nil)
}

// RecordRowsStored reports rows accepted by a storage backend.
func RecordRowsStored(backendName string, rows int) {
	if rows <= 0 {
		return
	}
	IncCounter(MetricRowsStored, float64(rows), Labels{"backend": backendName})
}
