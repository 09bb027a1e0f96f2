// Package datadog implements a Datadog backend for the internal/metrics
// package.
//
// Submission model:
//   - samples are buffered in-memory (fast, lock-protected)
//   - a background loop flushes the buffer on a ticker (default: once a minute)
//   - Close() stops the loop and flushes one final time
//
// Long extraction runs therefore show up as a time series rather than a
// single spike at exit, while short one-shot runs still get their tail flush.
//
// Concurrency model:
//   - pipeline goroutines may call IncCounter/ObserveHistogram at any time
//   - Flush snapshots and resets the buffers under a mutex, then submits
//     out-of-lock
//
// If the process dies with SIGKILL/OOM, Close() never runs and the last
// window is lost; no backend can fix that.
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"serpcarousel/internal/metrics"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric.
	// If empty, defaults to "carousel".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod", "service:serp"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets these; unit tests use
	// them to avoid real network submission and nondeterministic clocks.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal slice of the Datadog SDK the backend needs.
// The SDK only offers the concrete *datadogV2.MetricsApi; depending on this
// interface instead lets tests submit to a fake.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	// now and newTicker are injected for deterministic tests. Production uses
	// time.Now and time.NewTicker.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu sync.Mutex

	// Buffers, keyed the way the series are tagged.
	itemCounts   map[string]float64 // category\x00status -> count
	lookupCounts map[string]float64 // category\x00status -> count
	runCounts    map[string]float64 // status -> count
	rowCounts    map[string]float64 // backend -> count
	runDurations []float64
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the background flush loop and performs one final Flush().
//
// Errors:
//   - Returns any error from the final Flush() submission.
//   - Calling Close twice panics (stopCh is closed twice). The backend lives
//     for the process lifetime, so the usual "Close once" contract applies.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// NewBackend constructs a Datadog backend using the official client.
//
// Edge cases:
//   - If opts.FlushEvery <= 0, defaults to 60s.
//   - If opts.JobName is empty, defaults to "carousel".
//   - Environment tag selection uses ENV then DD_ENV, otherwise env:unknown.
//
// Errors:
//   - Client construction does not fail under normal conditions; network
//     errors surface from Flush().
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "carousel"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		cfg := dd.NewConfiguration()
		client := dd.NewAPIClient(cfg)
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),

		baseTags: baseTags,

		now:       nowFn,
		newTicker: newTicker,

		itemCounts:   make(map[string]float64),
		lookupCounts: make(map[string]float64),
		runCounts:    make(map[string]float64),
		rowCounts:    make(map[string]float64),
	}

	go b.loop()
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown metric names are dropped.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.MetricItems:
		b.itemCounts[categoryStatusKey(labels["category"], labels["status"])] += delta

	case metrics.MetricImageLookups:
		b.lookupCounts[categoryStatusKey(labels["category"], labels["status"])] += delta

	case metrics.MetricRuns:
		status := labels["status"]
		if status == "" {
			status = "unknown"
		}
		b.runCounts[status] += delta

	case metrics.MetricRowsStored:
		backend := labels["backend"]
		if backend == "" {
			backend = "unknown"
		}
		b.rowCounts[backend] += delta
	}
}

// ObserveHistogram implements metrics.Backend. Unknown histograms are dropped.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if name == metrics.MetricRunDuration {
		b.runDurations = append(b.runDurations, value)
	}
}

// snapshot is the detached buffered state one Flush() submits. Flush must
// reset buffers under the lock but submit out-of-lock, so the two phases
// exchange this value.
type snapshot struct {
	itemCounts   map[string]float64
	lookupCounts map[string]float64
	runCounts    map[string]float64
	rowCounts    map[string]float64
	runDurations []float64
}

// snapshotAndReset grabs current buffered metrics and resets the buffers.
// Call with no lock held; it locks internally and returns detached state.
func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{
		itemCounts:   b.itemCounts,
		lookupCounts: b.lookupCounts,
		runCounts:    b.runCounts,
		rowCounts:    b.rowCounts,
		runDurations: b.runDurations,
	}

	b.itemCounts = make(map[string]float64)
	b.lookupCounts = make(map[string]float64)
	b.runCounts = make(map[string]float64)
	b.rowCounts = make(map[string]float64)
	b.runDurations = nil

	return s
}

func (s snapshot) isEmpty() bool {
	return len(s.itemCounts) == 0 &&
		len(s.lookupCounts) == 0 &&
		len(s.runCounts) == 0 &&
		len(s.rowCounts) == 0 &&
		len(s.runDurations) == 0
}

// Flush submits buffered metrics to Datadog and resets local buffers.
//
// Errors:
//   - Returns any error from Datadog submission.
//   - Returns nil if there is nothing to submit.
//
// Edge cases:
//   - Safe to call concurrently with IncCounter/ObserveHistogram.
//   - Buffers reset even when submission fails; a failed window is dropped
//     rather than blocking future writes.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	series := b.buildSeries(snap, b.now().Unix())
	payload := datadogV2.MetricPayload{Series: series}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries constructs Datadog series for a snapshot at a fixed timestamp.
// It is pure (no locks, no network, no clocks) and centralizes the naming and
// tagging contract the dashboards depend on.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.itemCounts)+len(s.lookupCounts)+len(s.runCounts)+len(s.rowCounts)+8)

	for k, v := range s.itemCounts {
		if v == 0 {
			continue
		}
		category, status := splitCategoryStatusKey(k)
		tags := withTags(b.baseTags, "category:"+category, "status:"+status)
		series = append(series, countSeries("carousel.items.total", v, tags, nowUnix))
	}

	for k, v := range s.lookupCounts {
		if v == 0 {
			continue
		}
		category, status := splitCategoryStatusKey(k)
		tags := withTags(b.baseTags, "category:"+category, "status:"+status)
		series = append(series, countSeries("carousel.image_lookups.total", v, tags, nowUnix))
	}

	for status, v := range s.runCounts {
		if v == 0 {
			continue
		}
		tags := withTags(b.baseTags, "status:"+status)
		series = append(series, countSeries("carousel.runs.total", v, tags, nowUnix))
	}

	for backend, v := range s.rowCounts {
		if v == 0 {
			continue
		}
		tags := withTags(b.baseTags, "backend:"+backend)
		series = append(series, countSeries("carousel.rows.stored.total", v, tags, nowUnix))
	}

	addPercentiles(&series, b.baseTags, "carousel.run.duration_seconds", s.runDurations, nowUnix)

	return series
}

// addPercentiles appends the fixed percentile gauge set for a sample set.
// Empty samples append nothing; the input slice is not mutated.
func addPercentiles(series *[]datadogV2.MetricSeries, tags []string, metricPrefix string, samples []float64, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series, gaugeSeries(metricPrefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".max", cp[len(cp)-1], tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".samples", float64(len(cp)), tags, nowUnix))
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func categoryStatusKey(category, status string) string {
	if category == "" {
		category = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	return category + "\x00" + status
}

func splitCategoryStatusKey(k string) (category, status string) {
	parts := strings.SplitN(k, "\x00", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return k, "unknown"
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,service:serp".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
