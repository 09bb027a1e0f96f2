package prompush

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"serpcarousel/internal/metrics"
)

// gatewayStub records pushes the way a Pushgateway would receive them.
type gatewayStub struct {
	mu     sync.Mutex
	method string
	path   string
	body   []byte
	calls  int
}

func (g *gatewayStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		g.mu.Lock()
		g.method = r.Method
		g.path = r.URL.Path
		g.body = body
		g.calls++
		g.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
}

// TestFlush_PushesRegistry verifies Flush ships every series to the gateway
// under the job path.
func TestFlush_PushesRegistry(t *testing.T) {
	t.Parallel()

	stub := &gatewayStub{}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	b := NewBackend("carousel-test", srv.URL)

	b.IncCounter(metrics.MetricItems, 3, metrics.Labels{"category": "artworks", "status": "extracted"})
	b.IncCounter(metrics.MetricImageLookups, 1, metrics.Labels{"category": "artworks", "status": "miss"})
	b.IncCounter(metrics.MetricRuns, 1, metrics.Labels{"status": "ok"})
	b.IncCounter(metrics.MetricRowsStored, 4, metrics.Labels{"backend": "sqlite"})
	b.ObserveHistogram(metrics.MetricRunDuration, 0.75, nil)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()

	if stub.calls != 1 {
		t.Fatalf("gateway calls=%d, want 1", stub.calls)
	}
	if stub.method != http.MethodPut {
		t.Fatalf("method=%q, want PUT", stub.method)
	}
	if stub.path != "/metrics/job/carousel-test" {
		t.Fatalf("path=%q, want /metrics/job/carousel-test", stub.path)
	}

	// Metric names survive as raw strings in every exposition format.
	for _, name := range []string{
		metrics.MetricItems,
		metrics.MetricImageLookups,
		metrics.MetricRuns,
		metrics.MetricRowsStored,
		metrics.MetricRunDuration,
	} {
		if !bytes.Contains(stub.body, []byte(name)) {
			t.Fatalf("pushed body missing %q", name)
		}
	}
}

// TestFlush_GatewayDown verifies a connection failure surfaces as a wrapped
// error rather than a panic.
func TestFlush_GatewayDown(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // down before the first push

	b := NewBackend("carousel-test", srv.URL)
	b.IncCounter(metrics.MetricRuns, 1, metrics.Labels{"status": "ok"})

	if err := b.Flush(); err == nil {
		t.Fatalf("expected error pushing to a closed gateway")
	}
}

// TestIncCounter_EdgeCases verifies drop rules and label defaults.
func TestIncCounter_EdgeCases(t *testing.T) {
	t.Parallel()

	stub := &gatewayStub{}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	b := NewBackend("carousel-test", srv.URL)

	// Dropped: non-positive delta, unknown name, negative sample.
	b.IncCounter(metrics.MetricRuns, 0, metrics.Labels{"status": "ok"})
	b.IncCounter("unknown_total", 5, nil)
	b.ObserveHistogram(metrics.MetricRunDuration, -1, nil)
	// Kept, with labels defaulting to unknown.
	b.IncCounter(metrics.MetricItems, 1, nil)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()

	if !bytes.Contains(stub.body, []byte("unknown")) {
		t.Fatalf("expected defaulted unknown labels in push body")
	}
	if bytes.Contains(stub.body, []byte("unknown_total")) {
		t.Fatalf("unknown metric name must not be registered")
	}
}
