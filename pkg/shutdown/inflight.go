package shutdown

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var inflightRequests = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "nmi_gateway_inflight_requests",
	Help: "HTTP requests currently being served",
})

// RequestTracker counts in-flight HTTP requests so shutdown can wait for
// them to finish. Once draining starts, Add refuses new requests and the
// middleware answers 503.
type RequestTracker struct {
	logger *zap.Logger
	wg     sync.WaitGroup

	mu       sync.Mutex
	draining bool
}

func NewRequestTracker(logger *zap.Logger) *RequestTracker {
	return &RequestTracker{logger: logger}
}

// Add registers a request. It returns false once draining has started,
// in which case Done must not be called.
func (t *RequestTracker) Add() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.draining {
		return false
	}
	t.wg.Add(1)
	inflightRequests.Inc()
	return true
}

// Done marks a previously added request as finished
func (t *RequestTracker) Done() {
	inflightRequests.Dec()
	t.wg.Done()
}

// Shutdown stops admitting requests and waits for the in-flight ones to
// drain, or for ctx to expire, whichever comes first.
func (t *RequestTracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.draining = true
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("in-flight requests drained")
		return nil
	case <-ctx.Done():
		t.logger.Warn("gave up waiting for in-flight requests", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}
