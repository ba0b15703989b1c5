package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	shutdownDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nmi_gateway_shutdown_duration_seconds",
		Help:    "Total time spent in graceful shutdown",
		Buckets: []float64{1, 5, 10, 15, 20, 30},
	})

	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nmi_gateway_shutdown_step_duration_seconds",
		Help:    "Time spent stopping each component",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"component"})

	stepErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nmi_gateway_shutdown_errors_total",
		Help: "Shutdown failures by component",
	}, []string{"component"})
)

// StopFunc stops one component, honoring the shutdown deadline
type StopFunc func(context.Context) error

type step struct {
	name string
	stop StopFunc
}

// Manager stops registered components in reverse registration order, one at
// a time, under a single deadline. Register in startup order: the database
// pool first, the HTTP server last. Sequential teardown matters here — the
// server must stop accepting requests before in-flight ones drain, and the
// pool must outlive both.
type Manager struct {
	logger  *zap.Logger
	mu      sync.Mutex
	steps   []step
	timeout time.Duration
}

// NewManager creates a shutdown manager with the given overall deadline
func NewManager(logger *zap.Logger, timeout time.Duration) *Manager {
	return &Manager{logger: logger, timeout: timeout}
}

// Register adds a component; later registrations stop earlier
func (m *Manager) Register(name string, stop StopFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{name: name, stop: stop})
}

// RegisterHTTPServer registers anything with an http.Server-style Shutdown
func (m *Manager) RegisterHTTPServer(name string, server interface{ Shutdown(context.Context) error }) {
	m.Register(name, server.Shutdown)
}

// RegisterFunc registers a stop function that ignores the deadline
func (m *Manager) RegisterFunc(name string, fn func() error) {
	m.Register(name, func(context.Context) error { return fn() })
}

// RegisterNoErr registers a stop function with no error to report
func (m *Manager) RegisterNoErr(name string, fn func()) {
	m.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then runs Shutdown
func (m *Manager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	m.logger.Info("shutdown signal received",
		zap.String("signal", sig.String()),
		zap.Duration("timeout", m.timeout),
	)
	m.Shutdown()
}

// Shutdown stops every registered component in reverse order. A failing
// component is logged and counted; the remaining components still stop.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	steps := make([]step, len(m.steps))
	copy(steps, m.steps)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	start := time.Now()
	m.logger.Info("stopping components", zap.Int("count", len(steps)))

	failures := 0
	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]
		stepStart := time.Now()

		if err := s.stop(ctx); err != nil {
			failures++
			stepErrors.WithLabelValues(s.name).Inc()
			m.logger.Error("component stop failed",
				zap.String("component", s.name),
				zap.Duration("elapsed", time.Since(stepStart)),
				zap.Error(err),
			)
		} else {
			m.logger.Info("component stopped",
				zap.String("component", s.name),
				zap.Duration("elapsed", time.Since(stepStart)),
			)
		}
		stepDuration.WithLabelValues(s.name).Observe(time.Since(stepStart).Seconds())
	}

	shutdownDuration.Observe(time.Since(start).Seconds())
	if failures > 0 {
		m.logger.Error("shutdown finished with failures",
			zap.Int("failures", failures),
			zap.Duration("elapsed", time.Since(start)),
		)
		return
	}
	m.logger.Info("shutdown complete", zap.Duration("elapsed", time.Since(start)))
}
