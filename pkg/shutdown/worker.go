package shutdown

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PeriodicWorker runs a job on a fixed interval until shut down. The job
// runs once immediately on Start, then on every tick.
type PeriodicWorker struct {
	name     string
	interval time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

func NewPeriodicWorker(name string, interval time.Duration, logger *zap.Logger) *PeriodicWorker {
	return &PeriodicWorker{
		name:     name,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the worker goroutine. The job must return promptly when
// ctx is cancelled; a slow job delays shutdown.
func (w *PeriodicWorker) Start(job func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	go func() {
		defer close(w.done)
		w.logger.Info("periodic worker started",
			zap.String("worker", w.name),
			zap.Duration("interval", w.interval),
		)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		job(ctx)
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("periodic worker stopped", zap.String("worker", w.name))
				return
			case <-ticker.C:
				job(ctx)
			}
		}
	}()
}

// Shutdown cancels the worker and waits for its current run to finish,
// or for ctx to expire.
func (w *PeriodicWorker) Shutdown(ctx context.Context) error {
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
	})

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn("periodic worker shutdown timed out", zap.String("worker", w.name))
		return ctx.Err()
	}
}
