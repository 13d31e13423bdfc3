package consumer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Runner starts the consumer loop on its own goroutine and coordinates
// bounded shutdown.
type Runner struct {
	consumer *Consumer
	logger   *zap.Logger
	timeout  time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewRunner(c *Consumer, logger *zap.Logger, shutdownTimeout time.Duration) *Runner {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	return &Runner{
		consumer: c,
		logger:   logger,
		timeout:  shutdownTimeout,
		done:     make(chan struct{}),
	}
}

// Start launches the consumer loop.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	go func() {
		defer close(r.done)
		if err := r.consumer.Run(ctx); err != nil {
			r.logger.Error("Consumer loop exited with error", zap.Error(err))
		}
	}()
}

// Stop signals the loop and waits up to the shutdown timeout for it to reach
// Stopped. On timeout the goroutine is left to finish on its own; it is never
// forcibly terminated.
func (r *Runner) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}
	select {
	case <-r.done:
		return nil
	case <-time.After(r.timeout):
		return errors.Errorf("consumer did not stop within %s", r.timeout)
	}
}

// Ready reports whether the loop is actively consuming. Used by the health
// endpoint: a loop that exited on a fatal broker error reports not ready.
func (r *Runner) Ready() bool {
	return r.consumer.State() == StateRunning
}

// State exposes the underlying loop state.
func (r *Runner) State() State { return r.consumer.State() }
