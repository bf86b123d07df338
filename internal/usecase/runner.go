package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/example/vision-infer/internal/logging"
)

// Runner tracks fire-and-forget background tasks scheduled by the
// asynchronous endpoint. Tasks run to completion; failures are unobserved by
// the original caller, so they are logged here with request correlation.
type Runner struct {
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewRunner constructs a task runner.
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{logger: logger.Named("tasks")}
}

// Go schedules fn on its own goroutine. Panics are recovered and logged, and
// a returned error is logged with the operation and request id.
func (r *Runner) Go(operation, requestID string, fn func() error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		opLogger := logging.WithOperation(r.logger, operation, requestID)
		defer func() {
			if rec := recover(); rec != nil {
				opLogger.Error("background task panicked", zap.Any("panic", rec))
			}
		}()
		if err := fn(); err != nil {
			opLogger.Error("background task failed", zap.Error(err))
		}
	}()
}

// Wait blocks until all scheduled tasks finish or ctx expires.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
