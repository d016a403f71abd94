package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/condop/internal/pool"
)

// DefaultWorkers is the default executor size: one sequence being
// interrupted, its replacement, and room for async ops left running
// during the handover.
const DefaultWorkers = 8

// Executor runs task loops on a bounded worker pool.
type Executor struct {
	pool *pool.WorkerPool
}

// NewExecutor starts an executor with the given number of workers.
func NewExecutor(workers int, logger *slog.Logger) *Executor {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Executor{pool: pool.New("task-executor", workers, logger)}
}

// Submit queues fn. Failures of fn are logged by the pool and never retried.
func (e *Executor) Submit(fn pool.Func) (*pool.Handle, error) {
	h, err := e.pool.Submit(fn)
	if err != nil {
		if errors.Is(err, pool.ErrClosed) {
			return nil, fmt.Errorf("%w: %w", ErrPoolClosed, err)
		}
		return nil, err
	}
	return h, nil
}

// Shutdown stops accepting work and cancels running loops without waiting
// for them.
func (e *Executor) Shutdown() {
	e.pool.Shutdown()
}

// Closed reports whether Shutdown has been called.
func (e *Executor) Closed() bool {
	return e.pool.Closed()
}

// Workers returns the pool size.
func (e *Executor) Workers() int {
	return e.pool.Workers()
}
