// Package pool provides the bounded worker pool shared by task run loops and
// state-update notifications.
//
// Work is queued FIFO and served by a fixed set of workers. Shutdown is
// best-effort and non-blocking: the pool stops accepting work, cancels the
// context handed to running functions and drops anything still queued, but it
// never waits for a blocked function to return.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrClosed is returned by Submit after Shutdown, and reported by the handles
// of work that was still queued when the pool shut down.
var ErrClosed = errors.New("worker pool closed")

// ErrBusy is returned by Submit when the backlog is full.
var ErrBusy = errors.New("worker pool backlog full")

// DefaultBacklog is the number of submissions that may wait for a free worker.
const DefaultBacklog = 1024

// Func is a unit of pooled work. ctx is cancelled when the pool shuts down.
type Func func(ctx context.Context) error

// WorkerPool runs submitted functions on a fixed number of goroutines.
//
// Thread-safety: all methods are safe for concurrent use.
type WorkerPool struct {
	name    string
	workers int
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	jobs   chan job

	ctx    context.Context
	cancel context.CancelFunc
}

type job struct {
	fn     Func
	handle *Handle
}

// New starts a pool named name with the given number of workers.
// workers below 1 is treated as 1. A nil logger uses slog.Default().
func New(name string, workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		name:    name,
		workers: workers,
		logger:  logger,
		jobs:    make(chan job, DefaultBacklog),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit queues fn and returns a handle that completes when fn returns.
// The handle's error is fn's error, a recovered panic, or ErrClosed.
func (p *WorkerPool) Submit(fn Func) (*Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	h := newHandle()
	select {
	case p.jobs <- job{fn: fn, handle: h}:
		return h, nil
	default:
		return nil, ErrBusy
	}
}

// Go submits fn and discards the handle. Submission failures are logged.
func (p *WorkerPool) Go(fn Func) {
	if _, err := p.Submit(fn); err != nil {
		p.logger.Warn("pool submission rejected", "pool", p.name, "error", err)
	}
}

// Shutdown stops accepting work and cancels running work without waiting.
// Safe to call more than once.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	p.cancel()
	close(p.jobs)
}

// Closed reports whether Shutdown has been called.
func (p *WorkerPool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Workers returns the number of worker goroutines.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// Name returns the pool name used in log lines.
func (p *WorkerPool) Name() string {
	return p.name
}

func (p *WorkerPool) worker() {
	for j := range p.jobs {
		if p.ctx.Err() != nil {
			j.handle.finish(ErrClosed)
			continue
		}
		p.run(j)
	}
}

// run executes one job. Failures are logged here once and never retried;
// retry policy belongs to whoever submitted the work.
func (p *WorkerPool) run(j job) {
	err := call(p.ctx, j.fn)
	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("pooled work failed", "pool", p.name, "error", err)
	}
	j.handle.finish(err)
}

func call(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}

// Handle tracks one submitted function.
type Handle struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

func (h *Handle) finish(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

// Done is closed once the function has returned (or was dropped).
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the function finishes and returns its error.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Err returns the result without blocking; nil while still running.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}
