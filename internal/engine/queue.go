package engine

import (
	"sync"

	"github.com/roach88/condop/internal/state"
)

// batchQueue is a thread-safe FIFO queue of fact batches.
//
// State notifications arrive from the notification pool while the
// Operator's Run loop dequeues. The queue is unbounded so a notification
// callback never blocks a pool worker.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type batchQueue struct {
	mu      sync.Mutex
	batches [][]state.Record
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func newBatchQueue() *batchQueue {
	return &batchQueue{
		batches: make([][]state.Record, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a batch to the back of the queue.
// Returns false if the queue is closed.
func (q *batchQueue) Enqueue(b []state.Record) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.batches = append(q.batches, b)

	// Buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front batch without blocking.
func (q *batchQueue) TryDequeue() ([]state.Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.batches) == 0 {
		return nil, false
	}

	b := q.batches[0]
	q.batches[0] = nil
	if len(q.batches) == 1 {
		q.batches = q.batches[:0]
	} else {
		q.batches = q.batches[1:]
	}
	return b, true
}

// Wait returns a channel that signals when batches may be available.
// The channel is closed by Close.
func (q *batchQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *batchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.batches)
}

// Closed reports whether Close has been called.
func (q *batchQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more batches will be enqueued and wakes waiters.
func (q *batchQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
