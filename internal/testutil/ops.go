package testutil

import (
	"context"
	"sync"
)

// OpLog collects the names of executed ops in execution order.
type OpLog struct {
	mu    sync.Mutex
	names []string
}

// Add appends a name.
func (l *OpLog) Add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

// Names returns a copy of the log.
func (l *OpLog) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// RecordingOp appends its name to a log when executed and returns Err.
// If Panic is set, Execute panics with it instead.
type RecordingOp struct {
	OpName string
	Log    *OpLog
	Err    error
	Panic  any

	mu    sync.Mutex
	stops int
}

func (o *RecordingOp) Name() string { return o.OpName }

func (o *RecordingOp) Async() bool { return false }

func (o *RecordingOp) Execute(context.Context) error {
	if o.Log != nil {
		o.Log.Add(o.OpName)
	}
	if o.Panic != nil {
		panic(o.Panic)
	}
	return o.Err
}

func (o *RecordingOp) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stops++
}

// Stops returns how many times Stop was called.
func (o *RecordingOp) Stops() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stops
}

// BlockingOp blocks in Execute until its context is cancelled, Stop is
// called, or the test calls Unblock. An async BlockingOp returns from
// Execute immediately and is only observable through Stops.
type BlockingOp struct {
	OpName  string
	IsAsync bool

	// Started receives a value each time Execute begins.
	Started chan struct{}

	once    sync.Once
	release chan struct{}

	mu    sync.Mutex
	stops int
}

// NewBlockingOp creates a synchronous blocking op.
func NewBlockingOp(name string) *BlockingOp {
	return &BlockingOp{
		OpName:  name,
		Started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

// NewAsyncOp creates an op that reports itself as asynchronous.
func NewAsyncOp(name string) *BlockingOp {
	o := NewBlockingOp(name)
	o.IsAsync = true
	return o
}

func (o *BlockingOp) Name() string { return o.OpName }

func (o *BlockingOp) Async() bool { return o.IsAsync }

func (o *BlockingOp) Execute(ctx context.Context) error {
	select {
	case o.Started <- struct{}{}:
	default:
	}
	if o.IsAsync {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-o.release:
		return nil
	}
}

// Stop records the call and unblocks Execute.
func (o *BlockingOp) Stop() {
	o.mu.Lock()
	o.stops++
	o.mu.Unlock()
	o.Unblock()
}

// Unblock lets a blocked Execute return without error.
func (o *BlockingOp) Unblock() {
	o.once.Do(func() { close(o.release) })
}

// Stops returns how many times Stop was called.
func (o *BlockingOp) Stops() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stops
}
