package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/roach88/condop/internal/cond"
	"github.com/roach88/condop/internal/op"
	"github.com/roach88/condop/internal/pool"
)

// TrailSeparator joins trail entries for display.
const TrailSeparator = " ← "

// Outcome is the terminal state of an OperationTask.
type Outcome string

const (
	// OutcomePending means the task has not finished yet.
	OutcomePending Outcome = "pending"
	// OutcomeCompleted means every op ran. Stop reports it as
	// "already complete".
	OutcomeCompleted Outcome = "completed"
	// OutcomeInterrupted means Stop ended the task before its last op.
	OutcomeInterrupted Outcome = "interrupted"
)

// OperationTask is one run of a leaf handler's op list.
//
// Lifecycle: constructed → running → {completed, interrupted}. The task
// mutex guards running, the current op and the async op set; ops execute
// outside it. Whichever of natural completion and Stop takes the mutex first
// decides the outcome, so exactly one outcome is ever reported.
type OperationTask struct {
	ID            string
	Scene         string
	Ops           []op.AtomicOp
	Priority      *int
	Trigger       string
	ExprList      []string
	DebugNameList []string
	InterruptTree *cond.Node

	// StartedAt is the engine time the task was started, set by the Operator.
	StartedAt float64

	logger *slog.Logger

	mu       sync.Mutex
	started  bool
	running  bool
	current  op.AtomicOp
	asyncOps []op.AtomicOp
	outcome  Outcome
	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once
}

// NewOperationTask creates a task over ops. The slice is not copied; ops
// are shared with the handler that built the task.
func NewOperationTask(ops []op.AtomicOp) *OperationTask {
	return &OperationTask{
		Ops:     ops,
		outcome: OutcomePending,
		done:    make(chan struct{}),
	}
}

// SetLogger sets the logger used by the run loop.
func (t *OperationTask) SetLogger(l *slog.Logger) {
	t.logger = l
}

func (t *OperationTask) log() *slog.Logger {
	if t.logger != nil {
		return t.logger
	}
	return slog.Default()
}

// IsTrigger reports whether the task was produced by a trigger scene.
func (t *OperationTask) IsTrigger() bool {
	return t.Trigger != ""
}

// AddTrail appends one handler's entry to the match trail. An empty label
// is recorded as PlaceholderLabel.
func (t *OperationTask) AddTrail(expr, debugName string) {
	if debugName == "" {
		debugName = PlaceholderLabel
	}
	t.ExprList = append(t.ExprList, expr)
	t.DebugNameList = append(t.DebugNameList, debugName)
}

// DebugNameDisplay renders the label trail, leaf first.
func (t *OperationTask) DebugNameDisplay() string {
	return strings.Join(t.DebugNameList, TrailSeparator)
}

// ExprDisplay renders the expression trail, leaf first.
func (t *OperationTask) ExprDisplay() string {
	return strings.Join(t.ExprList, TrailSeparator)
}

// OpNames lists the task's op names in order.
func (t *OperationTask) OpNames() []string {
	names := make([]string, len(t.Ops))
	for i, o := range t.Ops {
		names[i] = o.Name()
	}
	return names
}

// Running reports whether the run loop is still active and not stopped.
func (t *OperationTask) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Outcome returns the task outcome, OutcomePending while undecided.
func (t *OperationTask) Outcome() Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome
}

// Done is closed once the run loop has returned, or immediately when the
// task is stopped before it starts or cannot be submitted.
func (t *OperationTask) Done() <-chan struct{} {
	return t.done
}

func (t *OperationTask) closeDone() {
	t.doneOnce.Do(func() { close(t.done) })
}

// RunAsync submits the run loop to exec and returns its handle.
//
// The ops see a task-scoped context that Stop cancels. While the loop is
// running, shutting down the executor cancels it too.
func (t *OperationTask) RunAsync(exec *Executor) (*pool.Handle, error) {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	t.started = true
	t.running = true
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.mu.Unlock()

	h, err := exec.Submit(func(poolCtx context.Context) error {
		stop := context.AfterFunc(poolCtx, cancel)
		defer stop()
		return t.run(ctx)
	})
	if err != nil {
		t.mu.Lock()
		t.running = false
		t.outcome = OutcomeInterrupted
		t.mu.Unlock()
		cancel()
		t.closeDone()
		return nil, err
	}
	go t.awaitHandle(h)
	return h, nil
}

// awaitHandle covers a loop the pool dropped on shutdown before it ran.
func (t *OperationTask) awaitHandle(h *pool.Handle) {
	<-h.Done()
	t.abort()
	t.closeDone()
}

// abort marks the task interrupted unless it already has an outcome.
func (t *OperationTask) abort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	t.current = nil
	t.asyncOps = nil
	t.outcome = OutcomeInterrupted
}

func (t *OperationTask) run(ctx context.Context) error {
	defer t.closeDone()

	if len(t.Ops) == 0 {
		t.complete()
		return nil
	}

	last := len(t.Ops) - 1
	for i, o := range t.Ops {
		t.mu.Lock()
		if !t.running {
			t.mu.Unlock()
			return nil
		}
		t.current = o
		if o.Async() {
			t.asyncOps = append(t.asyncOps, o)
		}
		t.mu.Unlock()

		err := t.execute(ctx, o)
		if ctx.Err() != nil {
			// Stopped, or the executor shut down under us.
			t.abort()
			return nil
		}
		if err != nil {
			t.log().Warn("op failed, continuing",
				"task", t.ID,
				"scene", t.Scene,
				"error", NewOpError(t.ID, o.Name(), err))
		}

		if i == last {
			t.complete()
		}
	}
	return nil
}

// complete marks natural completion unless Stop got there first.
func (t *OperationTask) complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	t.current = nil
	t.outcome = OutcomeCompleted
}

// execute runs one op; a panic is converted to an error.
func (t *OperationTask) execute(ctx context.Context, o op.AtomicOp) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return o.Execute(ctx)
}

// Stop ends the task.
//
// A task that already completed reports OutcomeCompleted and no op is
// touched. A running task reports OutcomeInterrupted: its context is
// cancelled and Stop is called on the current op and on every async op it
// started. A task that was never started is marked interrupted and will not
// run.
func (t *OperationTask) Stop() Outcome {
	t.mu.Lock()
	if !t.started {
		t.started = true
		t.outcome = OutcomeInterrupted
		t.mu.Unlock()
		t.closeDone()
		return OutcomeInterrupted
	}
	if !t.running {
		t.current = nil
		t.asyncOps = nil
		outcome := t.outcome
		t.mu.Unlock()
		if outcome == OutcomeInterrupted {
			return OutcomeInterrupted
		}
		return OutcomeCompleted
	}

	t.running = false
	t.outcome = OutcomeInterrupted
	targets := make([]op.AtomicOp, 0, len(t.asyncOps)+1)
	if t.current != nil && !t.current.Async() {
		targets = append(targets, t.current)
	}
	targets = append(targets, t.asyncOps...)
	t.current = nil
	t.asyncOps = nil
	cancel := t.cancel
	t.mu.Unlock()

	// Ops are stopped outside the mutex so an op whose Stop blocks cannot
	// wedge the run loop's next check.
	cancel()
	for _, o := range targets {
		t.stopOp(o)
	}
	return OutcomeInterrupted
}

func (t *OperationTask) stopOp(o op.AtomicOp) {
	defer func() {
		if r := recover(); r != nil {
			t.log().Error("op stop panicked", "task", t.ID, "op", o.Name(), "panic", r)
		}
	}()
	o.Stop()
}
