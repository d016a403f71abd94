package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/condop/internal/state"
	"github.com/roach88/condop/internal/store"
)

// DefaultTickInterval is how often the Operator polls normal scenes and
// interrupt trees.
const DefaultTickInterval = 20 * time.Millisecond

// TaskRecorder persists finished task runs. *store.Store implements it.
type TaskRecorder interface {
	WriteTaskRun(ctx context.Context, run store.TaskRun) error
}

// Hooks observe task lifecycle transitions.
//
// OnStart and OnStop run synchronously while the Operator holds its lock and
// must not call back into the Operator. OnFinish runs on a watcher goroutine
// after the task's run loop returned.
type Hooks struct {
	OnStart  func(t *OperationTask)
	OnStop   func(t *OperationTask, outcome Outcome, reason string)
	OnFinish func(t *OperationTask, outcome Outcome)
}

// Stop reasons passed to Hooks.OnStop.
const (
	StopReasonPreempted   = "preempted"
	StopReasonInterrupted = "interrupt_tree"
	StopReasonShutdown    = "shutdown"
)

// Operator arbitrates scenes and owns at most one primary task.
//
// Thread-safety model:
//   - BatchUpdateStates(): safe from any goroutine (enqueues only)
//   - Run(): must be called from exactly one goroutine
//   - HandleBatch(), Tick(), Stop(): serialized by the operator mutex
//
// INVARIANTS:
//   - scene order is fixed at construction: priority descending, then
//     declaration order
//   - a running task is stopped before its replacement starts
type Operator struct {
	states   *state.Service
	exec     *Executor
	ownsExec bool
	workers  int
	clock    Clock
	ids      IDGenerator
	recorder TaskRecorder
	hooks    Hooks
	logger   *slog.Logger
	tick     time.Duration
	queue    *batchQueue

	triggerScenes []*Scene
	normalScenes  []*Scene
	gates         map[*Scene]*IntervalGate

	mu      sync.Mutex
	current *OperationTask
	stopped bool
	watch   sync.WaitGroup
}

// OperatorOption configures an Operator.
type OperatorOption func(*Operator)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) OperatorOption {
	return func(o *Operator) {
		o.logger = l
	}
}

// WithTickInterval sets the polling interval of Run.
//
// Default: 20ms (DefaultTickInterval)
func WithTickInterval(d time.Duration) OperatorOption {
	return func(o *Operator) {
		o.tick = d
	}
}

// WithClock sets the engine time source. Default: SystemClock.
func WithClock(c Clock) OperatorOption {
	return func(o *Operator) {
		o.clock = c
	}
}

// WithIDGenerator sets the task ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) OperatorOption {
	return func(o *Operator) {
		o.ids = g
	}
}

// WithTaskRecorder persists every finished task run.
func WithTaskRecorder(r TaskRecorder) OperatorOption {
	return func(o *Operator) {
		o.recorder = r
	}
}

// WithHooks installs lifecycle hooks.
func WithHooks(h Hooks) OperatorOption {
	return func(o *Operator) {
		o.hooks = h
	}
}

// WithExecutor runs tasks on a shared executor. The Operator does not shut
// it down.
func WithExecutor(e *Executor) OperatorOption {
	return func(o *Operator) {
		o.exec = e
	}
}

// WithWorkers sizes the executor the Operator creates for itself.
//
// Default: 8 (DefaultWorkers). Ignored with WithExecutor.
func WithWorkers(n int) OperatorOption {
	return func(o *Operator) {
		o.workers = n
	}
}

// NewOperator creates an Operator over scenes backed by states.
//
// Returns an INVALID_CONFIG error for a scene without handlers or with a
// negative interval.
func NewOperator(states *state.Service, scenes []*Scene, opts ...OperatorOption) (*Operator, error) {
	o := &Operator{
		states:  states,
		clock:   SystemClock{},
		ids:     UUIDv7Generator{},
		tick:    DefaultTickInterval,
		workers: DefaultWorkers,
		queue:   newBatchQueue(),
		gates:   make(map[*Scene]*IntervalGate),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	for _, s := range scenes {
		if len(s.Handlers) == 0 {
			return nil, NewInvalidConfigError(s.Name, "scene has no handlers")
		}
		if s.IntervalSeconds < 0 {
			return nil, NewInvalidConfigError(s.Name, fmt.Sprintf("negative interval %g", s.IntervalSeconds))
		}
		o.gates[s] = NewIntervalGate(s.IntervalSeconds)
		if s.IsTriggerScene() {
			o.triggerScenes = append(o.triggerScenes, s)
		} else {
			o.normalScenes = append(o.normalScenes, s)
		}
	}
	sortScenes(o.triggerScenes)
	sortScenes(o.normalScenes)

	if o.exec == nil {
		o.exec = NewExecutor(o.workers, o.logger)
		o.ownsExec = true
	}
	return o, nil
}

// sortScenes orders by priority descending; unset priority sorts last.
func sortScenes(scenes []*Scene) {
	sort.SliceStable(scenes, func(i, j int) bool {
		return scenes[i].PriorityValue() > scenes[j].PriorityValue()
	})
}

// Validate reports every state referenced by a scene that the state service
// does not know. Run logs the result once at startup.
func (o *Operator) Validate() []error {
	var errs []error
	check := func(s *Scene) {
		for _, trigger := range s.Triggers {
			if !o.states.Known(trigger) {
				errs = append(errs, NewUnknownStateError(s.Name, trigger, "trigger"))
			}
		}
		used := s.UsageStates()
		names := make([]string, 0, len(used))
		for name := range used {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if !o.states.Known(name) {
				errs = append(errs, NewUnknownStateError(s.Name, name, "condition"))
			}
		}
	}
	for _, s := range o.triggerScenes {
		check(s)
	}
	for _, s := range o.normalScenes {
		check(s)
	}
	return errs
}

// BatchUpdateStates queues a fact batch for the Run loop. It implements
// state.Operator.
func (o *Operator) BatchUpdateStates(records []state.Record) {
	if !o.queue.Enqueue(records) {
		o.logger.Debug("batch dropped: operator stopped", "records", len(records))
	}
}

// Run registers with the state service and processes batches and ticks
// until ctx is cancelled or Stop is called.
//
// Must be called from exactly one goroutine.
func (o *Operator) Run(ctx context.Context) error {
	o.logger.Info("operator starting",
		"trigger_scenes", len(o.triggerScenes),
		"normal_scenes", len(o.normalScenes),
		"tick", o.tick)
	for _, err := range o.Validate() {
		o.logger.Warn("scene references undeclared state", "error", err)
	}

	o.states.Register(o)
	defer o.states.Unregister(o)

	ticker := time.NewTicker(o.tick)
	defer ticker.Stop()

	for {
		if batch, ok := o.queue.TryDequeue(); ok {
			o.HandleBatch(o.clock.Now(), state.Names(batch))
			continue
		}
		if o.queue.Closed() {
			o.logger.Info("operator stopping: queue closed")
			o.Stop()
			return nil
		}

		select {
		case <-ctx.Done():
			o.logger.Info("operator stopping: context cancelled")
			o.Stop()
			return ctx.Err()
		case <-o.queue.Wait():
		case <-ticker.C:
			o.Tick(o.clock.Now())
		}
	}
}

// HandleBatch evaluates the trigger scenes named by a fact batch.
//
// The interrupt tree of the running task is checked first. Then triggered
// scenes are offered in priority order until one starts or loses
// arbitration to the running task; anything the best candidate cannot
// preempt, lower scenes cannot either. A candidate whose own interrupt tree
// already holds is skipped and the next scene is offered.
func (o *Operator) HandleBatch(now float64, names []string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return
	}
	o.checkInterruptLocked(now)

	for _, s := range o.triggerScenes {
		trigger, ok := s.IsTriggered(names)
		if !ok {
			continue
		}
		gate := o.gates[s]
		if !gate.Allow(now) {
			o.logger.Debug("scene gated by interval",
				"scene", s.Name,
				"remaining", gate.Remaining(now))
			continue
		}
		task := s.MatchExecution(o.states, now, trigger)
		if task == nil {
			continue
		}
		switch o.offerLocked(task, now) {
		case offerSuppressed:
			continue
		case offerStarted:
			gate.Mark(now)
		}
		return
	}
}

// Tick reaps a finished task, enforces the interrupt tree, and when idle
// starts the first matching normal scene.
func (o *Operator) Tick(now float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return
	}
	if o.current != nil && !o.current.Running() {
		o.current = nil
	}
	o.checkInterruptLocked(now)
	if o.current != nil {
		return
	}

	for _, s := range o.normalScenes {
		gate := o.gates[s]
		if !gate.Allow(now) {
			continue
		}
		task := s.MatchExecution(o.states, now, "")
		if task == nil {
			continue
		}
		if o.startLocked(task, now) {
			gate.Mark(now)
		}
		return
	}
}

// CanPreempt reports whether candidate may replace running.
//
// Higher priority numbers win. A running task without priority yields to
// anything; a candidate without priority never replaces a prioritised task;
// equal priorities do not preempt.
func CanPreempt(running, candidate *OperationTask) bool {
	if running.Priority == nil {
		return true
	}
	if candidate.Priority == nil {
		return false
	}
	return *candidate.Priority > *running.Priority
}

// offerResult is the arbitration decision for one candidate.
type offerResult int

const (
	offerStarted    offerResult = iota
	offerSuppressed             // own interrupt tree holds
	offerRejected               // running task keeps the executor
	offerFailed                 // executor refused the task
)

func (o *Operator) offerLocked(task *OperationTask, now float64) offerResult {
	if o.suppressed(task, now) {
		return offerSuppressed
	}
	if cur := o.current; cur != nil && cur.Running() {
		if !CanPreempt(cur, task) {
			o.logger.Debug("candidate rejected",
				"scene", task.Scene,
				"running_scene", cur.Scene,
				"running_task", cur.ID)
			return offerRejected
		}
		o.stopLocked(StopReasonPreempted)
	}
	if !o.startLocked(task, now) {
		return offerFailed
	}
	return offerStarted
}

func (o *Operator) checkInterruptLocked(now float64) {
	cur := o.current
	if cur == nil || cur.InterruptTree == nil || !cur.Running() {
		return
	}
	if cur.InterruptTree.InTimeRange(o.states, now) {
		o.stopLocked(StopReasonInterrupted)
	}
}

// stopLocked stops the primary task and forgets it.
func (o *Operator) stopLocked(reason string) {
	cur := o.current
	if cur == nil {
		return
	}
	o.current = nil
	outcome := cur.Stop()
	o.logger.Info("task stopped",
		"task", cur.ID,
		"scene", cur.Scene,
		"reason", reason,
		"outcome", outcome)
	if o.hooks.OnStop != nil {
		o.hooks.OnStop(cur, outcome, reason)
	}
}

func (o *Operator) suppressed(task *OperationTask, now float64) bool {
	if task.InterruptTree != nil && task.InterruptTree.InTimeRange(o.states, now) {
		o.logger.Debug("candidate already interrupted", "scene", task.Scene)
		return true
	}
	return false
}

// startLocked starts task as the primary task. A candidate whose own
// interrupt tree already holds is not started.
func (o *Operator) startLocked(task *OperationTask, now float64) bool {
	if o.suppressed(task, now) {
		return false
	}
	task.ID = o.ids.Generate()
	task.StartedAt = now
	task.SetLogger(o.logger)

	if _, err := task.RunAsync(o.exec); err != nil {
		o.logger.Error("task start failed", "task", task.ID, "scene", task.Scene, "error", err)
		return false
	}
	o.current = task

	o.logger.Info("task started",
		"task", task.ID,
		"scene", task.Scene,
		"priority", task.Priority,
		"trigger", task.Trigger,
		"trail", task.DebugNameDisplay())
	if o.hooks.OnStart != nil {
		o.hooks.OnStart(task)
	}

	o.watch.Add(1)
	go o.watchTask(task)
	return true
}

// watchTask waits for the run loop to return, then records the run.
func (o *Operator) watchTask(task *OperationTask) {
	defer o.watch.Done()
	<-task.Done()

	outcome := task.Outcome()
	if o.recorder != nil {
		run := store.TaskRun{
			ID:         task.ID,
			Scene:      task.Scene,
			Priority:   task.Priority,
			Trigger:    task.Trigger,
			Trail:      task.DebugNameDisplay(),
			Expr:       task.ExprDisplay(),
			Ops:        task.OpNames(),
			Outcome:    string(outcome),
			StartedAt:  task.StartedAt,
			FinishedAt: o.clock.Now(),
		}
		if err := o.recorder.WriteTaskRun(context.Background(), run); err != nil {
			o.logger.Error("write task run", "task", task.ID, "error", err)
		}
	}
	if o.hooks.OnFinish != nil {
		o.hooks.OnFinish(task, outcome)
	}
}

// Running returns the primary task, or nil when idle.
func (o *Operator) Running() *OperationTask {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != nil && !o.current.Running() {
		return nil
	}
	return o.current
}

// Wait blocks until every started task has finished and been recorded.
func (o *Operator) Wait() {
	o.watch.Wait()
}

// Stop stops the primary task, closes the batch queue and, when the
// Operator created its own executor, shuts it down. Safe to call more than
// once.
func (o *Operator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	if o.current != nil && o.current.Running() {
		o.stopLocked(StopReasonShutdown)
	}
	o.current = nil
	o.mu.Unlock()

	o.queue.Close()
	if o.ownsExec {
		o.exec.Shutdown()
	}
}
