package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/condop/internal/config"
	"github.com/roach88/condop/internal/engine"
	"github.com/roach88/condop/internal/op"
	"github.com/roach88/condop/internal/state"
	"github.com/roach88/condop/internal/store"
	"github.com/roach88/condop/internal/testutil"
)

// Harness is the test execution engine for one scenario run.
type Harness struct {
	scenario *Scenario
	states   *state.Service
	store    *store.Store
	operator *engine.Operator
	replay   *engine.Replayer
	clock    *testutil.ManualClock
	keys     *testutil.RecordingKeys
	logger   *slog.Logger
	result   *Result
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh state service, operator and in-memory
// database. Execution flow:
//  1. Load and build the scenario's configuration
//  2. Play the steps through an engine.Replayer
//  3. Stop the operator and wait for every task to be recorded
//  4. Read the runs back and evaluate the assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with engine logs sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	def, err := config.LoadFile(scenario.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	svc := state.NewService(state.WithLogger(logger))
	defer svc.Close()

	h := &Harness{
		scenario: scenario,
		states:   svc,
		store:    st,
		clock:    testutil.NewManualClock(0),
		keys:     testutil.NewRecordingKeys(),
		logger:   logger,
		result:   NewResult(),
	}

	env := op.Env{Keys: h.keys, States: svc, Clock: h.clock, Logger: logger}
	prog, err := config.Build(def, env, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}
	prog.Declare(svc)

	h.operator, err = engine.NewOperator(svc, prog.Scenes,
		engine.WithClock(h.clock),
		engine.WithIDGenerator(testutil.NewSequentialIDs("task")),
		engine.WithTaskRecorder(st),
		engine.WithHooks(h.hooks()),
		engine.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operator: %w", err)
	}
	h.replay = engine.NewReplayer(h.operator, svc, h.clock, scenario.Step)

	runErr := h.executeSteps()
	h.operator.Stop()
	h.operator.Wait()
	if runErr != nil {
		return nil, runErr
	}

	ctx := context.Background()
	if err := h.collectRuns(ctx); err != nil {
		return nil, err
	}
	h.result.Keys = h.keys.Events()

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) hooks() engine.Hooks {
	return engine.Hooks{
		OnStart: func(t *engine.OperationTask) {
			h.result.addEvent(TraceEvent{
				At:      t.StartedAt,
				Type:    EventStart,
				TaskID:  t.ID,
				Scene:   t.Scene,
				Trail:   t.DebugNameDisplay(),
				Trigger: t.Trigger,
			})
		},
		OnStop: func(t *engine.OperationTask, _ engine.Outcome, reason string) {
			h.result.addEvent(TraceEvent{
				At:     h.clock.Now(),
				Type:   EventStop,
				TaskID: t.ID,
				Scene:  t.Scene,
				Reason: reason,
			})
		},
	}
}

// executeSteps plays the timeline.
func (h *Harness) executeSteps() error {
	for i, step := range h.scenario.Steps {
		switch {
		case step.Settle:
			if err := h.settle(); err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
		case step.Tick > 0:
			h.replay.AdvanceTo(h.replay.Now() + step.Tick)
		case len(step.Facts) > 0:
			h.replay.Feed(engine.ReplayBatch{At: *step.At, Records: config.Records(step.Facts, *step.At)})
		default:
			h.replay.AdvanceTo(*step.At)
		}
	}
	return nil
}

// settle waits for the running task to finish, then ticks once so the
// operator reaps it and may start a normal scene.
func (h *Harness) settle() error {
	if task := h.operator.Running(); task != nil {
		timeout := time.Duration(h.scenario.settleTimeout() * float64(time.Second))
		select {
		case <-task.Done():
		case <-time.After(timeout):
			return fmt.Errorf("task %s (%s) still running after %s", task.ID, task.Scene, timeout)
		}
	}
	h.operator.Tick(h.replay.Now())
	return nil
}

// collectRuns reads the recorded runs and orders them like their starts.
func (h *Harness) collectRuns(ctx context.Context) error {
	runs, err := h.store.ReadTaskRuns(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to read task runs: %w", err)
	}
	byID := make(map[string]store.TaskRun, len(runs))
	for _, r := range runs {
		byID[r.ID] = r
	}
	for _, ev := range h.result.starts() {
		r, ok := byID[ev.TaskID]
		if !ok {
			return fmt.Errorf("task %s started but was never recorded", ev.TaskID)
		}
		h.result.Runs = append(h.result.Runs, RunSummary{
			TaskID:  r.ID,
			Scene:   r.Scene,
			Trail:   r.Trail,
			Outcome: r.Outcome,
		})
	}
	return nil
}
