package cli

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/condop/internal/config"
	"github.com/roach88/condop/internal/engine"
	"github.com/roach88/condop/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Facts         string
	Database      string
	SnapshotEvery time.Duration
	Workers       int

	// IDGenerator allows overriding task IDs (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator engine.IDGenerator
}

// TaskSummary is one finished task as reported by run and replay.
type TaskSummary struct {
	ID      string  `json:"id"`
	Scene   string  `json:"scene"`
	Trigger string  `json:"trigger,omitempty"`
	Trail   string  `json:"trail"`
	Outcome string  `json:"outcome"`
	At      float64 `json:"at"` // seconds since the run started
}

// RunResult is the output of the run command.
type RunResult struct {
	Batches   int           `json:"batches"`
	Tasks     []TaskSummary `json:"tasks"`
	Keys      []KeyEvent    `json:"keys"`
	Snapshots int           `json:"snapshots,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <config.yml>",
		Short: "Run scenes against a scripted fact timeline",
		Long: `Run the engine in real time against a fact script.

The script stands in for live detectors: each batch is reported at its
offset from the start of the run. Key events are printed instead of being
sent to an input device. With --db, every fact batch and task run is
recorded for trace and replay.

Example:
  condop run ./scenes.yml --facts ./fight.yml
  condop run ./scenes.yml --facts ./fight.yml --db ./condop.db --snapshot-every 1s`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Facts, "facts", "", "path to fact script (required)")
	_ = cmd.MarkFlagRequired("facts")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database to record into")
	cmd.Flags().DurationVar(&opts.SnapshotEvery, "snapshot-every", 0, "state snapshot interval (requires --db)")
	cmd.Flags().IntVar(&opts.Workers, "workers", engine.DefaultWorkers, "executor worker count")

	return cmd
}

func runEngine(opts *RunOptions, configPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	def, err := loadDefinition(configPath)
	if err != nil {
		return err
	}
	script, err := config.LoadScript(opts.Facts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid fact script", err)
	}
	if opts.SnapshotEvery > 0 && opts.Database == "" {
		return NewExitError(ExitCommandError, "--snapshot-every requires --db")
	}

	clock := engine.SystemClock{}
	keyOut := formatter.Writer
	if formatter.JSON() {
		keyOut = nil
	}
	keys := newConsoleKeys(clock, keyOut)

	ids := opts.IDGenerator
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}

	var (
		mu    sync.Mutex
		tasks []TaskSummary
	)
	operatorOpts := []engine.OperatorOption{
		engine.WithIDGenerator(ids),
		engine.WithWorkers(opts.Workers),
		engine.WithHooks(engine.Hooks{
			OnFinish: func(t *engine.OperationTask, outcome engine.Outcome) {
				mu.Lock()
				defer mu.Unlock()
				tasks = append(tasks, TaskSummary{
					ID:      t.ID,
					Scene:   t.Scene,
					Trigger: t.Trigger,
					Trail:   t.DebugNameDisplay(),
					Outcome: string(outcome),
					At:      t.StartedAt - keys.start,
				})
			},
		}),
	}

	var st *store.Store
	if opts.Database != "" {
		logger.Info("opening database", "path", opts.Database)
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		operatorOpts = append(operatorOpts, engine.WithTaskRecorder(st))
	}

	sess, err := newSession(def, sessionConfig{keys: keys, clock: clock, logger: logger, opts: operatorOpts})
	if err != nil {
		return err
	}
	defer sess.close()

	var snap *store.Snapshotter
	if st != nil {
		sess.states.Register(store.NewFactLog(st, clock.Now, logger))
		if opts.SnapshotEvery > 0 {
			snap = store.NewSnapshotter(st, sess.states, clock.Now, logger)
			if err := snap.Start(opts.SnapshotEvery); err != nil {
				return WrapExitError(ExitCommandError, "failed to schedule snapshots", err)
			}
			defer snap.Stop()
		}
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Register before Run starts so the first batch cannot be missed; Run's
	// own registration is then a no-op.
	sess.states.Register(sess.operator)
	runErr := make(chan error, 1)
	go func() { runErr <- sess.operator.Run(ctx) }()

	logger.Info("engine started", "config", configPath, "batches", len(script.Batches))
	if !formatter.JSON() {
		fmt.Fprintf(formatter.Writer, "Running %s against %s (%.2fs)\n", configPath, opts.Facts, script.Duration())
	}

	played := playScript(ctx, script, sess, clock, keys.start)

	sess.operator.Stop()
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", err)
	}
	sess.operator.Wait()

	result := RunResult{Batches: played, Keys: keys.Events()}
	if snap != nil {
		if _, err := snap.TakeNow(context.Background()); err != nil {
			logger.Error("final snapshot failed", "error", err)
		}
		result.Snapshots = snap.Taken()
	}
	mu.Lock()
	result.Tasks = append([]TaskSummary{}, tasks...)
	mu.Unlock()
	slices.SortStableFunc(result.Tasks, func(a, b TaskSummary) int { return cmp.Compare(a.At, b.At) })

	logger.Info("engine stopped gracefully")
	return outputRunResult(formatter, result)
}

// playScript reports each batch at its offset from start, then lingers.
// It returns the number of batches reported before ctx was cancelled.
func playScript(ctx context.Context, script *config.Script, sess *session, clock engine.Clock, start float64) int {
	played := 0
	for _, b := range script.Batches {
		if !sleepUntil(ctx, clock, start+b.At) {
			return played
		}
		sess.states.BatchUpdateStates(config.Records(b.Facts, clock.Now()))
		played++
	}
	sleepUntil(ctx, clock, start+script.Duration())
	return played
}

// sleepUntil waits until clock reads t. It returns false if ctx ended first.
func sleepUntil(ctx context.Context, clock engine.Clock, t float64) bool {
	d := time.Duration((t - clock.Now()) * float64(time.Second))
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func outputRunResult(formatter *OutputFormatter, result RunResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Batches: %d  Tasks: %d  Key events: %d\n", result.Batches, len(result.Tasks), len(result.Keys))
	for _, t := range result.Tasks {
		fmt.Fprintf(w, "  %+8.3fs  %-12s %-11s %s\n", t.At, t.Scene, t.Outcome, t.Trail)
	}
	if result.Snapshots > 0 {
		fmt.Fprintf(w, "Snapshots: %d\n", result.Snapshots)
	}
	return nil
}
