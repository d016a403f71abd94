package cli

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roach88/condop/internal/config"
	"github.com/roach88/condop/internal/engine"
	"github.com/roach88/condop/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Step     float64
}

// ReplayStart is one task start made during replay.
type ReplayStart struct {
	At      float64 `json:"at"` // seconds since the first batch
	Scene   string  `json:"scene"`
	Trigger string  `json:"trigger,omitempty"`
	Trail   string  `json:"trail"`
}

// ReplayResult holds the replay result.
type ReplayResult struct {
	Batches  int           `json:"batches"`
	Recorded []string      `json:"recorded"` // scenes of recorded runs, in start order
	Replayed []ReplayStart `json:"replayed"`
	Matches  bool          `json:"matches"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <config.yml>",
		Short: "Replay recorded facts and compare task starts",
		Long: `Re-feed the fact batches recorded by "condop run --db" into a fresh
engine on a manual clock and compare the scenes it starts with the
recorded task runs.

Ops still execute, against a key controller that does nothing.

Exit codes:
  0 - Replayed scene order matches the recording
  1 - Replay started a different sequence of scenes
  2 - Command error (database not found, invalid config, etc.)

Examples:
  condop replay ./scenes.yml --db ./condop.db
  condop replay ./scenes.yml --db ./condop.db --step 0.05 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().Float64Var(&opts.Step, "step", engine.DefaultReplayStep, "tick spacing in seconds")

	return cmd
}

func runReplay(opts *ReplayOptions, configPath string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	def, err := loadDefinition(configPath)
	if err != nil {
		return err
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	history, err := st.LoadHistory(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load history", err)
	}
	formatter.VerboseLog("Loaded %d batch(es) and %d run(s)", len(history.Batches), len(history.Runs))

	result, err := replayHistory(def, history, opts.Step, logger)
	if err != nil {
		return err
	}

	if formatter.JSON() {
		if !result.Matches {
			if err := formatter.Failure("E_REPLAY_DIVERGED", "replayed scenes differ from the recording", result); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "replay diverged")
		}
		return formatter.Success(result)
	}
	return outputReplayText(formatter, result)
}

// replayHistory feeds history into a fresh engine built from def.
func replayHistory(def *config.Definition, history store.History, step float64, logger *slog.Logger) (ReplayResult, error) {
	result := ReplayResult{Batches: len(history.Batches), Replayed: []ReplayStart{}}

	var origin float64
	if len(history.Batches) > 0 {
		origin = history.Batches[0].RecordedAt
	}

	var mu sync.Mutex
	clock := &engine.ReplayClock{}
	sess, err := newSession(def, sessionConfig{
		keys:   nopKeys{},
		clock:  clock,
		logger: logger,
		opts: []engine.OperatorOption{
			engine.WithHooks(engine.Hooks{
				OnStart: func(t *engine.OperationTask) {
					mu.Lock()
					defer mu.Unlock()
					result.Replayed = append(result.Replayed, ReplayStart{
						At:      t.StartedAt - origin,
						Scene:   t.Scene,
						Trigger: t.Trigger,
						Trail:   t.DebugNameDisplay(),
					})
				},
			}),
		},
	})
	if err != nil {
		return result, err
	}

	r := engine.NewReplayer(sess.operator, sess.states, clock, step)
	for _, b := range history.Batches {
		r.Feed(engine.ReplayBatch{At: b.RecordedAt, Records: b.Records})
	}
	sess.close()

	runs := slices.Clone(history.Runs)
	slices.SortStableFunc(runs, func(a, b store.TaskRun) int { return cmp.Compare(a.StartedAt, b.StartedAt) })
	result.Recorded = make([]string, 0, len(runs))
	for _, run := range runs {
		result.Recorded = append(result.Recorded, run.Scene)
	}

	mu.Lock()
	defer mu.Unlock()
	replayed := make([]string, 0, len(result.Replayed))
	for _, s := range result.Replayed {
		replayed = append(replayed, s.Scene)
	}
	result.Matches = slices.Equal(result.Recorded, replayed)
	return result, nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Replayed %d batch(es)\n\n", result.Batches)
	for _, s := range result.Replayed {
		fmt.Fprintf(w, "  %+8.3fs  %-12s %s\n", s.At, s.Scene, s.Trail)
	}
	fmt.Fprintln(w)

	if result.Matches {
		fmt.Fprintf(w, "✓ %d task start(s) match the recording\n", len(result.Replayed))
		return nil
	}

	fmt.Fprintln(w, "✗ Replay diverged from the recording")
	fmt.Fprintf(w, "  recorded: %v\n", result.Recorded)
	replayed := make([]string, 0, len(result.Replayed))
	for _, s := range result.Replayed {
		replayed = append(replayed, s.Scene)
	}
	fmt.Fprintf(w, "  replayed: %v\n", replayed)
	// Divergence = exit code 1
	return NewExitError(ExitFailure, "replay diverged")
}
