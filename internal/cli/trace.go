package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/condop/internal/state"
	"github.com/roach88/condop/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Scene    string // optional - filter to one scene
	Task     string // optional - a single task run
	States   bool   // also show the latest state snapshot
}

// TraceRun is one recorded task run.
type TraceRun struct {
	Seq        int64    `json:"seq"`
	ID         string   `json:"id"`
	Scene      string   `json:"scene"`
	Priority   *int     `json:"priority,omitempty"`
	Trigger    string   `json:"trigger,omitempty"`
	Trail      string   `json:"trail"`
	Expr       string   `json:"expr,omitempty"`
	Ops        []string `json:"ops"`
	Outcome    string   `json:"outcome"`
	StartedAt  float64  `json:"started_at"`
	FinishedAt float64  `json:"finished_at"`
}

// TraceState is one recorder of the latest snapshot.
type TraceState struct {
	Name           string   `json:"name"`
	LastRecordTime float64  `json:"last_record_time"`
	LastValue      *float64 `json:"last_value,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Runs   []TraceRun   `json:"runs"`
	Stats  TraceStats   `json:"stats"`
	States []TraceState `json:"states,omitempty"`
}

// TraceStats holds summary statistics for the listed runs.
type TraceStats struct {
	Total       int            `json:"total"`
	Completed   int            `json:"completed"`
	Interrupted int            `json:"interrupted"`
	ByScene     map[string]int `json:"by_scene"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List recorded task runs",
		Long: `List the task runs recorded by "condop run --db".

Each run shows the scene, the handler trail that matched, the ops it
carried and whether it completed or was interrupted.

Examples:
  condop trace --db ./condop.db
  condop trace --db ./condop.db --scene dodge
  condop trace --db ./condop.db --task 0191c7a2-... --format json
  condop trace --db ./condop.db --states`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Scene, "scene", "", "filter to one scene")
	cmd.Flags().StringVar(&opts.Task, "task", "", "show a single task run")
	cmd.Flags().BoolVar(&opts.States, "states", false, "include the latest state snapshot")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var runs []store.TaskRun
	if opts.Task != "" {
		run, err := st.ReadTaskRun(ctx, opts.Task)
		if errors.Is(err, store.ErrNotFound) {
			return NewExitError(ExitFailure, fmt.Sprintf("task run not found: %s", opts.Task))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read task run", err)
		}
		runs = []store.TaskRun{run}
	} else {
		runs, err = st.ReadTaskRuns(ctx, opts.Scene)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read task runs", err)
		}
	}

	result := buildTraceResult(runs)
	if opts.States {
		snap, err := st.LatestSnapshot(ctx)
		switch {
		case errors.Is(err, store.ErrNotFound):
			formatter.VerboseLog("No state snapshot recorded")
		case err != nil:
			return WrapExitError(ExitCommandError, "failed to read snapshot", err)
		default:
			result.States = traceStates(snap.Recorders)
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputTraceText(formatter, result)
}

// openExistingStore opens a database that must already exist; store.Open
// would otherwise create an empty one.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func buildTraceResult(runs []store.TaskRun) TraceResult {
	result := TraceResult{
		Runs:  make([]TraceRun, 0, len(runs)),
		Stats: TraceStats{ByScene: make(map[string]int)},
	}
	for _, r := range runs {
		result.Runs = append(result.Runs, TraceRun{
			Seq:        r.Seq,
			ID:         r.ID,
			Scene:      r.Scene,
			Priority:   r.Priority,
			Trigger:    r.Trigger,
			Trail:      r.Trail,
			Expr:       r.Expr,
			Ops:        r.Ops,
			Outcome:    r.Outcome,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
		})
		result.Stats.Total++
		result.Stats.ByScene[r.Scene]++
		switch r.Outcome {
		case "completed":
			result.Stats.Completed++
		case "interrupted":
			result.Stats.Interrupted++
		}
	}
	return result
}

func traceStates(recorders []state.Recorder) []TraceState {
	out := make([]TraceState, 0, len(recorders))
	for _, r := range recorders {
		out = append(out, TraceState{Name: r.StateName, LastRecordTime: r.LastRecordTime, LastValue: r.LastValue})
	}
	return out
}

func outputTraceText(formatter *OutputFormatter, result TraceResult) error {
	w := formatter.Writer

	if result.Stats.Total == 0 {
		fmt.Fprintln(w, "No task runs recorded.")
	} else {
		fmt.Fprintf(w, "Task runs: %d (%d completed, %d interrupted)\n\n",
			result.Stats.Total, result.Stats.Completed, result.Stats.Interrupted)
	}

	for _, r := range result.Runs {
		prio := "-"
		if r.Priority != nil {
			prio = fmt.Sprint(*r.Priority)
		}
		fmt.Fprintf(w, "[%d] %s  %s (priority %s)\n", r.Seq, r.ID, r.Scene, prio)
		if r.Trigger != "" {
			fmt.Fprintf(w, "    trigger:  %s\n", r.Trigger)
		}
		fmt.Fprintf(w, "    trail:    %s\n", r.Trail)
		if formatter.Verbose && r.Expr != "" {
			fmt.Fprintf(w, "    expr:     %s\n", r.Expr)
		}
		fmt.Fprintf(w, "    ops:      %v\n", r.Ops)
		fmt.Fprintf(w, "    outcome:  %s after %.3fs\n", r.Outcome, r.FinishedAt-r.StartedAt)
	}

	if len(result.States) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Latest snapshot:")
		for _, s := range result.States {
			switch {
			case s.LastRecordTime == state.NeverFired:
				fmt.Fprintf(w, "  %-16s never fired\n", s.Name)
			case s.LastRecordTime == state.Cleared:
				fmt.Fprintf(w, "  %-16s cleared\n", s.Name)
			case s.LastValue != nil:
				fmt.Fprintf(w, "  %-16s %.3f = %g\n", s.Name, s.LastRecordTime, *s.LastValue)
			default:
				fmt.Fprintf(w, "  %-16s %.3f\n", s.Name, s.LastRecordTime)
			}
		}
	}
	return nil
}
