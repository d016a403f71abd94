package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/condop/internal/state"
)

// ReadTaskRuns returns recorded task runs in seq order. An empty scene
// returns every run.
func (s *Store) ReadTaskRuns(ctx context.Context, scene string) ([]TaskRun, error) {
	query := `
		SELECT seq, id, scene, priority, trigger_state, trail, expr, ops, outcome, started_at, finished_at
		FROM task_runs
	`
	var args []any
	if scene != "" {
		query += ` WHERE scene = ?`
		args = append(args, scene)
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query task runs: %w", err)
	}
	defer rows.Close()

	var runs []TaskRun
	for rows.Next() {
		run, err := scanTaskRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task runs: %w", err)
	}
	return runs, nil
}

// ReadTaskRun returns one task run by ID, or ErrNotFound.
func (s *Store) ReadTaskRun(ctx context.Context, id string) (TaskRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, id, scene, priority, trigger_state, trail, expr, ops, outcome, started_at, finished_at
		FROM task_runs
		WHERE id = ?
	`, id)
	run, err := scanTaskRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return TaskRun{}, fmt.Errorf("task run %s: %w", id, ErrNotFound)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTaskRun(sc scanner) (TaskRun, error) {
	var (
		run      TaskRun
		priority sql.NullInt64
		ops      string
	)
	err := sc.Scan(
		&run.Seq,
		&run.ID,
		&run.Scene,
		&priority,
		&run.Trigger,
		&run.Trail,
		&run.Expr,
		&ops,
		&run.Outcome,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TaskRun{}, err
		}
		return TaskRun{}, fmt.Errorf("scan task run: %w", err)
	}
	if priority.Valid {
		p := int(priority.Int64)
		run.Priority = &p
	}
	if run.Ops, err = unmarshalStrings(ops); err != nil {
		return TaskRun{}, fmt.Errorf("task run %s: %w", run.ID, err)
	}
	return run, nil
}

// LatestSnapshot returns the most recent snapshot, or ErrNotFound when
// none was taken yet. Recorders are ordered by state name.
func (s *Store) LatestSnapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.db.QueryRowContext(ctx, `
		SELECT seq, taken_at FROM snapshots ORDER BY seq DESC LIMIT 1
	`).Scan(&snap.Seq, &snap.TakenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("latest snapshot: %w", ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT state_name, last_record_time, last_value, mutex_list
		FROM state_snapshots
		WHERE snapshot_seq = ?
		ORDER BY state_name COLLATE BINARY ASC
	`, snap.Seq)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query snapshot states: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name  string
			last  float64
			value sql.NullFloat64
			mutex string
		)
		if err := rows.Scan(&name, &last, &value, &mutex); err != nil {
			return Snapshot{}, fmt.Errorf("scan snapshot state: %w", err)
		}
		peers, err := unmarshalStrings(mutex)
		if err != nil {
			return Snapshot{}, fmt.Errorf("snapshot state %s: %w", name, err)
		}
		r := state.NewRecorder(name, peers...)
		r.LastRecordTime = last
		if value.Valid {
			v := value.Float64
			r.LastValue = &v
		}
		snap.Recorders = append(snap.Recorders, *r)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("iterate snapshot states: %w", err)
	}
	return snap, nil
}
