package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/condop/internal/state"
)

// WriteFactBatch appends a fact batch and returns its seq.
func (s *Store) WriteFactBatch(ctx context.Context, recordedAt float64, records []state.Record) (int64, error) {
	data, err := marshalRecords(records)
	if err != nil {
		return 0, fmt.Errorf("write fact batch: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO fact_batches (recorded_at, records)
		VALUES (?, ?)
	`, recordedAt, data)
	if err != nil {
		return 0, fmt.Errorf("write fact batch: %w", err)
	}
	return res.LastInsertId()
}

// WriteTaskRun inserts a finished task run.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - a run recorded twice
// keeps its first row.
//
// Implements engine.TaskRecorder.
func (s *Store) WriteTaskRun(ctx context.Context, run TaskRun) error {
	ops, err := marshalStrings(run.Ops)
	if err != nil {
		return fmt.Errorf("write task run: %w", err)
	}

	var priority sql.NullInt64
	if run.Priority != nil {
		priority = sql.NullInt64{Int64: int64(*run.Priority), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_runs
		(id, scene, priority, trigger_state, trail, expr, ops, outcome, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Scene,
		priority,
		run.Trigger,
		run.Trail,
		run.Expr,
		ops,
		run.Outcome,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("write task run %s: %w", run.ID, err)
	}
	return nil
}

// WriteSnapshot stores a copy of the state table atomically and returns
// the snapshot seq.
func (s *Store) WriteSnapshot(ctx context.Context, takenAt float64, recorders []state.Recorder) (seq int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write snapshot: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `INSERT INTO snapshots (taken_at) VALUES (?)`, takenAt)
	if err != nil {
		return 0, fmt.Errorf("write snapshot: %w", err)
	}
	seq, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO state_snapshots
		(snapshot_seq, state_name, last_record_time, last_value, mutex_list)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("write snapshot: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range recorders {
		var value sql.NullFloat64
		if r.LastValue != nil {
			value = sql.NullFloat64{Float64: *r.LastValue, Valid: true}
		}
		mutex, err := marshalStrings(r.Mutexes())
		if err != nil {
			return 0, fmt.Errorf("write snapshot: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, seq, r.StateName, r.LastRecordTime, value, mutex); err != nil {
			return 0, fmt.Errorf("write snapshot state %s: %w", r.StateName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write snapshot: commit: %w", err)
	}
	return seq, nil
}
