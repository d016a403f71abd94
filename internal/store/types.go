package store

import (
	"errors"

	"github.com/roach88/condop/internal/state"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// FactBatch is one stored batch of state records.
type FactBatch struct {
	Seq        int64
	RecordedAt float64
	Records    []state.Record
}

// TaskRun is the stored outcome of one OperationTask.
type TaskRun struct {
	Seq        int64
	ID         string
	Scene      string
	Priority   *int
	Trigger    string
	Trail      string
	Expr       string
	Ops        []string
	Outcome    string
	StartedAt  float64
	FinishedAt float64
}

// Snapshot is a stored copy of the state table.
type Snapshot struct {
	Seq       int64
	TakenAt   float64
	Recorders []state.Recorder
}
