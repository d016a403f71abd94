package store

import (
	"context"
	"log/slog"

	"github.com/roach88/condop/internal/state"
)

// FactLog is a state.Operator that appends every notified batch to the
// store. Register it with the state service to record a session for
// replay.
type FactLog struct {
	store  *Store
	now    func() float64
	logger *slog.Logger
}

// NewFactLog creates a fact log. now supplies the recorded_at time.
func NewFactLog(s *Store, now func() float64, logger *slog.Logger) *FactLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &FactLog{store: s, now: now, logger: logger}
}

// BatchUpdateStates writes the batch. Write failures are logged; the state
// service has no way to act on them.
func (f *FactLog) BatchUpdateStates(records []state.Record) {
	if len(records) == 0 {
		return
	}
	if _, err := f.store.WriteFactBatch(context.Background(), f.now(), records); err != nil {
		f.logger.Error("fact log write failed", "records", len(records), "error", err)
	}
}
