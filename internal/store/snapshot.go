package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/roach88/condop/internal/state"
)

// SnapshotSource provides the state table to snapshot. *state.Service
// satisfies it.
type SnapshotSource interface {
	Snapshot() []state.Recorder
}

// Snapshotter periodically copies the state table into the store.
type Snapshotter struct {
	store  *Store
	source SnapshotSource
	now    func() float64
	logger *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	taken   int
}

// NewSnapshotter creates a snapshotter. now supplies engine time for the
// taken_at column. A nil logger uses slog.Default().
func NewSnapshotter(s *Store, source SnapshotSource, now func() float64, logger *slog.Logger) *Snapshotter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Snapshotter{store: s, source: source, now: now, logger: logger}
}

// Start schedules a snapshot every interval. Calling Start again
// reschedules.
func (sn *Snapshotter) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("snapshot interval must be positive, got %s", interval)
	}

	sn.mu.Lock()
	defer sn.mu.Unlock()

	if sn.cron != nil {
		sn.cron.Stop()
	}
	c := cron.New()
	id, err := c.AddFunc("@every "+interval.String(), sn.scheduled)
	if err != nil {
		return fmt.Errorf("schedule snapshots: %w", err)
	}
	c.Start()
	sn.cron = c
	sn.entryID = id
	return nil
}

func (sn *Snapshotter) scheduled() {
	if _, err := sn.TakeNow(context.Background()); err != nil {
		sn.logger.Error("snapshot failed", "error", err)
	}
}

// TakeNow writes one snapshot immediately and returns its seq.
func (sn *Snapshotter) TakeNow(ctx context.Context) (int64, error) {
	seq, err := sn.store.WriteSnapshot(ctx, sn.now(), sn.source.Snapshot())
	if err != nil {
		return 0, err
	}
	sn.mu.Lock()
	sn.taken++
	sn.mu.Unlock()
	sn.logger.Debug("snapshot written", "seq", seq)
	return seq, nil
}

// Taken returns how many snapshots were written.
func (sn *Snapshotter) Taken() int {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	return sn.taken
}

// Stop cancels the schedule and waits for a running snapshot to finish.
func (sn *Snapshotter) Stop() {
	sn.mu.Lock()
	c := sn.cron
	sn.cron = nil
	sn.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
