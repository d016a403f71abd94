// Package op defines the atomic operations an OperationTask executes and the
// registry that builds them from declarative parameters.
//
// How an operation affects the outside world is hidden behind KeyController
// and StateWriter; the engine only relies on Execute and Stop.
package op

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/condop/internal/state"
)

// AtomicOp is one step of an action sequence.
//
// Execute runs to completion or until ctx is cancelled. Stop requests early
// termination and must make a running Execute (or background work started by
// an async op) return promptly. Ops are shared by every task built from the
// same handler, so per-run state must live in Execute, not in the op.
type AtomicOp interface {
	Name() string
	Execute(ctx context.Context) error
	Stop()
	// Async ops return from Execute while work continues in the background.
	Async() bool
}

// KeyController drives the game input device.
type KeyController interface {
	Tap(key string) error
	Press(key string) error
	Release(key string) error
}

// StateWriter accepts facts produced by operations. *state.Service
// satisfies it.
type StateWriter interface {
	UpdateState(r state.Record)
}

// Clock returns engine time in seconds.
type Clock interface {
	Now() float64
}

// Env carries the collaborators op factories may bind to.
type Env struct {
	Keys   KeyController
	States StateWriter
	Clock  Clock
	Logger *slog.Logger
}

func (e Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Sleep waits for seconds or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, seconds float64) error {
	if seconds <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
