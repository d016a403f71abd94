package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/roach88/condop/internal/engine"
	"github.com/roach88/condop/internal/state"
)

// KeyEvent is one key controller call made during a run.
type KeyEvent struct {
	At     float64 `json:"at"` // seconds since the run started
	Action string  `json:"action"`
	Key    string  `json:"key"`
}

// consoleKeys stands in for an input device: it records every key event
// and, when w is set, prints it as it happens.
type consoleKeys struct {
	clock engine.Clock
	start float64
	w     io.Writer

	mu     sync.Mutex
	events []KeyEvent
}

func newConsoleKeys(clock engine.Clock, w io.Writer) *consoleKeys {
	return &consoleKeys{clock: clock, start: clock.Now(), w: w}
}

func (k *consoleKeys) Tap(key string) error     { return k.record("tap", key) }
func (k *consoleKeys) Press(key string) error   { return k.record("press", key) }
func (k *consoleKeys) Release(key string) error { return k.record("release", key) }

func (k *consoleKeys) record(action, key string) error {
	ev := KeyEvent{At: k.clock.Now() - k.start, Action: action, Key: key}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.events = append(k.events, ev)
	if k.w != nil {
		fmt.Fprintf(k.w, "  %+8.3fs  %-7s %s\n", ev.At, action, key)
	}
	return nil
}

// Events returns a copy of the recorded events.
func (k *consoleKeys) Events() []KeyEvent {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]KeyEvent, len(k.events))
	copy(out, k.events)
	return out
}

// nopKeys accepts every key event and does nothing.
type nopKeys struct{}

func (nopKeys) Tap(string) error     { return nil }
func (nopKeys) Press(string) error   { return nil }
func (nopKeys) Release(string) error { return nil }

// discardStates drops facts written by ops that are built but never run.
type discardStates struct{}

func (discardStates) UpdateState(state.Record) {}

// zeroClock reads 0; validation builds ops without running them.
type zeroClock struct{}

func (zeroClock) Now() float64 { return 0 }
