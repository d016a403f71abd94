package op

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/condop/internal/state"
)

// PressConfig configures a key press.
type PressConfig struct {
	Key string `mapstructure:"key"`
	// Duration in seconds the key is held; 0 taps it.
	Duration float64 `mapstructure:"duration"`
	// Async holds the key in the background and lets the sequence move on.
	Async bool `mapstructure:"async"`
}

// PressOp taps or holds a key.
type PressOp struct {
	cfg    PressConfig
	keys   KeyController
	logger *slog.Logger
}

func (p *PressOp) Name() string { return fmt.Sprintf("press(%s)", p.cfg.Key) }

func (p *PressOp) Async() bool { return p.cfg.Async && p.cfg.Duration > 0 }

func (p *PressOp) Execute(ctx context.Context) error {
	if p.cfg.Duration <= 0 {
		return p.keys.Tap(p.cfg.Key)
	}
	if err := p.keys.Press(p.cfg.Key); err != nil {
		return err
	}
	if p.Async() {
		go p.hold(ctx)
		return nil
	}
	return p.hold(ctx)
}

// hold keeps the key down for the configured duration, releasing early when
// ctx is cancelled.
func (p *PressOp) hold(ctx context.Context) error {
	waitErr := Sleep(ctx, p.cfg.Duration)
	if err := p.keys.Release(p.cfg.Key); err != nil {
		p.logger.Warn("key release failed", "key", p.cfg.Key, "error", err)
	}
	return waitErr
}

// Stop releases the key immediately.
func (p *PressOp) Stop() {
	if p.cfg.Duration <= 0 {
		return
	}
	if err := p.keys.Release(p.cfg.Key); err != nil {
		p.logger.Warn("key release failed", "key", p.cfg.Key, "error", err)
	}
}

// ReleaseConfig configures a key release.
type ReleaseConfig struct {
	Key string `mapstructure:"key"`
}

// ReleaseOp releases a key held by an earlier press.
type ReleaseOp struct {
	cfg  ReleaseConfig
	keys KeyController
}

func (r *ReleaseOp) Name() string { return fmt.Sprintf("release(%s)", r.cfg.Key) }

func (r *ReleaseOp) Async() bool { return false }

func (r *ReleaseOp) Execute(context.Context) error { return r.keys.Release(r.cfg.Key) }

func (r *ReleaseOp) Stop() {}

// WaitConfig configures a wait.
type WaitConfig struct {
	Seconds float64 `mapstructure:"seconds"`
}

// WaitOp sleeps; cancellation of the task context ends it early.
type WaitOp struct {
	cfg WaitConfig
}

// NewWaitOp builds a wait of the given length.
func NewWaitOp(seconds float64) *WaitOp {
	return &WaitOp{cfg: WaitConfig{Seconds: seconds}}
}

func (w *WaitOp) Name() string { return fmt.Sprintf("wait(%gs)", w.cfg.Seconds) }

func (w *WaitOp) Async() bool { return false }

func (w *WaitOp) Execute(ctx context.Context) error { return Sleep(ctx, w.cfg.Seconds) }

// Stop is a no-op: the task cancels the context passed to Execute, which is
// what wakes the sleep. The op is shared between tasks, so it keeps no
// per-run stop channel.
func (w *WaitOp) Stop() {}

// SetStateConfig configures a state write.
type SetStateConfig struct {
	State    string   `mapstructure:"state"`
	Value    *float64 `mapstructure:"value"`
	ValueAdd *float64 `mapstructure:"value_add"`
	TimeAdd  *float64 `mapstructure:"time_add"`
}

// SetStateOp records a fact at the current engine time.
type SetStateOp struct {
	cfg    SetStateConfig
	states StateWriter
	clock  Clock
}

func (s *SetStateOp) Name() string { return fmt.Sprintf("set-state(%s)", s.cfg.State) }

func (s *SetStateOp) Async() bool { return false }

func (s *SetStateOp) Execute(context.Context) error {
	var opts []state.RecordOption
	if s.cfg.Value != nil {
		opts = append(opts, state.WithValue(*s.cfg.Value))
	}
	if s.cfg.ValueAdd != nil {
		opts = append(opts, state.WithValueAdd(*s.cfg.ValueAdd))
	}
	if s.cfg.TimeAdd != nil {
		opts = append(opts, state.WithTriggerTimeAdd(*s.cfg.TimeAdd))
	}
	s.states.UpdateState(state.NewRecord(s.cfg.State, s.clock.Now(), opts...))
	return nil
}

func (s *SetStateOp) Stop() {}

// ClearStateConfig configures a state clear.
type ClearStateConfig struct {
	State string `mapstructure:"state"`
}

// ClearStateOp clears a state.
type ClearStateOp struct {
	cfg    ClearStateConfig
	states StateWriter
}

func (c *ClearStateOp) Name() string { return fmt.Sprintf("clear-state(%s)", c.cfg.State) }

func (c *ClearStateOp) Async() bool { return false }

func (c *ClearStateOp) Execute(context.Context) error {
	c.states.UpdateState(state.NewClearRecord(c.cfg.State))
	return nil
}

func (c *ClearStateOp) Stop() {}

// LogConfig configures a log line.
type LogConfig struct {
	Message string `mapstructure:"message"`
	Level   string `mapstructure:"level"`
}

// LogOp writes a log line; handy when tuning a configuration.
type LogOp struct {
	cfg    LogConfig
	level  slog.Level
	logger *slog.Logger
}

func (l *LogOp) Name() string { return "log" }

func (l *LogOp) Async() bool { return false }

func (l *LogOp) Execute(ctx context.Context) error {
	l.logger.Log(ctx, l.level, l.cfg.Message)
	return nil
}

func (l *LogOp) Stop() {}
