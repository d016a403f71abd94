package engine

// # Replay
//
// Replay re-feeds a recorded fact timeline into an Operator without wall
// clock time. The same code path as live operation handles every batch:
//
//	[Batch at T] → clock.Set(T) → Service.BatchUpdateStates → Operator.HandleBatch
//
// Between two batches the Replayer advances the clock in fixed steps and
// calls Tick at each one, so normal scenes and interrupt trees are polled
// as they would be live. Only the timing of task starts is deterministic:
// op execution still runs on the executor.

import (
	"math"

	"github.com/roach88/condop/internal/state"
)

// DefaultReplayStep is the tick spacing used between replayed batches.
const DefaultReplayStep = 0.1

// maxReplayTicks bounds the ticks emitted for one gap so a long idle gap in
// the timeline does not stall replay.
const maxReplayTicks = 10000

// SettableClock is a Clock that replay can move.
// ReplayClock and testutil.ManualClock implement it.
type SettableClock interface {
	Clock
	Set(t float64)
}

// ReplayBatch is one recorded fact batch.
type ReplayBatch struct {
	At      float64
	Records []state.Record
}

// Replayer drives an Operator synchronously from recorded batches.
//
// The Operator must not be running its own Run loop.
type Replayer struct {
	op     *Operator
	states *state.Service
	clock  SettableClock
	step   float64
	now    float64
	primed bool
}

// NewReplayer creates a replayer. The Operator must share clock and states.
// A step of zero or less uses DefaultReplayStep.
func NewReplayer(o *Operator, states *state.Service, clock SettableClock, step float64) *Replayer {
	if step <= 0 {
		step = DefaultReplayStep
	}
	return &Replayer{op: o, states: states, clock: clock, step: step}
}

// AdvanceTo ticks the Operator at every step up to and including t.
func (r *Replayer) AdvanceTo(t float64) {
	if !r.primed {
		r.now = t
		r.primed = true
		r.clock.Set(t)
		return
	}
	if t < r.now {
		return
	}

	ticks := int(math.Floor((t - r.now) / r.step))
	if ticks > maxReplayTicks {
		// Skip the bulk of a long gap and tick through its tail.
		r.now = t - float64(maxReplayTicks)*r.step
		ticks = maxReplayTicks
	}
	start := r.now
	for i := 1; i <= ticks; i++ {
		at := math.Min(start+float64(i)*r.step, t)
		r.now = at
		r.clock.Set(at)
		r.op.Tick(at)
	}
	if r.now < t {
		r.now = t
		r.clock.Set(t)
		r.op.Tick(t)
	}
}

// Feed advances to the batch time, applies the batch to the state service
// and hands it to the Operator.
func (r *Replayer) Feed(b ReplayBatch) {
	r.AdvanceTo(b.At)
	r.states.BatchUpdateStates(b.Records)
	r.op.HandleBatch(b.At, state.Names(b.Records))
}

// FeedAll replays batches in order.
func (r *Replayer) FeedAll(batches []ReplayBatch) {
	for _, b := range batches {
		r.Feed(b)
	}
}

// Now returns the replay time.
func (r *Replayer) Now() float64 {
	return r.now
}
