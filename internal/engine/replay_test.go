package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/condop/internal/state"
	"github.com/roach88/condop/internal/testutil"
)

type startLog struct {
	mu     sync.Mutex
	starts []float64
}

func (l *startLog) hooks() Hooks {
	return Hooks{OnStart: func(t *OperationTask) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.starts = append(l.starts, t.StartedAt)
	}}
}

func (l *startLog) times() []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]float64(nil), l.starts...)
}

func TestReplayer_FeedsBatchesAtRecordedTimes(t *testing.T) {
	states := newTestStates(t, "hit")
	clock := testutil.NewManualClock(0)
	log := &startLog{}

	s := triggerScene("dodge", nil, "hit", &testutil.RecordingOp{OpName: "roll"})
	s.IntervalSeconds = 1
	o := newTestOperator(t, states, []*Scene{s}, WithClock(clock), WithHooks(log.hooks()))

	r := NewReplayer(o, states, clock, 0.1)
	r.FeedAll([]ReplayBatch{
		{At: 100, Records: []state.Record{state.NewRecord("hit", 100)}},
		{At: 100.5, Records: []state.Record{state.NewRecord("hit", 100.5)}},
		{At: 102, Records: []state.Record{state.NewRecord("hit", 102)}},
	})
	o.Wait()

	assert.Equal(t, []float64{100, 102}, log.times())
	assert.Equal(t, 102.0, clock.Now())
	assert.Equal(t, 102.0, r.Now())
}

func TestReplayer_TicksBetweenBatches(t *testing.T) {
	states := newTestStates(t, "walk")
	clock := testutil.NewManualClock(0)
	log := &startLog{}

	// A normal scene that only matches once walk is two seconds old.
	h := leaf("walk", "late", 10, &testutil.RecordingOp{OpName: "x"})
	h.Cond.MinSeconds = 2
	o := newTestOperator(t, states, []*Scene{
		{Name: "late", IntervalSeconds: 100, Handlers: []*StateHandler{h}},
	}, WithClock(clock), WithHooks(log.hooks()))

	r := NewReplayer(o, states, clock, 0.5)
	r.Feed(ReplayBatch{At: 100, Records: []state.Record{state.NewRecord("walk", 100)}})
	r.AdvanceTo(105)
	o.Wait()

	starts := log.times()
	require.Len(t, starts, 1)
	assert.InDelta(t, 102.0, starts[0], 1e-9)
}

func TestReplayer_IgnoresTimeGoingBackwards(t *testing.T) {
	states := newTestStates(t)
	clock := testutil.NewManualClock(0)
	o := newTestOperator(t, states, nil, WithClock(clock))

	r := NewReplayer(o, states, clock, 0)
	r.AdvanceTo(50)
	r.AdvanceTo(40)

	assert.Equal(t, 50.0, r.Now())
}
