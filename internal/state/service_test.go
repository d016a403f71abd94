package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingOperator struct {
	mu      sync.Mutex
	batches [][]Record
	got     chan struct{}
}

func newRecordingOperator() *recordingOperator {
	return &recordingOperator{got: make(chan struct{}, 16)}
}

func (o *recordingOperator) BatchUpdateStates(records []Record) {
	o.mu.Lock()
	o.batches = append(o.batches, records)
	o.mu.Unlock()
	o.got <- struct{}{}
}

func (o *recordingOperator) wait(t *testing.T) {
	t.Helper()
	select {
	case <-o.got:
	case <-time.After(2 * time.Second):
		t.Fatal("operator was not notified")
	}
}

type panickingOperator struct{}

func (panickingOperator) BatchUpdateStates([]Record) {
	panic("detector callback exploded")
}

func TestService_MutexClearing(t *testing.T) {
	s := NewService()
	defer s.Close()

	s.Declare("A", "B")
	s.UpdateState(NewRecord("B", 10))

	b, ok := s.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, 10.0, b.LastRecordTime)

	s.UpdateState(NewRecord("A", 11))

	b, _ = s.Lookup("B")
	assert.Equal(t, Cleared, b.LastRecordTime)
	assert.Nil(t, b.LastValue)

	a, _ := s.Lookup("A")
	assert.Equal(t, 11.0, a.LastRecordTime)
}

func TestService_MutexPeerNeverFiredStaysNeverFired(t *testing.T) {
	s := NewService()
	defer s.Close()

	s.Declare("A", "B")
	s.UpdateState(NewRecord("A", 11))

	b, ok := s.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, NeverFired, b.LastRecordTime)
}

func TestService_ClearRecordDoesNotClearPeers(t *testing.T) {
	s := NewService()
	defer s.Close()

	s.Declare("A", "B")
	s.UpdateState(NewRecord("A", 5))
	s.UpdateState(NewRecord("B", 6)) // B has no peers, A stays fired
	s.UpdateState(NewClearRecord("A"))

	a, _ := s.Lookup("A")
	b, _ := s.Lookup("B")
	assert.Equal(t, Cleared, a.LastRecordTime)
	assert.Equal(t, 6.0, b.LastRecordTime)
}

func TestService_BatchAppliedInOrder(t *testing.T) {
	s := NewService()
	defer s.Close()

	s.BatchUpdateStates([]Record{
		NewRecord("A", 100),
		NewRecord("A", 0, WithTriggerTimeAdd(5)),
		NewRecord("A", 50, WithValueAdd(2)),
		NewRecord("A", 0, WithTriggerTimeAdd(1), WithValueAdd(2)),
	})

	// The third record has no TriggerTimeAdd so it overwrites the time.
	a, _ := s.Lookup("A")
	assert.Equal(t, 49.0, a.LastRecordTime)
	require.NotNil(t, a.LastValue)
	assert.Equal(t, 4.0, *a.LastValue)
}

func TestService_CreatesUnknownStatesDynamically(t *testing.T) {
	s := NewService()
	defer s.Close()

	assert.False(t, s.Known("fresh"))
	s.UpdateState(NewRecord("fresh", 3))
	assert.True(t, s.Known("fresh"))
	assert.Equal(t, []string{"fresh"}, s.Names())
}

func TestService_LookupUnknown(t *testing.T) {
	s := NewService()
	defer s.Close()

	_, ok := s.Lookup("missing")
	assert.False(t, ok)
}

func TestService_NotifiesEveryOperator(t *testing.T) {
	s := NewService()
	defer s.Close()

	op1 := newRecordingOperator()
	op2 := newRecordingOperator()
	s.Register(op1)
	s.Register(op2)
	s.Register(op1) // duplicate registration is ignored

	batch := []Record{NewRecord("A", 1), NewRecord("B", 2)}
	s.BatchUpdateStates(batch)

	op1.wait(t)
	op2.wait(t)

	op1.mu.Lock()
	defer op1.mu.Unlock()
	require.Len(t, op1.batches, 1)
	assert.Equal(t, batch, op1.batches[0])
}

func TestService_FailingOperatorDoesNotBlockOthers(t *testing.T) {
	s := NewService()
	defer s.Close()

	healthy := newRecordingOperator()
	s.Register(panickingOperator{})
	s.Register(healthy)

	s.UpdateState(NewRecord("A", 1))
	healthy.wait(t)

	s.UpdateState(NewRecord("A", 2))
	healthy.wait(t)
}

func TestService_Unregister(t *testing.T) {
	s := NewService()
	defer s.Close()

	op := newRecordingOperator()
	s.Register(op)
	s.Unregister(op)

	s.UpdateState(NewRecord("A", 1))

	select {
	case <-op.got:
		t.Fatal("unregistered operator was notified")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestService_SnapshotSorted(t *testing.T) {
	s := NewService()
	defer s.Close()

	s.UpdateState(NewRecord("b", 1))
	s.UpdateState(NewRecord("a", 2))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].StateName)
	assert.Equal(t, "b", snap[1].StateName)
}
