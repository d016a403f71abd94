package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/condop/internal/state"
	"github.com/roach88/condop/internal/testutil"
)

func TestScene_MatchExecutionStampsTask(t *testing.T) {
	states := newTestStates(t, "A", "B")
	states.UpdateState(state.NewRecord("B", 100))

	s := &Scene{
		Name:     "combat",
		Priority: Priority(3),
		Triggers: []string{"B"},
		Handlers: []*StateHandler{
			leaf("A", "a", 1, &testutil.RecordingOp{OpName: "a"}),
			leaf("B", "b", 1, &testutil.RecordingOp{OpName: "b"}),
		},
	}

	task := s.MatchExecution(states, 100.5, "B")
	require.NotNil(t, task)
	assert.Equal(t, "combat", task.Scene)
	require.NotNil(t, task.Priority)
	assert.Equal(t, 3, *task.Priority)
	assert.Equal(t, "B", task.Trigger)
	assert.True(t, task.IsTrigger())
	assert.Equal(t, []string{"b"}, task.OpNames())
}

func TestScene_NoMatch(t *testing.T) {
	states := newTestStates(t, "A")
	s := &Scene{Name: "idle", Handlers: []*StateHandler{leaf("A", "a", 1)}}

	assert.Nil(t, s.MatchExecution(states, 100, ""))
}

func TestScene_IsTriggered(t *testing.T) {
	s := &Scene{Triggers: []string{"hit", "stun"}}

	trigger, ok := s.IsTriggered([]string{"walk", "stun"})
	assert.True(t, ok)
	assert.Equal(t, "stun", trigger)

	_, ok = s.IsTriggered([]string{"walk"})
	assert.False(t, ok)

	assert.True(t, s.IsTriggerScene())
	assert.False(t, (&Scene{}).IsTriggerScene())
}

func TestScene_PriorityValue(t *testing.T) {
	assert.Equal(t, -1, (&Scene{}).PriorityValue())
	assert.Equal(t, 7, (&Scene{Priority: Priority(7)}).PriorityValue())
}
