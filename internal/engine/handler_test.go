package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/condop/internal/cond"
	"github.com/roach88/condop/internal/op"
	"github.com/roach88/condop/internal/state"
	"github.com/roach88/condop/internal/testutil"
)

func TestStateHandler_FalseConditionIsInert(t *testing.T) {
	states := newTestStates(t, "A")
	h := leaf("A", "a", 1, &testutil.RecordingOp{OpName: "x"})

	assert.Nil(t, h.GetOperations(states, 100), "never-fired state must not match")

	states.UpdateState(state.NewRecord("A", 100))
	assert.Nil(t, h.GetOperations(states, 102), "outside the window")
	assert.NotNil(t, h.GetOperations(states, 100.5))
}

func TestStateHandler_FirstMatchWins(t *testing.T) {
	states := newTestStates(t, "A", "B")
	states.UpdateState(state.NewRecord("A", 100))
	states.UpdateState(state.NewRecord("B", 100))

	first := &testutil.RecordingOp{OpName: "first"}
	second := &testutil.RecordingOp{OpName: "second"}
	root := &StateHandler{
		DebugName: "root",
		Children: []*StateHandler{
			leaf("A", "a", 1, first),
			leaf("B", "b", 1, second),
		},
	}

	task := root.GetOperations(states, 100.2)
	require.NotNil(t, task)
	assert.Equal(t, []string{"first"}, task.OpNames())
	assert.Equal(t, "a ← root", task.DebugNameDisplay())
}

func TestStateHandler_SkipsInertSibling(t *testing.T) {
	states := newTestStates(t, "A", "B")
	states.UpdateState(state.NewRecord("B", 100))

	root := &StateHandler{
		DebugName: "root",
		Children: []*StateHandler{
			leaf("A", "a", 1, &testutil.RecordingOp{OpName: "first"}),
			leaf("B", "b", 1, &testutil.RecordingOp{OpName: "second"}),
		},
	}

	task := root.GetOperations(states, 100.2)
	require.NotNil(t, task)
	assert.Equal(t, []string{"second"}, task.OpNames())
}

func TestStateHandler_NoChildMatchIsInert(t *testing.T) {
	states := newTestStates(t, "A")
	root := &StateHandler{
		DebugName: "root",
		Children:  []*StateHandler{leaf("A", "a", 1)},
	}
	assert.Nil(t, root.GetOperations(states, 100))
}

func TestStateHandler_TrailReadsLeafToRoot(t *testing.T) {
	states := newTestStates(t, "X")
	states.UpdateState(state.NewRecord("X", 100))

	root := branch("X", "C", 5,
		branch("X", "B", 5,
			leaf("X", "A", 5, &testutil.RecordingOp{OpName: "go"})))

	task := root.GetOperations(states, 101)
	require.NotNil(t, task)
	assert.Equal(t, "A ← B ← C", task.DebugNameDisplay())
	assert.Equal(t, []string{"A", "B", "C"}, task.DebugNameList)
	assert.Len(t, task.ExprList, 3)
	assert.Equal(t, `["X", 0, 5] ← ["X", 0, 5] ← ["X", 0, 5]`, task.ExprDisplay())
}

func TestStateHandler_EmptyLabelUsesPlaceholder(t *testing.T) {
	states := newTestStates(t, "X")
	states.UpdateState(state.NewRecord("X", 100))

	root := branch("X", "root", 5, leaf("X", "", 5))

	task := root.GetOperations(states, 101)
	require.NotNil(t, task)
	assert.Equal(t, "[ ] ← root", task.DebugNameDisplay())
}

func TestStateHandler_NilConditionAlwaysMatches(t *testing.T) {
	states := newTestStates(t)
	h := &StateHandler{DebugName: "always", Ops: []op.AtomicOp{&testutil.RecordingOp{OpName: "x"}}}

	task := h.GetOperations(states, 0)
	require.NotNil(t, task)
	assert.Equal(t, "always", task.DebugNameDisplay())
}

func TestStateHandler_InterruptTreesMergeWithOr(t *testing.T) {
	states := newTestStates(t, "X", "hit", "dodge")
	states.UpdateState(state.NewRecord("X", 100))

	child := leaf("X", "leaf", 5)
	child.Interrupt = cond.Leaf("hit", 0, 1)
	mid := branch("X", "mid", 5, child)
	root := branch("X", "root", 5, mid)
	root.Interrupt = cond.Leaf("dodge", 0, 1)

	task := root.GetOperations(states, 101)
	require.NotNil(t, task)
	require.NotNil(t, task.InterruptTree)
	assert.Equal(t, cond.KindOp, task.InterruptTree.Kind)
	assert.Equal(t, cond.Or, task.InterruptTree.Op)
	assert.Equal(t, []string{"dodge", "hit"}, task.InterruptTree.UsageStateList())

	assert.False(t, task.InterruptTree.InTimeRange(states, 101))
	states.UpdateState(state.NewRecord("dodge", 101))
	assert.True(t, task.InterruptTree.InTimeRange(states, 101.5))
}

func TestStateHandler_AncestorInterruptAssignedWhenLeafHasNone(t *testing.T) {
	states := newTestStates(t, "X", "hit")
	states.UpdateState(state.NewRecord("X", 100))

	root := branch("X", "root", 5, leaf("X", "leaf", 5))
	root.Interrupt = cond.Leaf("hit", 0, 1)

	task := root.GetOperations(states, 101)
	require.NotNil(t, task)
	assert.Same(t, root.Interrupt, task.InterruptTree)
}

func TestStateHandler_UsageStates(t *testing.T) {
	child := leaf("B", "b", 1)
	child.Interrupt = cond.Leaf("C", 0, 1)
	root := branch("A", "a", 1, child)

	assert.Equal(t, map[string]struct{}{"A": {}, "B": {}, "C": {}}, root.UsageStates())
}
