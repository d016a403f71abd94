package engine

import (
	"testing"

	"github.com/roach88/condop/internal/cond"
	"github.com/roach88/condop/internal/op"
	"github.com/roach88/condop/internal/state"
)

// newTestStates returns a service with the named states declared.
func newTestStates(t *testing.T, names ...string) *state.Service {
	t.Helper()
	s := state.NewService()
	t.Cleanup(s.Close)
	for _, n := range names {
		s.Declare(n)
	}
	return s
}

// leaf builds a handler whose condition is "state fired within window".
func leaf(name, label string, window float64, ops ...op.AtomicOp) *StateHandler {
	c := cond.Leaf(name, 0, window)
	return &StateHandler{Expr: c.String(), DebugName: label, Cond: c, Ops: ops}
}

// branch builds a handler with children.
func branch(name, label string, window float64, children ...*StateHandler) *StateHandler {
	c := cond.Leaf(name, 0, window)
	return &StateHandler{Expr: c.String(), DebugName: label, Cond: c, Children: children}
}
