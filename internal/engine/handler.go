package engine

import (
	"github.com/roach88/condop/internal/cond"
	"github.com/roach88/condop/internal/op"
)

// PlaceholderLabel is recorded in a task's trail for a handler without a
// debug name.
const PlaceholderLabel = "[ ]"

// StateHandler is one node of a scene's handler tree.
//
// A handler either carries Ops (a leaf) or Children, never both; the loader
// rejects handlers that declare both. Expr is the source text of Cond and is
// only used for display.
type StateHandler struct {
	Expr      string
	DebugName string
	Cond      *cond.Node
	Interrupt *cond.Node
	Ops       []op.AtomicOp
	Children  []*StateHandler
}

// IsLeaf reports whether the handler produces tasks directly.
func (h *StateHandler) IsLeaf() bool {
	return len(h.Children) == 0
}

// GetOperations matches the handler tree against the state table at now.
//
// Matching is first-match: children are tried in declaration order and the
// first one that yields a task wins. On the way back up every ancestor
// appends its trail entry and ORs its interrupt tree into the task, so the
// trail reads leaf to root.
//
// Returns nil when this branch is inert at now.
func (h *StateHandler) GetOperations(src cond.Lookup, now float64) *OperationTask {
	if !h.Cond.InTimeRange(src, now) {
		return nil
	}

	if h.IsLeaf() {
		task := NewOperationTask(h.Ops)
		task.AddTrail(h.Expr, h.DebugName)
		task.InterruptTree = h.Interrupt
		return task
	}

	for _, child := range h.Children {
		task := child.GetOperations(src, now)
		if task == nil {
			continue
		}
		task.AddTrail(h.Expr, h.DebugName)
		task.InterruptTree = cond.MergeOr(task.InterruptTree, h.Interrupt)
		return task
	}
	return nil
}

// UsageStates returns every state referenced by the conditions and
// interrupt trees of this subtree.
func (h *StateHandler) UsageStates() map[string]struct{} {
	out := make(map[string]struct{})
	h.collectStates(out)
	return out
}

func (h *StateHandler) collectStates(out map[string]struct{}) {
	for name := range h.Cond.UsageStates() {
		out[name] = struct{}{}
	}
	for name := range h.Interrupt.UsageStates() {
		out[name] = struct{}{}
	}
	for _, child := range h.Children {
		child.collectStates(out)
	}
}
