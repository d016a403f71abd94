// Package engine implements the conditional operation engine: it turns the
// live state table into action sequences and arbitrates which one runs.
//
// ARCHITECTURE:
//
// Matching:
// A Scene holds an ordered list of StateHandlers. Each handler guards a
// subtree with a condition tree; the first handler (depth first, in
// declaration order) whose conditions hold produces an OperationTask. The
// task carries the match trail from leaf to root for display.
//
// Arbitration:
// The Operator owns at most one primary task. Trigger scenes are evaluated
// when a fact batch mentions one of their trigger states; normal scenes are
// polled on every tick while nothing is running. A candidate replaces the
// running task when the running task has no priority, or when both have
// priorities and the candidate's is strictly higher. Independently, a task
// whose interrupt tree becomes true is stopped on the spot.
//
// Execution:
// Tasks run on a bounded Executor. Ops run in list order; a failing op is
// logged and skipped. Stop is cooperative: it cancels the task context and
// calls Stop on the current op and every async op still tracked.
//
// LOCKING:
// The state registry lock and a task's lock are never held together. The
// Operator lock may be held while taking either one.
package engine
