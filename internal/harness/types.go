package harness

import "sync"

// Trace event types.
const (
	EventStart = "start"
	EventStop  = "stop"
)

// TraceEvent is one task lifecycle transition observed by the operator.
type TraceEvent struct {
	Seq     int     `json:"seq"`
	At      float64 `json:"at"`
	Type    string  `json:"type"`
	TaskID  string  `json:"task_id"`
	Scene   string  `json:"scene"`
	Trail   string  `json:"trail,omitempty"`
	Trigger string  `json:"trigger,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

// RunSummary is a finished task as the store recorded it.
type RunSummary struct {
	TaskID  string `json:"task_id"`
	Scene   string `json:"scene"`
	Trail   string `json:"trail"`
	Outcome string `json:"outcome"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace lists task starts and stops in the order the operator made them.
	Trace []TraceEvent `json:"trace"`

	// Runs lists finished tasks in start order.
	Runs []RunSummary `json:"runs"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Keys lists key controller calls, e.g. "tap:space".
	Keys []string `json:"keys,omitempty"`

	mu sync.Mutex
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Runs:   []RunSummary{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addEvent appends a trace event. Hooks call it from operator goroutines.
func (r *Result) addEvent(ev TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}

// starts returns the start events in order.
func (r *Result) starts() []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == EventStart {
			out = append(out, ev)
		}
	}
	return out
}
