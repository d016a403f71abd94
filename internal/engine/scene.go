package engine

import (
	"github.com/roach88/condop/internal/cond"
)

// Scene groups handler trees under a shared priority, trigger set and
// activation interval.
//
// A scene with Triggers is evaluated when a fact batch names one of them.
// A scene without triggers is a normal scene, polled on every tick while
// no task is running.
type Scene struct {
	Name            string
	Priority        *int
	Triggers        []string
	IntervalSeconds float64
	Handlers        []*StateHandler
}

// IsTriggerScene reports whether the scene is driven by fact batches.
func (s *Scene) IsTriggerScene() bool {
	return len(s.Triggers) > 0
}

// IsTriggered reports whether any of names is one of the scene's triggers
// and returns the first such trigger.
func (s *Scene) IsTriggered(names []string) (string, bool) {
	for _, name := range names {
		for _, trigger := range s.Triggers {
			if name == trigger {
				return trigger, true
			}
		}
	}
	return "", false
}

// MatchExecution returns the task of the first handler that matches at now,
// stamped with the scene's name, priority and trigger. trigger is empty for
// polled evaluation.
func (s *Scene) MatchExecution(src cond.Lookup, now float64, trigger string) *OperationTask {
	for _, h := range s.Handlers {
		task := h.GetOperations(src, now)
		if task == nil {
			continue
		}
		task.Scene = s.Name
		task.Priority = s.Priority
		task.Trigger = trigger
		return task
	}
	return nil
}

// UsageStates returns every state referenced by the scene's handler trees.
func (s *Scene) UsageStates() map[string]struct{} {
	out := make(map[string]struct{})
	for _, h := range s.Handlers {
		h.collectStates(out)
	}
	return out
}

// PriorityValue returns the priority for logging, or -1 when unset.
func (s *Scene) PriorityValue() int {
	if s.Priority == nil {
		return -1
	}
	return *s.Priority
}

// Priority returns a pointer to p, for building scenes in code.
func Priority(p int) *int {
	return &p
}
