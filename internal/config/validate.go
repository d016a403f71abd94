package config

import (
	"fmt"
	"sort"
)

// Validate reports references to states the definition does not declare:
// mutex peers, scene triggers, and states named by conditions and
// interrupt conditions, in document order.
//
// The engine tolerates such references (an unknown state is simply never
// true), so these are surfaced once here instead of on every evaluation.
// Validate assumes def passed Load.
func Validate(def *Definition) []Issue {
	declared := make(map[string]bool, len(def.States))
	for _, s := range def.States {
		declared[s.Name] = true
	}

	var issues []Issue
	for i, s := range def.States {
		for _, m := range s.Mutex {
			if !declared[m] {
				issues = append(issues, Issue{
					Code:    ErrCodeUnknownState,
					Path:    fmt.Sprintf("states[%d].mutex", i),
					Message: fmt.Sprintf("mutex peer %q is not declared", m),
				})
			}
		}
	}

	for i, sc := range def.Scenes {
		path := fmt.Sprintf("scenes[%d]", i)
		for _, t := range sc.Triggers {
			if !declared[t] {
				issues = append(issues, Issue{
					Code:    ErrCodeUnknownTrigger,
					Path:    path + ".triggers",
					Message: fmt.Sprintf("trigger %q is not declared", t),
				})
			}
		}
		for j := range sc.Handlers {
			issues = append(issues, validateHandler(&sc.Handlers[j], fmt.Sprintf("%s.handlers[%d]", path, j), declared)...)
		}
	}

	return issues
}

func validateHandler(h *HandlerDef, path string, declared map[string]bool) []Issue {
	var issues []Issue
	check := func(expr, field string) {
		n, err := parseCondition(expr)
		if err != nil {
			return
		}
		for _, name := range n.UsageStateList() {
			if !declared[name] {
				issues = append(issues, Issue{
					Code:    ErrCodeUnknownState,
					Path:    path + "." + field,
					Message: fmt.Sprintf("state %q is not declared", name),
				})
			}
		}
	}
	check(h.States, "states")
	check(h.InterruptStates, "interrupt_states")
	for i := range h.SubHandlers {
		issues = append(issues, validateHandler(&h.SubHandlers[i], fmt.Sprintf("%s.sub_handlers[%d]", path, i), declared)...)
	}
	return issues
}

// UsedStates returns every state a definition references, sorted.
func UsedStates(def *Definition) []string {
	set := make(map[string]struct{})
	var walk func(h *HandlerDef)
	walk = func(h *HandlerDef) {
		for _, expr := range []string{h.States, h.InterruptStates} {
			if n, err := parseCondition(expr); err == nil {
				for name := range n.UsageStates() {
					set[name] = struct{}{}
				}
			}
		}
		for i := range h.SubHandlers {
			walk(&h.SubHandlers[i])
		}
	}
	for _, sc := range def.Scenes {
		for _, t := range sc.Triggers {
			set[t] = struct{}{}
		}
		for i := range sc.Handlers {
			walk(&sc.Handlers[i])
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
