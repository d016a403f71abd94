package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		switch ev.Type {
		case EventStart:
			fmt.Fprintf(&buf, "  [%d] %g start %s %s (%s)\n", ev.Seq, ev.At, ev.TaskID, ev.Scene, ev.Trail)
		case EventStop:
			fmt.Fprintf(&buf, "  [%d] %g stop %s %s: %s\n", ev.Seq, ev.At, ev.TaskID, ev.Scene, ev.Reason)
		}
	}

	return buf.String()
}

// assertStarted checks that scene started, optionally with a given trail
// and an exact number of times.
func assertStarted(result *Result, a Assertion) error {
	count := 0
	for _, ev := range result.starts() {
		if ev.Scene == a.Scene && (a.Trail == "" || ev.Trail == a.Trail) {
			count++
		}
	}

	expected := fmt.Sprintf("scene %s started", a.Scene)
	if a.Trail != "" {
		expected += fmt.Sprintf(" via %q", a.Trail)
	}

	switch {
	case a.Count > 0 && count != a.Count:
		return &AssertionError{
			Type:     AssertStarted,
			Expected: fmt.Sprintf("%s %d time(s)", expected, a.Count),
			Actual:   fmt.Sprintf("started %d time(s)", count),
			Trace:    result.Trace,
		}
	case count == 0:
		return &AssertionError{
			Type:     AssertStarted,
			Expected: expected,
			Actual:   "not found in trace",
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertNotStarted checks that scene never started.
func assertNotStarted(result *Result, a Assertion) error {
	for _, ev := range result.starts() {
		if ev.Scene == a.Scene {
			return &AssertionError{
				Type:     AssertNotStarted,
				Expected: fmt.Sprintf("scene %s never started", a.Scene),
				Actual:   fmt.Sprintf("started as %s at %g", ev.TaskID, ev.At),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

// assertOrder checks that the first start of each scene appears in the
// given order. Other starts may appear in between.
func assertOrder(result *Result, a Assertion) error {
	positions := make(map[string]int)
	for _, ev := range result.starts() {
		if positions[ev.Scene] == 0 {
			positions[ev.Scene] = ev.Seq
		}
	}

	for _, scene := range a.Scenes {
		if positions[scene] == 0 {
			return &AssertionError{
				Type:     AssertOrder,
				Expected: fmt.Sprintf("all scenes started: %v", a.Scenes),
				Actual:   fmt.Sprintf("missing scene: %s", scene),
				Trace:    result.Trace,
			}
		}
	}

	for i := 1; i < len(a.Scenes); i++ {
		prev, curr := a.Scenes[i-1], a.Scenes[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertOrder,
				Expected: fmt.Sprintf("scenes in order: %v", a.Scenes),
				Actual: fmt.Sprintf("%s (seq %d) should be before %s (seq %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: result.Trace,
			}
		}
	}
	return nil
}

// assertOutcome checks the outcome of the last recorded run of scene.
func assertOutcome(result *Result, a Assertion) error {
	var last *RunSummary
	for i := range result.Runs {
		if result.Runs[i].Scene == a.Scene {
			last = &result.Runs[i]
		}
	}
	if last == nil {
		return &AssertionError{
			Type:     AssertOutcome,
			Expected: fmt.Sprintf("scene %s %s", a.Scene, a.Outcome),
			Actual:   "scene never ran",
			Trace:    result.Trace,
		}
	}
	if last.Outcome != a.Outcome {
		return &AssertionError{
			Type:     AssertOutcome,
			Expected: fmt.Sprintf("scene %s %s", a.Scene, a.Outcome),
			Actual:   fmt.Sprintf("%s ended %s", last.TaskID, last.Outcome),
			Trace:    result.Trace,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertStarted:
			err = assertStarted(result, assertion)
		case AssertNotStarted:
			err = assertNotStarted(result, assertion)
		case AssertOrder:
			err = assertOrder(result, assertion)
		case AssertOutcome:
			err = assertOutcome(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
