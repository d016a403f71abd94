// Package harness runs scenario conformance tests against the engine.
//
// A scenario names a configuration file and drives a fresh engine through
// a timeline of fact batches on a manual clock. Task starts and stops are
// recorded as a trace, finished runs are read back from an in-memory store,
// and both are checked against the scenario's assertions and, in tests,
// against golden files.
//
// # Scenario Format
//
//	name: preempt_patrol
//	description: "a hit preempts the patrol loop"
//	config: ../configs/arena.yml
//	step: 0.25
//	steps:
//	  - at: 100
//	    facts:
//	      - state: enemy
//	  - at: 100.5
//	  - at: 101
//	    facts:
//	      - state: hit
//	  - tick: 0.5
//	  - settle: true
//	assertions:
//	  - type: started
//	    scene: dodge
//	    trail: "roll ← engaged"
//	  - type: order
//	    scenes: [patrol, dodge]
//	  - type: outcome
//	    scene: patrol
//	    outcome: interrupted
//
// The config path is resolved relative to the scenario file.
//
// # Steps
//
//   - at + facts: advance to at, ticking every step seconds, then apply
//     the batch and hand it to the operator
//   - at alone: advance to at
//   - tick: advance by that many seconds
//   - settle: wait (in real time) for the running task to finish, then
//     tick once at the current time
//
// Ops execute on the engine's executor in real time, so only task starts
// and stops are deterministic. Scenarios that depend on a task finishing
// must settle.
//
// # Assertion Types
//
//   - started: scene started at least once (or exactly count times), with
//     the given trail if set
//   - not_started: scene never started
//   - order: the first starts of scenes appear in this order
//   - outcome: the last run of scene ended with outcome
//
// # Deterministic Testing
//
// The harness uses:
//   - a manual clock moved only by the steps (testutil.ManualClock)
//   - sequential task IDs "task-1", "task-2", ... (testutil.SequentialIDs)
//   - a recording key controller (testutil.RecordingKeys)
//   - an in-memory SQLite store, fresh per scenario
package harness
