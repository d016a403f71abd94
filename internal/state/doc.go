// Package state holds the live fact table the scheduler reasons over.
//
// Each distinct state name has one Recorder remembering when the state last
// fired and with which value. Detectors write facts through Service, which
// applies mutual-exclusion clearing and then notifies every registered
// Operator asynchronously.
//
// Time values are seconds on the engine clock. Two sentinels are reserved:
// NeverFired (-1) and Cleared (0).
package state
