package state

import "golang.org/x/text/unicode/norm"

// Record is a single fact produced by a detector: "state fired at time T".
type Record struct {
	StateName   string
	TriggerTime float64

	// Value replaces the recorder's value when set.
	Value *float64
	// ValueAdd is added to the previous value when Value is unset.
	ValueAdd *float64
	// TriggerTimeAdd shifts the previous trigger time backwards instead of
	// overwriting it. TriggerTime is ignored when this is set.
	TriggerTimeAdd *float64

	IsClear bool
}

// RecordOption customises a Record built by NewRecord.
type RecordOption func(*Record)

// WithValue sets an explicit value.
func WithValue(v float64) RecordOption {
	return func(r *Record) { r.Value = &v }
}

// WithValueAdd adds v to the previous value.
func WithValueAdd(v float64) RecordOption {
	return func(r *Record) { r.ValueAdd = &v }
}

// WithTriggerTimeAdd moves the previous trigger time back by seconds.
func WithTriggerTimeAdd(seconds float64) RecordOption {
	return func(r *Record) { r.TriggerTimeAdd = &seconds }
}

// NewRecord builds a firing record for name at time t.
func NewRecord(name string, t float64, opts ...RecordOption) Record {
	r := Record{StateName: name, TriggerTime: t}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// NewClearRecord builds a record that clears name.
func NewClearRecord(name string) Record {
	return Record{StateName: name, IsClear: true}
}

// NormalizeName returns the canonical (NFC) form of a state name. State names
// come from OCR labels and hand-written YAML, so composed and decomposed forms
// of the same text must land on one recorder.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// Names returns the distinct state names of records in first-seen order.
func Names(records []Record) []string {
	seen := make(map[string]struct{}, len(records))
	names := make([]string, 0, len(records))
	for _, r := range records {
		n := NormalizeName(r.StateName)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	return names
}
