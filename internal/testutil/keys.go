package testutil

import (
	"fmt"
	"sync"
)

// RecordingKeys is a KeyController that records every call as
// "tap:<key>", "press:<key>" or "release:<key>".
type RecordingKeys struct {
	mu     sync.Mutex
	events []string
	fail   map[string]error
}

// NewRecordingKeys creates an empty recorder.
func NewRecordingKeys() *RecordingKeys {
	return &RecordingKeys{fail: make(map[string]error)}
}

// FailOn makes every call for key return err.
func (k *RecordingKeys) FailOn(key string, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.fail[key] = err
}

func (k *RecordingKeys) Tap(key string) error     { return k.record("tap", key) }
func (k *RecordingKeys) Press(key string) error   { return k.record("press", key) }
func (k *RecordingKeys) Release(key string) error { return k.record("release", key) }

func (k *RecordingKeys) record(kind, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err, ok := k.fail[key]; ok {
		return err
	}
	k.events = append(k.events, fmt.Sprintf("%s:%s", kind, key))
	return nil
}

// Events returns a copy of the recorded calls.
func (k *RecordingKeys) Events() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]string, len(k.events))
	copy(out, k.events)
	return out
}
