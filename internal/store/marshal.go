package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/condop/internal/state"
)

// storedRecord is the JSON shape of a state.Record inside fact_batches.
// Optional fields are omitted so stored batches stay small.
type storedRecord struct {
	State          string   `json:"state"`
	TriggerTime    float64  `json:"t"`
	Value          *float64 `json:"value,omitempty"`
	ValueAdd       *float64 `json:"value_add,omitempty"`
	TriggerTimeAdd *float64 `json:"time_add,omitempty"`
	Clear          bool     `json:"clear,omitempty"`
}

// marshalRecords converts a batch to JSON TEXT for storage.
func marshalRecords(records []state.Record) (string, error) {
	out := make([]storedRecord, len(records))
	for i, r := range records {
		out[i] = storedRecord{
			State:          r.StateName,
			TriggerTime:    r.TriggerTime,
			Value:          r.Value,
			ValueAdd:       r.ValueAdd,
			TriggerTimeAdd: r.TriggerTimeAdd,
			Clear:          r.IsClear,
		}
	}
	return marshalJSON(out, "records")
}

// unmarshalRecords parses a stored batch.
func unmarshalRecords(data string) ([]state.Record, error) {
	var in []storedRecord
	if err := json.Unmarshal([]byte(data), &in); err != nil {
		return nil, fmt.Errorf("unmarshal records: %w", err)
	}
	records := make([]state.Record, len(in))
	for i, r := range in {
		records[i] = state.Record{
			StateName:      r.State,
			TriggerTime:    r.TriggerTime,
			Value:          r.Value,
			ValueAdd:       r.ValueAdd,
			TriggerTimeAdd: r.TriggerTimeAdd,
			IsClear:        r.Clear,
		}
	}
	return records, nil
}

// marshalStrings stores a string list as a JSON array; nil becomes "[]".
func marshalStrings(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	return marshalJSON(list, "string list")
}

func unmarshalStrings(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal string list: %w", err)
	}
	return out, nil
}

// marshalJSON encodes v without HTML escaping so state names such as
// "A<B" are stored verbatim.
func marshalJSON(v any, what string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("marshal %s: %w", what, err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}
