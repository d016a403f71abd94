package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/condop/internal/state"
)

// FactDef is one declarative state record, as written in fact scripts and
// harness scenarios.
type FactDef struct {
	State    string   `yaml:"state"`
	Value    *float64 `yaml:"value,omitempty"`
	ValueAdd *float64 `yaml:"value_add,omitempty"`
	TimeAdd  *float64 `yaml:"time_add,omitempty"`
	Clear    bool     `yaml:"clear,omitempty"`
}

// Record converts the fact into a state record firing at t.
func (f FactDef) Record(t float64) state.Record {
	name := state.NormalizeName(f.State)
	if f.Clear {
		return state.NewClearRecord(name)
	}
	var opts []state.RecordOption
	if f.Value != nil {
		opts = append(opts, state.WithValue(*f.Value))
	}
	if f.ValueAdd != nil {
		opts = append(opts, state.WithValueAdd(*f.ValueAdd))
	}
	if f.TimeAdd != nil {
		opts = append(opts, state.WithTriggerTimeAdd(*f.TimeAdd))
	}
	return state.NewRecord(name, t, opts...)
}

// Records converts a list of facts into one batch firing at t.
func Records(facts []FactDef, t float64) []state.Record {
	out := make([]state.Record, 0, len(facts))
	for _, f := range facts {
		out = append(out, f.Record(t))
	}
	return out
}

func checkFacts(facts []FactDef, path string) []error {
	var errs []error
	for i, f := range facts {
		p := fmt.Sprintf("%s[%d]", path, i)
		if f.State == "" {
			errs = append(errs, &LoadError{Code: ErrCodeMissingName, Path: p, Message: "fact state is required"})
		}
		if f.Clear && (f.Value != nil || f.ValueAdd != nil || f.TimeAdd != nil) {
			errs = append(errs, &LoadError{Code: ErrCodeParse, Path: p, Message: "a clearing fact carries no value or time"})
		}
	}
	return errs
}

// Script is a timeline of fact batches that stands in for live detectors.
//
//	batches:
//	  - at: 0
//	    facts:
//	      - state: enemy
//	  - at: 1.5
//	    facts:
//	      - state: hit
//	        value: 1
//	linger: 2
type Script struct {
	Batches []ScriptBatch `yaml:"batches"`

	// Linger is how many seconds to keep running after the last batch.
	Linger float64 `yaml:"linger,omitempty"`
}

// ScriptBatch is the facts reported together at one offset (seconds from
// the start of the script).
type ScriptBatch struct {
	At    float64   `yaml:"at"`
	Facts []FactDef `yaml:"facts"`
}

// Duration returns the offset of the last batch plus the linger time.
func (s *Script) Duration() float64 {
	var end float64
	for _, b := range s.Batches {
		end = max(end, b.At)
	}
	return end + s.Linger
}

// LoadScript reads a fact script. Batch offsets must not decrease.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Message: err.Error(), Path: path}
	}

	var s Script
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Code: ErrCodeParse, Message: "empty script", Path: path}
		}
		return nil, &LoadError{Code: ErrCodeParse, Message: err.Error(), Path: path}
	}

	var errs []error
	if s.Linger < 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNegativeValue, Path: "linger", Message: "linger must not be negative"})
	}
	prev := 0.0
	for i, b := range s.Batches {
		p := fmt.Sprintf("batches[%d]", i)
		if b.At < prev {
			errs = append(errs, &LoadError{Code: ErrCodeNegativeValue, Path: p,
				Message: fmt.Sprintf("at %g is before the previous batch (%g)", b.At, prev)})
		}
		prev = b.At
		errs = append(errs, checkFacts(b.Facts, p+".facts")...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &s, nil
}
