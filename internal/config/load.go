package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/condop/internal/cond"
	"github.com/roach88/condop/internal/state"
)

// LoadFile reads and checks a definition file.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Message: err.Error(), Path: path}
	}
	return Load(data)
}

// Load parses a definition with strict field checking and runs the
// structural checks. The returned error joins every *LoadError found; use
// LoadErrors to list them.
func Load(data []byte) (*Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Code: ErrCodeParse, Message: "empty document"}
		}
		return nil, &LoadError{Code: ErrCodeParse, Message: err.Error()}
	}

	normalize(&def)
	if errs := Check(&def); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &def, nil
}

// LoadErrors flattens an error returned by Load or Build.
func LoadErrors(err error) []*LoadError {
	if err == nil {
		return nil
	}
	var out []*LoadError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, LoadErrors(e)...)
		}
		return out
	}
	var le *LoadError
	if errors.As(err, &le) {
		return []*LoadError{le}
	}
	return []*LoadError{{Code: ErrCodeParse, Message: err.Error()}}
}

// normalize rewrites every state name to its canonical form so lookups
// agree with the state service.
func normalize(def *Definition) {
	for i := range def.States {
		s := &def.States[i]
		s.Name = state.NormalizeName(s.Name)
		for j, m := range s.Mutex {
			s.Mutex[j] = state.NormalizeName(m)
		}
	}
	for i := range def.Scenes {
		sc := &def.Scenes[i]
		for j, t := range sc.Triggers {
			sc.Triggers[j] = state.NormalizeName(t)
		}
	}
}

// Check runs the structural checks that make a definition unloadable.
func Check(def *Definition) []error {
	var errs []error
	add := func(code, path, format string, args ...any) {
		errs = append(errs, &LoadError{Code: code, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	seenStates := make(map[string]bool)
	for i, s := range def.States {
		path := fmt.Sprintf("states[%d]", i)
		if s.Name == "" {
			add(ErrCodeMissingName, path, "state name is required")
			continue
		}
		if seenStates[s.Name] {
			add(ErrCodeDuplicateState, path, "state %q declared twice", s.Name)
		}
		seenStates[s.Name] = true
		for _, m := range s.Mutex {
			if m == s.Name {
				add(ErrCodeSelfMutex, path, "state %q lists itself as mutex peer", s.Name)
			}
		}
	}

	if len(def.Scenes) == 0 {
		add(ErrCodeNoScenes, "scenes", "at least one scene is required")
	}

	seenScenes := make(map[string]bool)
	for i, sc := range def.Scenes {
		path := fmt.Sprintf("scenes[%d]", i)
		if sc.Name == "" {
			add(ErrCodeMissingName, path, "scene name is required")
		} else {
			if seenScenes[sc.Name] {
				add(ErrCodeDuplicateScene, path, "scene %q declared twice", sc.Name)
			}
			seenScenes[sc.Name] = true
		}
		if sc.Interval < 0 {
			add(ErrCodeNegativeValue, path, "interval must not be negative, got %g", sc.Interval)
		}
		if len(sc.Handlers) == 0 {
			add(ErrCodeNoHandlers, path, "scene has no handlers")
		}
		for j := range sc.Handlers {
			errs = append(errs, checkHandler(&sc.Handlers[j], fmt.Sprintf("%s.handlers[%d]", path, j))...)
		}
	}
	return errs
}

func checkHandler(h *HandlerDef, path string) []error {
	var errs []error
	switch {
	case len(h.Operations) > 0 && len(h.SubHandlers) > 0:
		errs = append(errs, &LoadError{Code: ErrCodeMixedHandler, Path: path,
			Message: "handler has both operations and sub_handlers"})
	case len(h.Operations) == 0 && len(h.SubHandlers) == 0:
		errs = append(errs, &LoadError{Code: ErrCodeEmptyHandler, Path: path,
			Message: "handler has neither operations nor sub_handlers"})
	}
	if _, err := cond.Parse(h.States); err != nil {
		errs = append(errs, &LoadError{Code: ErrCodeBadExpression, Path: path + ".states", Message: err.Error()})
	}
	if _, err := cond.Parse(h.InterruptStates); err != nil {
		errs = append(errs, &LoadError{Code: ErrCodeBadExpression, Path: path + ".interrupt_states", Message: err.Error()})
	}
	for i := range h.SubHandlers {
		errs = append(errs, checkHandler(&h.SubHandlers[i], fmt.Sprintf("%s.sub_handlers[%d]", path, i))...)
	}
	return errs
}
