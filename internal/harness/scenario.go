package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/condop/internal/config"
	"github.com/roach88/condop/internal/engine"
)

// DefaultSettleTimeout bounds how long a settle step waits, in seconds.
const DefaultSettleTimeout = 5.0

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is the configuration file, relative to the scenario file.
	Config string `yaml:"config"`

	// Step is the tick spacing in seconds. Default: engine.DefaultReplayStep.
	Step float64 `yaml:"step,omitempty"`

	// SettleTimeout bounds settle steps, in seconds.
	SettleTimeout float64 `yaml:"settle_timeout,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one entry of the scenario timeline.
type Step struct {
	At     *float64         `yaml:"at,omitempty"`
	Facts  []config.FactDef `yaml:"facts,omitempty"`
	Tick   float64          `yaml:"tick,omitempty"`
	Settle bool             `yaml:"settle,omitempty"`
}

// Assertion validates the trace or the recorded runs.
type Assertion struct {
	// Type is one of started, not_started, order, outcome.
	Type string `yaml:"type"`

	// Scene is used by started, not_started and outcome.
	Scene string `yaml:"scene,omitempty"`

	// Trail optionally narrows started to one handler path.
	Trail string `yaml:"trail,omitempty"`

	// Count makes started exact when positive.
	Count int `yaml:"count,omitempty"`

	// Scenes is the expected start order (used by order).
	Scenes []string `yaml:"scenes,omitempty"`

	// Outcome is the expected outcome (used by outcome).
	Outcome string `yaml:"outcome,omitempty"`
}

// Assertion type constants.
const (
	AssertStarted    = "started"
	AssertNotStarted = "not_started"
	AssertOrder      = "order"
	AssertOutcome    = "outcome"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected and the config path is resolved relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Config != "" && !filepath.IsAbs(scenario.Config) {
		scenario.Config = filepath.Join(filepath.Dir(path), scenario.Config)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Config == "" {
		return fmt.Errorf("config is required")
	}
	if _, err := os.Stat(s.Config); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.Config)
	}
	if s.Step < 0 {
		return fmt.Errorf("step must not be negative")
	}
	if s.SettleTimeout < 0 {
		return fmt.Errorf("settle_timeout must not be negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Steps[0].At == nil {
		return fmt.Errorf("steps[0]: at is required to start the timeline")
	}
	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step) error {
	kinds := 0
	if st.At != nil {
		kinds++
	}
	if st.Tick != 0 {
		kinds++
	}
	if st.Settle {
		kinds++
	}
	if kinds != 1 {
		return fmt.Errorf("steps[%d]: exactly one of at, tick or settle is required", index)
	}
	if len(st.Facts) > 0 && st.At == nil {
		return fmt.Errorf("steps[%d]: facts need at", index)
	}
	if st.Tick < 0 {
		return fmt.Errorf("steps[%d]: tick must be positive", index)
	}
	for j, f := range st.Facts {
		if f.State == "" {
			return fmt.Errorf("steps[%d].facts[%d]: state is required", index, j)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStarted, AssertNotStarted:
		if a.Scene == "" {
			return fmt.Errorf("assertions[%d]: scene is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertOrder:
		if len(a.Scenes) == 0 {
			return fmt.Errorf("assertions[%d]: scenes list is required for order", index)
		}
	case AssertOutcome:
		if a.Scene == "" {
			return fmt.Errorf("assertions[%d]: scene is required for outcome", index)
		}
		switch engine.Outcome(a.Outcome) {
		case engine.OutcomeCompleted, engine.OutcomeInterrupted:
		default:
			return fmt.Errorf("assertions[%d]: outcome must be %q or %q, got %q",
				index, engine.OutcomeCompleted, engine.OutcomeInterrupted, a.Outcome)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func (s *Scenario) settleTimeout() float64 {
	if s.SettleTimeout > 0 {
		return s.SettleTimeout
	}
	return DefaultSettleTimeout
}
