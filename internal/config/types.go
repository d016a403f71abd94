package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Definition is the root of a configuration document.
type Definition struct {
	// States declares every state the detectors may report.
	States []StateDef `yaml:"states"`

	// Scenes are evaluated by the engine in priority order.
	Scenes []SceneDef `yaml:"scenes"`
}

// StateDef declares one state and its mutually exclusive peers.
type StateDef struct {
	Name string `yaml:"name"`

	// Mutex lists states cleared whenever this state fires.
	Mutex []string `yaml:"mutex,omitempty"`

	// MutexSymmetric also declares this state as a peer of every entry in
	// Mutex.
	MutexSymmetric bool `yaml:"mutex_symmetric,omitempty"`
}

// SceneDef declares a scene.
type SceneDef struct {
	Name string `yaml:"name"`

	// Priority is optional; a scene without priority is freely preemptible.
	// Higher numbers win.
	Priority *int `yaml:"priority,omitempty"`

	// Triggers makes this a trigger scene evaluated on fact batches that
	// name one of these states. Without triggers the scene is polled.
	Triggers []string `yaml:"triggers,omitempty"`

	// Interval is the minimum number of seconds between two activations.
	Interval float64 `yaml:"interval,omitempty"`

	Handlers []HandlerDef `yaml:"handlers"`
}

// HandlerDef declares one node of a handler tree. A handler has either
// Operations or SubHandlers.
type HandlerDef struct {
	// States is the condition expression; empty means always true.
	States string `yaml:"states,omitempty"`

	DebugName string `yaml:"debug_name,omitempty"`

	// InterruptStates is a condition that stops the running task when it
	// becomes true.
	InterruptStates string `yaml:"interrupt_states,omitempty"`

	Operations  []OpDef      `yaml:"operations,omitempty"`
	SubHandlers []HandlerDef `yaml:"sub_handlers,omitempty"`
}

// OpDef is one operation: the "op" key names it and every other key is a
// parameter decoded by the op itself.
type OpDef struct {
	Op     string
	Params map[string]any
}

// UnmarshalYAML splits the "op" key from the parameters.
func (d *OpDef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: operation must be a mapping", node.Line)
	}
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	name, ok := raw["op"].(string)
	if !ok || name == "" {
		return fmt.Errorf("line %d: operation requires a string \"op\" key", node.Line)
	}
	delete(raw, "op")
	d.Op = name
	d.Params = raw
	return nil
}

// MarshalYAML writes the op back in its flat form.
func (d OpDef) MarshalYAML() (any, error) {
	out := make(map[string]any, len(d.Params)+1)
	for k, v := range d.Params {
		out[k] = v
	}
	out["op"] = d.Op
	return out, nil
}
