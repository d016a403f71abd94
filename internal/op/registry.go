package op

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Built-in op names.
const (
	NamePress      = "press"
	NameRelease    = "release"
	NameWait       = "wait"
	NameSetState   = "set-state"
	NameClearState = "clear-state"
	NameLog        = "log"
)

// Factory builds an op from its declarative parameters.
type Factory func(env Env, params map[string]any) (AtomicOp, error)

// Registry maps op names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry holding the built-in ops.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(NamePress, newPress)
	r.Register(NameRelease, newRelease)
	r.Register(NameWait, newWait)
	r.Register(NameSetState, newSetState)
	r.Register(NameClearState, newClearState)
	r.Register(NameLog, newLog)
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Names returns the registered op names sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build constructs the op called name.
func (r *Registry) Build(env Env, name string, params map[string]any) (AtomicOp, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown op %q (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	o, err := f(env, params)
	if err != nil {
		return nil, fmt.Errorf("op %q: %w", name, err)
	}
	return o, nil
}

// Decode copies params into cfg. Unknown keys are an error so a typo in a
// configuration fails at load time instead of being silently ignored.
func Decode(params map[string]any, cfg any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	return dec.Decode(params)
}

func newPress(env Env, params map[string]any) (AtomicOp, error) {
	var cfg PressConfig
	if err := Decode(params, &cfg); err != nil {
		return nil, err
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("key is required")
	}
	if cfg.Duration < 0 {
		return nil, fmt.Errorf("duration must be non-negative")
	}
	if env.Keys == nil {
		return nil, fmt.Errorf("no key controller configured")
	}
	return &PressOp{cfg: cfg, keys: env.Keys, logger: env.logger()}, nil
}

func newRelease(env Env, params map[string]any) (AtomicOp, error) {
	var cfg ReleaseConfig
	if err := Decode(params, &cfg); err != nil {
		return nil, err
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("key is required")
	}
	if env.Keys == nil {
		return nil, fmt.Errorf("no key controller configured")
	}
	return &ReleaseOp{cfg: cfg, keys: env.Keys}, nil
}

func newWait(_ Env, params map[string]any) (AtomicOp, error) {
	var cfg WaitConfig
	if err := Decode(params, &cfg); err != nil {
		return nil, err
	}
	if cfg.Seconds < 0 {
		return nil, fmt.Errorf("seconds must be non-negative")
	}
	return &WaitOp{cfg: cfg}, nil
}

func newSetState(env Env, params map[string]any) (AtomicOp, error) {
	var cfg SetStateConfig
	if err := Decode(params, &cfg); err != nil {
		return nil, err
	}
	if cfg.State == "" {
		return nil, fmt.Errorf("state is required")
	}
	if env.States == nil || env.Clock == nil {
		return nil, fmt.Errorf("no state writer configured")
	}
	return &SetStateOp{cfg: cfg, states: env.States, clock: env.Clock}, nil
}

func newClearState(env Env, params map[string]any) (AtomicOp, error) {
	var cfg ClearStateConfig
	if err := Decode(params, &cfg); err != nil {
		return nil, err
	}
	if cfg.State == "" {
		return nil, fmt.Errorf("state is required")
	}
	if env.States == nil {
		return nil, fmt.Errorf("no state writer configured")
	}
	return &ClearStateOp{cfg: cfg, states: env.States}, nil
}

func newLog(env Env, params map[string]any) (AtomicOp, error) {
	var cfg LogConfig
	if err := Decode(params, &cfg); err != nil {
		return nil, err
	}
	level := slog.LevelInfo
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("level: %w", err)
		}
	}
	return &LogOp{cfg: cfg, level: level, logger: env.logger()}, nil
}
