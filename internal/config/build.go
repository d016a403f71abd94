package config

import (
	"errors"
	"fmt"

	"github.com/roach88/condop/internal/cond"
	"github.com/roach88/condop/internal/engine"
	"github.com/roach88/condop/internal/op"
	"github.com/roach88/condop/internal/state"
)

// Program is a definition turned into engine values.
type Program struct {
	Scenes []*engine.Scene
	States []StateDef
}

// Declare registers every state and its mutex peers with svc. Symmetric
// declarations add the reverse direction too.
func (p *Program) Declare(svc *state.Service) {
	for _, s := range p.States {
		svc.Declare(s.Name, s.Mutex...)
		if s.MutexSymmetric {
			for _, m := range s.Mutex {
				svc.Declare(m, s.Name)
			}
		}
	}
}

// Build converts a loaded definition into scenes. Ops are constructed
// through reg with env as their collaborators; a nil reg uses the built-in
// ops.
func Build(def *Definition, env op.Env, reg *op.Registry) (*Program, error) {
	if reg == nil {
		reg = op.NewRegistry()
	}

	var errs []error
	prog := &Program{States: def.States}
	for i, sd := range def.Scenes {
		path := fmt.Sprintf("scenes[%d]", i)
		scene := &engine.Scene{
			Name:            sd.Name,
			Priority:        sd.Priority,
			Triggers:        sd.Triggers,
			IntervalSeconds: sd.Interval,
		}
		for j := range sd.Handlers {
			h, herrs := buildHandler(&sd.Handlers[j], fmt.Sprintf("%s.handlers[%d]", path, j), env, reg)
			errs = append(errs, herrs...)
			if h != nil {
				scene.Handlers = append(scene.Handlers, h)
			}
		}
		prog.Scenes = append(prog.Scenes, scene)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return prog, nil
}

func buildHandler(hd *HandlerDef, path string, env op.Env, reg *op.Registry) (*engine.StateHandler, []error) {
	var errs []error

	c, err := parseCondition(hd.States)
	if err != nil {
		errs = append(errs, &LoadError{Code: ErrCodeBadExpression, Path: path + ".states", Message: err.Error()})
	}
	interrupt, err := parseCondition(hd.InterruptStates)
	if err != nil {
		errs = append(errs, &LoadError{Code: ErrCodeBadExpression, Path: path + ".interrupt_states", Message: err.Error()})
	}

	h := &engine.StateHandler{
		Expr:      hd.States,
		DebugName: hd.DebugName,
		Cond:      c,
		Interrupt: interrupt,
	}
	for i, od := range hd.Operations {
		o, err := reg.Build(env, od.Op, od.Params)
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeBadOperation,
				Path: fmt.Sprintf("%s.operations[%d]", path, i), Message: err.Error()})
			continue
		}
		h.Ops = append(h.Ops, o)
	}
	for i := range hd.SubHandlers {
		child, cerrs := buildHandler(&hd.SubHandlers[i], fmt.Sprintf("%s.sub_handlers[%d]", path, i), env, reg)
		errs = append(errs, cerrs...)
		if child != nil {
			h.Children = append(h.Children, child)
		}
	}
	return h, errs
}

// parseCondition parses expr and normalizes the state names it references.
func parseCondition(expr string) (*cond.Node, error) {
	n, err := cond.Parse(expr)
	if err != nil {
		return nil, err
	}
	normalizeTree(n)
	return n, nil
}

func normalizeTree(n *cond.Node) {
	if n == nil {
		return
	}
	if n.Kind == cond.KindState {
		n.StateName = state.NormalizeName(n.StateName)
		return
	}
	normalizeTree(n.Left)
	normalizeTree(n.Right)
}
