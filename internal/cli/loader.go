package cli

import (
	"log/slog"

	"github.com/roach88/condop/internal/config"
	"github.com/roach88/condop/internal/engine"
	"github.com/roach88/condop/internal/op"
	"github.com/roach88/condop/internal/state"
)

// loadDefinition loads a configuration file. An unreadable file is a
// command error; anything else wrong with it fails the command.
func loadDefinition(path string) (*config.Definition, error) {
	def, err := config.LoadFile(path)
	if err == nil {
		return def, nil
	}
	if config.IsLoadError(err, config.ErrCodeRead) {
		return nil, WrapExitError(ExitCommandError, "config file not readable", err)
	}
	return nil, WrapExitError(ExitCommandError, "invalid config", err)
}

// session is a built engine: the state service, the program declared on
// it, and an operator over the program's scenes.
type session struct {
	states   *state.Service
	program  *config.Program
	operator *engine.Operator
}

// sessionConfig carries what differs between live runs and replay.
type sessionConfig struct {
	keys   op.KeyController
	clock  engine.Clock
	logger *slog.Logger
	opts   []engine.OperatorOption
}

// newSession builds def into a ready operator. The caller owns the
// returned session and must call close.
func newSession(def *config.Definition, sc sessionConfig) (*session, error) {
	svc := state.NewService(state.WithLogger(sc.logger))

	env := op.Env{
		Keys:   sc.keys,
		States: svc,
		Clock:  sc.clock,
		Logger: sc.logger,
	}
	prog, err := config.Build(def, env, nil)
	if err != nil {
		svc.Close()
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	prog.Declare(svc)

	opts := append([]engine.OperatorOption{
		engine.WithClock(sc.clock),
		engine.WithLogger(sc.logger),
	}, sc.opts...)
	o, err := engine.NewOperator(svc, prog.Scenes, opts...)
	if err != nil {
		svc.Close()
		return nil, WrapExitError(ExitCommandError, "failed to create operator", err)
	}

	return &session{states: svc, program: prog, operator: o}, nil
}

// close stops the operator, waits for its tasks to be recorded and
// releases the state service.
func (s *session) close() {
	s.operator.Stop()
	s.operator.Wait()
	s.states.Close()
}
