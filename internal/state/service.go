package state

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/condop/internal/pool"
)

// Operator is a scheduler interested in fact updates.
//
// BatchUpdateStates is called once per ingested batch, on a pool worker,
// after the batch has been applied to the recorders.
type Operator interface {
	BatchUpdateStates(records []Record)
}

// Service is the process-wide registry of recorders.
//
// Unknown state names are created on first reference. Validation of names
// against declared configuration happens once at load time, not here.
//
// Thread-safety: all methods are safe for concurrent use. Operator callbacks
// run after the registry lock is released.
type Service struct {
	logger   *slog.Logger
	notify   *pool.WorkerPool
	ownsPool bool

	mu        sync.RWMutex
	recorders map[string]*Recorder

	opMu      sync.Mutex
	operators []Operator
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNotifyPool makes the service dispatch notifications on p. The caller
// keeps ownership of p; Close will not shut it down.
func WithNotifyPool(p *pool.WorkerPool) ServiceOption {
	return func(s *Service) {
		s.notify = p
	}
}

// DefaultNotifyWorkers sizes the pool created when no pool is supplied.
const DefaultNotifyWorkers = 4

// NewService creates an empty registry.
func NewService(opts ...ServiceOption) *Service {
	s := &Service{
		logger:    slog.Default(),
		recorders: make(map[string]*Recorder),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notify == nil {
		s.notify = pool.New("state-notify", DefaultNotifyWorkers, s.logger)
		s.ownsPool = true
	}
	return s
}

// Declare creates (or extends) the recorder for name with mutex peers.
// Peers are created too so that clearing them is observable.
func (s *Service) Declare(name string, mutex ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.recorderLocked(name)
	for _, m := range mutex {
		r.AddMutex(m)
		s.recorderLocked(m)
	}
}

// Register adds an operator to the notification set. Registering twice is
// a no-op.
func (s *Service) Register(op Operator) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	for _, o := range s.operators {
		if o == op {
			return
		}
	}
	s.operators = append(s.operators, op)
}

// Unregister removes an operator from the notification set.
func (s *Service) Unregister(op Operator) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	for i, o := range s.operators {
		if o == op {
			s.operators = append(s.operators[:i:i], s.operators[i+1:]...)
			return
		}
	}
}

// UpdateState applies a single record.
func (s *Service) UpdateState(r Record) {
	s.BatchUpdateStates([]Record{r})
}

// BatchUpdateStates applies records in order, then notifies every registered
// operator with the same batch. Each notification runs independently; a
// failing operator never blocks the others or the caller.
func (s *Service) BatchUpdateStates(records []Record) {
	if len(records) == 0 {
		return
	}

	s.apply(records)

	s.opMu.Lock()
	targets := make([]Operator, len(s.operators))
	copy(targets, s.operators)
	s.opMu.Unlock()

	batch := make([]Record, len(records))
	copy(batch, records)
	for _, op := range targets {
		op := op
		s.notify.Go(func(ctx context.Context) error {
			op.BatchUpdateStates(batch)
			return nil
		})
	}
}

func (s *Service) apply(records []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		r := s.recorderLocked(rec.StateName)
		if rec.IsClear {
			r.Clear()
			continue
		}
		r.Update(rec)
		for peer := range r.MutexList {
			s.recorderLocked(peer).Clear()
		}
		s.logger.Debug("state updated",
			"state", r.StateName,
			"time", r.LastRecordTime,
		)
	}
}

// recorderLocked returns the recorder for name, creating it if needed.
// Caller must hold s.mu for writing.
func (s *Service) recorderLocked(name string) *Recorder {
	name = NormalizeName(name)
	r, ok := s.recorders[name]
	if !ok {
		r = NewRecorder(name)
		s.recorders[name] = r
	}
	return r
}

// Lookup returns a copy of the recorder for name.
func (s *Service) Lookup(name string) (Recorder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recorders[NormalizeName(name)]
	if !ok {
		return Recorder{}, false
	}
	return r.Copy(), true
}

// Known reports whether a recorder exists for name.
func (s *Service) Known(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.recorders[NormalizeName(name)]
	return ok
}

// Names returns every recorder name, sorted.
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.recorders))
	for n := range s.recorders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns copies of every recorder sorted by name.
func (s *Service) Snapshot() []Recorder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Recorder, 0, len(s.recorders))
	for _, r := range s.recorders {
		out = append(out, r.Copy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StateName < out[j].StateName })
	return out
}

// Close shuts down the notification pool if the service created it.
// It does not wait for in-flight notifications.
func (s *Service) Close() {
	if s.ownsPool {
		s.notify.Shutdown()
	}
}
