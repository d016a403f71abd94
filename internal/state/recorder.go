package state

import "sort"

const (
	// NeverFired marks a recorder that has not received any record.
	NeverFired float64 = -1
	// Cleared marks a recorder that was explicitly cleared.
	Cleared float64 = 0
)

// Recorder is the durable holder of one state's latest fact.
//
// Recorder itself is not synchronised; Service guards every recorder it owns
// and hands out copies.
type Recorder struct {
	StateName      string
	MutexList      map[string]struct{}
	LastRecordTime float64
	LastValue      *float64
}

// NewRecorder creates a recorder that has never fired.
func NewRecorder(name string, mutex ...string) *Recorder {
	r := &Recorder{
		StateName:      NormalizeName(name),
		MutexList:      make(map[string]struct{}, len(mutex)),
		LastRecordTime: NeverFired,
	}
	for _, m := range mutex {
		r.AddMutex(m)
	}
	return r
}

// AddMutex adds a peer that is cleared whenever this state fires.
// A state is never its own peer.
func (r *Recorder) AddMutex(name string) {
	name = NormalizeName(name)
	if name == r.StateName {
		return
	}
	if r.MutexList == nil {
		r.MutexList = make(map[string]struct{})
	}
	r.MutexList[name] = struct{}{}
}

// Mutexes returns the peer names sorted.
func (r *Recorder) Mutexes() []string {
	out := make([]string, 0, len(r.MutexList))
	for m := range r.MutexList {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Fired reports whether the recorder holds a firing time (cleared counts).
func (r *Recorder) Fired() bool {
	return r.LastRecordTime != NeverFired
}

// Update applies a non-clearing record.
//
// Time: with TriggerTimeAdd the previous time is shifted back, unless the
// state never fired, in which case the adjustment is discarded. Otherwise the
// record's TriggerTime overwrites the previous time.
//
// Value: an explicit Value wins; else ValueAdd accumulates onto the previous
// value (absent counts as 0); else an absent value becomes 0.
func (r *Recorder) Update(rec Record) {
	if rec.TriggerTimeAdd != nil {
		if r.LastRecordTime != NeverFired {
			r.LastRecordTime -= *rec.TriggerTimeAdd
		}
	} else {
		r.LastRecordTime = rec.TriggerTime
	}

	switch {
	case rec.Value != nil:
		v := *rec.Value
		r.LastValue = &v
	case rec.ValueAdd != nil:
		var prev float64
		if r.LastValue != nil {
			prev = *r.LastValue
		}
		v := prev + *rec.ValueAdd
		r.LastValue = &v
	case r.LastValue == nil:
		v := 0.0
		r.LastValue = &v
	}
}

// Clear resets a fired recorder to Cleared with no value.
// It is a no-op for a recorder that never fired.
func (r *Recorder) Clear() {
	if r.LastRecordTime == NeverFired {
		return
	}
	r.LastRecordTime = Cleared
	r.LastValue = nil
}

// Copy returns a deep copy safe to hand outside the service lock.
func (r *Recorder) Copy() Recorder {
	c := Recorder{
		StateName:      r.StateName,
		MutexList:      make(map[string]struct{}, len(r.MutexList)),
		LastRecordTime: r.LastRecordTime,
	}
	for m := range r.MutexList {
		c.MutexList[m] = struct{}{}
	}
	if r.LastValue != nil {
		v := *r.LastValue
		c.LastValue = &v
	}
	return c
}
