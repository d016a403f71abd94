package engine

// IntervalGate enforces the minimum spacing between two activations of a
// scene.
//
// Each scene with a non-zero interval gets its own gate. Allow is checked
// before the scene is evaluated and Mark is called only when the resulting
// task actually starts, so a match that loses arbitration does not consume
// the interval.
//
// Not safe for concurrent use; the Operator serializes access.
type IntervalGate struct {
	interval float64
	last     float64
	marked   bool
}

// NewIntervalGate creates a gate with the given interval in seconds.
// An interval of zero or less never blocks.
func NewIntervalGate(interval float64) *IntervalGate {
	return &IntervalGate{interval: interval}
}

// Allow reports whether the scene may activate at now.
func (g *IntervalGate) Allow(now float64) bool {
	if g == nil || g.interval <= 0 || !g.marked {
		return true
	}
	return now-g.last >= g.interval
}

// Mark records an activation at now.
func (g *IntervalGate) Mark(now float64) {
	if g == nil {
		return
	}
	g.last = now
	g.marked = true
}

// Reset forgets the last activation.
func (g *IntervalGate) Reset() {
	if g == nil {
		return
	}
	g.marked = false
	g.last = 0
}

// Interval returns the configured interval in seconds.
func (g *IntervalGate) Interval() float64 {
	if g == nil {
		return 0
	}
	return g.interval
}

// Remaining returns how long until Allow turns true, zero when it already is.
// Used for debug logging.
func (g *IntervalGate) Remaining(now float64) float64 {
	if g.Allow(now) {
		return 0
	}
	return g.interval - (now - g.last)
}
