package engine

import (
	"sync"
	"time"
)

// Clock supplies engine time in seconds.
//
// State records, condition windows and scene intervals all use this time
// base, so detectors and the engine must share one clock.
type Clock interface {
	Now() float64
}

// SystemClock reads wall-clock time as Unix seconds.
type SystemClock struct{}

// Now returns the current Unix time in seconds.
func (SystemClock) Now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// ReplayClock is a SettableClock that only moves when Set is called. The
// zero value reads 0.
type ReplayClock struct {
	mu  sync.Mutex
	now float64
}

// Now returns the last time passed to Set.
func (c *ReplayClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *ReplayClock) Set(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
