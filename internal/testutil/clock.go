package testutil

import (
	"sync"
	"time"
)

// FixedClock is a wall clock pinned to an explicit instant for tests.
//
// The volatile date functions (NOW, TODAY) read wall time through an
// injected clock; pinning it makes their results reproducible, so the
// same scenario always produces identical cell values.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock pinned to the given instant.
func NewFixedClock(at time.Time) *FixedClock {
	return &FixedClock{now: at}
}

// Now returns the pinned instant.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. Negative durations move it
// backward; tests use that to simulate clock skew.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set repins the clock to an exact instant.
func (c *FixedClock) Set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at
}
