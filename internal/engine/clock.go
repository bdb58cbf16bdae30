package engine

import "sync/atomic"

// Clock is a monotonic logical counter stamping recompute passes.
//
// Every pass gets a strictly increasing sequence number, so logs and
// stats from interleaved callers can be ordered without wall-clock
// comparisons.
//
// Thread-safety: safe for concurrent use (atomic operations), though
// the engine's writer section means one goroutine typically calls
// Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number.
// Used when resuming a persisted workbook so pass numbering continues
// from the saved position.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
