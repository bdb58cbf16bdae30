package testutil

import "sync"

// SeqRNG replays a fixed sequence of floats, cycling when exhausted.
//
// RAND reads randomness through an injected source; replaying a known
// sequence makes its results reproducible across runs, which golden
// snapshot tests depend on.
//
// Thread-safety: Float64 is safe for concurrent use via internal mutex.
type SeqRNG struct {
	mu   sync.Mutex
	vals []float64
	next int
}

// NewSeqRNG creates a generator replaying vals in order. With no values
// it always returns 0.5.
func NewSeqRNG(vals ...float64) *SeqRNG {
	if len(vals) == 0 {
		vals = []float64{0.5}
	}
	return &SeqRNG{vals: vals}
}

// Float64 returns the next value in the sequence, wrapping around at
// the end.
func (r *SeqRNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.vals[r.next]
	r.next = (r.next + 1) % len(r.vals)
	return v
}

// Reset rewinds the sequence to its beginning.
func (r *SeqRNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = 0
}
