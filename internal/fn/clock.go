package fn

import (
	"math/rand/v2"
	"time"
)

// Clock supplies wall time to the date functions. Injected so tests can
// pin NOW and TODAY to a fixed instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the machine clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// RNG supplies randomness to RAND. Injected so tests can seed it.
type RNG interface {
	Float64() float64
}

// SystemRNG draws from the shared math/rand source.
type SystemRNG struct{}

func (SystemRNG) Float64() float64 { return rand.Float64() }
