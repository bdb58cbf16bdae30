package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClock_ReturnsPinnedInstant(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := NewFixedClock(at)

	// Multiple reads return the same instant
	assert.Equal(t, at, clock.Now())
	assert.Equal(t, at, clock.Now())
}

func TestFixedClock_Advance(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := NewFixedClock(at)

	clock.Advance(90 * time.Minute)
	assert.Equal(t, at.Add(90*time.Minute), clock.Now())

	// Negative advance moves backward
	clock.Advance(-30 * time.Minute)
	assert.Equal(t, at.Add(time.Hour), clock.Now())
}

func TestFixedClock_Set(t *testing.T) {
	clock := NewFixedClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	later := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	clock.Set(later)
	assert.Equal(t, later, clock.Now())
}

func TestFixedClock_ThreadSafe(t *testing.T) {
	clock := NewFixedClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			clock.Advance(time.Second)
		}()
		go func() {
			defer wg.Done()
			_ = clock.Now()
		}()
	}
	wg.Wait()

	want := time.Date(2024, 6, 1, 0, 0, 10, 0, time.UTC)
	assert.Equal(t, want, clock.Now())
}

func TestSeqRNG_ReplaysSequence(t *testing.T) {
	rng := NewSeqRNG(0.1, 0.2, 0.3)

	assert.Equal(t, 0.1, rng.Float64())
	assert.Equal(t, 0.2, rng.Float64())
	assert.Equal(t, 0.3, rng.Float64())

	// Wraps around
	assert.Equal(t, 0.1, rng.Float64())
}

func TestSeqRNG_DefaultValue(t *testing.T) {
	rng := NewSeqRNG()
	assert.Equal(t, 0.5, rng.Float64())
	assert.Equal(t, 0.5, rng.Float64())
}

func TestSeqRNG_Reset(t *testing.T) {
	rng := NewSeqRNG(0.7, 0.9)
	rng.Float64()

	rng.Reset()
	assert.Equal(t, 0.7, rng.Float64())
}
