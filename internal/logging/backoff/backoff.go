package backoff

import (
	"math/rand"
	"time"
)

// Backoff tracks the delay between reconnect attempts. The base starts at
// Min, doubles after every failed attempt and is capped at Max. Each wait
// adds uniform jitter in [0, base].
//
// Not safe for concurrent use; the worker owns its instance.
type Backoff struct {
	Min time.Duration
	Max time.Duration

	// Jitter returns a value in [0, n]. Defaults to math/rand.
	Jitter func(n int64) int64

	base time.Duration
}

func New(min, max time.Duration) *Backoff {
	b := &Backoff{Min: min, Max: max}
	b.Reset()
	return b
}

// Reset puts the base back to Min. Called at the start of every reconnect
// sequence.
func (b *Backoff) Reset() {
	b.base = b.Min
}

// Next returns the base for this attempt and the actual wait to sleep,
// then advances the base for the following attempt.
func (b *Backoff) Next() (base, wait time.Duration) {
	if b.base <= 0 {
		b.base = b.Min
	}
	base = b.base

	wait = base
	if base > 0 {
		wait += time.Duration(b.jitter(int64(base)))
	}

	b.base *= 2
	if b.base > b.Max || b.base <= 0 {
		b.base = b.Max
	}
	return base, wait
}

func (b *Backoff) jitter(n int64) int64 {
	if b.Jitter != nil {
		return b.Jitter(n)
	}
	return rand.Int63n(n + 1)
}
