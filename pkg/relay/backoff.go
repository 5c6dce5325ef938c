package relay

import (
	"math"
	"math/rand"
	"time"
)

const (
	backoffFactor = math.E
	backoffJitter = 0.11962656472
)

// Backoff grows the reconnect delay by a factor of e per attempt, with normally distributed jitter, up to a cap.
type Backoff struct {
	initial  time.Duration
	max      time.Duration
	delay    float64
	attempts int
}

func newBackoff(initial, maxDelay time.Duration) *Backoff {
	return &Backoff{
		initial: initial,
		max:     maxDelay,
		delay:   float64(initial),
	}
}

// Next returns how long to wait before the next attempt.
func (b *Backoff) Next() time.Duration {
	b.attempts++
	b.delay = math.Min(b.delay*backoffFactor, float64(b.max))
	b.delay = math.Max(0, b.delay+rand.NormFloat64()*b.delay*backoffJitter)
	return min(time.Duration(b.delay), b.max)
}

// Reset is called after a successful connection.
func (b *Backoff) Reset() {
	b.delay = float64(b.initial)
	b.attempts = 0
}

// Attempts returns the number of delays handed out since the last Reset.
func (b *Backoff) Attempts() int {
	return b.attempts
}
