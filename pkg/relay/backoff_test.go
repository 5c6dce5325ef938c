package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_Capped(t *testing.T) {
	b := newBackoff(time.Second, 10*time.Second)
	for i := 0; i < 50; i++ {
		d := b.Next()
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 10*time.Second)
	}
	assert.Equal(t, 50, b.Attempts())
}

func TestBackoff_Grows(t *testing.T) {
	var first, later time.Duration
	const rounds = 200
	for i := 0; i < rounds; i++ {
		b := newBackoff(time.Second, time.Hour)
		first += b.Next()
		b.Next()
		later += b.Next()
	}
	// Without jitter these would be e and e³ seconds.
	assert.InDelta(t, 2.718, (first / rounds).Seconds(), 0.25)
	assert.InDelta(t, 20.09, (later / rounds).Seconds(), 3)
}

func TestBackoff_Reset(t *testing.T) {
	b := newBackoff(time.Second, time.Minute)
	for i := 0; i < 5; i++ {
		b.Next()
	}
	b.Reset()
	assert.Equal(t, 0, b.Attempts())
	assert.Less(t, b.Next(), 5*time.Second)
}
