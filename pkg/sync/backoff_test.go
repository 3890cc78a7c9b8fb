package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := Backoff{
		Initial: time.Second,
		Max:     30 * time.Second,
		Factor:  2,
	}

	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second, // capped
		30 * time.Second,
	}
	for attempt, want := range expected {
		delay, retry := b.Delay(attempt)
		require.True(t, retry)
		assert.Equal(t, want, delay, "attempt %d", attempt)
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	b := DefaultBackoff()

	for i := 0; i < 100; i++ {
		delay, retry := b.Delay(2) // base delay 4s
		require.True(t, retry)
		assert.GreaterOrEqual(t, delay, time.Duration(float64(4*time.Second)*0.7)-time.Millisecond)
		assert.LessOrEqual(t, delay, time.Duration(float64(4*time.Second)*1.3)+time.Millisecond)
	}
}

func TestBackoffMaxAttempts(t *testing.T) {
	b := Backoff{
		Initial:     time.Millisecond,
		Max:         time.Second,
		Factor:      2,
		MaxAttempts: 3,
	}

	_, retry := b.Delay(2)
	assert.True(t, retry)

	_, retry = b.Delay(3)
	assert.False(t, retry)
}
