package sync

import (
	"math/rand"
	"time"
)

// Backoff is the agent's reconnect delay policy: the delay starts at Initial,
// is multiplied by Factor after every failed attempt, and never exceeds Max.
// Jitter spreads simultaneous reconnects apart so agents that lost the same
// server do not dial back in lockstep.
type Backoff struct {
	// Initial is the delay before the first retry.
	Initial time.Duration

	// Max caps the grown delay.
	Max time.Duration

	// Factor multiplies the delay after each failed attempt.
	Factor float64

	// Jitter is the fraction (0 to 1) by which each delay is randomly
	// stretched or shrunk.
	Jitter float64

	// MaxAttempts gives up after this many consecutive failures.
	// Zero retries forever.
	MaxAttempts int
}

// DefaultBackoff spreads reconnect attempts between 1s and 30s.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: time.Second,
		Max:     30 * time.Second,
		Factor:  2,
		Jitter:  0.3,
	}
}

// Delay returns the wait before retry number attempt (0-based), and false
// when the policy is exhausted and the agent should stop retrying.
func (b Backoff) Delay(attempt int) (time.Duration, bool) {
	if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
		return 0, false
	}

	d := float64(b.Initial)
	for i := 0; i < attempt && d < float64(b.Max); i++ {
		d *= b.Factor
	}
	if d > float64(b.Max) {
		d = float64(b.Max)
	}

	if b.Jitter > 0 {
		// math/rand is fine here, jitter is not security-sensitive
		d += d * b.Jitter * (2*rand.Float64() - 1)
		if d < 0 {
			d = float64(b.Initial)
		}
	}

	return time.Duration(d), true
}
