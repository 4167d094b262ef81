package outbox

import (
	"math"
	"math/rand"
	"time"
)

// Retryer decides whether and when a failed mutation is attempted again.
type Retryer interface {
	// NextDelay returns the delay before retry number attempt (0-based) and whether to retry.
	NextDelay(attempt int, lastErr error) (time.Duration, bool)
}

// Backoff is exponential backoff with optional jitter.
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// MaxRetries bounds the number of retries; 0 disables retrying.
	MaxRetries int
	// JitterFactor is the maximum jitter as a fraction of the delay (0.0 to 1.0).
	JitterFactor float64
}

// DefaultBackoff retries five times starting at 200ms.
func DefaultBackoff() *Backoff {
	return &Backoff{
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
		MaxRetries:   5,
		JitterFactor: 0.2,
	}
}

// NextDelay implements Retryer.
func (b *Backoff) NextDelay(attempt int, _ error) (time.Duration, bool) {
	if attempt >= b.MaxRetries {
		return 0, false
	}
	delay := float64(b.InitialDelay) * math.Pow(b.Multiplier, float64(attempt))
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	if b.JitterFactor > 0 {
		//nolint:gosec // jitter is not security sensitive
		delay += delay * b.JitterFactor * (2*rand.Float64() - 1)
		if delay < 0 {
			delay = float64(b.InitialDelay)
		}
	}
	return time.Duration(delay), true
}

// NoRetry never retries.
type NoRetry struct{}

func (NoRetry) NextDelay(int, error) (time.Duration, bool) { return 0, false }
