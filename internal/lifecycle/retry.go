package lifecycle

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy bounds automatic reprocessing of failed files.
type RetryPolicy struct {
	// Base is the attempt-0 backoff delay.
	Base time.Duration
	// MaxRetries is how many attempts are allowed before the file is
	// dead-lettered.
	MaxRetries int
	// Jitter spreads retry times by up to this fraction of the delay
	// in either direction. Zero disables jitter.
	Jitter float64

	now func() time.Time
}

// DefaultRetryPolicy matches the operational defaults: 5s base,
// three attempts, 10% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Base: 5 * time.Second, MaxRetries: 3, Jitter: 0.1}
}

// CanRetry reports whether another attempt is allowed after the given
// number of completed attempts.
func (p RetryPolicy) CanRetry(attempts int) bool {
	return attempts < p.MaxRetries
}

// NextRetryTime returns when attempt n (0-indexed) should run:
// approximately base × 2^n from now, jittered.
func (p RetryPolicy) NextRetryTime(attempt int) time.Time {
	clock := p.now
	if clock == nil {
		clock = time.Now
	}
	delay := p.Delay(attempt)
	return clock().Add(delay)
}

// Delay computes the backoff duration for attempt n.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := p.Base
	if base <= 0 {
		base = 5 * time.Second
	}
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if p.Jitter > 0 {
		spread := p.Jitter * float64(delay)
		delay += time.Duration((rand.Float64()*2 - 1) * spread)
	}
	return delay
}
