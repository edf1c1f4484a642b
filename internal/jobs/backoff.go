package jobs

import (
	"math"
	"time"
)

// BackoffPolicy is the retry policy for advancing a run after a transient
// failure: up to MaxAttempts calls to Advance, sleeping Delay(n) after the
// n-th failed attempt.
type BackoffPolicy struct {
	MaxAttempts int           // total attempts including the first; <= 0 means 1
	Initial     time.Duration // delay after the first failure
	Max         time.Duration // cap on any single delay; 0 means no cap
	Multiplier  float64       // growth factor per attempt; < 1 means 2
}

// DefaultBackoff is used when a Runner is built without WithPolicy.
var DefaultBackoff = BackoffPolicy{
	MaxAttempts: 5,
	Initial:     2 * time.Second,
	Max:         time.Minute,
	Multiplier:  2,
}

// Attempts returns the effective attempt ceiling.
func (p BackoffPolicy) Attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Delay returns the wait after the given failed attempt (1-based):
// Initial * Multiplier^(attempt-1), capped at Max.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 2
	}
	d := float64(p.Initial) * math.Pow(mult, float64(attempt-1))
	if p.Max > 0 && d > float64(p.Max) {
		return p.Max
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
