package worker

import (
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy is the exponential backoff shared by the outbox worker and the
// database transactor (it satisfies database.Backoff).
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// Jitter spreads each delay by up to this fraction in either direction, 0..1.
	Jitter float64
}

// TransactionRetryPolicy is used for sqlite write contention: short first pause, tight cap.
func TransactionRetryPolicy(maxRetries int, initial time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxRetries:    maxRetries,
		InitialDelay:  initial,
		MaxDelay:      20 * initial,
		BackoffFactor: 2,
		Jitter:        0.2,
	}
}

// NextDelay returns the pause before the given attempt (1-based), clamped to MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	attempt = max(attempt, 1)
	initial := r.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	delay := float64(initial) * math.Pow(factor, float64(attempt-1))
	if r.Jitter > 0 {
		j := math.Min(r.Jitter, 1)
		delay *= 1 - j + 2*j*rand.Float64()
	}

	d := time.Duration(delay)
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = initial
	}
	return d
}
