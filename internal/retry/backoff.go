package retry

import (
	"math"
	"math/rand"
	"time"
)

// ExponentialBackoff grows the delay by multiplier per attempt, caps it at
// maxDelay and spreads it by +/- jitter.
type ExponentialBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	maxAttempts  int // -1 = unlimited, 0 = no retries
	jitter       float64
	jitterFunc   func() float64
}

// BackoffOption configures an ExponentialBackoff.
type BackoffOption func(*ExponentialBackoff)

func WithInitialDelay(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) { b.initialDelay = d }
}

func WithMaxDelay(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) { b.maxDelay = d }
}

func WithMultiplier(m float64) BackoffOption {
	return func(b *ExponentialBackoff) { b.multiplier = m }
}

// WithJitter sets the spread as a fraction of the delay (0.1 = +/- 10%).
func WithJitter(j float64) BackoffOption {
	return func(b *ExponentialBackoff) { b.jitter = j }
}

// WithJitterFunc replaces the random source; it must return values in [0, 1).
func WithJitterFunc(f func() float64) BackoffOption {
	return func(b *ExponentialBackoff) { b.jitterFunc = f }
}

// NewExponentialBackoff starts at 100ms, doubles per attempt, caps at 30s and
// applies 10% jitter unless overridden.
func NewExponentialBackoff(maxAttempts int, opts ...BackoffOption) *ExponentialBackoff {
	b := &ExponentialBackoff{
		initialDelay: 100 * time.Millisecond,
		maxDelay:     30 * time.Second,
		multiplier:   2.0,
		maxAttempts:  maxAttempts,
		jitter:       0.1,
		jitterFunc:   rand.Float64,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NextDelay returns the wait before retry number attempt (zero-indexed).
func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	d := float64(b.initialDelay) * math.Pow(b.multiplier, float64(attempt))
	if d > float64(b.maxDelay) {
		d = float64(b.maxDelay)
	}
	if b.jitter > 0 {
		d *= 1 + b.jitter*(b.jitterFunc()*2-1)
	}
	return time.Duration(d)
}

func (b *ExponentialBackoff) MaxAttempts() int { return b.maxAttempts }
