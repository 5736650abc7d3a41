package retry

import (
	"testing"
	"time"
)

func TestExponentialBackoff_NextDelay(t *testing.T) {
	b := NewExponentialBackoff(5,
		WithInitialDelay(100*time.Millisecond),
		WithMaxDelay(1*time.Second),
		WithJitter(0),
	)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1 * time.Second},
		{10, 1 * time.Second},
	}

	for _, tt := range tests {
		if got := b.NextDelay(tt.attempt); got != tt.want {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialBackoff_Jitter(t *testing.T) {
	tests := []struct {
		name   string
		random float64
		want   time.Duration
	}{
		{"lowest", 0.0, 900 * time.Millisecond},
		{"middle", 0.5, 1 * time.Second},
		{"high", 0.75, 1050 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewExponentialBackoff(1,
				WithInitialDelay(1*time.Second),
				WithJitter(0.1),
				WithJitterFunc(func() float64 { return tt.random }),
			)
			if got := b.NextDelay(0); got != tt.want {
				t.Errorf("NextDelay(0) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExponentialBackoff_Multiplier(t *testing.T) {
	b := NewExponentialBackoff(3, WithInitialDelay(10*time.Millisecond), WithMultiplier(3), WithJitter(0))
	if got := b.NextDelay(2); got != 90*time.Millisecond {
		t.Errorf("NextDelay(2) = %v, want 90ms", got)
	}
	if b.MaxAttempts() != 3 {
		t.Errorf("MaxAttempts() = %d, want 3", b.MaxAttempts())
	}
}
