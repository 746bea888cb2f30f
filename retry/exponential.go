package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// Exponential defaults.
const (
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 60 * time.Second
	DefaultMultiplier   = 2.0
	DefaultMaxAttempts  = 5

	// jitterFraction is the ±25% perturbation applied to each computed
	// delay so that deliveries scheduled at the same instant do not all
	// retry at the same instant (thundering herd).
	jitterFraction = 0.25
)

// Exponential implements exponential backoff with jitter:
//
//	delay = min(MaxDelay, InitialDelay × Multiplier^(attempt−1)) ± 25%
type Exponential struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
}

// NewExponential returns an exponential strategy with the default
// parameters (1s initial, 60s cap, ×2, 5 attempts).
func NewExponential() *Exponential {
	return &Exponential{
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Multiplier:   DefaultMultiplier,
		MaxAttempts:  DefaultMaxAttempts,
	}
}

// ShouldRetry reports whether another attempt is permitted.
func (s *Exponential) ShouldRetry(attempt int, err error) bool {
	if attempt >= s.MaxAttempts {
		return false
	}
	return Retryable(err)
}

// NextDelay returns the jittered backoff delay after the given attempt.
func (s *Exponential) NextDelay(attempt int) time.Duration {
	return jitter(s.base(attempt))
}

// base computes the un-jittered delay: InitialDelay scaled by
// Multiplier^(attempt−1), capped at MaxDelay.
func (s *Exponential) base(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := float64(s.InitialDelay) * math.Pow(s.Multiplier, float64(attempt-1))
	if d > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(d)
}

// jitter perturbs d by a uniform ±25%.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	factor := 1 + jitterFraction*(2*rand.Float64()-1)
	return time.Duration(float64(d) * factor)
}
