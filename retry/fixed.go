package retry

import "time"

// Fixed implements constant-delay backoff.
type Fixed struct {
	Delay       time.Duration
	MaxAttempts int
}

// NewFixed returns a fixed-delay strategy.
func NewFixed(delay time.Duration, maxAttempts int) *Fixed {
	return &Fixed{Delay: delay, MaxAttempts: maxAttempts}
}

// ShouldRetry reports whether another attempt is permitted.
func (s *Fixed) ShouldRetry(attempt int, err error) bool {
	if attempt >= s.MaxAttempts {
		return false
	}
	return Retryable(err)
}

// NextDelay returns the configured delay.
func (s *Fixed) NextDelay(int) time.Duration {
	if s.Delay < 0 {
		return 0
	}
	return s.Delay
}
