package retry

import "time"

// Linear implements linearly growing backoff: delay = Base × attempt,
// capped at MaxDelay when set.
type Linear struct {
	Base        time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// NewLinear returns a linear strategy growing by base per attempt.
func NewLinear(base time.Duration, maxAttempts int) *Linear {
	return &Linear{Base: base, MaxAttempts: maxAttempts}
}

// ShouldRetry reports whether another attempt is permitted.
func (s *Linear) ShouldRetry(attempt int, err error) bool {
	if attempt >= s.MaxAttempts {
		return false
	}
	return Retryable(err)
}

// NextDelay returns Base scaled by the attempt count.
func (s *Linear) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := s.Base * time.Duration(attempt)
	if s.MaxDelay > 0 && d > s.MaxDelay {
		return s.MaxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}
