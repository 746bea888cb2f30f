package retry

import "time"

// Schedule implements backoff over an explicit delay sequence indexed by
// attempt. Attempts beyond the end of the sequence reuse the last entry.
type Schedule struct {
	Delays      []time.Duration
	MaxAttempts int
}

// NewSchedule returns a strategy following the given delay sequence.
// When maxAttempts is 0 the bound defaults to len(delays).
func NewSchedule(delays []time.Duration, maxAttempts int) *Schedule {
	if maxAttempts <= 0 {
		maxAttempts = len(delays)
	}
	return &Schedule{Delays: delays, MaxAttempts: maxAttempts}
}

// ShouldRetry reports whether another attempt is permitted.
func (s *Schedule) ShouldRetry(attempt int, err error) bool {
	if attempt >= s.MaxAttempts || len(s.Delays) == 0 {
		return false
	}
	return Retryable(err)
}

// NextDelay returns the scheduled delay for the given attempt, clamping to
// the last entry for attempts past the end of the sequence.
func (s *Schedule) NextDelay(attempt int) time.Duration {
	if len(s.Delays) == 0 {
		return 0
	}

	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s.Delays) {
		idx = len(s.Delays) - 1
	}

	d := s.Delays[idx]
	if d < 0 {
		return 0
	}
	return d
}
