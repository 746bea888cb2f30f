package retry_test

import (
	"errors"
	"testing"
	"time"

	"github.com/hookline/hookline/retry"
)

func statusErr(code int) error {
	return &retry.StatusError{Code: code}
}

func TestExponentialBudgetTermination(t *testing.T) {
	s := retry.NewExponential()

	if s.ShouldRetry(s.MaxAttempts, statusErr(503)) {
		t.Error("ShouldRetry(maxAttempts) must be false")
	}
	if s.ShouldRetry(s.MaxAttempts+3, errors.New("dial tcp: timeout")) {
		t.Error("ShouldRetry past maxAttempts must be false")
	}
}

func TestExponentialStatusCodePolicy(t *testing.T) {
	s := retry.NewExponential()

	cases := []struct {
		code int
		want bool
	}{
		{0, true},    // network error, no response
		{500, true},  // server error
		{503, true},  // server error
		{408, true},  // request timeout
		{429, true},  // rate limited
		{400, false}, // permanent
		{404, false}, // permanent, even on first attempt
		{410, false}, // permanent
		{422, false}, // permanent
	}

	for _, tc := range cases {
		if got := s.ShouldRetry(1, statusErr(tc.code)); got != tc.want {
			t.Errorf("ShouldRetry(1, status %d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestPlainErrorIsTransient(t *testing.T) {
	s := retry.NewExponential()
	if !s.ShouldRetry(1, errors.New("connection refused")) {
		t.Error("plain network error should be retryable while budget remains")
	}
}

func TestWrappedStatusError(t *testing.T) {
	wrapped := errors.Join(errors.New("delivery failed"), statusErr(404))
	if retry.Retryable(wrapped) {
		t.Error("wrapped 404 should be permanent")
	}
}

func TestExponentialPreJitterMonotonic(t *testing.T) {
	s := &retry.Exponential{
		InitialDelay: time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2,
		MaxAttempts:  10,
	}

	// Jittered delay is within ±25% of the un-jittered curve, so a lower
	// bound of one attempt must never exceed the upper bound of the next:
	// check against the analytic base min(60s, 1s·2^(n−1)).
	base := func(attempt int) time.Duration {
		d := time.Second
		for i := 1; i < attempt; i++ {
			d *= 2
		}
		if d > 60*time.Second {
			d = 60 * time.Second
		}
		return d
	}

	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		b := base(attempt)
		if b < prev {
			t.Fatalf("base delay decreased at attempt %d", attempt)
		}
		prev = b

		got := s.NextDelay(attempt)
		lo := time.Duration(float64(b) * 0.75)
		hi := time.Duration(float64(b) * 1.25)
		if got < lo || got > hi {
			t.Errorf("NextDelay(%d) = %v, want within [%v, %v]", attempt, got, lo, hi)
		}
	}
}

func TestExponentialCap(t *testing.T) {
	s := retry.NewExponential()

	// Far past the cap: 1s · 2^29 >> 60s.
	got := s.NextDelay(30)
	if got > time.Duration(float64(s.MaxDelay)*1.25) {
		t.Errorf("NextDelay(30) = %v exceeds jittered cap", got)
	}
	if got <= 0 {
		t.Errorf("NextDelay(30) = %v, want > 0", got)
	}
}

func TestLinear(t *testing.T) {
	s := retry.NewLinear(2*time.Second, 3)

	if got := s.NextDelay(1); got != 2*time.Second {
		t.Errorf("NextDelay(1) = %v, want 2s", got)
	}
	if got := s.NextDelay(3); got != 6*time.Second {
		t.Errorf("NextDelay(3) = %v, want 6s", got)
	}
	if s.ShouldRetry(3, statusErr(500)) {
		t.Error("ShouldRetry at bound must be false")
	}
	if !s.ShouldRetry(2, statusErr(500)) {
		t.Error("ShouldRetry below bound must be true")
	}
}

func TestLinearCap(t *testing.T) {
	s := &retry.Linear{Base: time.Second, MaxDelay: 3 * time.Second, MaxAttempts: 10}
	if got := s.NextDelay(9); got != 3*time.Second {
		t.Errorf("NextDelay(9) = %v, want cap 3s", got)
	}
}

func TestFixed(t *testing.T) {
	s := retry.NewFixed(5*time.Second, 4)

	for attempt := 1; attempt < 4; attempt++ {
		if got := s.NextDelay(attempt); got != 5*time.Second {
			t.Errorf("NextDelay(%d) = %v, want 5s", attempt, got)
		}
	}
	if s.ShouldRetry(4, statusErr(500)) {
		t.Error("ShouldRetry at bound must be false")
	}
}

func TestSchedule(t *testing.T) {
	delays := []time.Duration{time.Second, 5 * time.Second, time.Minute}
	s := retry.NewSchedule(delays, 0)

	if got := s.NextDelay(1); got != time.Second {
		t.Errorf("NextDelay(1) = %v", got)
	}
	if got := s.NextDelay(2); got != 5*time.Second {
		t.Errorf("NextDelay(2) = %v", got)
	}
	// Past the end of the sequence: reuse the last entry.
	if got := s.NextDelay(7); got != time.Minute {
		t.Errorf("NextDelay(7) = %v, want last entry", got)
	}

	// Default bound is len(delays).
	if s.ShouldRetry(3, statusErr(500)) {
		t.Error("ShouldRetry at default bound must be false")
	}
	if !s.ShouldRetry(2, statusErr(500)) {
		t.Error("ShouldRetry below bound must be true")
	}
}

func TestScheduleEmpty(t *testing.T) {
	s := retry.NewSchedule(nil, 0)
	if s.ShouldRetry(1, statusErr(500)) {
		t.Error("empty schedule must never retry")
	}
}

func TestDelaysNeverNegative(t *testing.T) {
	strategies := []retry.Strategy{
		retry.NewExponential(),
		retry.NewLinear(time.Second, 5),
		retry.NewFixed(time.Second, 5),
		retry.NewSchedule([]time.Duration{time.Second, 2 * time.Second}, 5),
	}

	for _, s := range strategies {
		for attempt := 0; attempt <= 6; attempt++ {
			if d := s.NextDelay(attempt); d < 0 {
				t.Errorf("%T.NextDelay(%d) = %v, want >= 0", s, attempt, d)
			}
		}
	}
}

func TestStatusErrorMessage(t *testing.T) {
	err := statusErr(503)
	if err.Error() == "" {
		t.Error("StatusError should render a message")
	}
}
