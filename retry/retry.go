// Package retry defines the backoff policies used to reschedule failed
// webhook deliveries.
//
// A Strategy answers two questions after a failed attempt: should the
// delivery be tried again, and if so, how long to wait. Strategies are pure
// with respect to the attempt counter — the counter lives on the delivery
// row, so the same strategy instance serves every delivery and survives
// process restarts.
package retry

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Strategy decides whether and when a failed delivery is retried.
//
// attempt is the 1-based count of attempts made so far. NextDelay is only
// consulted when ShouldRetry returned true; its result is always >= 0.
type Strategy interface {
	ShouldRetry(attempt int, err error) bool
	NextDelay(attempt int) time.Duration
}

// StatusError carries the HTTP status code of a rejected delivery attempt
// through the error chain so strategies can distinguish transient from
// permanent failures.
type StatusError struct {
	Code int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("endpoint responded with status %d", e.Code)
}

// Retryable reports whether an attempt error is transient.
//
// Errors without a status code (connection failures, timeouts) are
// transient. Errors carrying a status code are transient only for 5xx,
// 408 (request timeout) and 429 (rate limited); every other 4xx is a
// permanent rejection by the receiver and is never retried, regardless of
// remaining attempt budget.
func Retryable(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return true
	}
	return RetryableStatus(se.Code)
}

// RetryableStatus reports whether an HTTP status code signals a transient
// failure. A code of 0 means the request never completed (network error).
func RetryableStatus(code int) bool {
	switch {
	case code == 0:
		return true
	case code >= 500:
		return true
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}
