// Package delivery owns the webhook delivery lifecycle: the delivery record
// and its state machine, the HTTP sender, and the engine that attempts,
// retries, and polls deliveries.
package delivery

import (
	"encoding/json"
	"time"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// Status represents the current state of a delivery.
//
// State machine: pending → retrying → success | failed. The terminal states
// admit no transition except an explicit manual retry, which is rejected
// for success.
type Status string

const (
	// StatusPending indicates the delivery has not completed a first attempt.
	StatusPending Status = "pending"

	// StatusRetrying indicates a failed attempt with another try scheduled.
	StatusRetrying Status = "retrying"

	// StatusSuccess indicates the delivery was accepted by the endpoint (2xx).
	StatusSuccess Status = "success"

	// StatusFailed indicates the delivery permanently failed: either the
	// attempt budget was exhausted or the endpoint rejected it permanently.
	StatusFailed Status = "failed"
)

// Terminal reports whether s admits no further automatic transitions.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Delivery represents one endpoint's delivery record for one event.
type Delivery struct {
	entity.Entity

	// ID is the unique TypeID for this delivery.
	ID id.ID `json:"id"`

	// EndpointID references the target endpoint.
	EndpointID id.ID `json:"endpoint_id"`

	// EventID references the published event.
	EventID id.ID `json:"event_id"`

	// EventType is the event type name, denormalized for filtering.
	EventType string `json:"event_type"`

	// Payload is the frozen copy of the event payload, snapshotted at
	// creation. It never changes, even if the endpoint's config does.
	Payload json.RawMessage `json:"payload"`

	// EventAt is when the event occurred; carried into the envelope.
	EventAt time.Time `json:"event_at"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Attempts is the number of attempts made so far. Monotonically
	// non-decreasing, never exceeds MaxAttempts.
	Attempts int `json:"attempts"`

	// MaxAttempts is the attempt budget for this delivery.
	MaxAttempts int `json:"max_attempts"`

	// NextRetryAt is when the next attempt is due. Set iff the status is
	// pending or retrying and a further attempt is scheduled; cleared on
	// terminal states.
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`

	// LastStatusCode is the HTTP status from the most recent attempt.
	LastStatusCode int `json:"last_status_code,omitempty"`

	// LastResponse is the response body from the most recent attempt
	// (capped at 1000 bytes).
	LastResponse string `json:"last_response,omitempty"`

	// LastError is the error message from the most recent failed attempt.
	LastError string `json:"last_error,omitempty"`

	// DeliveredAt is set only when the delivery succeeds.
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// ListOpts configures filtering and pagination for delivery listing.
type ListOpts struct {
	Offset     int
	Limit      int
	EndpointID *id.ID
	EventType  string
	Status     *Status
	From       *time.Time
	To         *time.Time
}

// Stats aggregates delivery outcomes, optionally scoped to one endpoint.
type Stats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Retrying int64 `json:"retrying"`
	Success  int64 `json:"success"`
	Failed   int64 `json:"failed"`

	// SuccessRate is successes / total, 0 when total is 0.
	SuccessRate float64 `json:"success_rate"`

	// AvgDeliveryMs is the mean of DeliveredAt − CreatedAt over successful
	// deliveries, in milliseconds.
	AvgDeliveryMs float64 `json:"avg_delivery_ms"`
}

// Finalize fills the derived SuccessRate field from the raw counts.
func (s *Stats) Finalize() {
	if s.Total > 0 {
		s.SuccessRate = float64(s.Success) / float64(s.Total)
	}
}
