// Package attemptlog persists one row per delivery attempt so operators can
// inspect the full history of a delivery beyond the latest outcome recorded
// on the delivery row itself.
package attemptlog

import (
	"time"

	"github.com/hookline/hookline/id"
)

// Attempt records a single network try for a delivery.
type Attempt struct {
	// ID is the unique TypeID for this attempt.
	ID id.ID `json:"id"`

	// DeliveryID references the delivery this attempt belongs to.
	DeliveryID id.ID `json:"delivery_id"`

	// EndpointID references the target endpoint.
	EndpointID id.ID `json:"endpoint_id"`

	// EventType is the event type name, denormalized for filtering.
	EventType string `json:"event_type"`

	// Number is the 1-based attempt number within the delivery.
	Number int `json:"number"`

	// StatusCode is the HTTP status received, 0 if the request never
	// completed.
	StatusCode int `json:"status_code,omitempty"`

	// Response is the response body (capped at 1000 bytes).
	Response string `json:"response,omitempty"`

	// Error is the failure message, empty on success.
	Error string `json:"error,omitempty"`

	// LatencyMs is the round-trip latency in milliseconds.
	LatencyMs int `json:"latency_ms"`

	// At is when the attempt finished.
	At time.Time `json:"at"`
}

// Succeeded reports whether this attempt received a 2xx response.
func (a *Attempt) Succeeded() bool {
	return a.StatusCode >= 200 && a.StatusCode < 300
}

// ListOpts configures pagination for attempt listing.
type ListOpts struct {
	Offset int
	Limit  int
}
