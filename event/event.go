// Package event defines the published event model and the outbound wire
// envelope.
//
// Events are ephemeral: each matched delivery freezes its own copy of the
// payload at creation, so an event row is never persisted and later changes
// to endpoint configuration cannot alter what was published.
package event

import (
	"time"

	"github.com/hookline/hookline/id"
)

// Event represents an internally published occurrence fanned out to
// subscribed endpoints.
type Event struct {
	// ID is the unique TypeID for this event.
	ID id.ID `json:"id"`

	// Type is the dot-separated event type name (e.g. "order.created").
	Type string `json:"type"`

	// Data is the event payload.
	Data any `json:"data"`

	// OccurredAt is when the event was published.
	OccurredAt time.Time `json:"occurred_at"`

	// EndpointIDs optionally restricts fan-out to an explicit subset of
	// endpoints. Empty means all subscribed, enabled endpoints.
	EndpointIDs []id.ID `json:"endpoint_ids,omitempty"`
}

// Input is the publish request shape.
type Input struct {
	// Type is the event type name. Required.
	Type string `json:"type"`

	// Data is the event payload.
	Data any `json:"data"`

	// EndpointIDs optionally restricts fan-out to these endpoints.
	EndpointIDs []id.ID `json:"endpoint_ids,omitempty"`
}

// Envelope is the canonical outbound request body POSTed to endpoints.
type Envelope struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created time.Time `json:"created"`
	Data    any       `json:"data"`
}
