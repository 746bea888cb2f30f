// Package endpoint manages webhook subscriber endpoints: registration,
// partial updates, secret rotation, and subscription matching.
package endpoint

import (
	"strings"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// Endpoint represents a registered webhook delivery target.
type Endpoint struct {
	entity.Entity

	// ID is the unique TypeID for this endpoint.
	ID id.ID `json:"id"`

	// URL is the webhook delivery URL. Must be a valid absolute URL.
	URL string `json:"url"`

	// Description is a human-readable description of this endpoint.
	Description string `json:"description,omitempty"`

	// Secret is the HMAC signing secret for this endpoint. Generated
	// server-side, never serialized; exposed only on create and rotation.
	Secret string `json:"-"`

	// Events are the subscribed event types. "*" subscribes to everything;
	// segment wildcards such as "invoice.*" are also supported. An empty
	// list means the endpoint receives nothing. Never nil in storage.
	Events []string `json:"events"`

	// Headers are custom HTTP headers merged into every delivery.
	Headers map[string]string `json:"headers,omitempty"`

	// Enabled indicates whether the endpoint receives deliveries.
	Enabled bool `json:"enabled"`

	// RateLimit is the maximum deliveries per second. 0 means unlimited.
	RateLimit int `json:"rate_limit,omitempty"`

	// Metadata holds user-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Subscribed reports whether this endpoint's subscription list matches the
// given event type.
func (ep *Endpoint) Subscribed(eventType string) bool {
	for _, pattern := range ep.Events {
		if Match(pattern, eventType) {
			return true
		}
	}
	return false
}

// Match checks if an event type name matches a subscription pattern.
//
// Supported patterns:
//
//	"invoice.created"  → exact match
//	"invoice.*"        → matches invoice.created, invoice.paid, etc. (single segment wildcard)
//	"*"                → matches everything
func Match(pattern, eventType string) bool {
	if pattern == "*" {
		return true
	}

	if pattern == eventType {
		return true
	}

	patternParts := strings.Split(pattern, ".")
	eventParts := strings.Split(eventType, ".")

	if len(patternParts) != len(eventParts) {
		return false
	}

	for i, pp := range patternParts {
		if pp == "*" {
			continue
		}
		if pp != eventParts[i] {
			return false
		}
	}

	return true
}
