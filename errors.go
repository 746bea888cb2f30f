package hookline

import (
	"errors"

	"github.com/hookline/hookline/delivery"
)

// Sentinel errors returned by Hookline operations.
var (
	// ErrNoStore is returned when a Dispatcher is created without a store.
	ErrNoStore = errors.New("hookline: store is required")

	// ErrEndpointNotFound is returned when an endpoint cannot be found.
	ErrEndpointNotFound = errors.New("hookline: endpoint not found")

	// ErrDeliveryNotFound is returned when a delivery cannot be found.
	ErrDeliveryNotFound = errors.New("hookline: delivery not found")

	// ErrEventTypeRequired is returned when publishing an event without a type.
	ErrEventTypeRequired = errors.New("hookline: event type is required")

	// ErrPayloadValidationFailed is returned when event data fails JSON
	// Schema validation.
	ErrPayloadValidationFailed = errors.New("hookline: payload validation failed")

	// ErrStoreClosed is returned when a store operation is attempted after
	// the store is closed.
	ErrStoreClosed = errors.New("hookline: store is closed")

	// ErrMigrationFailed is returned when a backend migration fails.
	ErrMigrationFailed = errors.New("hookline: migration failed")

	// ErrDeliveryAlreadySucceeded is returned when a manual retry targets a
	// delivery that already succeeded.
	ErrDeliveryAlreadySucceeded = delivery.ErrAlreadySucceeded
)
