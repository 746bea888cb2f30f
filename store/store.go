// Package store defines the composite persistence contract a backend must
// implement to power the delivery engine.
package store

import (
	"context"

	"github.com/hookline/hookline/attemptlog"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/endpoint"
)

// Store is the full persistence contract. Backends implement all entity
// stores plus lifecycle management.
type Store interface {
	endpoint.Store
	delivery.Store
	attemptlog.Store

	// Migrate creates or updates the backend schema.
	Migrate(ctx context.Context) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
