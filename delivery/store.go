package delivery

import (
	"context"
	"time"

	"github.com/hookline/hookline/id"
)

// Store defines the persistence contract for webhook deliveries.
type Store interface {
	// CreateDelivery persists a new delivery.
	CreateDelivery(ctx context.Context, d *Delivery) error

	// CreateDeliveries persists multiple deliveries atomically (fan-out).
	CreateDeliveries(ctx context.Context, ds []*Delivery) error

	// GetDelivery returns a delivery by ID.
	GetDelivery(ctx context.Context, delID id.ID) (*Delivery, error)

	// UpdateDelivery modifies a delivery. Field updates are idempotent:
	// re-applying the same update leaves the row unchanged.
	UpdateDelivery(ctx context.Context, d *Delivery) error

	// IncrementAttempts atomically increments the attempt counter and
	// returns the new count.
	IncrementAttempts(ctx context.Context, delID id.ID) (int, error)

	// GetRetriable returns deliveries with status pending or retrying whose
	// NextRetryAt is at or before now, ordered by NextRetryAt ascending
	// (oldest-due first), limited to limit rows.
	GetRetriable(ctx context.Context, now time.Time, limit int) ([]*Delivery, error)

	// ListDeliveries returns deliveries matching the filter options,
	// newest first.
	ListDeliveries(ctx context.Context, opts ListOpts) ([]*Delivery, error)

	// DeliveryStats aggregates outcomes, optionally scoped to one endpoint.
	DeliveryStats(ctx context.Context, endpointID *id.ID) (*Stats, error)

	// CleanupOlderThan deletes terminal (success/failed) deliveries created
	// before cutoff, together with their attempt history, and returns the
	// number of deliveries removed. Pending/retrying rows are never touched
	// regardless of age.
	CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
