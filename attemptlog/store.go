package attemptlog

import (
	"context"

	"github.com/hookline/hookline/id"
)

// Store defines the persistence contract for delivery attempt history.
type Store interface {
	// RecordAttempt appends an attempt row.
	RecordAttempt(ctx context.Context, a *Attempt) error

	// ListAttempts returns the attempts for a delivery, oldest first.
	ListAttempts(ctx context.Context, deliveryID id.ID, opts ListOpts) ([]*Attempt, error)
}
