package attemptlog

import (
	"context"
	"log/slog"

	"github.com/hookline/hookline/id"
)

// Service provides read access to delivery attempt history.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new attempt log service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// List returns the attempt history for a delivery, oldest first.
func (svc *Service) List(ctx context.Context, deliveryID id.ID, opts ListOpts) ([]*Attempt, error) {
	return svc.store.ListAttempts(ctx, deliveryID, opts)
}
