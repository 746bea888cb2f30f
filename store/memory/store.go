// Package memory provides an in-memory Store implementation for unit testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/attemptlog"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/id"
	hookstore "github.com/hookline/hookline/store"
)

// compile-time interface check.
var _ hookstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store for testing.
type Store struct {
	mu sync.RWMutex

	endpoints  map[string]*endpoint.Endpoint // keyed by ID string
	deliveries map[string]*delivery.Delivery // keyed by ID string
	attempts   map[string][]*attemptlog.Attempt // keyed by delivery ID string

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		endpoints:  make(map[string]*endpoint.Endpoint),
		deliveries: make(map[string]*delivery.Delivery),
		attempts:   make(map[string][]*attemptlog.Attempt),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the in-memory store.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return hookline.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// endpoint.Store
// ──────────────────────────────────────────────────

// CreateEndpoint persists a new endpoint.
func (s *Store) CreateEndpoint(_ context.Context, ep *endpoint.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.endpoints[ep.ID.String()] = ep
	return nil
}

// GetEndpoint returns an endpoint by ID.
func (s *Store) GetEndpoint(_ context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ep, ok := s.endpoints[epID.String()]
	if !ok {
		return nil, hookline.ErrEndpointNotFound
	}
	return ep, nil
}

// UpdateEndpoint modifies an existing endpoint.
func (s *Store) UpdateEndpoint(_ context.Context, ep *endpoint.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.endpoints[ep.ID.String()]; !ok {
		return hookline.ErrEndpointNotFound
	}
	ep.UpdatedAt = time.Now().UTC()
	s.endpoints[ep.ID.String()] = ep
	return nil
}

// DeleteEndpoint removes an endpoint. Deliveries already created for it are
// kept; the engine fails them on their next attempt.
func (s *Store) DeleteEndpoint(_ context.Context, epID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.endpoints[epID.String()]; !ok {
		return hookline.ErrEndpointNotFound
	}
	delete(s.endpoints, epID.String())
	return nil
}

// ListEndpoints returns endpoints, optionally filtered.
func (s *Store) ListEndpoints(_ context.Context, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*endpoint.Endpoint, 0, len(s.endpoints))
	for _, ep := range s.endpoints {
		if opts.Enabled != nil && ep.Enabled != *opts.Enabled {
			continue
		}
		result = append(result, ep)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// GetEndpointsForEvent finds all enabled endpoints subscribed to an event type.
func (s *Store) GetEndpointsForEvent(_ context.Context, eventType string) ([]*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*endpoint.Endpoint
	for _, ep := range s.endpoints {
		if !ep.Enabled {
			continue
		}
		if ep.Subscribed(eventType) {
			result = append(result, ep)
		}
	}
	return result, nil
}

// SetEnabled enables or disables an endpoint.
func (s *Store) SetEnabled(_ context.Context, epID id.ID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, ok := s.endpoints[epID.String()]
	if !ok {
		return hookline.ErrEndpointNotFound
	}
	ep.Enabled = enabled
	ep.UpdatedAt = time.Now().UTC()
	return nil
}

// ──────────────────────────────────────────────────
// delivery.Store
// ──────────────────────────────────────────────────

// copyDelivery returns a shallow copy of the delivery.
func copyDelivery(d *delivery.Delivery) *delivery.Delivery {
	cp := *d
	return &cp
}

// CreateDelivery persists a new delivery.
func (s *Store) CreateDelivery(_ context.Context, d *delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deliveries[d.ID.String()] = copyDelivery(d)
	return nil
}

// CreateDeliveries persists multiple deliveries atomically.
func (s *Store) CreateDeliveries(_ context.Context, ds []*delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range ds {
		s.deliveries[d.ID.String()] = copyDelivery(d)
	}
	return nil
}

// GetDelivery returns a copy of the delivery by ID.
func (s *Store) GetDelivery(_ context.Context, delID id.ID) (*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deliveries[delID.String()]
	if !ok {
		return nil, hookline.ErrDeliveryNotFound
	}
	return copyDelivery(d), nil
}

// UpdateDelivery modifies a delivery.
func (s *Store) UpdateDelivery(_ context.Context, d *delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deliveries[d.ID.String()]; !ok {
		return hookline.ErrDeliveryNotFound
	}
	d.UpdatedAt = time.Now().UTC()
	s.deliveries[d.ID.String()] = copyDelivery(d)
	return nil
}

// IncrementAttempts atomically increments the attempt counter and returns
// the new count.
func (s *Store) IncrementAttempts(_ context.Context, delID id.ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deliveries[delID.String()]
	if !ok {
		return 0, hookline.ErrDeliveryNotFound
	}
	d.Attempts++
	d.UpdatedAt = time.Now().UTC()
	return d.Attempts, nil
}

// GetRetriable returns due pending/retrying deliveries, oldest-due first.
func (s *Store) GetRetriable(_ context.Context, now time.Time, limit int) ([]*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]*delivery.Delivery, 0, len(s.deliveries))
	for _, d := range s.deliveries {
		if d.Status != delivery.StatusPending && d.Status != delivery.StatusRetrying {
			continue
		}
		if d.NextRetryAt == nil || d.NextRetryAt.After(now) {
			continue
		}
		candidates = append(candidates, d)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].NextRetryAt.Before(*candidates[j].NextRetryAt)
	})

	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}

	result := make([]*delivery.Delivery, 0, len(candidates))
	for _, d := range candidates {
		result = append(result, copyDelivery(d))
	}
	return result, nil
}

// ListDeliveries returns deliveries matching the filter options, newest first.
func (s *Store) ListDeliveries(_ context.Context, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*delivery.Delivery, 0, len(s.deliveries))
	for _, d := range s.deliveries {
		if !matchDeliveryOpts(d, opts) {
			continue
		}
		result = append(result, copyDelivery(d))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// DeliveryStats aggregates outcomes, optionally scoped to one endpoint.
func (s *Store) DeliveryStats(_ context.Context, endpointID *id.ID) (*delivery.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &delivery.Stats{}
	var latencySum float64

	for _, d := range s.deliveries {
		if endpointID != nil && d.EndpointID.String() != endpointID.String() {
			continue
		}

		stats.Total++
		switch d.Status {
		case delivery.StatusPending:
			stats.Pending++
		case delivery.StatusRetrying:
			stats.Retrying++
		case delivery.StatusSuccess:
			stats.Success++
			if d.DeliveredAt != nil {
				latencySum += float64(d.DeliveredAt.Sub(d.CreatedAt).Milliseconds())
			}
		case delivery.StatusFailed:
			stats.Failed++
		}
	}

	if stats.Success > 0 {
		stats.AvgDeliveryMs = latencySum / float64(stats.Success)
	}
	return stats, nil
}

// CleanupOlderThan deletes terminal deliveries created before cutoff along
// with their attempt history.
func (s *Store) CleanupOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for k, d := range s.deliveries {
		if !d.Status.Terminal() {
			continue
		}
		if !d.CreatedAt.Before(cutoff) {
			continue
		}
		delete(s.deliveries, k)
		delete(s.attempts, k)
		count++
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// attemptlog.Store
// ──────────────────────────────────────────────────

// RecordAttempt appends an attempt row.
func (s *Store) RecordAttempt(_ context.Context, a *attemptlog.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := a.DeliveryID.String()
	s.attempts[key] = append(s.attempts[key], a)
	return nil
}

// ListAttempts returns the attempts for a delivery, oldest first.
func (s *Store) ListAttempts(_ context.Context, deliveryID id.ID, opts attemptlog.ListOpts) ([]*attemptlog.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.attempts[deliveryID.String()]
	result := make([]*attemptlog.Attempt, len(rows))
	copy(result, rows)

	sort.Slice(result, func(i, j int) bool {
		return result[i].Number < result[j].Number
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func matchDeliveryOpts(d *delivery.Delivery, opts delivery.ListOpts) bool {
	if opts.EndpointID != nil && d.EndpointID.String() != opts.EndpointID.String() {
		return false
	}
	if opts.EventType != "" && d.EventType != opts.EventType {
		return false
	}
	if opts.Status != nil && d.Status != *opts.Status {
		return false
	}
	if opts.From != nil && d.CreatedAt.Before(*opts.From) {
		return false
	}
	if opts.To != nil && d.CreatedAt.After(*opts.To) {
		return false
	}
	return true
}

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}
