package hookline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hookline/hookline/attemptlog"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/ratelimit"
	"github.com/hookline/hookline/schema"
	"github.com/hookline/hookline/store"
)

// wireServices initializes the internal services after options have been
// applied.
func (d *Dispatcher) wireServices() {
	d.schemas = schema.NewRegistry()
	d.endpointSvc = endpoint.NewService(d.store, d.logger)
	d.attemptSvc = attemptlog.NewService(d.store, d.logger)

	d.engine = delivery.NewEngine(d.store, d.store, delivery.EngineConfig{
		Concurrency:    d.config.Concurrency,
		PollInterval:   d.config.PollInterval,
		BatchSize:      d.config.BatchSize,
		RequestTimeout: d.config.RequestTimeout,
		UserAgent:      d.config.UserAgent,
		DisableSigning: d.config.DisableSigning,
		Strategy:       d.strategy,
		Limiter:        ratelimit.New(),
		Metrics:        d.metrics,
		Tracer:         d.tracer,
	}, d.logger)
}

// Start begins the background poller that resumes due deliveries.
func (d *Dispatcher) Start(ctx context.Context) {
	d.engine.Start(ctx)
}

// Stop gracefully shuts down the poller and waits for in-flight deliveries.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.engine.Stop(ctx)
}

// RegisterSchema binds a JSON Schema to an event type; subsequent publishes
// of that type are validated against it.
func (d *Dispatcher) RegisterSchema(eventType string, schemaJSON json.RawMessage) error {
	return d.schemas.Register(eventType, schemaJSON)
}

// PublishEvent validates and accepts an event for delivery, returning
// immediately. Dispatch — endpoint resolution, delivery creation, and the
// first attempts — runs detached; its failures are logged, never surfaced
// to the publisher. Callers observe delivery outcomes via delivery queries
// or Stats.
func (d *Dispatcher) PublishEvent(ctx context.Context, in event.Input) (*event.Event, error) {
	if in.Type == "" {
		return nil, ErrEventTypeRequired
	}

	if err := d.schemas.Validate(in.Type, in.Data); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPayloadValidationFailed, err.Error())
	}

	// Freeze the payload now: the snapshot each delivery carries must not
	// change even if the caller mutates the value afterwards.
	payload, err := json.Marshal(in.Data)
	if err != nil {
		return nil, fmt.Errorf("hookline: marshal payload: %w", err)
	}

	evt := &event.Event{
		ID:          id.NewEventID(),
		Type:        in.Type,
		Data:        in.Data,
		OccurredAt:  time.Now().UTC(),
		EndpointIDs: in.EndpointIDs,
	}

	dispatchCtx := context.WithoutCancel(ctx)
	go func() {
		if dispatchErr := d.dispatch(dispatchCtx, evt, payload); dispatchErr != nil {
			d.logger.ErrorContext(dispatchCtx, "dispatch failed",
				"event_id", evt.ID, "type", evt.Type, "error", dispatchErr)
		}
	}()

	return evt, nil
}

// dispatch resolves the event's target endpoints, creates one delivery per
// endpoint with a frozen payload snapshot, and attempts each immediately.
// Per-endpoint failures are isolated: one endpoint's failure never prevents
// the others' deliveries.
func (d *Dispatcher) dispatch(ctx context.Context, evt *event.Event, payload json.RawMessage) error {
	endpoints, err := d.store.GetEndpointsForEvent(ctx, evt.Type)
	if err != nil {
		return fmt.Errorf("resolve endpoints: %w", err)
	}

	if len(evt.EndpointIDs) > 0 {
		endpoints = intersect(endpoints, evt.EndpointIDs)
	}

	if len(endpoints) == 0 {
		return nil // no matching endpoints — nothing to deliver
	}

	now := time.Now().UTC()
	deliveries := make([]*delivery.Delivery, 0, len(endpoints))
	for _, ep := range endpoints {
		due := now
		deliveries = append(deliveries, &delivery.Delivery{
			Entity:      entity.New(),
			ID:          id.NewDeliveryID(),
			EndpointID:  ep.ID,
			EventID:     evt.ID,
			EventType:   evt.Type,
			Payload:     payload,
			EventAt:     evt.OccurredAt,
			Status:      delivery.StatusPending,
			Attempts:    0,
			MaxAttempts: d.config.MaxAttempts,
			NextRetryAt: &due,
		})
	}

	if err := d.store.CreateDeliveries(ctx, deliveries); err != nil {
		return fmt.Errorf("create deliveries: %w", err)
	}

	if d.metrics != nil {
		d.metrics.RecordPublish(ctx, len(deliveries))
	}

	d.logger.DebugContext(ctx, "event dispatched",
		"event_id", evt.ID, "type", evt.Type, "endpoints", len(deliveries))

	var wg sync.WaitGroup
	for _, del := range deliveries {
		wg.Add(1)
		go func(delID id.ID) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					d.logger.ErrorContext(ctx, "attempt panicked",
						"delivery_id", delID, "panic", rec)
				}
			}()
			d.engine.Attempt(ctx, delID)
		}(del.ID)
	}
	wg.Wait()

	return nil
}

// intersect filters endpoints down to the explicitly targeted ids.
func intersect(endpoints []*endpoint.Endpoint, ids []id.ID) []*endpoint.Endpoint {
	targeted := make(map[string]struct{}, len(ids))
	for _, epID := range ids {
		targeted[epID.String()] = struct{}{}
	}

	kept := endpoints[:0]
	for _, ep := range endpoints {
		if _, ok := targeted[ep.ID.String()]; ok {
			kept = append(kept, ep)
		}
	}
	return kept
}

// RetryDelivery manually re-queues a delivery and attempts it immediately.
// Returns ErrDeliveryAlreadySucceeded for deliveries in the success state.
func (d *Dispatcher) RetryDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	return d.engine.Retry(ctx, delID)
}

// Stats aggregates delivery outcomes, optionally scoped to one endpoint.
func (d *Dispatcher) Stats(ctx context.Context, endpointID *id.ID) (*delivery.Stats, error) {
	stats, err := d.store.DeliveryStats(ctx, endpointID)
	if err != nil {
		return nil, err
	}
	stats.Finalize()
	return stats, nil
}

// Cleanup deletes terminal deliveries older than the given number of days,
// together with their attempt history, and returns the count removed.
// Pending and retrying deliveries are never removed regardless of age.
func (d *Dispatcher) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	removed, err := d.store.CleanupOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	d.logger.InfoContext(ctx, "cleanup completed",
		"older_than_days", olderThanDays, "removed", removed)

	return removed, nil
}

// Endpoints returns the endpoint management service.
func (d *Dispatcher) Endpoints() *endpoint.Service {
	return d.endpointSvc
}

// Deliveries returns the delivery engine, exposing Attempt and Retry for
// callers embedding the dispatcher without the HTTP surface.
func (d *Dispatcher) Deliveries() *delivery.Engine {
	return d.engine
}

// Attempts returns the delivery attempt history service.
func (d *Dispatcher) Attempts() *attemptlog.Service {
	return d.attemptSvc
}

// Store returns the underlying store.
func (d *Dispatcher) Store() store.Store {
	return d.store
}
