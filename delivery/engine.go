package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/hookline/hookline/attemptlog"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/observability"
	"github.com/hookline/hookline/ratelimit"
	"github.com/hookline/hookline/retry"
)

// ErrAlreadySucceeded is returned when a manual retry is requested for a
// delivery that already succeeded.
var ErrAlreadySucceeded = errors.New("delivery: already succeeded")

// EngineStore is the interface the engine needs for delivery operations.
type EngineStore interface {
	GetDelivery(ctx context.Context, delID id.ID) (*Delivery, error)
	UpdateDelivery(ctx context.Context, d *Delivery) error
	IncrementAttempts(ctx context.Context, delID id.ID) (int, error)
	GetRetriable(ctx context.Context, now time.Time, limit int) ([]*Delivery, error)
	GetEndpoint(ctx context.Context, epID id.ID) (*endpoint.Endpoint, error)
}

// AttemptRecorder appends per-attempt history rows.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, a *attemptlog.Attempt) error
}

// EngineConfig holds engine configuration.
type EngineConfig struct {
	Concurrency    int
	PollInterval   time.Duration
	BatchSize      int
	RequestTimeout time.Duration
	UserAgent      string
	DisableSigning bool
	Strategy       retry.Strategy
	Limiter        *ratelimit.Limiter
	Metrics        *observability.Metrics
	Tracer         *observability.Tracer
}

// Engine attempts deliveries, applies the retry strategy, and runs the
// background poller that resumes deliveries whose NextRetryAt has elapsed.
//
// Attempts for a single delivery id are strictly serialized by a
// per-process in-flight guard; attempts across deliveries run in parallel.
type Engine struct {
	store    EngineStore
	attempts AttemptRecorder
	sender   *Sender
	strategy retry.Strategy
	config   EngineConfig
	logger   *slog.Logger
	guard    *inflight

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a delivery engine.
func NewEngine(store EngineStore, attempts AttemptRecorder, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	strategy := cfg.Strategy
	if strategy == nil {
		strategy = retry.NewExponential()
	}
	return &Engine{
		store:    store,
		attempts: attempts,
		sender: NewSender(SenderConfig{
			Timeout:        cfg.RequestTimeout,
			UserAgent:      cfg.UserAgent,
			DisableSigning: cfg.DisableSigning,
		}),
		strategy: strategy,
		config:   cfg,
		logger:   logger,
		guard:    newInflight(),
	}
}

// Start begins the background poller.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pollLoop(ctx)
	}()
}

// Stop cancels the poll loop and waits for in-flight deliveries to complete.
func (e *Engine) Stop(_ context.Context) {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// pollLoop periodically queries due deliveries and dispatches them to a
// bounded worker pool. Failures for one delivery never abort the tick.
func (e *Engine) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, e.config.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch, err := e.store.GetRetriable(ctx, time.Now().UTC(), e.config.BatchSize)
			if err != nil {
				e.logger.ErrorContext(ctx, "poll retriable failed", "error", err)
				continue
			}

			for _, d := range batch {
				select {
				case <-ctx.Done():
					return
				case sem <- struct{}{}:
				}

				e.wg.Add(1)
				go func(delID id.ID) {
					defer e.wg.Done()
					defer func() { <-sem }()
					defer func() {
						if rec := recover(); rec != nil {
							e.logger.ErrorContext(ctx, "attempt panicked",
								"delivery_id", delID, "panic", rec)
						}
					}()
					e.Attempt(ctx, delID)
				}(d.ID)
			}
		}
	}
}

// Attempt performs one delivery attempt for the given id.
//
// If the delivery is already in flight (the publish path and the poller
// race on the same rows) the call returns immediately with no side effects.
// The in-flight mark is always released on exit.
func (e *Engine) Attempt(ctx context.Context, delID id.ID) {
	key := delID.String()
	if !e.guard.tryAcquire(key) {
		return
	}
	defer e.guard.release(key)

	e.attempt(ctx, delID)
}

func (e *Engine) attempt(ctx context.Context, delID id.ID) {
	d, err := e.store.GetDelivery(ctx, delID)
	if err != nil {
		e.logger.ErrorContext(ctx, "get delivery failed", "delivery_id", delID, "error", err)
		return
	}
	if d.Status.Terminal() {
		return
	}

	ep, err := e.store.GetEndpoint(ctx, d.EndpointID)
	if err != nil {
		// The endpoint vanished mid-flight: fail the delivery with a
		// descriptive error instead of leaving it stuck.
		e.fail(ctx, d, fmt.Sprintf("endpoint %s not found: %v", d.EndpointID, err))
		return
	}

	attempts, err := e.store.IncrementAttempts(ctx, delID)
	if err != nil {
		e.logger.ErrorContext(ctx, "increment attempts failed", "delivery_id", delID, "error", err)
		return
	}
	d.Attempts = attempts
	if attempts == 1 {
		d.Status = StatusPending
	} else {
		d.Status = StatusRetrying
	}

	var span trace.Span
	if e.config.Tracer != nil {
		ctx, span = e.config.Tracer.StartAttemptSpan(ctx, d.ID.String(), d.EventID.String(), d.EndpointID.String(), attempts)
	}

	if e.config.Limiter != nil && ep.RateLimit > 0 {
		if waitErr := e.config.Limiter.Wait(ctx, ep.ID.String(), ep.RateLimit); waitErr != nil {
			// Context cancelled while pacing; leave the row for the poller.
			if span != nil {
				e.config.Tracer.EndAttemptSpan(span, 0, 0, waitErr.Error())
			}
			return
		}
	}

	result := e.sender.Send(ctx, ep, d)

	now := time.Now().UTC()
	e.recordAttempt(ctx, d, result, now)

	d.LastStatusCode = result.StatusCode
	d.LastResponse = result.Response
	d.LastError = result.Error

	latencySeconds := float64(result.LatencyMs) / 1000.0

	switch {
	case result.Succeeded():
		d.Status = StatusSuccess
		d.DeliveredAt = &now
		d.NextRetryAt = nil
		d.LastError = ""
		if e.config.Metrics != nil {
			e.config.Metrics.RecordDelivery(ctx, "success", latencySeconds)
		}
		e.logger.InfoContext(ctx, "delivered",
			"delivery_id", d.ID, "endpoint_id", d.EndpointID,
			"status", result.StatusCode, "attempt", attempts, "latency_ms", result.LatencyMs)

	default:
		attemptErr := attemptError(result)
		d.LastError = attemptErr.Error()

		if attempts < d.MaxAttempts && e.strategy.ShouldRetry(attempts, attemptErr) {
			delay := e.strategy.NextDelay(attempts)
			next := now.Add(delay)
			d.Status = StatusRetrying
			d.NextRetryAt = &next
			if e.config.Metrics != nil {
				e.config.Metrics.RecordDelivery(ctx, "retried", latencySeconds)
			}
			e.logger.DebugContext(ctx, "retry scheduled",
				"delivery_id", d.ID, "attempt", attempts, "next_at", next, "error", d.LastError)
		} else {
			d.Status = StatusFailed
			d.NextRetryAt = nil
			if e.config.Metrics != nil {
				e.config.Metrics.RecordDelivery(ctx, "failed", latencySeconds)
			}
			e.logger.WarnContext(ctx, "delivery failed permanently",
				"delivery_id", d.ID, "endpoint_id", d.EndpointID,
				"attempts", attempts, "status", result.StatusCode, "error", d.LastError)
		}
	}

	if span != nil {
		e.config.Tracer.EndAttemptSpan(span, result.StatusCode, result.LatencyMs, d.LastError)
	}

	if updateErr := e.store.UpdateDelivery(ctx, d); updateErr != nil {
		e.logger.ErrorContext(ctx, "update delivery failed", "delivery_id", d.ID, "error", updateErr)
	}
}

// Retry manually re-queues a delivery and attempts it immediately.
//
// Retrying a successful delivery is a domain error and leaves it unchanged.
// A failed delivery's budget is extended by one so the extra attempt never
// pushes the counter past it.
func (e *Engine) Retry(ctx context.Context, delID id.ID) (*Delivery, error) {
	d, err := e.store.GetDelivery(ctx, delID)
	if err != nil {
		return nil, err
	}

	if d.Status == StatusSuccess {
		return nil, ErrAlreadySucceeded
	}

	now := time.Now().UTC()
	d.Status = StatusPending
	d.NextRetryAt = &now
	if d.Attempts >= d.MaxAttempts {
		d.MaxAttempts = d.Attempts + 1
	}

	if err := e.store.UpdateDelivery(ctx, d); err != nil {
		return nil, err
	}

	e.Attempt(ctx, delID)

	return e.store.GetDelivery(ctx, delID)
}

// fail marks a delivery permanently failed outside the normal attempt flow
// (e.g. its endpoint no longer exists).
func (e *Engine) fail(ctx context.Context, d *Delivery, msg string) {
	d.Status = StatusFailed
	d.NextRetryAt = nil
	d.LastError = msg

	if err := e.store.UpdateDelivery(ctx, d); err != nil {
		e.logger.ErrorContext(ctx, "update delivery failed", "delivery_id", d.ID, "error", err)
		return
	}

	e.logger.WarnContext(ctx, "delivery failed permanently", "delivery_id", d.ID, "error", msg)
}

func (e *Engine) recordAttempt(ctx context.Context, d *Delivery, result Result, at time.Time) {
	if e.attempts == nil {
		return
	}

	a := &attemptlog.Attempt{
		ID:         id.NewAttemptID(),
		DeliveryID: d.ID,
		EndpointID: d.EndpointID,
		EventType:  d.EventType,
		Number:     d.Attempts,
		StatusCode: result.StatusCode,
		Response:   result.Response,
		Error:      result.Error,
		LatencyMs:  result.LatencyMs,
		At:         at,
	}

	if err := e.attempts.RecordAttempt(ctx, a); err != nil {
		e.logger.ErrorContext(ctx, "record attempt failed", "delivery_id", d.ID, "error", err)
	}
}

// attemptError converts a failed Result into an error the retry strategy
// can classify.
func attemptError(result Result) error {
	if result.StatusCode != 0 {
		return &retry.StatusError{Code: result.StatusCode}
	}
	if result.Error != "" {
		return errors.New(result.Error)
	}
	return errors.New("delivery failed")
}
