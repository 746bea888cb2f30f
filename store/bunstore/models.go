package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/hookline/hookline/attemptlog"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// endpointModel is the relational representation of an endpoint.
type endpointModel struct {
	bun.BaseModel `bun:"table:hookline_endpoints"`

	ID          string            `bun:"id,pk"`
	URL         string            `bun:"url,notnull"`
	Description string            `bun:"description"`
	Secret      string            `bun:"secret,notnull"`
	Events      []string          `bun:"events,type:jsonb"`
	Headers     map[string]string `bun:"headers,type:jsonb"`
	Enabled     bool              `bun:"enabled,notnull"`
	RateLimit   int               `bun:"rate_limit"`
	Metadata    map[string]string `bun:"metadata,type:jsonb"`
	CreatedAt   time.Time         `bun:"created_at,notnull"`
	UpdatedAt   time.Time         `bun:"updated_at,notnull"`
}

func toEndpointModel(ep *endpoint.Endpoint) *endpointModel {
	return &endpointModel{
		ID:          ep.ID.String(),
		URL:         ep.URL,
		Description: ep.Description,
		Secret:      ep.Secret,
		Events:      ep.Events,
		Headers:     ep.Headers,
		Enabled:     ep.Enabled,
		RateLimit:   ep.RateLimit,
		Metadata:    ep.Metadata,
		CreatedAt:   ep.CreatedAt,
		UpdatedAt:   ep.UpdatedAt,
	}
}

func fromEndpointModel(m *endpointModel) (*endpoint.Endpoint, error) {
	epID, err := id.ParseEndpointID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.ID, err)
	}
	return &endpoint.Endpoint{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          epID,
		URL:         m.URL,
		Description: m.Description,
		Secret:      m.Secret,
		Events:      m.Events,
		Headers:     m.Headers,
		Enabled:     m.Enabled,
		RateLimit:   m.RateLimit,
		Metadata:    m.Metadata,
	}, nil
}

// deliveryModel is the relational representation of a delivery.
type deliveryModel struct {
	bun.BaseModel `bun:"table:hookline_deliveries"`

	ID             string          `bun:"id,pk"`
	EndpointID     string          `bun:"endpoint_id,notnull"`
	EventID        string          `bun:"event_id,notnull"`
	EventType      string          `bun:"event_type,notnull"`
	Payload        json.RawMessage `bun:"payload,type:jsonb"`
	EventAt        time.Time       `bun:"event_at,notnull"`
	Status         string          `bun:"status,notnull"`
	Attempts       int             `bun:"attempts,notnull"`
	MaxAttempts    int             `bun:"max_attempts,notnull"`
	NextRetryAt    *time.Time      `bun:"next_retry_at"`
	LastStatusCode int             `bun:"last_status_code"`
	LastResponse   string          `bun:"last_response"`
	LastError      string          `bun:"last_error"`
	DeliveredAt    *time.Time      `bun:"delivered_at"`
	CreatedAt      time.Time       `bun:"created_at,notnull"`
	UpdatedAt      time.Time       `bun:"updated_at,notnull"`
}

func toDeliveryModel(d *delivery.Delivery) *deliveryModel {
	return &deliveryModel{
		ID:             d.ID.String(),
		EndpointID:     d.EndpointID.String(),
		EventID:        d.EventID.String(),
		EventType:      d.EventType,
		Payload:        d.Payload,
		EventAt:        d.EventAt,
		Status:         string(d.Status),
		Attempts:       d.Attempts,
		MaxAttempts:    d.MaxAttempts,
		NextRetryAt:    d.NextRetryAt,
		LastStatusCode: d.LastStatusCode,
		LastResponse:   d.LastResponse,
		LastError:      d.LastError,
		DeliveredAt:    d.DeliveredAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func fromDeliveryModel(m *deliveryModel) (*delivery.Delivery, error) {
	delID, err := id.ParseDeliveryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.ID, err)
	}
	epID, err := id.ParseEndpointID(m.EndpointID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.EndpointID, err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	return &delivery.Delivery{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             delID,
		EndpointID:     epID,
		EventID:        evtID,
		EventType:      m.EventType,
		Payload:        m.Payload,
		EventAt:        m.EventAt,
		Status:         delivery.Status(m.Status),
		Attempts:       m.Attempts,
		MaxAttempts:    m.MaxAttempts,
		NextRetryAt:    m.NextRetryAt,
		LastStatusCode: m.LastStatusCode,
		LastResponse:   m.LastResponse,
		LastError:      m.LastError,
		DeliveredAt:    m.DeliveredAt,
	}, nil
}

// attemptModel is the relational representation of a delivery attempt.
type attemptModel struct {
	bun.BaseModel `bun:"table:hookline_attempts"`

	ID         string    `bun:"id,pk"`
	DeliveryID string    `bun:"delivery_id,notnull"`
	EndpointID string    `bun:"endpoint_id,notnull"`
	EventType  string    `bun:"event_type"`
	Number     int       `bun:"number,notnull"`
	StatusCode int       `bun:"status_code"`
	Response   string    `bun:"response"`
	Error      string    `bun:"error"`
	LatencyMs  int       `bun:"latency_ms"`
	At         time.Time `bun:"at,notnull"`
}

func toAttemptModel(a *attemptlog.Attempt) *attemptModel {
	return &attemptModel{
		ID:         a.ID.String(),
		DeliveryID: a.DeliveryID.String(),
		EndpointID: a.EndpointID.String(),
		EventType:  a.EventType,
		Number:     a.Number,
		StatusCode: a.StatusCode,
		Response:   a.Response,
		Error:      a.Error,
		LatencyMs:  a.LatencyMs,
		At:         a.At,
	}
}

func fromAttemptModel(m *attemptModel) (*attemptlog.Attempt, error) {
	attID, err := id.ParseAttemptID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse attempt ID %q: %w", m.ID, err)
	}
	delID, err := id.ParseDeliveryID(m.DeliveryID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.DeliveryID, err)
	}
	epID, err := id.ParseEndpointID(m.EndpointID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.EndpointID, err)
	}
	return &attemptlog.Attempt{
		ID:         attID,
		DeliveryID: delID,
		EndpointID: epID,
		EventType:  m.EventType,
		Number:     m.Number,
		StatusCode: m.StatusCode,
		Response:   m.Response,
		Error:      m.Error,
		LatencyMs:  m.LatencyMs,
		At:         m.At,
	}, nil
}
