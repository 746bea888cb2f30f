package mongo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hookline/hookline/attemptlog"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// endpointModel is the BSON representation of an endpoint.
type endpointModel struct {
	ID          string            `bson:"_id"`
	URL         string            `bson:"url"`
	Description string            `bson:"description,omitempty"`
	Secret      string            `bson:"secret"`
	Events      []string          `bson:"events"`
	Headers     map[string]string `bson:"headers,omitempty"`
	Enabled     bool              `bson:"enabled"`
	RateLimit   int               `bson:"rate_limit,omitempty"`
	Metadata    map[string]string `bson:"metadata,omitempty"`
	CreatedAt   time.Time         `bson:"created_at"`
	UpdatedAt   time.Time         `bson:"updated_at"`
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

// deliveryModel is the BSON representation of a delivery.
type deliveryModel struct {
	ID             string     `bson:"_id"`
	EndpointID     string     `bson:"endpoint_id"`
	EventID        string     `bson:"event_id"`
	EventType      string     `bson:"event_type"`
	Payload        []byte     `bson:"payload"`
	EventAt        time.Time  `bson:"event_at"`
	Status         string     `bson:"status"`
	Attempts       int        `bson:"attempts"`
	MaxAttempts    int        `bson:"max_attempts"`
	NextRetryAt    *time.Time `bson:"next_retry_at,omitempty"`
	LastStatusCode int        `bson:"last_status_code,omitempty"`
	LastResponse   string     `bson:"last_response,omitempty"`
	LastError      string     `bson:"last_error,omitempty"`
	DeliveredAt    *time.Time `bson:"delivered_at,omitempty"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
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
		Payload:        json.RawMessage(m.Payload),
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

// attemptModel is the BSON representation of a delivery attempt.
type attemptModel struct {
	ID         string    `bson:"_id"`
	DeliveryID string    `bson:"delivery_id"`
	EndpointID string    `bson:"endpoint_id"`
	EventType  string    `bson:"event_type,omitempty"`
	Number     int       `bson:"number"`
	StatusCode int       `bson:"status_code,omitempty"`
	Response   string    `bson:"response,omitempty"`
	Error      string    `bson:"error,omitempty"`
	LatencyMs  int       `bson:"latency_ms"`
	At         time.Time `bson:"at"`
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
