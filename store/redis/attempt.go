package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hookline/hookline/attemptlog"
	"github.com/hookline/hookline/id"
)

// attemptModel is the JSON representation stored in Redis.
type attemptModel struct {
	ID         string    `json:"id"`
	DeliveryID string    `json:"delivery_id"`
	EndpointID string    `json:"endpoint_id"`
	EventType  string    `json:"event_type"`
	Number     int       `json:"number"`
	StatusCode int       `json:"status_code"`
	Response   string    `json:"response"`
	Error      string    `json:"error"`
	LatencyMs  int       `json:"latency_ms"`
	At         time.Time `json:"at"`
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

// RecordAttempt appends an attempt row to the delivery's history list.
func (s *Store) RecordAttempt(ctx context.Context, a *attemptlog.Attempt) error {
	raw, err := json.Marshal(toAttemptModel(a))
	if err != nil {
		return fmt.Errorf("hookline/redis: marshal attempt: %w", err)
	}
	if err := s.rdb.RPush(ctx, attemptsKey(a.DeliveryID.String()), raw).Err(); err != nil {
		return fmt.Errorf("hookline/redis: record attempt: %w", err)
	}
	return nil
}

// ListAttempts returns the attempts for a delivery, oldest first.
func (s *Store) ListAttempts(ctx context.Context, deliveryID id.ID, opts attemptlog.ListOpts) ([]*attemptlog.Attempt, error) {
	rows, err := s.rdb.LRange(ctx, attemptsKey(deliveryID.String()), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: list attempts: %w", err)
	}

	result := make([]*attemptlog.Attempt, 0, len(rows))
	for _, raw := range rows {
		var m attemptModel
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("hookline/redis: decode attempt: %w", err)
		}
		a, err := fromAttemptModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}
