package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// deliveryModel is the JSON representation stored in Redis.
type deliveryModel struct {
	ID             string          `json:"id"`
	EndpointID     string          `json:"endpoint_id"`
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	EventAt        time.Time       `json:"event_at"`
	Status         string          `json:"status"`
	Attempts       int             `json:"attempts"`
	MaxAttempts    int             `json:"max_attempts"`
	NextRetryAt    *time.Time      `json:"next_retry_at,omitempty"`
	LastStatusCode int             `json:"last_status_code"`
	LastResponse   string          `json:"last_response"`
	LastError      string          `json:"last_error"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
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

// incrementScript atomically increments the attempts counter embedded in the
// delivery JSON blob and returns the new count.
// KEYS[1] = delivery key
// ARGV[1] = updated_at (RFC3339Nano)
var incrementScript = goredis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then return -1 end
local d = cjson.decode(raw)
d.attempts = (d.attempts or 0) + 1
d.updated_at = ARGV[1]
redis.call('SET', KEYS[1], cjson.encode(d))
return d.attempts
`)

// dueIndex adds or removes a delivery from the due sorted set depending on
// whether another attempt is scheduled.
func (s *Store) dueIndex(ctx context.Context, pipe goredis.Pipeliner, m *deliveryModel) {
	status := delivery.Status(m.Status)
	if !status.Terminal() && m.NextRetryAt != nil {
		pipe.ZAdd(ctx, zDeliveryDue, goredis.Z{Score: scoreFromTime(*m.NextRetryAt), Member: m.ID})
	} else {
		pipe.ZRem(ctx, zDeliveryDue, m.ID)
	}
}

func (s *Store) CreateDelivery(ctx context.Context, d *delivery.Delivery) error {
	return s.CreateDeliveries(ctx, []*delivery.Delivery{d})
}

func (s *Store) CreateDeliveries(ctx context.Context, ds []*delivery.Delivery) error {
	if len(ds) == 0 {
		return nil
	}

	pipe := s.rdb.Pipeline()
	for _, d := range ds {
		m := toDeliveryModel(d)
		raw, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("hookline/redis: marshal delivery: %w", err)
		}
		pipe.Set(ctx, entityKey(prefixDelivery, m.ID), raw, 0)
		pipe.ZAdd(ctx, zDeliveryAll, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
		pipe.ZAdd(ctx, zDeliveryEP+m.EndpointID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
		s.dueIndex(ctx, pipe, m)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hookline/redis: create deliveries: %w", err)
	}
	return nil
}

func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	var m deliveryModel
	if err := s.getEntity(ctx, entityKey(prefixDelivery, delID.String()), &m); err != nil {
		if isRedisNil(err) {
			return nil, hookline.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("hookline/redis: get delivery: %w", err)
	}
	return fromDeliveryModel(&m)
}

func (s *Store) UpdateDelivery(ctx context.Context, d *delivery.Delivery) error {
	key := entityKey(prefixDelivery, d.ID.String())

	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("hookline/redis: update delivery exists: %w", err)
	}
	if exists == 0 {
		return hookline.ErrDeliveryNotFound
	}

	m := toDeliveryModel(d)
	m.UpdatedAt = now()

	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("hookline/redis: marshal delivery: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, key, raw, 0)
	s.dueIndex(ctx, pipe, m)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hookline/redis: update delivery: %w", err)
	}
	return nil
}

func (s *Store) IncrementAttempts(ctx context.Context, delID id.ID) (int, error) {
	key := entityKey(prefixDelivery, delID.String())

	n, err := incrementScript.Run(ctx, s.rdb, []string{key}, now().Format(time.RFC3339Nano)).Int()
	if err != nil {
		return 0, fmt.Errorf("hookline/redis: increment attempts: %w", err)
	}
	if n < 0 {
		return 0, hookline.ErrDeliveryNotFound
	}
	return n, nil
}

func (s *Store) GetRetriable(ctx context.Context, at time.Time, limit int) ([]*delivery.Delivery, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, zDeliveryDue, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(scoreFromTime(at), 'f', -1, 64),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: get retriable: %w", err)
	}

	result := make([]*delivery.Delivery, 0, len(ids))
	for _, entryID := range ids {
		var m deliveryModel
		if err := s.getEntity(ctx, entityKey(prefixDelivery, entryID), &m); err != nil {
			if isRedisNil(err) {
				// Stale index entry; drop it.
				s.rdb.ZRem(ctx, zDeliveryDue, entryID)
				continue
			}
			return nil, err
		}
		if delivery.Status(m.Status).Terminal() {
			s.rdb.ZRem(ctx, zDeliveryDue, m.ID)
			continue
		}
		d, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, nil
}

func (s *Store) ListDeliveries(ctx context.Context, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	index := zDeliveryAll
	if opts.EndpointID != nil {
		index = zDeliveryEP + opts.EndpointID.String()
	}

	ids, err := s.rdb.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: list deliveries: %w", err)
	}

	result := make([]*delivery.Delivery, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for newest-first
		var m deliveryModel
		if err := s.getEntity(ctx, entityKey(prefixDelivery, ids[i]), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		if !matchDeliveryModel(&m, opts) {
			continue
		}
		d, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func matchDeliveryModel(m *deliveryModel, opts delivery.ListOpts) bool {
	if opts.EventType != "" && m.EventType != opts.EventType {
		return false
	}
	if opts.Status != nil && delivery.Status(m.Status) != *opts.Status {
		return false
	}
	if opts.From != nil && m.CreatedAt.Before(*opts.From) {
		return false
	}
	if opts.To != nil && m.CreatedAt.After(*opts.To) {
		return false
	}
	return true
}

func (s *Store) DeliveryStats(ctx context.Context, endpointID *id.ID) (*delivery.Stats, error) {
	index := zDeliveryAll
	if endpointID != nil {
		index = zDeliveryEP + endpointID.String()
	}

	ids, err := s.rdb.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: delivery stats: %w", err)
	}

	stats := &delivery.Stats{}
	var latencySum float64

	for _, entryID := range ids {
		var m deliveryModel
		if err := s.getEntity(ctx, entityKey(prefixDelivery, entryID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}

		stats.Total++
		switch delivery.Status(m.Status) {
		case delivery.StatusPending:
			stats.Pending++
		case delivery.StatusRetrying:
			stats.Retrying++
		case delivery.StatusSuccess:
			stats.Success++
			if m.DeliveredAt != nil {
				latencySum += float64(m.DeliveredAt.Sub(m.CreatedAt).Milliseconds())
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

func (s *Store) CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, zDeliveryAll, &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatFloat(scoreFromTime(cutoff), 'f', -1, 64),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("hookline/redis: cleanup range: %w", err)
	}

	var count int64
	for _, entryID := range ids {
		var m deliveryModel
		if err := s.getEntity(ctx, entityKey(prefixDelivery, entryID), &m); err != nil {
			if isRedisNil(err) {
				s.rdb.ZRem(ctx, zDeliveryAll, entryID)
				continue
			}
			return count, err
		}
		if !delivery.Status(m.Status).Terminal() {
			continue
		}

		pipe := s.rdb.Pipeline()
		pipe.Del(ctx, entityKey(prefixDelivery, m.ID))
		pipe.Del(ctx, attemptsKey(m.ID))
		pipe.ZRem(ctx, zDeliveryAll, m.ID)
		pipe.ZRem(ctx, zDeliveryEP+m.EndpointID, m.ID)
		pipe.ZRem(ctx, zDeliveryDue, m.ID)
		if _, err := pipe.Exec(ctx); err != nil {
			return count, fmt.Errorf("hookline/redis: cleanup delete: %w", err)
		}
		count++
	}
	return count, nil
}
