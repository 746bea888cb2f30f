package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/id"
)

// CreateDelivery persists a new delivery.
func (s *Store) CreateDelivery(ctx context.Context, d *delivery.Delivery) error {
	if _, err := s.db.Collection(colDeliveries).InsertOne(ctx, toDeliveryModel(d)); err != nil {
		return fmt.Errorf("hookline/mongo: create delivery: %w", err)
	}
	return nil
}

// CreateDeliveries persists multiple deliveries atomically (fan-out).
func (s *Store) CreateDeliveries(ctx context.Context, ds []*delivery.Delivery) error {
	if len(ds) == 0 {
		return nil
	}

	docs := make([]any, len(ds))
	for i, d := range ds {
		docs[i] = toDeliveryModel(d)
	}

	if _, err := s.db.Collection(colDeliveries).InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("hookline/mongo: create deliveries: %w", err)
	}
	return nil
}

// GetDelivery returns a delivery by ID.
func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	var m deliveryModel
	err := s.db.Collection(colDeliveries).
		FindOne(ctx, bson.M{"_id": delID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, hookline.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("hookline/mongo: get delivery: %w", err)
	}
	return fromDeliveryModel(&m)
}

// UpdateDelivery modifies a delivery.
func (s *Store) UpdateDelivery(ctx context.Context, d *delivery.Delivery) error {
	m := toDeliveryModel(d)
	m.UpdatedAt = now()

	res, err := s.db.Collection(colDeliveries).
		ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("hookline/mongo: update delivery: %w", err)
	}
	if res.MatchedCount == 0 {
		return hookline.ErrDeliveryNotFound
	}
	return nil
}

// IncrementAttempts atomically increments the attempt counter via
// FindOneAndUpdate and returns the new count.
func (s *Store) IncrementAttempts(ctx context.Context, delID id.ID) (int, error) {
	update := bson.M{
		"$inc": bson.M{"attempts": 1},
		"$set": bson.M{"updated_at": now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var m deliveryModel
	err := s.db.Collection(colDeliveries).
		FindOneAndUpdate(ctx, bson.M{"_id": delID.String()}, update, opts).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return 0, hookline.ErrDeliveryNotFound
		}
		return 0, fmt.Errorf("hookline/mongo: increment attempts: %w", err)
	}
	return m.Attempts, nil
}

// GetRetriable returns due pending/retrying deliveries, oldest-due first.
func (s *Store) GetRetriable(ctx context.Context, at time.Time, limit int) ([]*delivery.Delivery, error) {
	filter := bson.M{
		"status":        bson.M{"$in": []string{string(delivery.StatusPending), string(delivery.StatusRetrying)}},
		"next_retry_at": bson.M{"$ne": nil, "$lte": at},
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "next_retry_at", Value: 1}})
	if limit > 0 {
		findOpts = findOpts.SetLimit(int64(limit))
	}

	cur, err := s.db.Collection(colDeliveries).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("hookline/mongo: get retriable: %w", err)
	}

	var models []deliveryModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("hookline/mongo: get retriable decode: %w", err)
	}

	result := make([]*delivery.Delivery, 0, len(models))
	for i := range models {
		d, err := fromDeliveryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, nil
}

// ListDeliveries returns deliveries matching the filter options, newest first.
func (s *Store) ListDeliveries(ctx context.Context, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	filter := bson.M{}
	if opts.EndpointID != nil {
		filter["endpoint_id"] = opts.EndpointID.String()
	}
	if opts.EventType != "" {
		filter["event_type"] = opts.EventType
	}
	if opts.Status != nil {
		filter["status"] = string(*opts.Status)
	}
	created := bson.M{}
	if opts.From != nil {
		created["$gte"] = *opts.From
	}
	if opts.To != nil {
		created["$lte"] = *opts.To
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colDeliveries).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("hookline/mongo: list deliveries: %w", err)
	}

	var models []deliveryModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("hookline/mongo: list deliveries decode: %w", err)
	}

	result := make([]*delivery.Delivery, 0, len(models))
	for i := range models {
		d, err := fromDeliveryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, nil
}

// DeliveryStats aggregates outcomes, optionally scoped to one endpoint.
func (s *Store) DeliveryStats(ctx context.Context, endpointID *id.ID) (*delivery.Stats, error) {
	match := bson.M{}
	if endpointID != nil {
		match["endpoint_id"] = endpointID.String()
	}

	statusCount := func(status delivery.Status) bson.M {
		return bson.M{"$sum": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{"$status", string(status)}}, 1, 0,
		}}}
	}

	pipeline := []bson.M{
		{"$match": match},
		{"$group": bson.M{
			"_id":      nil,
			"total":    bson.M{"$sum": 1},
			"pending":  statusCount(delivery.StatusPending),
			"retrying": statusCount(delivery.StatusRetrying),
			"success":  statusCount(delivery.StatusSuccess),
			"failed":   statusCount(delivery.StatusFailed),
			"latency_sum": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$status", string(delivery.StatusSuccess)}},
					bson.M{"$ne": bson.A{"$delivered_at", nil}},
				}},
				bson.M{"$subtract": bson.A{"$delivered_at", "$created_at"}},
				0,
			}}},
		}},
	}

	cur, err := s.db.Collection(colDeliveries).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("hookline/mongo: delivery stats: %w", err)
	}

	var rows []struct {
		Total      int64   `bson:"total"`
		Pending    int64   `bson:"pending"`
		Retrying   int64   `bson:"retrying"`
		Success    int64   `bson:"success"`
		Failed     int64   `bson:"failed"`
		LatencySum float64 `bson:"latency_sum"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("hookline/mongo: delivery stats decode: %w", err)
	}

	stats := &delivery.Stats{}
	if len(rows) == 0 {
		return stats, nil
	}

	row := rows[0]
	stats.Total = row.Total
	stats.Pending = row.Pending
	stats.Retrying = row.Retrying
	stats.Success = row.Success
	stats.Failed = row.Failed
	if row.Success > 0 {
		// $subtract on dates yields milliseconds.
		stats.AvgDeliveryMs = row.LatencySum / float64(row.Success)
	}
	return stats, nil
}

// CleanupOlderThan deletes terminal deliveries created before cutoff along
// with their attempt history.
func (s *Store) CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{
		"status":     bson.M{"$in": []string{string(delivery.StatusSuccess), string(delivery.StatusFailed)}},
		"created_at": bson.M{"$lt": cutoff},
	}

	findOpts := options.Find().SetProjection(bson.M{"_id": 1})
	cur, err := s.db.Collection(colDeliveries).Find(ctx, filter, findOpts)
	if err != nil {
		return 0, fmt.Errorf("hookline/mongo: cleanup find: %w", err)
	}

	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("hookline/mongo: cleanup decode: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	if _, err := s.db.Collection(colAttempts).
		DeleteMany(ctx, bson.M{"delivery_id": bson.M{"$in": ids}}); err != nil {
		return 0, fmt.Errorf("hookline/mongo: cleanup attempts: %w", err)
	}

	res, err := s.db.Collection(colDeliveries).
		DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("hookline/mongo: cleanup deliveries: %w", err)
	}
	return res.DeletedCount, nil
}
