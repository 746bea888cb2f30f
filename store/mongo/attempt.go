package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hookline/hookline/attemptlog"
	"github.com/hookline/hookline/id"
)

// RecordAttempt appends an attempt row.
func (s *Store) RecordAttempt(ctx context.Context, a *attemptlog.Attempt) error {
	if _, err := s.db.Collection(colAttempts).InsertOne(ctx, toAttemptModel(a)); err != nil {
		return fmt.Errorf("hookline/mongo: record attempt: %w", err)
	}
	return nil
}

// ListAttempts returns the attempts for a delivery, oldest first.
func (s *Store) ListAttempts(ctx context.Context, deliveryID id.ID, opts attemptlog.ListOpts) ([]*attemptlog.Attempt, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "number", Value: 1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colAttempts).
		Find(ctx, bson.M{"delivery_id": deliveryID.String()}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("hookline/mongo: list attempts: %w", err)
	}

	var models []attemptModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("hookline/mongo: list attempts decode: %w", err)
	}

	result := make([]*attemptlog.Attempt, 0, len(models))
	for i := range models {
		a, err := fromAttemptModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, nil
}
