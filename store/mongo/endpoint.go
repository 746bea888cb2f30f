package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/id"
)

// isNoDocuments checks if an error is the driver's not-found sentinel.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// CreateEndpoint persists a new endpoint.
func (s *Store) CreateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	if _, err := s.db.Collection(colEndpoints).InsertOne(ctx, toEndpointModel(ep)); err != nil {
		return fmt.Errorf("hookline/mongo: create endpoint: %w", err)
	}
	return nil
}

// GetEndpoint returns an endpoint by ID.
func (s *Store) GetEndpoint(ctx context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	var m endpointModel
	err := s.db.Collection(colEndpoints).
		FindOne(ctx, bson.M{"_id": epID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, hookline.ErrEndpointNotFound
		}
		return nil, fmt.Errorf("hookline/mongo: get endpoint: %w", err)
	}
	return fromEndpointModel(&m)
}

// UpdateEndpoint modifies an existing endpoint.
func (s *Store) UpdateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	m := toEndpointModel(ep)
	m.UpdatedAt = now()

	res, err := s.db.Collection(colEndpoints).
		ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("hookline/mongo: update endpoint: %w", err)
	}
	if res.MatchedCount == 0 {
		return hookline.ErrEndpointNotFound
	}
	return nil
}

// DeleteEndpoint removes an endpoint.
func (s *Store) DeleteEndpoint(ctx context.Context, epID id.ID) error {
	res, err := s.db.Collection(colEndpoints).
		DeleteOne(ctx, bson.M{"_id": epID.String()})
	if err != nil {
		return fmt.Errorf("hookline/mongo: delete endpoint: %w", err)
	}
	if res.DeletedCount == 0 {
		return hookline.ErrEndpointNotFound
	}
	return nil
}

// ListEndpoints returns endpoints, optionally filtered.
func (s *Store) ListEndpoints(ctx context.Context, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	filter := bson.M{}
	if opts.Enabled != nil {
		filter["enabled"] = *opts.Enabled
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colEndpoints).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("hookline/mongo: list endpoints: %w", err)
	}

	var models []endpointModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("hookline/mongo: list endpoints decode: %w", err)
	}

	result := make([]*endpoint.Endpoint, 0, len(models))
	for i := range models {
		ep, err := fromEndpointModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, ep)
	}
	return result, nil
}

// GetEndpointsForEvent loads all enabled endpoints and matches subscription
// patterns in memory.
func (s *Store) GetEndpointsForEvent(ctx context.Context, eventType string) ([]*endpoint.Endpoint, error) {
	cur, err := s.db.Collection(colEndpoints).Find(ctx, bson.M{"enabled": true})
	if err != nil {
		return nil, fmt.Errorf("hookline/mongo: endpoints for event: %w", err)
	}

	var models []endpointModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("hookline/mongo: endpoints for event decode: %w", err)
	}

	var result []*endpoint.Endpoint
	for i := range models {
		for _, pattern := range models[i].Events {
			if endpoint.Match(pattern, eventType) {
				ep, err := fromEndpointModel(&models[i])
				if err != nil {
					return nil, err
				}
				result = append(result, ep)
				break
			}
		}
	}
	return result, nil
}

// SetEnabled enables or disables an endpoint.
func (s *Store) SetEnabled(ctx context.Context, epID id.ID, enabled bool) error {
	res, err := s.db.Collection(colEndpoints).UpdateOne(ctx,
		bson.M{"_id": epID.String()},
		bson.M{"$set": bson.M{"enabled": enabled, "updated_at": now()}},
	)
	if err != nil {
		return fmt.Errorf("hookline/mongo: set enabled: %w", err)
	}
	if res.MatchedCount == 0 {
		return hookline.ErrEndpointNotFound
	}
	return nil
}
