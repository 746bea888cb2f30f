// Package bunstore provides a SQL-backed Store implementation using the Bun
// ORM. It works with the PostgreSQL and SQLite dialects; the few raw
// expressions that differ between engines are selected from the DB's dialect.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/attemptlog"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/id"
	hookstore "github.com/hookline/hookline/store"
)

// compile-time interface check
var _ hookstore.Store = (*Store)(nil)

// Store implements store.Store using the Bun ORM.
type Store struct {
	db *bun.DB
}

// New creates a new Bun-backed store.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying Bun database for direct access.
func (s *Store) DB() *bun.DB { return s.db }

// Migrate creates the required tables using Bun's CreateTable.
func (s *Store) Migrate(ctx context.Context) error {
	models := []any{
		(*endpointModel)(nil),
		(*deliveryModel)(nil),
		(*attemptModel)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_hookline_deliveries_due ON hookline_deliveries (next_retry_at) WHERE status IN ('pending', 'retrying')",
		"CREATE INDEX IF NOT EXISTS idx_hookline_deliveries_endpoint ON hookline_deliveries (endpoint_id)",
		"CREATE INDEX IF NOT EXISTS idx_hookline_deliveries_event_type ON hookline_deliveries (event_type)",
		"CREATE INDEX IF NOT EXISTS idx_hookline_attempts_delivery ON hookline_attempts (delivery_id)",
	}
	for _, ddl := range indexes {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Endpoint Store ====================

func (s *Store) CreateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	m := toEndpointModel(ep)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return err
}

func (s *Store) GetEndpoint(ctx context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	m := new(endpointModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", epID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hookline.ErrEndpointNotFound
		}
		return nil, err
	}
	return fromEndpointModel(m)
}

func (s *Store) UpdateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	m := toEndpointModel(ep)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrEndpointNotFound
	}
	return nil
}

func (s *Store) DeleteEndpoint(ctx context.Context, epID id.ID) error {
	res, err := s.db.NewDelete().
		Model((*endpointModel)(nil)).
		Where("id = ?", epID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrEndpointNotFound
	}
	return nil
}

func (s *Store) ListEndpoints(ctx context.Context, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	var models []endpointModel
	q := s.db.NewSelect().Model(&models)
	if opts.Enabled != nil {
		q = q.Where("enabled = ?", *opts.Enabled)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*endpoint.Endpoint, len(models))
	for i := range models {
		ep, err := fromEndpointModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = ep
	}
	return result, nil
}

// GetEndpointsForEvent loads all enabled endpoints and matches subscription
// patterns in memory; pattern matching ("invoice.*") does not map onto a
// jsonb containment query.
func (s *Store) GetEndpointsForEvent(ctx context.Context, eventType string) ([]*endpoint.Endpoint, error) {
	var models []endpointModel
	if err := s.db.NewSelect().
		Model(&models).
		Where("enabled = true").
		Scan(ctx); err != nil {
		return nil, err
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

func (s *Store) SetEnabled(ctx context.Context, epID id.ID, enabled bool) error {
	now := time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model((*endpointModel)(nil)).
		Set("enabled = ?", enabled).
		Set("updated_at = ?", now).
		Where("id = ?", epID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrEndpointNotFound
	}
	return nil
}

// ==================== Delivery Store ====================

func (s *Store) CreateDelivery(ctx context.Context, d *delivery.Delivery) error {
	m := toDeliveryModel(d)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return err
}

func (s *Store) CreateDeliveries(ctx context.Context, ds []*delivery.Delivery) error {
	if len(ds) == 0 {
		return nil
	}
	models := make([]deliveryModel, len(ds))
	for i, d := range ds {
		models[i] = *toDeliveryModel(d)
	}
	_, err := s.db.NewInsert().Model(&models).Exec(ctx)
	return err
}

func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	m := new(deliveryModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", delID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hookline.ErrDeliveryNotFound
		}
		return nil, err
	}
	return fromDeliveryModel(m)
}

func (s *Store) UpdateDelivery(ctx context.Context, d *delivery.Delivery) error {
	m := toDeliveryModel(d)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().Model(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrDeliveryNotFound
	}
	return nil
}

func (s *Store) IncrementAttempts(ctx context.Context, delID id.ID) (int, error) {
	var attempts int
	err := s.db.NewRaw(`
		UPDATE hookline_deliveries
		SET attempts = attempts + 1, updated_at = ?
		WHERE id = ?
		RETURNING attempts
	`, time.Now().UTC(), delID.String()).Scan(ctx, &attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, hookline.ErrDeliveryNotFound
		}
		return 0, err
	}
	return attempts, nil
}

func (s *Store) GetRetriable(ctx context.Context, at time.Time, limit int) ([]*delivery.Delivery, error) {
	var models []deliveryModel
	q := s.db.NewSelect().
		Model(&models).
		Where("status IN ('pending', 'retrying')").
		Where("next_retry_at IS NOT NULL").
		Where("next_retry_at <= ?", at).
		Order("next_retry_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*delivery.Delivery, len(models))
	for i := range models {
		d, err := fromDeliveryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = d
	}
	return result, nil
}

func (s *Store) ListDeliveries(ctx context.Context, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	var models []deliveryModel
	q := s.db.NewSelect().Model(&models)

	if opts.EndpointID != nil {
		q = q.Where("endpoint_id = ?", opts.EndpointID.String())
	}
	if opts.EventType != "" {
		q = q.Where("event_type = ?", opts.EventType)
	}
	if opts.Status != nil {
		q = q.Where("status = ?", string(*opts.Status))
	}
	if opts.From != nil {
		q = q.Where("created_at >= ?", *opts.From)
	}
	if opts.To != nil {
		q = q.Where("created_at <= ?", *opts.To)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*delivery.Delivery, len(models))
	for i := range models {
		d, err := fromDeliveryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = d
	}
	return result, nil
}

func (s *Store) DeliveryStats(ctx context.Context, endpointID *id.ID) (*delivery.Stats, error) {
	var row struct {
		Total         int64   `bun:"total"`
		Pending       int64   `bun:"pending"`
		Retrying      int64   `bun:"retrying"`
		Success       int64   `bun:"success"`
		Failed        int64   `bun:"failed"`
		AvgDeliveryMs float64 `bun:"avg_delivery_ms"`
	}

	q := s.db.NewSelect().
		Model((*deliveryModel)(nil)).
		ColumnExpr("COUNT(*) AS total").
		ColumnExpr("COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0) AS pending").
		ColumnExpr("COALESCE(SUM(CASE WHEN status = 'retrying' THEN 1 ELSE 0 END), 0) AS retrying").
		ColumnExpr("COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0) AS success").
		ColumnExpr("COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) AS failed").
		ColumnExpr("COALESCE(AVG(CASE WHEN status = 'success' AND delivered_at IS NOT NULL THEN ? END), 0.0) AS avg_delivery_ms",
			bun.Safe(s.latencyMsExpr()))
	if endpointID != nil {
		q = q.Where("endpoint_id = ?", endpointID.String())
	}

	if err := q.Scan(ctx, &row); err != nil {
		return nil, err
	}

	return &delivery.Stats{
		Total:         row.Total,
		Pending:       row.Pending,
		Retrying:      row.Retrying,
		Success:       row.Success,
		Failed:        row.Failed,
		AvgDeliveryMs: row.AvgDeliveryMs,
	}, nil
}

// latencyMsExpr returns the SQL expression for delivered_at - created_at in
// milliseconds. Interval arithmetic has no portable spelling, so this is the
// one place the store branches on the dialect.
func (s *Store) latencyMsExpr() string {
	if s.db.Dialect().Name() == dialect.SQLite {
		return "(julianday(delivered_at) - julianday(created_at)) * 86400000"
	}
	return "EXTRACT(EPOCH FROM (delivered_at - created_at)) * 1000"
}

func (s *Store) CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*attemptModel)(nil)).
			Where(`delivery_id IN (
				SELECT id FROM hookline_deliveries
				WHERE status IN ('success', 'failed') AND created_at < ?
			)`, cutoff).
			Exec(ctx); err != nil {
			return err
		}

		res, err := tx.NewDelete().
			Model((*deliveryModel)(nil)).
			Where("status IN ('success', 'failed')").
			Where("created_at < ?", cutoff).
			Exec(ctx)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

// ==================== Attempt Store ====================

func (s *Store) RecordAttempt(ctx context.Context, a *attemptlog.Attempt) error {
	m := toAttemptModel(a)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return err
}

func (s *Store) ListAttempts(ctx context.Context, deliveryID id.ID, opts attemptlog.ListOpts) ([]*attemptlog.Attempt, error) {
	var models []attemptModel
	q := s.db.NewSelect().
		Model(&models).
		Where("delivery_id = ?", deliveryID.String()).
		Order("number ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*attemptlog.Attempt, len(models))
	for i := range models {
		a, err := fromAttemptModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}
