package bunstore_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/attemptlog"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/store/bunstore"
)

func ctx() context.Context { return context.Background() }

// newSQLiteStore opens a uniquely named in-memory SQLite database so the
// same SQL paths exercised against Postgres in production also run under
// the SQLite dialect.
func newSQLiteStore(t *testing.T) *bunstore.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:bunstore-test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	s := bunstore.New(bun.NewDB(sqlDB, sqlitedialect.New()))
	if err := s.Migrate(ctx()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newEndpoint(url string, events ...string) *endpoint.Endpoint {
	return &endpoint.Endpoint{
		Entity:  entity.New(),
		ID:      id.NewEndpointID(),
		URL:     url,
		Secret:  "whsec_test_secret_1234567890abcdef1234567890abcdef",
		Events:  events,
		Enabled: true,
	}
}

func newDelivery(epID id.ID, status delivery.Status) *delivery.Delivery {
	return &delivery.Delivery{
		Entity:      entity.New(),
		ID:          id.NewDeliveryID(),
		EndpointID:  epID,
		EventID:     id.NewEventID(),
		EventType:   "invoice.created",
		Payload:     json.RawMessage(`{"amount":100}`),
		EventAt:     time.Now().UTC(),
		Status:      status,
		MaxAttempts: 5,
	}
}

func TestSQLiteEndpointCRUD(t *testing.T) {
	s := newSQLiteStore(t)

	ep := newEndpoint("https://example.com/hooks", "invoice.created")
	if err := s.CreateEndpoint(ctx(), ep); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetEndpoint(ctx(), ep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.URL != "https://example.com/hooks" {
		t.Fatalf("got URL %q", got.URL)
	}
	if len(got.Events) != 1 || got.Events[0] != "invoice.created" {
		t.Fatalf("events did not round-trip: %v", got.Events)
	}

	_, err = s.GetEndpoint(ctx(), id.NewEndpointID())
	if !errors.Is(err, hookline.ErrEndpointNotFound) {
		t.Fatalf("expected ErrEndpointNotFound, got %v", err)
	}

	ep.Description = "primary"
	if err := s.UpdateEndpoint(ctx(), ep); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetEndpoint(ctx(), ep.ID)
	if got.Description != "primary" {
		t.Fatalf("expected updated description, got %q", got.Description)
	}

	if err := s.SetEnabled(ctx(), ep.ID, false); err != nil {
		t.Fatal(err)
	}
	matched, err := s.GetEndpointsForEvent(ctx(), "invoice.created")
	if err != nil {
		t.Fatal(err)
	}
	if len(matched) != 0 {
		t.Fatalf("disabled endpoint must not match, got %d", len(matched))
	}

	if err := s.DeleteEndpoint(ctx(), ep.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteEndpoint(ctx(), ep.ID); !errors.Is(err, hookline.ErrEndpointNotFound) {
		t.Fatalf("expected ErrEndpointNotFound on double delete, got %v", err)
	}
}

func TestSQLiteIncrementAttempts(t *testing.T) {
	s := newSQLiteStore(t)

	ep := newEndpoint("https://example.com/hooks", "*")
	if err := s.CreateEndpoint(ctx(), ep); err != nil {
		t.Fatal(err)
	}
	d := newDelivery(ep.ID, delivery.StatusPending)
	if err := s.CreateDelivery(ctx(), d); err != nil {
		t.Fatal(err)
	}

	for want := 1; want <= 3; want++ {
		got, err := s.IncrementAttempts(ctx(), d.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("expected %d attempts, got %d", want, got)
		}
	}

	_, err := s.IncrementAttempts(ctx(), id.NewDeliveryID())
	if !errors.Is(err, hookline.ErrDeliveryNotFound) {
		t.Fatalf("expected ErrDeliveryNotFound, got %v", err)
	}
}

func TestSQLiteGetRetriable(t *testing.T) {
	s := newSQLiteStore(t)

	ep := newEndpoint("https://example.com/hooks", "*")
	if err := s.CreateEndpoint(ctx(), ep); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := newDelivery(ep.ID, delivery.StatusRetrying)
	due.NextRetryAt = &past
	notDue := newDelivery(ep.ID, delivery.StatusRetrying)
	notDue.NextRetryAt = &future
	done := newDelivery(ep.ID, delivery.StatusSuccess)

	if err := s.CreateDeliveries(ctx(), []*delivery.Delivery{due, notDue, done}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRetriable(ctx(), now, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 due delivery, got %d", len(got))
	}
	if got[0].ID != due.ID {
		t.Fatalf("expected %s, got %s", due.ID, got[0].ID)
	}
}

func TestSQLiteDeliveryStats(t *testing.T) {
	s := newSQLiteStore(t)

	ep := newEndpoint("https://example.com/hooks", "*")
	if err := s.CreateEndpoint(ctx(), ep); err != nil {
		t.Fatal(err)
	}

	created := time.Now().UTC().Add(-time.Second)
	deliveredAt := created.Add(300 * time.Millisecond)

	ok := newDelivery(ep.ID, delivery.StatusSuccess)
	ok.CreatedAt = created
	ok.DeliveredAt = &deliveredAt
	failed := newDelivery(ep.ID, delivery.StatusFailed)
	pending := newDelivery(ep.ID, delivery.StatusPending)

	if err := s.CreateDeliveries(ctx(), []*delivery.Delivery{ok, failed, pending}); err != nil {
		t.Fatal(err)
	}

	stats, err := s.DeliveryStats(ctx(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 || stats.Success != 1 || stats.Failed != 1 || stats.Pending != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	// 300ms latency, with slack for timestamp round-tripping.
	if stats.AvgDeliveryMs < 250 || stats.AvgDeliveryMs > 350 {
		t.Fatalf("expected avg around 300ms, got %f", stats.AvgDeliveryMs)
	}

	// Empty scope aggregates to zeroes rather than NULLs.
	unknown := id.NewEndpointID()
	empty, err := s.DeliveryStats(ctx(), &unknown)
	if err != nil {
		t.Fatal(err)
	}
	if empty.Total != 0 || empty.AvgDeliveryMs != 0 {
		t.Fatalf("expected zeroed stats, got %+v", empty)
	}
}

func TestSQLiteCleanupOlderThan(t *testing.T) {
	s := newSQLiteStore(t)

	ep := newEndpoint("https://example.com/hooks", "*")
	if err := s.CreateEndpoint(ctx(), ep); err != nil {
		t.Fatal(err)
	}

	old := newDelivery(ep.ID, delivery.StatusFailed)
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	stuck := newDelivery(ep.ID, delivery.StatusRetrying)
	stuck.CreatedAt = old.CreatedAt
	fresh := newDelivery(ep.ID, delivery.StatusSuccess)

	if err := s.CreateDeliveries(ctx(), []*delivery.Delivery{old, stuck, fresh}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordAttempt(ctx(), &attemptlog.Attempt{
		ID:         id.NewAttemptID(),
		DeliveryID: old.ID,
		EndpointID: ep.ID,
		Number:     1,
		StatusCode: 500,
		At:         old.CreatedAt,
	}); err != nil {
		t.Fatal(err)
	}

	removed, err := s.CleanupOlderThan(ctx(), time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	// The old terminal row and its attempts are gone; the stuck retrying
	// row survives regardless of age.
	if _, err := s.GetDelivery(ctx(), old.ID); !errors.Is(err, hookline.ErrDeliveryNotFound) {
		t.Fatalf("expected ErrDeliveryNotFound, got %v", err)
	}
	attempts, err := s.ListAttempts(ctx(), old.ID, attemptlog.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 0 {
		t.Fatalf("expected attempts cascaded, got %d", len(attempts))
	}
	if _, err := s.GetDelivery(ctx(), stuck.ID); err != nil {
		t.Fatalf("retrying row must survive cleanup: %v", err)
	}
}
