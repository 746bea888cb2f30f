package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/attemptlog"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

func ctx() context.Context { return context.Background() }

func newEndpoint(url string, events ...string) *endpoint.Endpoint {
	return &endpoint.Endpoint{
		Entity:  entity.New(),
		ID:      id.NewEndpointID(),
		URL:     url,
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
		Status:      status,
		MaxAttempts: 5,
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	s := New()

	if err := s.Migrate(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); !errors.Is(err, hookline.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// endpoint.Store
// ──────────────────────────────────────────────────

func TestEndpointCRUD(t *testing.T) {
	s := New()

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

	if err := s.DeleteEndpoint(ctx(), ep.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteEndpoint(ctx(), ep.ID); !errors.Is(err, hookline.ErrEndpointNotFound) {
		t.Fatalf("expected ErrEndpointNotFound on double delete, got %v", err)
	}
}

func TestListEndpointsFilter(t *testing.T) {
	s := New()

	enabled := newEndpoint("https://a.example.com", "*")
	disabled := newEndpoint("https://b.example.com", "*")
	disabled.Enabled = false

	_ = s.CreateEndpoint(ctx(), enabled)
	_ = s.CreateEndpoint(ctx(), disabled)

	all, err := s.ListEndpoints(ctx(), endpoint.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(all))
	}

	on := true
	only, err := s.ListEndpoints(ctx(), endpoint.ListOpts{Enabled: &on})
	if err != nil {
		t.Fatal(err)
	}
	if len(only) != 1 || only[0].ID != enabled.ID {
		t.Fatalf("expected only the enabled endpoint")
	}
}

func TestGetEndpointsForEvent(t *testing.T) {
	s := New()

	exact := newEndpoint("https://a.example.com", "invoice.created")
	wildcard := newEndpoint("https://b.example.com", "invoice.*")
	all := newEndpoint("https://c.example.com", "*")
	other := newEndpoint("https://d.example.com", "user.created")
	disabled := newEndpoint("https://e.example.com", "invoice.created")
	disabled.Enabled = false

	for _, ep := range []*endpoint.Endpoint{exact, wildcard, all, other, disabled} {
		_ = s.CreateEndpoint(ctx(), ep)
	}

	matched, err := s.GetEndpointsForEvent(ctx(), "invoice.created")
	if err != nil {
		t.Fatal(err)
	}
	if len(matched) != 3 {
		t.Fatalf("expected 3 matching endpoints, got %d", len(matched))
	}
	for _, ep := range matched {
		if ep.ID == other.ID || ep.ID == disabled.ID {
			t.Fatalf("endpoint %s should not match", ep.ID)
		}
	}
}

func TestSetEnabled(t *testing.T) {
	s := New()

	ep := newEndpoint("https://example.com", "*")
	_ = s.CreateEndpoint(ctx(), ep)

	if err := s.SetEnabled(ctx(), ep.ID, false); err != nil {
		t.Fatal(err)
	}

	matched, _ := s.GetEndpointsForEvent(ctx(), "anything")
	if len(matched) != 0 {
		t.Fatalf("disabled endpoint should not match, got %d", len(matched))
	}

	if err := s.SetEnabled(ctx(), id.NewEndpointID(), true); !errors.Is(err, hookline.ErrEndpointNotFound) {
		t.Fatalf("expected ErrEndpointNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// delivery.Store
// ──────────────────────────────────────────────────

func TestDeliveryCRUD(t *testing.T) {
	s := New()

	d := newDelivery(id.NewEndpointID(), delivery.StatusPending)
	if err := s.CreateDelivery(ctx(), d); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetDelivery(ctx(), d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != delivery.StatusPending {
		t.Fatalf("got status %q", got.Status)
	}

	// GetDelivery returns a copy: mutating it must not affect the store.
	got.Status = delivery.StatusFailed
	again, _ := s.GetDelivery(ctx(), d.ID)
	if again.Status != delivery.StatusPending {
		t.Fatal("mutating a returned delivery leaked into the store")
	}

	got.Status = delivery.StatusSuccess
	if err := s.UpdateDelivery(ctx(), got); err != nil {
		t.Fatal(err)
	}
	again, _ = s.GetDelivery(ctx(), d.ID)
	if again.Status != delivery.StatusSuccess {
		t.Fatalf("expected success after update, got %q", again.Status)
	}

	_, err = s.GetDelivery(ctx(), id.NewDeliveryID())
	if !errors.Is(err, hookline.ErrDeliveryNotFound) {
		t.Fatalf("expected ErrDeliveryNotFound, got %v", err)
	}
}

func TestIncrementAttempts(t *testing.T) {
	s := New()

	d := newDelivery(id.NewEndpointID(), delivery.StatusPending)
	_ = s.CreateDelivery(ctx(), d)

	for want := 1; want <= 3; want++ {
		n, err := s.IncrementAttempts(ctx(), d.ID)
		if err != nil {
			t.Fatal(err)
		}
		if n != want {
			t.Fatalf("expected attempt count %d, got %d", want, n)
		}
	}

	if _, err := s.IncrementAttempts(ctx(), id.NewDeliveryID()); !errors.Is(err, hookline.ErrDeliveryNotFound) {
		t.Fatalf("expected ErrDeliveryNotFound, got %v", err)
	}
}

func TestGetRetriableOrderAndFilter(t *testing.T) {
	s := New()
	now := time.Now().UTC()

	earlier := now.Add(-2 * time.Minute)
	later := now.Add(-1 * time.Minute)
	future := now.Add(time.Hour)

	dueLate := newDelivery(id.NewEndpointID(), delivery.StatusRetrying)
	dueLate.NextRetryAt = &later
	dueEarly := newDelivery(id.NewEndpointID(), delivery.StatusPending)
	dueEarly.NextRetryAt = &earlier
	notDue := newDelivery(id.NewEndpointID(), delivery.StatusPending)
	notDue.NextRetryAt = &future
	unscheduled := newDelivery(id.NewEndpointID(), delivery.StatusPending)
	done := newDelivery(id.NewEndpointID(), delivery.StatusSuccess)
	done.NextRetryAt = &earlier

	for _, d := range []*delivery.Delivery{dueLate, dueEarly, notDue, unscheduled, done} {
		_ = s.CreateDelivery(ctx(), d)
	}

	got, err := s.GetRetriable(ctx(), now, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 due deliveries, got %d", len(got))
	}
	if got[0].ID != dueEarly.ID || got[1].ID != dueLate.ID {
		t.Fatal("expected oldest-due delivery first")
	}

	limited, _ := s.GetRetriable(ctx(), now, 1)
	if len(limited) != 1 || limited[0].ID != dueEarly.ID {
		t.Fatal("limit should keep the oldest-due delivery")
	}
}

func TestListDeliveriesFilters(t *testing.T) {
	s := New()

	epID := id.NewEndpointID()
	mine := newDelivery(epID, delivery.StatusFailed)
	other := newDelivery(id.NewEndpointID(), delivery.StatusSuccess)
	other.EventType = "user.created"

	_ = s.CreateDelivery(ctx(), mine)
	_ = s.CreateDelivery(ctx(), other)

	byEndpoint, err := s.ListDeliveries(ctx(), delivery.ListOpts{EndpointID: &epID})
	if err != nil {
		t.Fatal(err)
	}
	if len(byEndpoint) != 1 || byEndpoint[0].ID != mine.ID {
		t.Fatal("endpoint filter mismatch")
	}

	failed := delivery.StatusFailed
	byStatus, _ := s.ListDeliveries(ctx(), delivery.ListOpts{Status: &failed})
	if len(byStatus) != 1 || byStatus[0].ID != mine.ID {
		t.Fatal("status filter mismatch")
	}

	byType, _ := s.ListDeliveries(ctx(), delivery.ListOpts{EventType: "user.created"})
	if len(byType) != 1 || byType[0].ID != other.ID {
		t.Fatal("event type filter mismatch")
	}
}

func TestDeliveryStats(t *testing.T) {
	s := New()
	epID := id.NewEndpointID()

	ok1 := newDelivery(epID, delivery.StatusSuccess)
	deliveredAt := ok1.CreatedAt.Add(200 * time.Millisecond)
	ok1.DeliveredAt = &deliveredAt

	ok2 := newDelivery(epID, delivery.StatusSuccess)
	deliveredAt2 := ok2.CreatedAt.Add(400 * time.Millisecond)
	ok2.DeliveredAt = &deliveredAt2

	failed := newDelivery(epID, delivery.StatusFailed)
	pending := newDelivery(epID, delivery.StatusPending)
	otherEp := newDelivery(id.NewEndpointID(), delivery.StatusSuccess)

	for _, d := range []*delivery.Delivery{ok1, ok2, failed, pending, otherEp} {
		_ = s.CreateDelivery(ctx(), d)
	}

	stats, err := s.DeliveryStats(ctx(), &epID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 4 || stats.Success != 2 || stats.Failed != 1 || stats.Pending != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.AvgDeliveryMs != 300 {
		t.Fatalf("expected avg 300ms, got %v", stats.AvgDeliveryMs)
	}

	global, _ := s.DeliveryStats(ctx(), nil)
	if global.Total != 5 {
		t.Fatalf("expected global total 5, got %d", global.Total)
	}
}

func TestCleanupOlderThan(t *testing.T) {
	s := New()
	cutoff := time.Now().UTC().Add(-24 * time.Hour)

	oldDone := newDelivery(id.NewEndpointID(), delivery.StatusSuccess)
	oldDone.CreatedAt = cutoff.Add(-time.Hour)
	oldPending := newDelivery(id.NewEndpointID(), delivery.StatusPending)
	oldPending.CreatedAt = cutoff.Add(-time.Hour)
	fresh := newDelivery(id.NewEndpointID(), delivery.StatusFailed)

	for _, d := range []*delivery.Delivery{oldDone, oldPending, fresh} {
		_ = s.CreateDelivery(ctx(), d)
	}
	_ = s.RecordAttempt(ctx(), &attemptlog.Attempt{
		ID:         id.NewAttemptID(),
		DeliveryID: oldDone.ID,
		Number:     1,
		StatusCode: 200,
		At:         time.Now().UTC(),
	})

	removed, err := s.CleanupOlderThan(ctx(), cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	if _, err := s.GetDelivery(ctx(), oldDone.ID); !errors.Is(err, hookline.ErrDeliveryNotFound) {
		t.Fatal("old terminal delivery should be gone")
	}
	if _, err := s.GetDelivery(ctx(), oldPending.ID); err != nil {
		t.Fatal("old pending delivery must survive cleanup")
	}
	if _, err := s.GetDelivery(ctx(), fresh.ID); err != nil {
		t.Fatal("fresh delivery must survive cleanup")
	}

	attempts, _ := s.ListAttempts(ctx(), oldDone.ID, attemptlog.ListOpts{})
	if len(attempts) != 0 {
		t.Fatal("attempt history should be removed with its delivery")
	}
}

// ──────────────────────────────────────────────────
// attemptlog.Store
// ──────────────────────────────────────────────────

func TestAttemptHistory(t *testing.T) {
	s := New()
	delID := id.NewDeliveryID()

	for n := 3; n >= 1; n-- {
		err := s.RecordAttempt(ctx(), &attemptlog.Attempt{
			ID:         id.NewAttemptID(),
			DeliveryID: delID,
			Number:     n,
			StatusCode: 503,
			At:         time.Now().UTC(),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListAttempts(ctx(), delID, attemptlog.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(got))
	}
	for i, a := range got {
		if a.Number != i+1 {
			t.Fatalf("expected oldest-first ordering, got number %d at index %d", a.Number, i)
		}
	}

	page, _ := s.ListAttempts(ctx(), delID, attemptlog.ListOpts{Offset: 1, Limit: 1})
	if len(page) != 1 || page[0].Number != 2 {
		t.Fatal("pagination mismatch")
	}
}
