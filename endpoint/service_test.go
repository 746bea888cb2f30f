package endpoint_test

import (
	"context"
	"strings"
	"testing"

	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/store/memory"
)

func ctx() context.Context { return context.Background() }

func newService(t *testing.T) (*endpoint.Service, *memory.Store) {
	t.Helper()
	s := memory.New()
	return endpoint.NewService(s, nil), s
}

func TestCreateGeneratesSecret(t *testing.T) {
	svc, _ := newService(t)

	ep, err := svc.Create(ctx(), endpoint.Input{
		URL:    "https://example.com/hook",
		Events: []string{"order.created"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(ep.Secret, "whsec_") {
		t.Errorf("expected generated whsec_ secret, got %q", ep.Secret)
	}
	if !ep.Enabled {
		t.Error("new endpoints should be enabled")
	}
	if ep.ID.IsNil() {
		t.Error("expected endpoint ID to be assigned")
	}
}

func TestCreateRejectsBadURL(t *testing.T) {
	svc, _ := newService(t)

	for _, raw := range []string{"", "not-a-url", "/relative/path", "http://"} {
		_, err := svc.Create(ctx(), endpoint.Input{URL: raw})
		var verr *endpoint.ValidationError
		if err == nil {
			t.Errorf("Create(%q) expected validation error", raw)
			continue
		}
		if ok := asValidation(err, &verr); !ok || verr.Field != "url" {
			t.Errorf("Create(%q) expected url validation error, got %v", raw, err)
		}
	}
}

func asValidation(err error, target **endpoint.ValidationError) bool {
	v, ok := err.(*endpoint.ValidationError)
	if ok {
		*target = v
	}
	return ok
}

func TestCreateNormalizesNilEvents(t *testing.T) {
	svc, _ := newService(t)

	ep, err := svc.Create(ctx(), endpoint.Input{URL: "https://example.com/hook"})
	if err != nil {
		t.Fatal(err)
	}
	if ep.Events == nil {
		t.Error("events should never be nil")
	}
	if len(ep.Events) != 0 {
		t.Errorf("expected empty subscription list, got %v", ep.Events)
	}
}

func TestUpdatePartial(t *testing.T) {
	svc, _ := newService(t)

	ep, err := svc.Create(ctx(), endpoint.Input{
		URL:         "https://example.com/hook",
		Description: "original",
		Events:      []string{"order.created"},
	})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.Update(ctx(), ep.ID, endpoint.Input{
		Events: []string{"order.created", "order.cancelled"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if updated.URL != "https://example.com/hook" {
		t.Errorf("URL changed unexpectedly: %q", updated.URL)
	}
	if updated.Description != "original" {
		t.Errorf("description changed unexpectedly: %q", updated.Description)
	}
	if len(updated.Events) != 2 {
		t.Errorf("expected 2 subscriptions, got %v", updated.Events)
	}
}

func TestUpdateRejectsBadURL(t *testing.T) {
	svc, _ := newService(t)

	ep, err := svc.Create(ctx(), endpoint.Input{URL: "https://example.com/hook"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Update(ctx(), ep.ID, endpoint.Input{URL: "nope"}); err == nil {
		t.Error("expected validation error for invalid URL")
	}
}

func TestRotateSecret(t *testing.T) {
	svc, s := newService(t)

	ep, err := svc.Create(ctx(), endpoint.Input{URL: "https://example.com/hook"})
	if err != nil {
		t.Fatal(err)
	}
	old := ep.Secret

	rotated, err := svc.RotateSecret(ctx(), ep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rotated == old {
		t.Error("rotation returned the old secret")
	}

	stored, err := s.GetEndpoint(ctx(), ep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Secret != rotated {
		t.Error("rotated secret was not persisted")
	}
}

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern, eventType string
		want               bool
	}{
		{"*", "anything.at.all", true},
		{"order.created", "order.created", true},
		{"order.created", "order.cancelled", false},
		{"order.*", "order.created", true},
		{"order.*", "order.created.v2", false},
		{"*.created", "order.created", true},
		{"invoice.*", "order.created", false},
	}

	for _, tc := range cases {
		if got := endpoint.Match(tc.pattern, tc.eventType); got != tc.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tc.pattern, tc.eventType, got, tc.want)
		}
	}
}

func TestGetEndpointsForEvent(t *testing.T) {
	svc, s := newService(t)

	exact, _ := svc.Create(ctx(), endpoint.Input{URL: "https://a.example.com", Events: []string{"order.created"}})
	wildcard, _ := svc.Create(ctx(), endpoint.Input{URL: "https://b.example.com", Events: []string{"*"}})
	other, _ := svc.Create(ctx(), endpoint.Input{URL: "https://c.example.com", Events: []string{"invoice.paid"}})
	disabled, _ := svc.Create(ctx(), endpoint.Input{URL: "https://d.example.com", Events: []string{"order.created"}})
	if err := svc.SetEnabled(ctx(), disabled.ID, false); err != nil {
		t.Fatal(err)
	}

	matched, err := s.GetEndpointsForEvent(ctx(), "order.created")
	if err != nil {
		t.Fatal(err)
	}

	ids := map[string]bool{}
	for _, ep := range matched {
		ids[ep.ID.String()] = true
	}

	if len(matched) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matched))
	}
	if !ids[exact.ID.String()] || !ids[wildcard.ID.String()] {
		t.Error("exact and wildcard subscribers should match")
	}
	if ids[other.ID.String()] {
		t.Error("non-subscribed endpoint matched")
	}
	if ids[disabled.ID.String()] {
		t.Error("disabled endpoint matched")
	}
}
