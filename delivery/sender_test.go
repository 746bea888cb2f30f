package delivery_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/signature"
)

func newTestEndpoint(url string) *endpoint.Endpoint {
	return &endpoint.Endpoint{
		Entity:  entity.New(),
		ID:      id.NewEndpointID(),
		URL:     url,
		Secret:  "whsec_test_secret_1234567890abcdef1234567890abcdef",
		Events:  []string{"test.event"},
		Enabled: true,
	}
}

func newTestDelivery(epID id.ID) *delivery.Delivery {
	return &delivery.Delivery{
		Entity:      entity.New(),
		ID:          id.NewDeliveryID(),
		EndpointID:  epID,
		EventID:     id.NewEventID(),
		EventType:   "test.event",
		Payload:     json.RawMessage(`{"hello":"world"}`),
		EventAt:     time.Now().UTC(),
		Status:      delivery.StatusPending,
		MaxAttempts: 5,
	}
}

func TestSenderHappyPath(t *testing.T) {
	var receivedHeaders http.Header
	var receivedBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeaders = r.Header
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Error(err)
		}
		receivedBody = body
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	sender := delivery.NewSender(delivery.SenderConfig{Timeout: 5 * time.Second})
	ep := newTestEndpoint(srv.URL)
	del := newTestDelivery(ep.ID)

	result := sender.Send(context.Background(), ep, del)

	if result.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", result.StatusCode)
	}
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if result.Response != `{"ok":true}` {
		t.Fatalf("unexpected response: %s", result.Response)
	}
	if result.LatencyMs < 0 {
		t.Fatal("latency should be non-negative")
	}

	// Verify the body is the canonical envelope.
	var env struct {
		ID   string          `json:"id"`
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(receivedBody, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.ID != del.EventID.String() {
		t.Fatalf("envelope id: got %q, want %q", env.ID, del.EventID.String())
	}
	if env.Type != "test.event" {
		t.Fatalf("envelope type: got %q", env.Type)
	}
	if string(env.Data) != `{"hello":"world"}` {
		t.Fatalf("envelope data: got %s", env.Data)
	}

	// Verify standard headers.
	if receivedHeaders.Get("Content-Type") != "application/json" {
		t.Fatal("missing Content-Type")
	}
	if receivedHeaders.Get("User-Agent") != delivery.DefaultUserAgent {
		t.Fatal("missing User-Agent")
	}
	if receivedHeaders.Get("X-Hookline-Event-Id") != del.EventID.String() {
		t.Fatal("missing X-Hookline-Event-Id")
	}
	if receivedHeaders.Get("X-Hookline-Event-Type") != "test.event" {
		t.Fatal("missing X-Hookline-Event-Type")
	}
	if receivedHeaders.Get("X-Hookline-Delivery-Id") != del.ID.String() {
		t.Fatal("missing X-Hookline-Delivery-Id")
	}

	// Verify signature headers are present.
	sig := receivedHeaders.Get("X-Hookline-Signature")
	ts := receivedHeaders.Get("X-Hookline-Timestamp")
	if sig == "" || ts == "" {
		t.Fatal("missing signature headers")
	}
	if !strings.Contains(sig, "v1=") {
		t.Fatal("signature should carry a v1 scheme")
	}
}

func TestSenderSignatureVerifies(t *testing.T) {
	var receivedSig string
	var receivedTS string
	var receivedBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedSig = r.Header.Get("X-Hookline-Signature")
		receivedTS = r.Header.Get("X-Hookline-Timestamp")
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := delivery.NewSender(delivery.SenderConfig{Timeout: 5 * time.Second})
	ep := newTestEndpoint(srv.URL)
	del := newTestDelivery(ep.ID)

	sender.Send(context.Background(), ep, del)

	ts, err := strconv.ParseInt(receivedTS, 10, 64)
	if err != nil {
		t.Fatalf("parse timestamp: %v", err)
	}

	// The combined header must verify against the receiver-side helper.
	if !signature.VerifyHeader(receivedBody, ep.Secret, receivedSig, signature.DefaultTolerance) {
		t.Fatal("signature header verification failed")
	}

	// And the raw parts must match the signing primitive.
	_, sig, err := signature.ParseHeader(receivedSig)
	if err != nil {
		t.Fatalf("parse header: %v", err)
	}
	if !signature.Verify(receivedBody, ep.Secret, ts, sig, signature.DefaultTolerance) {
		t.Fatal("signature verification failed")
	}
}

func TestSenderSigningDisabled(t *testing.T) {
	var receivedHeaders http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeaders = r.Header
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := delivery.NewSender(delivery.SenderConfig{
		Timeout:        5 * time.Second,
		DisableSigning: true,
	})
	ep := newTestEndpoint(srv.URL)
	del := newTestDelivery(ep.ID)

	result := sender.Send(context.Background(), ep, del)

	if result.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", result.StatusCode)
	}
	if receivedHeaders.Get("X-Hookline-Signature") != "" {
		t.Fatal("signature header must be omitted when signing is disabled")
	}
	if receivedHeaders.Get("X-Hookline-Timestamp") != "" {
		t.Fatal("timestamp header must be omitted when signing is disabled")
	}
}

func TestSenderCustomHeaders(t *testing.T) {
	var receivedHeaders http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeaders = r.Header
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := delivery.NewSender(delivery.SenderConfig{Timeout: 5 * time.Second})
	ep := newTestEndpoint(srv.URL)
	ep.Headers = map[string]string{
		"X-Custom-Header": "custom-value",
		"Authorization":   "Bearer token123",
		// Endpoint headers must not clobber protocol headers.
		"X-Hookline-Event-Type": "spoofed",
	}
	del := newTestDelivery(ep.ID)

	result := sender.Send(context.Background(), ep, del)

	if result.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", result.StatusCode)
	}
	if receivedHeaders.Get("X-Custom-Header") != "custom-value" {
		t.Fatal("missing custom header")
	}
	if receivedHeaders.Get("Authorization") != "Bearer token123" {
		t.Fatal("missing Authorization header")
	}
	if receivedHeaders.Get("X-Hookline-Event-Type") != "test.event" {
		t.Fatal("protocol header was clobbered by an endpoint header")
	}
}

func TestSenderCustomUserAgent(t *testing.T) {
	var receivedUA string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := delivery.NewSender(delivery.SenderConfig{
		Timeout:   5 * time.Second,
		UserAgent: "acme-hooks/2.3",
	})
	ep := newTestEndpoint(srv.URL)
	del := newTestDelivery(ep.ID)

	sender.Send(context.Background(), ep, del)

	if receivedUA != "acme-hooks/2.3" {
		t.Fatalf("expected custom user agent, got %q", receivedUA)
	}
}

func TestSenderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// Very short timeout.
	sender := delivery.NewSender(delivery.SenderConfig{Timeout: 50 * time.Millisecond})
	ep := newTestEndpoint(srv.URL)
	del := newTestDelivery(ep.ID)

	result := sender.Send(context.Background(), ep, del)

	if result.StatusCode != 0 {
		t.Fatalf("expected status 0 on timeout, got %d", result.StatusCode)
	}
	if result.Error == "" {
		t.Fatal("expected error on timeout")
	}
	if result.LatencyMs <= 0 {
		t.Fatal("expected positive latency")
	}
}

func TestSenderConnectionRefused(t *testing.T) {
	sender := delivery.NewSender(delivery.SenderConfig{Timeout: 5 * time.Second})
	ep := newTestEndpoint("http://127.0.0.1:1") // port 1 should refuse connections
	del := newTestDelivery(ep.ID)

	result := sender.Send(context.Background(), ep, del)

	if result.StatusCode != 0 {
		t.Fatalf("expected status 0 on connection refused, got %d", result.StatusCode)
	}
	if result.Error == "" {
		t.Fatal("expected error on connection refused")
	}
}

func TestSenderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	sender := delivery.NewSender(delivery.SenderConfig{Timeout: 5 * time.Second})
	ep := newTestEndpoint(srv.URL)
	del := newTestDelivery(ep.ID)

	result := sender.Send(context.Background(), ep, del)

	if result.StatusCode != 500 {
		t.Fatalf("expected 500, got %d", result.StatusCode)
	}
	if result.Response != "internal error" {
		t.Fatalf("unexpected response: %s", result.Response)
	}
}

func TestSenderTruncatesResponseBody(t *testing.T) {
	big := strings.Repeat("x", 5000)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(big))
	}))
	defer srv.Close()

	sender := delivery.NewSender(delivery.SenderConfig{Timeout: 5 * time.Second})
	ep := newTestEndpoint(srv.URL)
	del := newTestDelivery(ep.ID)

	result := sender.Send(context.Background(), ep, del)

	if result.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", result.StatusCode)
	}
	if len(result.Response) != 1000 {
		t.Fatalf("expected response capped at 1000 bytes, got %d", len(result.Response))
	}
}
