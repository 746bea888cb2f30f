package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/signature"
)

const maxResponseBody = 1000 // cap on stored response body bytes

// DefaultUserAgent identifies outbound requests when no override is set.
const DefaultUserAgent = "Hookline/1.0"

// Result holds the outcome of a single delivery attempt.
type Result struct {
	StatusCode int
	Error      string
	Response   string
	LatencyMs  int
}

// Succeeded reports whether the attempt received a 2xx response.
func (r Result) Succeeded() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// SenderConfig configures outbound HTTP behavior.
type SenderConfig struct {
	// Timeout bounds each network call; a timed-out call is treated as a
	// transient failure.
	Timeout time.Duration

	// UserAgent overrides the default outbound User-Agent string.
	UserAgent string

	// DisableSigning omits the signature and timestamp headers.
	DisableSigning bool
}

// Sender performs signed HTTP webhook delivery.
type Sender struct {
	client    *http.Client
	userAgent string
	signing   bool
}

// NewSender creates a sender with the given configuration.
func NewSender(cfg SenderConfig) *Sender {
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &Sender{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: ua,
		signing:   !cfg.DisableSigning,
	}
}

// Send POSTs the delivery's frozen envelope to the endpoint and returns the
// result. It never returns an error: failures are captured on the Result so
// the engine can apply the retry policy uniformly.
func (s *Sender) Send(ctx context.Context, ep *endpoint.Endpoint, d *Delivery) Result {
	body, err := json.Marshal(event.Envelope{
		ID:      d.EventID.String(),
		Type:    d.EventType,
		Created: d.EventAt,
		Data:    json.RawMessage(d.Payload),
	})
	if err != nil {
		return Result{Error: fmt.Sprintf("marshal envelope: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return Result{Error: fmt.Sprintf("create request: %v", err)}
	}

	// Custom endpoint headers first so they cannot clobber the protocol
	// headers below.
	for k, v := range ep.Headers {
		req.Header.Set(k, v)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("X-Hookline-Event-Id", d.EventID.String())
	req.Header.Set("X-Hookline-Event-Type", d.EventType)
	req.Header.Set("X-Hookline-Delivery-Id", d.ID.String())

	if s.signing {
		ts := time.Now().Unix()
		sig := signature.Sign(body, ep.Secret, ts)
		req.Header.Set("X-Hookline-Signature", signature.Header(ts, sig))
		req.Header.Set("X-Hookline-Timestamp", strconv.FormatInt(ts, 10))
	}

	start := time.Now()
	resp, err := s.client.Do(req) //nolint:gosec // URL is a user-configured webhook destination; SSRF is by design.
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return Result{
			Error:     err.Error(),
			LatencyMs: int(latency),
		}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("read response: %v", readErr),
			LatencyMs:  int(latency),
		}
	}

	return Result{
		StatusCode: resp.StatusCode,
		Response:   string(respBody),
		LatencyMs:  int(latency),
	}
}
