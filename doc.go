// Package hookline provides an embeddable outbound webhook delivery engine
// for Go.
//
// Hookline is a library — not a service. Import it into your application to
// get endpoint registration with server-side signing secrets, event fan-out
// with frozen payload snapshots, signed HTTP delivery with pluggable
// backoff-scheduled retries, per-attempt history, and aggregate stats.
//
// Key features:
//   - HMAC-SHA256 signing with a replay-protection tolerance window
//   - Pluggable retry strategies (exponential with jitter, linear, fixed, schedule)
//   - Transient/permanent failure classification by HTTP status
//   - At-most-one in-flight attempt per delivery within a process
//   - Composable store pattern with multiple backends (Memory, Redis, Bun SQL, Mongo)
//   - Per-endpoint rate limiting
//   - Optional JSON Schema validation of publish payloads
//
// Quick start:
//
//	d, err := hookline.New(
//	    hookline.WithStore(memory.New()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	d.Start(ctx)
//	defer d.Stop(ctx)
//
//	d.Endpoints().Create(ctx, endpoint.Input{
//	    URL:    "https://example.com/hooks",
//	    Events: []string{"order.*"},
//	})
//
//	d.PublishEvent(ctx, event.Input{
//	    Type: "order.created",
//	    Data: map[string]any{"order_id": "ord_01h..."},
//	})
package hookline
