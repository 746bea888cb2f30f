package delivery

import "sync"

// inflight is the per-process processing guard: it serializes attempts for
// a single delivery id across the publish path and the poller, which race
// to process the same row.
//
// The guard is local to one process. In a horizontally scaled deployment an
// additional store-level lease (claim via conditional update with expiry)
// is required to preserve at-most-one-concurrent-attempt across instances.
type inflight struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newInflight() *inflight {
	return &inflight{ids: make(map[string]struct{})}
}

// tryAcquire atomically marks the id in-flight. Returns false if it already
// was — the caller must then skip the attempt entirely.
func (g *inflight) tryAcquire(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.ids[id]; ok {
		return false
	}
	g.ids[id] = struct{}{}
	return true
}

// release clears the in-flight mark.
func (g *inflight) release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.ids, id)
}
