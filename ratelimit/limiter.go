// Package ratelimit paces outbound deliveries per endpoint with a token
// bucket, so a burst of events cannot hammer a single receiver.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter implements token bucket rate limiting keyed by endpoint.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens   float64
	lastFill time.Time
	perSec   float64 // tokens per second
}

// New creates a new rate limiter.
func New() *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
	}
}

// Allow checks whether a delivery to the endpoint may proceed now.
// A perSec of 0 means unlimited (always returns true).
func (l *Limiter) Allow(endpointID string, perSec int) bool {
	if perSec <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.getOrCreateBucket(endpointID, float64(perSec))
	b.refill()

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Wait blocks until the rate limit admits the delivery or the context is
// cancelled. A perSec of 0 means unlimited (returns immediately).
func (l *Limiter) Wait(ctx context.Context, endpointID string, perSec int) error {
	if perSec <= 0 {
		return nil
	}

	for {
		if l.Allow(endpointID, perSec) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(float64(time.Second) / float64(perSec))):
			// Try again after the estimated refill interval.
		}
	}
}

// Reset clears the pacing state for an endpoint (e.g. after deletion).
func (l *Limiter) Reset(endpointID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, endpointID)
}

func (l *Limiter) getOrCreateBucket(endpointID string, perSec float64) *bucket {
	b, ok := l.buckets[endpointID]
	if !ok {
		b = &bucket{
			tokens:   perSec, // start full
			lastFill: time.Now(),
			perSec:   perSec,
		}
		l.buckets[endpointID] = b
	}
	return b
}

func (b *bucket) refill() {
	now := time.Now()
	elapsed := now.Sub(b.lastFill).Seconds()
	b.tokens += elapsed * b.perSec
	if b.tokens > b.perSec {
		b.tokens = b.perSec // cap at burst size = rate
	}
	b.lastFill = now
}
