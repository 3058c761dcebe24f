package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	tokens     int
	lastRefill time.Time
	interval   time.Duration
}

// MemoryLimiter implements an in-memory token bucket with fixed-window refill:
// once RefillInterval has passed since the last refill the bucket is reset to
// MaxTokens in one step. A caller can therefore spend up to 2*MaxTokens around
// a window boundary.
//
// Idle buckets are swept lazily from Allow, at most once per cleanup interval.
type MemoryLimiter struct {
	mu              sync.Mutex
	buckets         map[string]*bucket
	cleanupInterval time.Duration
	lastCleanup     time.Time
}

// NewMemoryLimiter constructs a MemoryLimiter. A bucket is dropped once it has
// gone unrefilled for twice cleanupInterval or its own window, whichever is
// longer.
func NewMemoryLimiter(cleanupInterval time.Duration) *MemoryLimiter {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &MemoryLimiter{
		buckets:         make(map[string]*bucket),
		cleanupInterval: cleanupInterval,
	}
}

// Allow takes one token from the bucket for key.
func (l *MemoryLimiter) Allow(_ context.Context, key string, policy Policy, now time.Time) (Result, error) {
	if !policy.Enabled() || key == "" {
		return Result{Allowed: true}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)

	b := l.buckets[key]
	if b == nil {
		b = &bucket{tokens: policy.MaxTokens, lastRefill: now}
		l.buckets[key] = b
	}
	b.interval = policy.RefillInterval
	if now.Sub(b.lastRefill) >= policy.RefillInterval {
		b.tokens = policy.MaxTokens
		b.lastRefill = now
	}
	reset := b.lastRefill.Add(policy.RefillInterval)

	if b.tokens <= 0 {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	b.tokens--
	return Result{Allowed: true, Remaining: b.tokens, Reset: reset}, nil
}

// Len returns the number of tracked buckets.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// sweepLocked walks the whole registry, so it is throttled to one pass per
// cleanup interval.
func (l *MemoryLimiter) sweepLocked(now time.Time) {
	if l.lastCleanup.IsZero() {
		l.lastCleanup = now
		return
	}
	if now.Sub(l.lastCleanup) < l.cleanupInterval {
		return
	}
	l.lastCleanup = now
	retention := 2 * l.cleanupInterval
	for key, b := range l.buckets {
		// An exhausted bucket must outlive its window.
		if now.Sub(b.lastRefill) > max(retention, b.interval) {
			delete(l.buckets, key)
		}
	}
}
