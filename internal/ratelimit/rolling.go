package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type rollingEntry struct {
	limiter  *rate.Limiter
	policy   Policy
	lastSeen time.Time
}

// RollingLimiter refills continuously: MaxTokens are earned evenly across
// RefillInterval, with a burst capacity of MaxTokens. Unlike MemoryLimiter it
// never grants a double burst at a window boundary.
type RollingLimiter struct {
	mu              sync.Mutex
	entries         map[string]*rollingEntry
	cleanupInterval time.Duration
	lastCleanup     time.Time
}

// NewRollingLimiter constructs a RollingLimiter.
func NewRollingLimiter(cleanupInterval time.Duration) *RollingLimiter {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &RollingLimiter{
		entries:         make(map[string]*rollingEntry),
		cleanupInterval: cleanupInterval,
	}
}

// Allow takes one token for key if one has been earned.
func (l *RollingLimiter) Allow(_ context.Context, key string, policy Policy, now time.Time) (Result, error) {
	if !policy.Enabled() || key == "" {
		return Result{Allowed: true}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)

	e := l.entries[key]
	if e == nil || e.policy != policy {
		perToken := policy.RefillInterval / time.Duration(policy.MaxTokens)
		e = &rollingEntry{
			limiter: rate.NewLimiter(rate.Every(perToken), policy.MaxTokens),
			policy:  policy,
		}
		l.entries[key] = e
	}
	e.lastSeen = now

	allowed := e.limiter.AllowN(now, 1)
	tokens := e.limiter.TokensAt(now)
	remaining := int(tokens)
	if remaining < 0 {
		remaining = 0
	}
	reset := now
	if tokens < 1 {
		missing := 1 - tokens
		reset = now.Add(time.Duration(missing / float64(e.limiter.Limit()) * float64(time.Second)))
	}
	if !allowed {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	return Result{Allowed: true, Remaining: remaining, Reset: reset}, nil
}

func (l *RollingLimiter) sweepLocked(now time.Time) {
	if l.lastCleanup.IsZero() {
		l.lastCleanup = now
		return
	}
	if now.Sub(l.lastCleanup) < l.cleanupInterval {
		return
	}
	l.lastCleanup = now
	retention := 2 * l.cleanupInterval
	for key, e := range l.entries {
		// A drained entry needs a full interval to earn its burst back.
		if now.Sub(e.lastSeen) > max(retention, e.policy.RefillInterval) {
			delete(l.entries, key)
		}
	}
}
