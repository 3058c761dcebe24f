package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestRollingLimiterRefillsGradually(t *testing.T) {
	l := NewRollingLimiter(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < contactPolicy.MaxTokens; i++ {
		res, err := l.Allow(context.Background(), "k", contactPolicy, now)
		if err != nil || !res.Allowed {
			t.Fatalf("request %d: expected allowed, got %+v err=%v", i+1, res, err)
		}
	}
	res, _ := l.Allow(context.Background(), "k", contactPolicy, now)
	if res.Allowed {
		t.Fatalf("expected burst exhausted")
	}
	if !res.Reset.After(now) {
		t.Fatalf("expected reset in the future, got %s", res.Reset)
	}

	// One token is earned every 12s with 5 per minute.
	res, _ = l.Allow(context.Background(), "k", contactPolicy, now.Add(13*time.Second))
	if !res.Allowed {
		t.Fatalf("expected one token after 13s")
	}
	res, _ = l.Allow(context.Background(), "k", contactPolicy, now.Add(13*time.Second))
	if res.Allowed {
		t.Fatalf("expected only one token after 13s")
	}
}

func TestRollingLimiterNoDoubleBurstAtBoundary(t *testing.T) {
	l := NewRollingLimiter(time.Minute)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	allowed := 0
	for i := 0; i < 2*contactPolicy.MaxTokens; i++ {
		if res, _ := l.Allow(context.Background(), "k", contactPolicy, start.Add(time.Minute)); res.Allowed {
			allowed++
		}
	}
	if allowed != contactPolicy.MaxTokens {
		t.Fatalf("expected at most %d in a burst, got %d", contactPolicy.MaxTokens, allowed)
	}
}

func TestRollingLimiterSweepsIdleEntries(t *testing.T) {
	l := NewRollingLimiter(time.Minute)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, _ = l.Allow(context.Background(), "idle", contactPolicy, start)
	_, _ = l.Allow(context.Background(), "busy", contactPolicy, start.Add(130*time.Second))

	l.mu.Lock()
	_, ok := l.entries["idle"]
	l.mu.Unlock()
	if ok {
		t.Fatalf("expected idle entry swept")
	}
}

func TestRollingLimiterKeepsDrainedEntryForLongWindow(t *testing.T) {
	l := NewRollingLimiter(time.Minute)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	policy := Policy{MaxTokens: 2, RefillInterval: time.Hour}

	for i := 0; i < policy.MaxTokens; i++ {
		if res, _ := l.Allow(context.Background(), "k", policy, start); !res.Allowed {
			t.Fatalf("request %d: expected allowed", i+1)
		}
	}
	_, _ = l.Allow(context.Background(), "other", policy, start.Add(90*time.Second))
	_, _ = l.Allow(context.Background(), "other", policy, start.Add(3*time.Minute))

	if res, _ := l.Allow(context.Background(), "k", policy, start.Add(3*time.Minute)); res.Allowed {
		t.Fatalf("expected drained entry to stay limited, got %+v", res)
	}
}
