package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Policy is the quota granted to a single key.
type Policy struct {
	MaxTokens      int
	RefillInterval time.Duration
}

// Enabled reports whether the policy limits anything.
func (p Policy) Enabled() bool {
	return p.MaxTokens > 0 && p.RefillInterval > 0
}

// Limiter provides rate limit checks.
type Limiter interface {
	Allow(ctx context.Context, key string, policy Policy, now time.Time) (Result, error)
}
