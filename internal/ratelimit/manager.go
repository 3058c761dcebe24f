package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	redisCooldown    = 30 * time.Second
	redisPingTimeout = 2 * time.Second
)

// SettingsProvider supplies the latest settings snapshot.
type SettingsProvider func() SettingsConfig

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

// endpoint identifies one Redis connection target.
type endpoint struct {
	addr     string
	password string
	db       int
	prefix   string
}

func endpointFrom(cfg SettingsConfig) endpoint {
	e := endpoint{
		addr:     strings.TrimSpace(cfg.RedisAddr),
		password: strings.TrimSpace(cfg.RedisPassword),
		db:       cfg.RedisDB,
		prefix:   strings.TrimSpace(cfg.RedisPrefix),
	}
	if e.db < 0 {
		e.db = 0
	}
	return e
}

// cooldown suppresses Redis attempts for a while after a failure.
type cooldown struct {
	mu    sync.Mutex
	until time.Time
}

func (c *cooldown) active(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.until.IsZero() {
		return false
	}
	if now.Before(c.until) {
		return true
	}
	c.until = time.Time{}
	return false
}

// trip starts a cooldown and reports whether one was not already running.
func (c *cooldown) trip(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.until.IsZero() && now.Before(c.until) {
		return false
	}
	c.until = now.Add(redisCooldown)
	return true
}

// Manager answers rate limit checks from Redis when it is enabled and
// reachable, and from the in-process limiter otherwise. A Redis failure keeps
// traffic on the local limiter for 30 seconds before Redis is retried.
type Manager struct {
	provider SettingsProvider
	nowFn    func() time.Time
	local    Limiter
	dial     RedisClientFactory
	cooldown cooldown

	mu       sync.Mutex
	shared   *RedisLimiter
	sharedAt endpoint

	onFallback func(error)
}

// NewManager constructs a Manager with default dependencies when nil. The
// local limiter mode is read once, at construction.
func NewManager(provider SettingsProvider, nowFn func() time.Time, dial RedisClientFactory) *Manager {
	if provider == nil {
		provider = func() SettingsConfig { return SettingsConfig{} }
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if dial == nil {
		dial = redis.NewClient
	}
	return &Manager{
		provider: provider,
		nowFn:    nowFn,
		local:    NewLocalLimiter(provider()),
		dial:     dial,
	}
}

// OnFallback registers fn to be called each time Redis fails and checks move
// to the local limiter.
func (m *Manager) OnFallback(fn func(error)) {
	m.mu.Lock()
	m.onFallback = fn
	m.mu.Unlock()
}

// Allow spends one unit of key's quota under policy.
func (m *Manager) Allow(ctx context.Context, key string, policy Policy) (Result, error) {
	if m == nil || !policy.Enabled() || key == "" {
		return Result{Allowed: true}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()
	if cfg := m.provider(); cfg.RedisEnabled && !m.cooldown.active(now) {
		result, errShared := m.allowShared(ctx, key, policy, now, endpointFrom(cfg))
		if errShared == nil {
			return result, nil
		}
		m.fallback(errShared, now)
	}
	return m.local.Allow(ctx, key, policy, now)
}

// Close releases the Redis client, if any.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shared == nil {
		return nil
	}
	errClose := m.shared.client.Close()
	m.shared = nil
	return errClose
}

func (m *Manager) allowShared(ctx context.Context, key string, policy Policy, now time.Time, target endpoint) (Result, error) {
	limiter, errConnect := m.connect(ctx, target)
	if errConnect != nil {
		return Result{}, errConnect
	}
	return limiter.Allow(ctx, key, policy, now)
}

func (m *Manager) fallback(err error, now time.Time) {
	if !m.cooldown.trip(now) {
		return
	}
	log.WithError(err).Warn("rate limit: redis unavailable, using local limiter")
	m.mu.Lock()
	fn := m.onFallback
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// connect returns a limiter for target, redialing when the target changed.
func (m *Manager) connect(ctx context.Context, target endpoint) (*RedisLimiter, error) {
	if target.addr == "" {
		return nil, errors.New("rate limit redis: missing address")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shared != nil && m.sharedAt == target {
		return m.shared, nil
	}
	if m.shared != nil {
		_ = m.shared.client.Close()
		m.shared = nil
	}

	client := m.dial(&redis.Options{Addr: target.addr, Password: target.password, DB: target.db})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.shared = NewRedisLimiter(client, target.prefix)
	m.sharedAt = target
	return m.shared, nil
}
