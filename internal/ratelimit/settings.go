package ratelimit

import (
	"strings"
	"time"

	"github.com/momen-meetup/meetup/internal/config"
	"github.com/momen-meetup/meetup/internal/settings"
)

// SettingsConfig captures the limiter backend settings.
type SettingsConfig struct {
	Mode            string
	CleanupInterval time.Duration
	RedisEnabled    bool
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisPrefix     string
}

// SettingsFromConfig maps the rate-limit config section onto SettingsConfig.
func SettingsFromConfig(cfg config.RateLimitConfig) SettingsConfig {
	out := SettingsConfig{
		Mode:            strings.TrimSpace(cfg.Mode),
		CleanupInterval: cfg.CleanupInterval,
		RedisEnabled:    cfg.Redis.Enabled,
		RedisAddr:       strings.TrimSpace(cfg.Redis.Addr),
		RedisPassword:   strings.TrimSpace(cfg.Redis.Password),
		RedisDB:         cfg.Redis.DB,
		RedisPrefix:     strings.TrimSpace(cfg.Redis.Prefix),
	}
	if out.Mode == "" {
		out.Mode = settings.DefaultRateLimitMode
	}
	if out.CleanupInterval <= 0 {
		out.CleanupInterval = settings.DefaultCleanupInterval
	}
	if out.RedisPrefix == "" {
		out.RedisPrefix = settings.DefaultRateLimitRedisPrefix
	}
	if out.RedisDB < 0 {
		out.RedisDB = 0
	}
	return out
}

// PolicyFromConfig returns the contact endpoint policy.
func PolicyFromConfig(cfg config.RateLimitConfig) Policy {
	p := Policy{MaxTokens: cfg.MaxTokens, RefillInterval: cfg.RefillInterval}
	if p.MaxTokens <= 0 {
		p.MaxTokens = settings.DefaultContactMaxTokens
	}
	if p.RefillInterval <= 0 {
		p.RefillInterval = settings.DefaultContactRefillInterval
	}
	return p
}

// NewLocalLimiter builds the in-process limiter for the configured mode.
func NewLocalLimiter(cfg SettingsConfig) Limiter {
	if cfg.Mode == config.ModeContinuous {
		return NewRollingLimiter(cfg.CleanupInterval)
	}
	return NewMemoryLimiter(cfg.CleanupInterval)
}
