package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisIncrScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter implements a fixed-window rate limiter backed by Redis so that
// several processes share one quota. Windows are aligned to multiples of
// RefillInterval since the Unix epoch rather than anchored to a key's first
// request.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: strings.TrimSpace(prefix),
	}
}

// Allow counts one request against the current window for key.
func (l *RedisLimiter) Allow(ctx context.Context, key string, policy Policy, now time.Time) (Result, error) {
	if !policy.Enabled() || key == "" || l == nil || l.client == nil {
		return Result{Allowed: true}, nil
	}
	window := now.UnixNano() / int64(policy.RefillInterval)
	reset := time.Unix(0, (window+1)*int64(policy.RefillInterval)).UTC()
	redisKey := l.buildKey(key, window)
	ttlMillis := (2 * policy.RefillInterval).Milliseconds()
	res, errEval := redisIncrScript.Run(ctx, l.client, []string{redisKey}, ttlMillis).Result()
	if errEval != nil {
		return Result{}, errEval
	}
	count, ok := res.(int64)
	if !ok {
		return Result{}, errors.New("rate limit redis: unexpected response type")
	}
	if count > int64(policy.MaxTokens) {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	return Result{Allowed: true, Remaining: policy.MaxTokens - int(count), Reset: reset}, nil
}

func (l *RedisLimiter) buildKey(key string, window int64) string {
	windowStr := strconv.FormatInt(window, 10)
	if l.prefix == "" {
		return key + ":" + windowStr
	}
	return l.prefix + ":" + key + ":" + windowStr
}
