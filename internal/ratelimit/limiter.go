package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether the caller identified by key may proceed.
// It returns the remaining budget and when the window resets.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, int, time.Time, error)
	MaxRequests() int
}

// fixedWindowScript counts requests per key inside a TTL window atomically.
//
// HOW IT WORKS:
// 1. The first request in a window creates the counter with EX = window
// 2. Later requests INCR it while it is below max_requests
// 3. Once the budget is spent, requests are refused until the key expires
//
// It returns {allowed, remaining, reset_unix}. Running as one script means
// concurrent callers never read the same count.
var fixedWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local max_requests = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local current_time = tonumber(ARGV[3])

	local current = redis.call('GET', key)

	if current == false then
		redis.call('SET', key, 1, 'EX', window)
		return {1, max_requests - 1, current_time + window}
	end

	current = tonumber(current)
	local ttl = redis.call('TTL', key)
	if current < max_requests then
		redis.call('INCR', key)
		return {1, max_requests - current - 1, current_time + ttl}
	end
	return {0, 0, current_time + ttl}
`)

// RedisLimiter shares one budget per key across every process using the same Redis.
//
// Keys look like "ratelimit:{prefix}:{key}", for example "ratelimit:bot:user:42"
// or "ratelimit:http:ip:10.0.0.7". LocalLimiter is the in-process equivalent
// used when Redis is not configured.
type RedisLimiter struct {
	client      *redis.Client
	prefix      string
	maxRequests int
	window      time.Duration
}

// NewRedisLimiter allows maxRequests per window for each key.
// prefix separates budgets of different surfaces (bot, http).
func NewRedisLimiter(client *redis.Client, prefix string, maxRequests int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:      client,
		prefix:      prefix,
		maxRequests: maxRequests,
		window:      window,
	}
}

func (rl *RedisLimiter) key(k string) string {
	return fmt.Sprintf("ratelimit:%s:%s", rl.prefix, k)
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	windowSeconds := int(rl.window.Seconds())
	if windowSeconds < 1 {
		windowSeconds = 1
	}

	result, err := fixedWindowScript.Run(
		ctx,
		rl.client,
		[]string{rl.key(key)},
		rl.maxRequests,
		windowSeconds,
		time.Now().Unix(),
	).Result()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return false, 0, time.Time{}, fmt.Errorf("unexpected result format")
	}

	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	resetUnix, _ := values[2].(int64)

	return allowed == 1, int(remaining), time.Unix(resetUnix, 0), nil
}

func (rl *RedisLimiter) MaxRequests() int {
	return rl.maxRequests
}
