// Package ratelimiter implements a token bucket shared across service
// replicas through a Redis Lua script.
package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a caller identified by key may spend cost tokens.
type Limiter interface {
	Allow(ctx context.Context, key string, cost int64) (allowed bool, retryAfter time.Duration, err error)
}

// BucketConfig describes one token bucket.
type BucketConfig struct {
	Capacity   int64
	RefillRate float64 // tokens per second
}

// NewBucketConfigFromPerMinute builds a bucket that refills perMinute tokens each minute.
func NewBucketConfigFromPerMinute(perMinute int) BucketConfig {
	if perMinute <= 0 {
		return BucketConfig{}
	}
	return BucketConfig{
		Capacity:   int64(perMinute),
		RefillRate: float64(perMinute) / 60.0,
	}
}

// RedisLuaLimiter applies one bucket configuration to every key.
type RedisLuaLimiter struct {
	redis  redis.UniversalClient
	bucket BucketConfig
	prefix string
	script *redis.Script
	now    func() time.Time
}

// NewRedisLuaLimiter returns nil when rdb is nil so callers can fall back
// to an in-process limiter.
func NewRedisLuaLimiter(rdb redis.UniversalClient, prefix string, bucket BucketConfig) *RedisLuaLimiter {
	if rdb == nil {
		return nil
	}
	return &RedisLuaLimiter{
		redis:  rdb,
		bucket: bucket,
		prefix: "rate:" + prefix + ":",
		script: redis.NewScript(luaTokenBucketScript),
		now:    time.Now,
	}
}

// Redis truncates Lua numbers to integers in replies, so fractional values
// are returned as strings.
const luaTokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local tokens = capacity
local last_refill = now

local data = redis.call("HMGET", key, "tokens", "last_refill")
if data[1] then
  tokens = tonumber(data[1])
end
if data[2] then
  last_refill = tonumber(data[2])
end

local delta = math.max(0, now - last_refill)
tokens = math.min(capacity, tokens + delta * refill_rate)

local allowed = 0
local retry_after = 0
if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
elseif refill_rate > 0 then
  retry_after = (cost - tokens) / refill_rate
end

redis.call("HSET", key, "tokens", tokens, "last_refill", now)
redis.call("EXPIRE", key, math.ceil(capacity / math.max(refill_rate, 0.001)) + 1)

return { allowed, tostring(tokens), tostring(retry_after) }
`

// Allow fails open on Redis errors so the cache outage never blocks scoring.
func (l *RedisLuaLimiter) Allow(ctx context.Context, key string, cost int64) (bool, time.Duration, error) {
	if l == nil || l.redis == nil || l.bucket.Capacity <= 0 || l.bucket.RefillRate <= 0 {
		return true, 0, nil
	}
	if cost <= 0 {
		cost = 1
	}
	nowSec := float64(l.now().UnixNano()) / 1e9
	res, err := l.script.Run(ctx, l.redis, []string{l.prefix + key}, l.bucket.Capacity, l.bucket.RefillRate, nowSec, cost).Slice()
	if err != nil {
		slog.Error("redis rate limiter script error", slog.String("key", key), slog.Any("error", err))
		return true, 0, fmt.Errorf("op=ratelimiter.Allow: %w", err)
	}
	if len(res) < 3 {
		return true, 0, nil
	}
	allowed, _ := res[0].(int64)
	retrySec, _ := strconv.ParseFloat(fmt.Sprint(res[2]), 64)
	return allowed == 1, time.Duration(retrySec * float64(time.Second)), nil
}
