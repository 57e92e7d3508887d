// Package cache provides ResultCache implementations: Redis when a shared
// cache is configured, an in-process expiring LRU otherwise.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
)

const keyPrefix = "assessment:result:"

// RedisCache stores results as JSON with a TTL.
type RedisCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewRedisCache wraps a Redis client. A non-positive ttl keeps entries forever.
func NewRedisCache(rdb redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// Get implements domain.ResultCache.
func (c *RedisCache) Get(ctx context.Context, key string) (domain.AssessmentResult, bool, error) {
	b, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AssessmentResult{}, false, nil
	}
	if err != nil {
		return domain.AssessmentResult{}, false, fmt.Errorf("op=cache.Get: %w", err)
	}
	var res domain.AssessmentResult
	if err := json.Unmarshal(b, &res); err != nil {
		// A corrupt entry is a miss; the next Set overwrites it.
		return domain.AssessmentResult{}, false, nil
	}
	return res, true, nil
}

// Set implements domain.ResultCache.
func (c *RedisCache) Set(ctx context.Context, key string, r domain.AssessmentResult) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("op=cache.Set: %w", err)
	}
	if err := c.rdb.Set(ctx, keyPrefix+key, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("op=cache.Set: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// LRUCache is a bounded in-process cache with per-entry expiry.
type LRUCache struct {
	lru *lru.LRU[string, domain.AssessmentResult]
}

// NewLRUCache creates an LRU holding at most size results for ttl each.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	if size <= 0 {
		size = 1024
	}
	return &LRUCache{lru: lru.NewLRU[string, domain.AssessmentResult](size, nil, ttl)}
}

// Get implements domain.ResultCache.
func (c *LRUCache) Get(_ context.Context, key string) (domain.AssessmentResult, bool, error) {
	r, ok := c.lru.Get(key)
	return r, ok, nil
}

// Set implements domain.ResultCache.
func (c *LRUCache) Set(_ context.Context, key string, r domain.AssessmentResult) error {
	c.lru.Add(key, r)
	return nil
}

// Len returns the number of live entries.
func (c *LRUCache) Len() int { return c.lru.Len() }
