package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/psychometric-engine/internal/adapter/cache"
	"github.com/fairyhunter13/psychometric-engine/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/psychometric-engine/internal/config"
	"github.com/fairyhunter13/psychometric-engine/internal/domain"
	"github.com/fairyhunter13/psychometric-engine/internal/scoring"
	"github.com/fairyhunter13/psychometric-engine/internal/service/ratelimiter"
)

// ScoringOverrides maps the SCORING_* settings onto calibration overrides.
func ScoringOverrides(cfg config.Config) scoring.Overrides {
	return scoring.Overrides{
		Method:          cfg.ScoringEstimator,
		ConfidenceLevel: cfg.ScoringConfidenceLevel,
		SecondaryMargin: cfg.ScoringSecondaryMargin,
	}
}

// BuildEngine loads the calibration named by CALIBRATION_PATH, or the
// built-in reference bank, and applies the configured overrides.
func BuildEngine(cfg config.Config) (*scoring.Engine, error) {
	cal := scoring.ReferenceCalibration()
	if cfg.CalibrationPath != "" {
		loaded, err := scoring.LoadCalibrationFile(cfg.CalibrationPath)
		if err != nil {
			return nil, fmt.Errorf("op=app.BuildEngine: %w", err)
		}
		cal = loaded
	}
	e, err := scoring.NewEngine(ScoringOverrides(cfg).Apply(cal))
	if err != nil {
		return nil, fmt.Errorf("op=app.BuildEngine: %w", err)
	}
	slog.Info("calibration loaded",
		slog.String("name", e.Calibration().Name),
		slog.String("version", e.Calibration().Version()),
		slog.Int("items", len(e.Calibration().Items)))
	return e, nil
}

// NewRedisClient connects to REDIS_URL. It returns nil without error when
// no URL is configured.
func NewRedisClient(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("op=app.NewRedisClient: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("op=app.NewRedisClient: %w", err)
	}
	return rdb, nil
}

// BuildCache returns the shared Redis cache when rdb is set and an
// in-process LRU otherwise.
func BuildCache(cfg config.Config, rdb *redis.Client) domain.ResultCache {
	if rdb != nil {
		return cache.NewRedisCache(rdb, cfg.ResultCacheTTL)
	}
	return cache.NewLRUCache(cfg.ResultCacheSize, cfg.ResultCacheTTL)
}

// BuildLimiter returns a Redis token bucket shared by all replicas, or nil
// so the router falls back to per-process limiting.
func BuildLimiter(cfg config.Config, rdb *redis.Client) ratelimiter.Limiter {
	if rdb == nil || cfg.RateLimitPerMin <= 0 {
		return nil
	}
	return ratelimiter.NewRedisLuaLimiter(rdb, "score", ratelimiter.NewBucketConfigFromPerMinute(cfg.RateLimitPerMin))
}

// PublishBackoff converts the publish backoff settings for the event publisher.
func PublishBackoff(cfg config.Config) redpanda.BackoffConfig {
	maxElapsed, initial, maxInterval, mult := cfg.GetPublishBackoffConfig()
	return redpanda.BackoffConfig{
		MaxElapsedTime:  maxElapsed,
		InitialInterval: initial,
		MaxInterval:     maxInterval,
		Multiplier:      mult,
	}
}
