// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8080"`
	// DBURL enables persistence and the async assessment API when set.
	DBURL string `env:"DB_URL"`
	// KafkaBrokers enables queued scoring and scored-event publishing when set.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	// RedisURL selects the shared result cache; empty falls back to an in-process LRU.
	RedisURL        string `env:"REDIS_URL"`
	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"psychometric-engine"`
	// OTELSamplingRatio of 0 samples everything outside prod and 10% in prod.
	OTELSamplingRatio float64 `env:"OTEL_SAMPLING_RATIO"`
	// LogLevel accepts debug, info, warn or error. Empty means debug in dev, info elsewhere.
	LogLevel string `env:"LOG_LEVEL"`

	// Scoring
	// CalibrationPath points at a calibration YAML file. Empty uses the built-in reference bank.
	CalibrationPath        string        `env:"CALIBRATION_PATH"`
	ScoringEstimator       string        `env:"SCORING_ESTIMATOR"`
	ScoringConfidenceLevel float64       `env:"SCORING_CONFIDENCE_LEVEL"`
	ScoringSecondaryMargin float64       `env:"SCORING_SECONDARY_MARGIN"`
	ResultCacheTTL         time.Duration `env:"RESULT_CACHE_TTL" envDefault:"1h"`
	ResultCacheSize        int           `env:"RESULT_CACHE_SIZE" envDefault:"4096"`
	// DriftWindow of 0 disables the trait drift monitor.
	DriftWindow    int     `env:"DRIFT_WINDOW" envDefault:"500"`
	DriftThreshold float64 `env:"DRIFT_THRESHOLD" envDefault:"10"`

	// AdminPasswordHash is an Argon2id hash in the argon2id$iter$mem$par$salt$hash form.
	AdminUsername     string `env:"ADMIN_USERNAME"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`
	MaxUploadKB       int64  `env:"MAX_UPLOAD_KB" envDefault:"2048"`

	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin       int           `env:"RATE_LIMIT_PER_MIN" envDefault:"60"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	DataRetentionDays     int           `env:"DATA_RETENTION_DAYS" envDefault:"90"`
	CleanupInterval       time.Duration `env:"CLEANUP_INTERVAL" envDefault:"24h"`
	// Queued submissions not finished within StaleSubmissionAge are failed by the sweeper.
	StaleSubmissionAge time.Duration `env:"STALE_SUBMISSION_AGE" envDefault:"2m"`
	StaleSweepInterval time.Duration `env:"STALE_SWEEP_INTERVAL" envDefault:"1m"`
	// Publish backoff applies to scored-event publishing and database connects.
	PublishBackoffMaxElapsedTime  time.Duration `env:"PUBLISH_BACKOFF_MAX_ELAPSED_TIME" envDefault:"30s"`
	PublishBackoffInitialInterval time.Duration `env:"PUBLISH_BACKOFF_INITIAL_INTERVAL" envDefault:"500ms"`
	PublishBackoffMaxInterval     time.Duration `env:"PUBLISH_BACKOFF_MAX_INTERVAL" envDefault:"5s"`
	PublishBackoffMultiplier      float64       `env:"PUBLISH_BACKOFF_MULTIPLIER" envDefault:"1.5"`
	// Queue Consumer Configuration
	ConsumerMaxConcurrency int    `env:"CONSUMER_MAX_CONCURRENCY" envDefault:"4"`
	ConsumerGroup          string `env:"CONSUMER_GROUP" envDefault:"assessment-scorers"`
	WorkerMetricsAddr      string `env:"WORKER_METRICS_ADDR" envDefault:":9090"`
	// Retry Configuration
	RetryMaxRetries   int           `env:"RETRY_MAX_RETRIES" envDefault:"3"`
	RetryInitialDelay time.Duration `env:"RETRY_INITIAL_DELAY" envDefault:"2s"`
	RetryMaxDelay     time.Duration `env:"RETRY_MAX_DELAY" envDefault:"30s"`
	RetryMultiplier   float64       `env:"RETRY_MULTIPLIER" envDefault:"2.0"`
}

// AdminEnabled returns true if admin features should be enabled
func (c Config) AdminEnabled() bool {
	return c.AdminUsername != "" && c.AdminPasswordHash != ""
}

// PersistenceEnabled reports whether a database is configured.
func (c Config) PersistenceEnabled() bool { return c.DBURL != "" }

// QueueEnabled reports whether Kafka brokers are configured.
func (c Config) QueueEnabled() bool { return len(c.KafkaBrokers) > 0 }

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	switch strings.ToLower(cfg.ScoringEstimator) {
	case "", "map", "mle":
	default:
		return Config{}, fmt.Errorf("op=config.Load: SCORING_ESTIMATOR must be map or mle, got %q", cfg.ScoringEstimator)
	}
	if cfg.LogLevel != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return Config{}, fmt.Errorf("op=config.Load: LOG_LEVEL: %w", err)
		}
	}
	if cfg.OTELSamplingRatio < 0 || cfg.OTELSamplingRatio > 1 {
		return Config{}, fmt.Errorf("op=config.Load: OTEL_SAMPLING_RATIO must be in [0,1], got %v", cfg.OTELSamplingRatio)
	}
	if cfg.ScoringConfidenceLevel < 0 || cfg.ScoringConfidenceLevel >= 1 {
		return Config{}, fmt.Errorf("op=config.Load: SCORING_CONFIDENCE_LEVEL must be in (0,1), got %v", cfg.ScoringConfidenceLevel)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// GetPublishBackoffConfig returns backoff configuration appropriate for the current environment.
// In test environments, uses much shorter timeouts for faster test execution.
func (c Config) GetPublishBackoffConfig() (maxElapsedTime, initialInterval, maxInterval time.Duration, multiplier float64) {
	if c.IsTest() {
		return 2 * time.Second, 50 * time.Millisecond, 500 * time.Millisecond, 2.0
	}
	return c.PublishBackoffMaxElapsedTime, c.PublishBackoffInitialInterval, c.PublishBackoffMaxInterval, c.PublishBackoffMultiplier
}
