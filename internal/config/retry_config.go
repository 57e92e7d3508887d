package config

import (
	"github.com/fairyhunter13/psychometric-engine/internal/domain"
)

// GetRetryConfig returns the retry configuration for queued scoring jobs.
func (c Config) GetRetryConfig() domain.RetryConfig {
	rc := domain.DefaultRetryConfig()
	if c.RetryMaxRetries >= 0 {
		rc.MaxRetries = c.RetryMaxRetries
	}
	if c.RetryInitialDelay > 0 {
		rc.InitialDelay = c.RetryInitialDelay
	}
	if c.RetryMaxDelay > 0 {
		rc.MaxDelay = c.RetryMaxDelay
	}
	if c.RetryMultiplier > 0 {
		rc.Multiplier = c.RetryMultiplier
	}
	return rc
}
