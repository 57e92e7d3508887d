package domain

import (
	"context"
	"errors"
	"time"
)

// RetryConfig defines retry behavior for queued scoring and event publishing.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts
	MaxRetries int
	// InitialDelay is the initial delay before first retry
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration
	// Multiplier is the exponential backoff multiplier
	Multiplier float64
}

// DefaultRetryConfig returns the retry configuration used when none is supplied.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// IsRetryable reports whether err is worth retrying. Scoring outcomes are
// deterministic, so every error rooted in the scoring taxonomy is terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	for _, terminal := range []error{
		ErrInvalidArgument,
		ErrNotFound,
		ErrConflict,
		ErrInsufficientData,
		ErrUnknownItem,
		ErrMalformedResponse,
		ErrCalibration,
	} {
		if errors.Is(err, terminal) {
			return false
		}
	}
	return true
}
