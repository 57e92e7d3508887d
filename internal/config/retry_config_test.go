package config

import (
	"testing"
	"time"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
)

func TestConfig_GetRetryConfig_MapsFields(t *testing.T) {
	cfg := Config{
		RetryMaxRetries:   5,
		RetryInitialDelay: 3 * time.Second,
		RetryMaxDelay:     45 * time.Second,
		RetryMultiplier:   3.5,
	}

	rc := cfg.GetRetryConfig()

	if rc.MaxRetries != cfg.RetryMaxRetries {
		t.Fatalf("MaxRetries = %d, want %d", rc.MaxRetries, cfg.RetryMaxRetries)
	}
	if rc.InitialDelay != cfg.RetryInitialDelay {
		t.Fatalf("InitialDelay = %v, want %v", rc.InitialDelay, cfg.RetryInitialDelay)
	}
	if rc.MaxDelay != cfg.RetryMaxDelay {
		t.Fatalf("MaxDelay = %v, want %v", rc.MaxDelay, cfg.RetryMaxDelay)
	}
	if rc.Multiplier != cfg.RetryMultiplier {
		t.Fatalf("Multiplier = %v, want %v", rc.Multiplier, cfg.RetryMultiplier)
	}
}

func TestConfig_GetRetryConfig_FallsBackToDefaults(t *testing.T) {
	rc := Config{}.GetRetryConfig()
	def := domain.DefaultRetryConfig()
	if rc.InitialDelay != def.InitialDelay || rc.MaxDelay != def.MaxDelay || rc.Multiplier != def.Multiplier {
		t.Fatalf("GetRetryConfig() = %+v, want defaults %+v", rc, def)
	}
	if rc.MaxRetries != 0 {
		t.Fatalf("MaxRetries = %d, want explicit zero to be kept", rc.MaxRetries)
	}
}
