package app

import (
	"context"
	"errors"
	"reflect"

	httpserver "github.com/fairyhunter13/psychometric-engine/internal/adapter/httpserver"
	"github.com/fairyhunter13/psychometric-engine/internal/scoring"
)

// Pinger is satisfied by the pgx pool, the Redis result cache and the Kafka client.
type Pinger interface{ Ping(ctx context.Context) error }

// BuildReadinessChecks returns a calibration check plus one check per
// configured backend. Nil pingers are skipped so optional backends never
// fail readiness.
func BuildReadinessChecks(engine *scoring.Engine, db, cache, broker Pinger) []httpserver.ReadinessCheck {
	checks := []httpserver.ReadinessCheck{{
		Name: "calibration",
		Probe: func(context.Context) error {
			if engine == nil || engine.Calibration() == nil {
				return errors.New("no calibration loaded")
			}
			return nil
		},
	}}
	add := func(name string, p Pinger) {
		if isNil(p) {
			return
		}
		checks = append(checks, httpserver.ReadinessCheck{Name: name, Probe: p.Ping})
	}
	add("db", db)
	add("cache", cache)
	add("broker", broker)
	return checks
}

func isNil(p Pinger) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Ptr && v.IsNil()
}
