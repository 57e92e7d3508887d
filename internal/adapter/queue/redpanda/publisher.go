package redpanda

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/psychometric-engine/internal/adapter/observability"
	"github.com/fairyhunter13/psychometric-engine/internal/domain"
	obsctx "github.com/fairyhunter13/psychometric-engine/internal/observability"
)

// BackoffConfig bounds the retries of a single publish.
type BackoffConfig struct {
	MaxElapsedTime  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// EventPublisher implements domain.EventPublisher on TopicScored. Publishes
// retry with exponential backoff behind a circuit breaker so a dead broker
// fails fast.
type EventPublisher struct {
	client  syncProducer
	topic   string
	breaker *observability.CircuitBreaker
	cfg     BackoffConfig
}

// NewEventPublisher wires a publisher with a breaker that opens after five
// consecutive failed publishes.
func NewEventPublisher(client syncProducer, cfg BackoffConfig) *EventPublisher {
	return &EventPublisher{
		client:  client,
		topic:   TopicScored,
		breaker: observability.NewCircuitBreaker("scored-events", 5, 30*time.Second),
		cfg:     cfg,
	}
}

// Breaker exposes the publisher's circuit breaker.
func (p *EventPublisher) Breaker() *observability.CircuitBreaker { return p.breaker }

// PublishScored writes ev keyed by its primary type so consumers see types in order.
func (p *EventPublisher) PublishScored(ctx domain.Context, ev domain.ScoredEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("op=redpanda.PublishScored: %w", err)
	}
	rec := &kgo.Record{
		Topic:   p.topic,
		Key:     []byte(ev.PrimaryType),
		Value:   b,
		Headers: []kgo.RecordHeader{{Key: "calibration_version", Value: []byte(ev.CalibrationVersion)}},
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.InitialInterval
	bo.MaxInterval = p.cfg.MaxInterval
	bo.Multiplier = p.cfg.Multiplier
	bo.MaxElapsedTime = p.cfg.MaxElapsedTime

	attempt := 0
	op := func() error {
		attempt++
		err := p.breaker.Call(func() error {
			return p.client.ProduceSync(ctx, rec).FirstErr()
		})
		if errors.Is(err, observability.ErrCircuitOpen) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		obsctx.LoggerFromContext(ctx).Warn("publish scored event retry",
			"attempt", attempt, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify); err != nil {
		return fmt.Errorf("op=redpanda.PublishScored: %w", err)
	}
	return nil
}
