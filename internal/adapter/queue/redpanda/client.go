// Package redpanda carries asynchronous scoring work and scored events over
// a Kafka-compatible broker.
package redpanda

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"
)

// NewClient builds a traced franz-go client. Extra options, such as a
// consumer group, are appended after the defaults.
func NewClient(brokers []string, extra ...kgo.Opt) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewClient: no seed brokers provided")
	}
	kot := kotel.NewKotel(kotel.WithTracer(kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))))
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.WithHooks(kot.Hooks()...),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1_000_000),
		kgo.DialTimeout(10 * time.Second),
		kgo.RequestTimeoutOverhead(5 * time.Second),
		kgo.RetryTimeout(30 * time.Second),
	}
	cl, err := kgo.NewClient(append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewClient: %w", err)
	}
	slog.Info("redpanda client created", slog.Any("brokers", brokers))
	return cl, nil
}

// ConsumerOpts are the options for a scoring consumer in group groupID.
func ConsumerOpts(groupID string, topics ...string) []kgo.Opt {
	return []kgo.Opt{
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.DisableAutoCommit(),
		kgo.SessionTimeout(30 * time.Second),
		kgo.HeartbeatInterval(3 * time.Second),
		kgo.RebalanceTimeout(10 * time.Second),
		kgo.FetchMaxWait(5 * time.Second),
	}
}
