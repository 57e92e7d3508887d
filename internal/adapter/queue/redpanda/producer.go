package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/psychometric-engine/internal/adapter/observability"
	"github.com/fairyhunter13/psychometric-engine/internal/domain"
)

// syncProducer is the produce surface of *kgo.Client.
type syncProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Producer implements domain.Queue by writing score tasks keyed by submission id.
type Producer struct {
	client syncProducer
	topic  string
}

// NewProducer returns a Producer writing to TopicScore.
func NewProducer(client syncProducer) *Producer {
	return &Producer{client: client, topic: TopicScore}
}

// WithTopic returns a copy writing to topic.
func (p *Producer) WithTopic(topic string) *Producer {
	cp := *p
	cp.topic = topic
	return &cp
}

// EnqueueScoring writes a score task and returns the submission id as the task id.
func (p *Producer) EnqueueScoring(ctx domain.Context, payload domain.ScoreTaskPayload) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("op=redpanda.EnqueueScoring: %w", err)
	}
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(payload.SubmissionID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "submission_id", Value: []byte(payload.SubmissionID)},
			{Key: "assessment_type", Value: []byte(payload.AssessmentType)},
		},
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return "", fmt.Errorf("op=redpanda.EnqueueScoring: %w", err)
	}
	observability.EnqueueJob("score")
	slog.Info("score task enqueued", slog.String("submission_id", payload.SubmissionID), slog.String("topic", p.topic))
	return payload.SubmissionID, nil
}
