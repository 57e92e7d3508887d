package redpanda

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kmsg"
)

// Topics used by the scoring pipeline.
const (
	TopicScore    = "assessment-score"
	TopicScoreDLQ = "assessment-score-dlq"
	TopicScored   = "assessment-scored"
)

// requester is the admin surface of *kgo.Client.
type requester interface {
	Request(ctx context.Context, req kmsg.Request) (kmsg.Response, error)
}

// EnsureTopics creates every topic that does not exist yet.
func EnsureTopics(ctx context.Context, client requester, partitions int32, topics ...string) error {
	for _, t := range topics {
		if err := createTopicIfNotExists(ctx, client, t, partitions, 1); err != nil {
			return fmt.Errorf("op=redpanda.EnsureTopics: %w", err)
		}
	}
	return nil
}

// createTopicIfNotExists treats TOPIC_ALREADY_EXISTS as success.
func createTopicIfNotExists(ctx context.Context, client requester, topic string, partitions int32, replicationFactor int16) error {
	if topic == "" {
		return fmt.Errorf("topic name cannot be empty")
	}
	if partitions <= 0 {
		return fmt.Errorf("partitions must be greater than 0")
	}
	if replicationFactor <= 0 {
		return fmt.Errorf("replication factor must be greater than 0")
	}

	req := kmsg.NewCreateTopicsRequest()
	req.TimeoutMillis = 30000
	topicReq := kmsg.NewCreateTopicsRequestTopic()
	topicReq.Topic = topic
	topicReq.NumPartitions = partitions
	topicReq.ReplicationFactor = replicationFactor
	req.Topics = append(req.Topics, topicReq)

	resp, err := client.Request(ctx, &req)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	created, ok := resp.(*kmsg.CreateTopicsResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}
	for _, tr := range created.Topics {
		if tr.ErrorCode == kerr.TopicAlreadyExists.Code {
			slog.Debug("topic already exists", slog.String("topic", tr.Topic))
			continue
		}
		if err := kerr.ErrorForCode(tr.ErrorCode); err != nil {
			return fmt.Errorf("create topic %s: %w", tr.Topic, err)
		}
		slog.Info("topic created", slog.String("topic", tr.Topic), slog.Int("partitions", int(partitions)))
	}
	return nil
}
