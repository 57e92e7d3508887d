package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/psychometric-engine/internal/adapter/observability"
	"github.com/fairyhunter13/psychometric-engine/internal/domain"
	obsctx "github.com/fairyhunter13/psychometric-engine/internal/observability"
)

// Processor scores queued submissions.
type Processor interface {
	Process(ctx domain.Context, payload domain.ScoreTaskPayload) error
	Fail(ctx domain.Context, id string, cause error) error
}

// fetcher is the consuming surface of *kgo.Client.
type fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
}

// Consumer drains TopicScore with a bounded worker pool. Retryable failures
// are retried with exponential backoff; exhausted tasks go to TopicScoreDLQ
// and their submission is marked failed.
type Consumer struct {
	client  fetcher
	dlq     syncProducer
	proc    Processor
	retry   domain.RetryConfig
	workers int
}

// NewConsumer builds a consumer. dlq may be nil, in which case exhausted
// tasks are only marked failed.
func NewConsumer(client fetcher, dlq syncProducer, proc Processor, retry domain.RetryConfig, workers int) *Consumer {
	if workers < 1 {
		workers = 1
	}
	return &Consumer{client: client, dlq: dlq, proc: proc, retry: retry, workers: workers}
}

// Run polls until ctx is cancelled or the client is closed. Offsets are
// committed after every record of a poll has been handled.
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("scoring consumer started", slog.Int("workers", c.workers))
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil || fetches.IsClientClosed() {
			slog.Info("scoring consumer stopping")
			return nil
		}
		failed := false
		fetches.EachError(func(topic string, partition int32, err error) {
			failed = true
			slog.Error("fetch error", slog.String("topic", topic), slog.Int("partition", int(partition)), slog.Any("error", err))
		})
		var recs []*kgo.Record
		fetches.EachRecord(func(r *kgo.Record) { recs = append(recs, r) })
		if len(recs) == 0 {
			if failed && !sleepCtx(ctx, time.Second) {
				return nil
			}
			continue
		}

		c.handleBatch(ctx, recs)
		if err := c.client.CommitRecords(ctx, recs...); err != nil {
			slog.Error("commit offsets failed", slog.Int("records", len(recs)), slog.Any("error", err))
		}
	}
}

func (c *Consumer) handleBatch(ctx context.Context, recs []*kgo.Record) {
	var g errgroup.Group
	g.SetLimit(c.workers)
	for _, r := range recs {
		g.Go(func() error {
			c.handle(ctx, r)
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Consumer) handle(ctx context.Context, rec *kgo.Record) {
	var p domain.ScoreTaskPayload
	if err := json.Unmarshal(rec.Value, &p); err != nil || p.SubmissionID == "" {
		slog.Error("dropping malformed score task", slog.Int64("offset", rec.Offset), slog.Any("error", err))
		c.deadLetter(ctx, rec, "malformed payload")
		return
	}
	ctx = obsctx.WithAttrs(ctx, slog.String("submission_id", p.SubmissionID))
	lg := obsctx.LoggerFromContext(ctx)

	observability.StartProcessingJob("score")
	err := c.processWithRetry(ctx, p)
	switch {
	case err == nil:
		observability.CompleteJob("score")
	case !domain.IsRetryable(err):
		observability.FailJob("score")
		lg.Warn("score task failed permanently", slog.Any("error", err))
	default:
		observability.FailJob("score")
		lg.Error("score task retries exhausted", slog.Int("max_retries", c.retry.MaxRetries), slog.Any("error", err))
		c.deadLetter(ctx, rec, err.Error())
		if ferr := c.proc.Fail(ctx, p.SubmissionID, fmt.Errorf("retries exhausted: %w", err)); ferr != nil {
			lg.Error("mark submission failed", slog.Any("error", ferr))
		}
	}
}

func (c *Consumer) processWithRetry(ctx context.Context, p domain.ScoreTaskPayload) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retry.InitialDelay
	bo.MaxInterval = c.retry.MaxDelay
	bo.Multiplier = c.retry.Multiplier
	bo.MaxElapsedTime = 0
	retries := c.retry.MaxRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries)), ctx)
	return backoff.Retry(func() error {
		err := c.proc.Process(ctx, p)
		if err != nil && !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

func (c *Consumer) deadLetter(ctx context.Context, rec *kgo.Record, reason string) {
	if c.dlq == nil {
		return
	}
	dl := &kgo.Record{
		Topic:   TopicScoreDLQ,
		Key:     rec.Key,
		Value:   rec.Value,
		Headers: append(append([]kgo.RecordHeader{}, rec.Headers...), kgo.RecordHeader{Key: "error", Value: []byte(reason)}),
	}
	if err := c.dlq.ProduceSync(context.WithoutCancel(ctx), dl).FirstErr(); err != nil {
		slog.Error("dead-letter publish failed", slog.String("key", string(rec.Key)), slog.Any("error", err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

