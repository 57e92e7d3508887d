package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// StaleFailer fails submissions that stopped making progress.
type StaleFailer interface {
	FailStale(ctx context.Context, olderThan time.Time, msg string) (int64, error)
}

// StaleSubmissionSweeper fails queued or processing submissions whose worker
// died or whose queue message was lost, so pollers get a terminal answer.
type StaleSubmissionSweeper struct {
	repo     StaleFailer
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewStaleSubmissionSweeper returns nil when repo is nil.
func NewStaleSubmissionSweeper(repo StaleFailer, maxAge, interval time.Duration) *StaleSubmissionSweeper {
	if repo == nil {
		return nil
	}
	if maxAge <= 0 {
		maxAge = 2 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &StaleSubmissionSweeper{repo: repo, maxAge: maxAge, interval: interval, now: time.Now}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *StaleSubmissionSweeper) Run(ctx context.Context) {
	if s == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("stale submission sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *StaleSubmissionSweeper) sweepOnce(ctx context.Context) int64 {
	ctx, span := otel.Tracer("submissions.sweeper").Start(ctx, "StaleSubmissionSweeper.sweepOnce")
	defer span.End()
	span.SetAttributes(attribute.Float64("submissions.max_age_seconds", s.maxAge.Seconds()))

	msg := fmt.Sprintf("scoring did not finish within %v", s.maxAge)
	n, err := s.repo.FailStale(ctx, s.now().Add(-s.maxAge), msg)
	if err != nil {
		span.RecordError(err)
		slog.Error("stale submission sweep failed", slog.Any("error", err))
		return 0
	}
	span.SetAttributes(attribute.Int64("submissions.marked_failed", n))
	if n > 0 {
		slog.Warn("stale submissions marked failed", slog.Int64("count", n))
	}
	return n
}
