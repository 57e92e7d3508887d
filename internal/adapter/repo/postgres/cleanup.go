package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CleanupService deletes submissions, and their results, past the retention window.
type CleanupService struct {
	Pool          PgxPool
	RetentionDays int
	now           func() time.Time
}

// NewCleanupService creates a cleanup service; non-positive retention defaults to 90 days.
func NewCleanupService(pool PgxPool, retentionDays int) *CleanupService {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &CleanupService{Pool: pool, RetentionDays: retentionDays, now: time.Now}
}

// CleanupOldData removes rows older than the retention window in one transaction.
func (s *CleanupService) CleanupOldData(ctx context.Context) error {
	cutoff := s.now().UTC().AddDate(0, 0, -s.RetentionDays)

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("op=cleanup.begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res, err := tx.Exec(ctx, `DELETE FROM results WHERE submission_id IN (SELECT id FROM submissions WHERE created_at < $1)`, cutoff)
	if err != nil {
		return fmt.Errorf("op=cleanup.results: %w", err)
	}
	subs, err := tx.Exec(ctx, `DELETE FROM submissions WHERE created_at < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("op=cleanup.submissions: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=cleanup.commit: %w", err)
	}

	slog.Info("data cleanup completed",
		slog.Int64("deleted_submissions", subs.RowsAffected()),
		slog.Int64("deleted_results", res.RowsAffected()),
		slog.Time("cutoff", cutoff),
	)
	return nil
}

// RunPeriodic runs CleanupOldData immediately and then on every tick until ctx is done.
func (s *CleanupService) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.CleanupOldData(ctx); err != nil {
		slog.Error("initial cleanup failed", slog.Any("error", err))
	}
	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup service stopping")
			return
		case <-ticker.C:
			if err := s.CleanupOldData(ctx); err != nil {
				slog.Error("periodic cleanup failed", slog.Any("error", err))
			}
		}
	}
}
