package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
)

// ResultRepo persists and loads scored results from PostgreSQL.
type ResultRepo struct{ Pool PgxPool }

// NewResultRepo constructs a ResultRepo with the given pool.
func NewResultRepo(p PgxPool) *ResultRepo { return &ResultRepo{Pool: p} }

// Upsert inserts or replaces the result for a submission.
func (r *ResultRepo) Upsert(ctx domain.Context, res domain.StoredResult) error {
	ctx, span := otel.Tracer("repo.results").Start(ctx, "results.Upsert")
	defer span.End()
	raw, err := json.Marshal(res.Result)
	if err != nil {
		return fmt.Errorf("op=result.upsert: %w", err)
	}
	created := res.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	q := `INSERT INTO results (submission_id, calibration_version, result, created_at)
	VALUES ($1,$2,$3,$4)
	ON CONFLICT (submission_id)
	DO UPDATE SET calibration_version=EXCLUDED.calibration_version, result=EXCLUDED.result`
	if _, err := r.Pool.Exec(ctx, q, res.SubmissionID, res.CalibrationVersion, raw, created); err != nil {
		return fmt.Errorf("op=result.upsert: %w", err)
	}
	return nil
}

// GetBySubmissionID loads the result stored for a submission.
func (r *ResultRepo) GetBySubmissionID(ctx domain.Context, submissionID string) (domain.StoredResult, error) {
	ctx, span := otel.Tracer("repo.results").Start(ctx, "results.GetBySubmissionID")
	defer span.End()
	q := `SELECT submission_id, calibration_version, result, created_at FROM results WHERE submission_id=$1`
	var (
		res domain.StoredResult
		raw []byte
	)
	if err := r.Pool.QueryRow(ctx, q, submissionID).Scan(&res.SubmissionID, &res.CalibrationVersion, &raw, &res.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StoredResult{}, fmt.Errorf("op=result.get: %w", domain.ErrNotFound)
		}
		return domain.StoredResult{}, fmt.Errorf("op=result.get: %w", err)
	}
	if err := json.Unmarshal(raw, &res.Result); err != nil {
		return domain.StoredResult{}, fmt.Errorf("op=result.get: %w", err)
	}
	return res, nil
}
