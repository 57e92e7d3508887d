package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
)

// SubmissionRepo persists submissions with their raw wire responses as JSONB.
type SubmissionRepo struct{ Pool PgxPool }

// NewSubmissionRepo constructs a SubmissionRepo with the given pool.
func NewSubmissionRepo(p PgxPool) *SubmissionRepo { return &SubmissionRepo{Pool: p} }

const submissionColumns = `id, assessment_type, responses, status, error, idempotency_key, created_at, updated_at`

// Create inserts a submission and returns its id, generating one when empty.
func (r *SubmissionRepo) Create(ctx domain.Context, s domain.Submission) (string, error) {
	ctx, span := otel.Tracer("repo.submissions").Start(ctx, "submissions.Create")
	defer span.End()
	id := s.ID
	if id == "" {
		id = uuid.New().String()
	}
	if s.Status == "" {
		s.Status = domain.SubmissionQueued
	}
	raw, err := json.Marshal(s.Responses)
	if err != nil {
		return "", fmt.Errorf("op=submission.create: %w", err)
	}
	now := time.Now().UTC()
	q := `INSERT INTO submissions (` + submissionColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	if _, err := r.Pool.Exec(ctx, q, id, s.AssessmentType, raw, string(s.Status), s.Error, s.IdemKey, now, now); err != nil {
		return "", fmt.Errorf("op=submission.create: %w", err)
	}
	return id, nil
}

// UpdateStatus sets a submission's status and error message.
func (r *SubmissionRepo) UpdateStatus(ctx domain.Context, id string, status domain.SubmissionStatus, errMsg *string) error {
	ctx, span := otel.Tracer("repo.submissions").Start(ctx, "submissions.UpdateStatus")
	defer span.End()
	errVal := ""
	if errMsg != nil {
		errVal = *errMsg
	}
	tag, err := r.Pool.Exec(ctx, `UPDATE submissions SET status=$2, error=$3, updated_at=$4 WHERE id=$1`, id, string(status), errVal, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=submission.update_status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=submission.update_status: %w", domain.ErrNotFound)
	}
	return nil
}

// Get loads a submission by id.
func (r *SubmissionRepo) Get(ctx domain.Context, id string) (domain.Submission, error) {
	ctx, span := otel.Tracer("repo.submissions").Start(ctx, "submissions.Get")
	defer span.End()
	row := r.Pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id=$1`, id)
	s, err := scanSubmission(row)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("op=submission.get: %w", err)
	}
	return s, nil
}

// FindByIdempotencyKey loads the submission created with the given key.
func (r *SubmissionRepo) FindByIdempotencyKey(ctx domain.Context, key string) (domain.Submission, error) {
	ctx, span := otel.Tracer("repo.submissions").Start(ctx, "submissions.FindByIdempotencyKey")
	defer span.End()
	row := r.Pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE idempotency_key=$1 LIMIT 1`, key)
	s, err := scanSubmission(row)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("op=submission.find_idem: %w", err)
	}
	return s, nil
}

// FailStale marks queued or processing submissions untouched since before
// olderThan as failed and returns how many were updated.
func (r *SubmissionRepo) FailStale(ctx domain.Context, olderThan time.Time, msg string) (int64, error) {
	ctx, span := otel.Tracer("repo.submissions").Start(ctx, "submissions.FailStale")
	defer span.End()
	q := `UPDATE submissions SET status=$1, error=$2, updated_at=$3 WHERE status IN ($4,$5) AND updated_at < $6`
	tag, err := r.Pool.Exec(ctx, q, string(domain.SubmissionFailed), msg, time.Now().UTC(),
		string(domain.SubmissionQueued), string(domain.SubmissionProcessing), olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("op=submission.fail_stale: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanSubmission(row pgx.Row) (domain.Submission, error) {
	var (
		s      domain.Submission
		raw    []byte
		status string
	)
	if err := row.Scan(&s.ID, &s.AssessmentType, &raw, &status, &s.Error, &s.IdemKey, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Submission{}, domain.ErrNotFound
		}
		return domain.Submission{}, err
	}
	s.Status = domain.SubmissionStatus(status)
	if err := json.Unmarshal(raw, &s.Responses); err != nil {
		return domain.Submission{}, fmt.Errorf("decode responses: %w", err)
	}
	return s, nil
}
