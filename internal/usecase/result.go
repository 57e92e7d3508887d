package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
	"github.com/fairyhunter13/psychometric-engine/internal/observability"
)

// staleAfter bounds how long a submission may sit queued or processing
// before Fetch reports it failed.
const staleAfter = 2 * time.Minute

// ResultService provides read access to queued submissions and assembles
// the API response envelope including ETag logic and error mapping.
type ResultService struct {
	Submissions domain.SubmissionRepository
	Results     domain.ResultRepository
	now         func() time.Time
}

// NewResultService constructs a ResultService with the given repositories.
func NewResultService(s domain.SubmissionRepository, r domain.ResultRepository) ResultService {
	return ResultService{Submissions: s, Results: r}
}

// Fetch returns the HTTP status code, response body, and ETag for the given
// submission id. A matching If-None-Match yields 304 with no body.
func (s ResultService) Fetch(ctx domain.Context, id, ifNoneMatch string) (int, map[string]any, string, error) {
	lg := observability.LoggerFromContext(ctx).With(slog.String("submission_id", id))
	sub, err := s.Submissions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return http.StatusNotFound, nil, "", fmt.Errorf("%w: submission not found", domain.ErrNotFound)
		}
		lg.Error("failed to get submission", slog.Any("error", err))
		return http.StatusInternalServerError, nil, "", err
	}

	if sub.Status != domain.SubmissionCompleted {
		now := s.clock()
		stale := (sub.Status == domain.SubmissionQueued && now.Sub(sub.CreatedAt) > staleAfter) ||
			(sub.Status == domain.SubmissionProcessing && now.Sub(sub.UpdatedAt) > staleAfter)
		if stale {
			msg := "timeout: submission exceeded 2 minutes"
			lg.Warn("submission marked as stale", slog.String("status", string(sub.Status)), slog.Duration("age", now.Sub(sub.CreatedAt)))
			_ = s.Submissions.UpdateStatus(ctx, id, domain.SubmissionFailed, &msg)
			sub.Status = domain.SubmissionFailed
			sub.Error = msg
		}
		m := map[string]any{"id": id, "status": string(sub.Status)}
		if sub.Status == domain.SubmissionFailed {
			m["error"] = map[string]any{
				"code":    ErrorCodeFromMessage(sub.Error),
				"message": sub.Error,
			}
		}
		return conditional(m, ifNoneMatch)
	}

	res, err := s.Results.GetBySubmissionID(ctx, id)
	if err != nil {
		lg.Error("failed to get result", slog.Any("error", err))
		return http.StatusInternalServerError, nil, "", err
	}
	m := map[string]any{
		"id":                  id,
		"status":              string(domain.SubmissionCompleted),
		"calibration_version": res.CalibrationVersion,
		"result":              res.Result,
	}
	return conditional(m, ifNoneMatch)
}

func (s ResultService) clock() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func conditional(m map[string]any, ifNoneMatch string) (int, map[string]any, string, error) {
	etag := makeETag(m)
	if ifNoneMatch != "" && strings.Trim(ifNoneMatch, `"`) == etag {
		return http.StatusNotModified, nil, etag, nil
	}
	return http.StatusOK, m, etag, nil
}

func makeETag(v any) string {
	b, _ := json.Marshal(v)
	return hash(string(b))
}

// ErrorCodeFromMessage maps a stored submission error to a stable error code.
func ErrorCodeFromMessage(msg string) string {
	s := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case strings.Contains(s, "insufficient data"):
		return "INSUFFICIENT_DATA"
	case strings.Contains(s, "calibration"):
		return "CALIBRATION_INVALID"
	case strings.Contains(s, "invalid argument"):
		return "INVALID_ARGUMENT"
	case strings.Contains(s, "timeout"), strings.Contains(s, "deadline exceeded"):
		return "TIMEOUT"
	case strings.Contains(s, "not found"):
		return "NOT_FOUND"
	default:
		return "INTERNAL"
	}
}
