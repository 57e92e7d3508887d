// Package usecase contains application business logic services.
package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	obsadapter "github.com/fairyhunter13/psychometric-engine/internal/adapter/observability"
	"github.com/fairyhunter13/psychometric-engine/internal/domain"
	"github.com/fairyhunter13/psychometric-engine/internal/observability"
	"github.com/fairyhunter13/psychometric-engine/internal/scoring"
)

// Scorer is the part of the scoring engine the services depend on.
type Scorer interface {
	ScoreWire(ctx domain.Context, assessmentType string, responses []domain.WireResponse) (scoring.Outcome, error)
	StartAssessment(seed *string, assessmentType string) ([]domain.Question, error)
	Calibration() *scoring.Calibration
}

// SubmitInput is one set of boundary responses for an assessment tier.
type SubmitInput struct {
	AssessmentType string
	Responses      []domain.WireResponse
}

// AssessmentService scores submissions synchronously or through the queue.
// Only Engine is required; nil ports switch the matching feature off.
type AssessmentService struct {
	Engine      Scorer
	Submissions domain.SubmissionRepository
	Results     domain.ResultRepository
	Cache       domain.ResultCache
	Queue       domain.Queue
	Events      domain.EventPublisher
	Drift       *obsadapter.TraitDriftMonitor
	now         func() time.Time
}

// NewAssessmentService constructs an AssessmentService with its dependencies.
func NewAssessmentService(engine Scorer, subs domain.SubmissionRepository, results domain.ResultRepository, cache domain.ResultCache, q domain.Queue, events domain.EventPublisher) AssessmentService {
	return AssessmentService{Engine: engine, Submissions: subs, Results: results, Cache: cache, Queue: q, Events: events}
}

// AsyncEnabled reports whether Enqueue can be served.
func (s AssessmentService) AsyncEnabled() bool {
	return s.Submissions != nil && s.Results != nil && s.Queue != nil
}

// Submit scores a submission and returns the result contract. Identical
// submissions against the same calibration are served from the cache.
// Persistence and event failures are logged and do not fail the call.
func (s AssessmentService) Submit(ctx domain.Context, in SubmitInput) (domain.AssessmentResult, error) {
	typ := assessmentType(in.AssessmentType)
	lg := observability.LoggerFromContext(ctx)

	key := CacheKey(typ, s.Engine.Calibration().Version(), in.Responses)
	if s.Cache != nil {
		res, ok, err := s.Cache.Get(ctx, key)
		switch {
		case err != nil:
			lg.Warn("result cache read failed", slog.Any("error", err))
		case ok:
			lg.Debug("result cache hit", slog.String("assessment_type", typ))
			return res, nil
		}
	}

	out, err := s.score(ctx, typ, in.Responses)
	if err != nil {
		return domain.AssessmentResult{}, fmt.Errorf("op=assessment.Submit: %w", err)
	}
	// The engine may have swapped calibrations between the lookup and scoring.
	key = CacheKey(typ, out.CalibrationVersion, in.Responses)
	s.cacheResult(ctx, key, out.Result)

	var id string
	if s.Submissions != nil && s.Results != nil {
		id = s.persist(ctx, typ, in.Responses, out)
	}
	s.publish(ctx, id, typ, out)
	return out.Result, nil
}

// Enqueue stores a queued submission and schedules it for scoring. A known
// idempotency key returns the earlier submission id.
func (s AssessmentService) Enqueue(ctx domain.Context, in SubmitInput, idemKey string) (string, error) {
	if !s.AsyncEnabled() {
		return "", fmt.Errorf("%w: async scoring is not configured", domain.ErrUnavailable)
	}
	if len(in.Responses) == 0 {
		return "", fmt.Errorf("%w: responses required", domain.ErrInvalidArgument)
	}
	typ := assessmentType(in.AssessmentType)
	if _, _, err := s.Engine.Calibration().TierItems(typ); err != nil {
		return "", err
	}
	if idemKey != "" {
		if sub, err := s.Submissions.FindByIdempotencyKey(ctx, idemKey); err == nil && sub.ID != "" {
			return sub.ID, nil
		}
	}
	now := s.clock()
	sub := domain.Submission{
		AssessmentType: typ,
		Responses:      in.Responses,
		Status:         domain.SubmissionQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if idemKey != "" {
		sub.IdemKey = &idemKey
	}
	id, err := s.Submissions.Create(ctx, sub)
	if err != nil {
		return "", fmt.Errorf("op=assessment.Enqueue: %w", err)
	}
	if _, err := s.Queue.EnqueueScoring(ctx, domain.ScoreTaskPayload{SubmissionID: id, AssessmentType: typ}); err != nil {
		_ = s.Submissions.UpdateStatus(ctx, id, domain.SubmissionFailed, ptr("enqueue failed"))
		return "", fmt.Errorf("op=assessment.Enqueue: %w", err)
	}
	return id, nil
}

// Process scores a queued submission. Terminal scoring errors mark the
// submission failed; other errors are returned for the caller to retry.
func (s AssessmentService) Process(ctx domain.Context, payload domain.ScoreTaskPayload) error {
	ctx = observability.WithAttrs(ctx, slog.String("submission_id", payload.SubmissionID))
	lg := observability.LoggerFromContext(ctx)

	sub, err := s.Submissions.Get(ctx, payload.SubmissionID)
	if err != nil {
		return fmt.Errorf("op=assessment.Process: %w", err)
	}
	if sub.Status == domain.SubmissionCompleted {
		lg.Info("submission already scored")
		return nil
	}
	if err := s.Submissions.UpdateStatus(ctx, sub.ID, domain.SubmissionProcessing, nil); err != nil {
		return fmt.Errorf("op=assessment.Process: %w", err)
	}

	out, err := s.score(ctx, sub.AssessmentType, sub.Responses)
	if err != nil {
		if !domain.IsRetryable(err) {
			msg := err.Error()
			_ = s.Submissions.UpdateStatus(ctx, sub.ID, domain.SubmissionFailed, &msg)
		}
		return fmt.Errorf("op=assessment.Process: %w", err)
	}
	if err := s.Results.Upsert(ctx, domain.StoredResult{
		SubmissionID:       sub.ID,
		CalibrationVersion: out.CalibrationVersion,
		Result:             out.Result,
		CreatedAt:          s.clock(),
	}); err != nil {
		return fmt.Errorf("op=assessment.Process: %w", err)
	}
	if err := s.Submissions.UpdateStatus(ctx, sub.ID, domain.SubmissionCompleted, nil); err != nil {
		return fmt.Errorf("op=assessment.Process: %w", err)
	}
	s.cacheResult(ctx, CacheKey(sub.AssessmentType, out.CalibrationVersion, sub.Responses), out.Result)
	s.publish(ctx, sub.ID, sub.AssessmentType, out)
	lg.Info("submission scored", slog.String("primary_type", out.Result.MBTI.PrimaryType))
	return nil
}

// Fail marks a submission failed after its retries are exhausted.
func (s AssessmentService) Fail(ctx domain.Context, id string, cause error) error {
	msg := "scoring failed"
	if cause != nil {
		msg = cause.Error()
	}
	return s.Submissions.UpdateStatus(ctx, id, domain.SubmissionFailed, &msg)
}

// Start returns the question list for a tier, shuffled when seed is set.
func (s AssessmentService) Start(_ domain.Context, seed *string, typ string) ([]domain.Question, error) {
	return s.Engine.StartAssessment(seed, assessmentType(typ))
}

func (s AssessmentService) score(ctx domain.Context, typ string, responses []domain.WireResponse) (scoring.Outcome, error) {
	start := time.Now()
	out, err := s.Engine.ScoreWire(ctx, typ, responses)
	obsadapter.ObserveScoring(typ, outcomeLabel(err), time.Since(start))
	if err != nil {
		return out, err
	}
	for _, d := range out.Dropped {
		obsadapter.RecordDroppedResponse(string(d.Kind))
	}
	scores := make(map[string]float64, len(out.Result.BigFive.Scores))
	for t, v := range out.Result.BigFive.Scores {
		scores[string(t)] = v
	}
	obsadapter.ObserveTraitScores(scores)
	if s.Drift != nil {
		s.Drift.Record(out.CalibrationVersion, scores)
	}
	return out, nil
}

func (s AssessmentService) cacheResult(ctx domain.Context, key string, res domain.AssessmentResult) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Set(ctx, key, res); err != nil {
		observability.LoggerFromContext(ctx).Warn("result cache write failed", slog.Any("error", err))
	}
}

func (s AssessmentService) persist(ctx domain.Context, typ string, responses []domain.WireResponse, out scoring.Outcome) string {
	lg := observability.LoggerFromContext(ctx)
	now := s.clock()
	id, err := s.Submissions.Create(ctx, domain.Submission{
		AssessmentType: typ,
		Responses:      responses,
		Status:         domain.SubmissionCompleted,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		lg.Error("persist submission failed", slog.Any("error", err))
		return ""
	}
	if err := s.Results.Upsert(ctx, domain.StoredResult{
		SubmissionID:       id,
		CalibrationVersion: out.CalibrationVersion,
		Result:             out.Result,
		CreatedAt:          now,
	}); err != nil {
		lg.Error("persist result failed", slog.String("submission_id", id), slog.Any("error", err))
	}
	return id
}

func (s AssessmentService) publish(ctx domain.Context, id, typ string, out scoring.Outcome) {
	if s.Events == nil {
		return
	}
	ev := domain.ScoredEvent{
		SubmissionID:       id,
		AssessmentType:     typ,
		CalibrationVersion: out.CalibrationVersion,
		PrimaryType:        out.Result.MBTI.PrimaryType,
		PrimaryCluster:     out.Result.PersonalityCluster.PrimaryCluster,
		Scores:             out.Result.BigFive.Scores,
		ScoredAt:           s.clock(),
	}
	if err := s.Events.PublishScored(ctx, ev); err != nil {
		observability.LoggerFromContext(ctx).Warn("publish scored event failed", slog.String("submission_id", id), slog.Any("error", err))
	}
}

func (s AssessmentService) clock() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

// CacheKey digests a submission: assessment type, calibration version and
// the deduplicated responses in question-id order. The last response for a
// question wins, matching normalization. Fields are JSON-encoded so that no
// question id can forge another set's key.
func CacheKey(assessmentType, calibrationVersion string, responses []domain.WireResponse) string {
	latest := make(map[string]int, len(responses))
	for _, r := range responses {
		latest[r.QuestionID] = r.Value
	}
	key := cacheKeyInput{
		Type:      assessmentType,
		Version:   calibrationVersion,
		Responses: make([]domain.WireResponse, 0, len(latest)),
	}
	for id, v := range latest {
		key.Responses = append(key.Responses, domain.WireResponse{QuestionID: id, Value: v})
	}
	sort.Slice(key.Responses, func(i, j int) bool {
		return key.Responses[i].QuestionID < key.Responses[j].QuestionID
	})
	raw, err := json.Marshal(key)
	if err != nil {
		// Strings and ints always marshal.
		panic(fmt.Sprintf("op=assessment.cache_key: %v", err))
	}
	return hash(string(raw))
}

type cacheKeyInput struct {
	Type      string                `json:"t"`
	Version   string                `json:"v"`
	Responses []domain.WireResponse `json:"r"`
}

func assessmentType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "" {
		return scoring.DefaultAssessmentType
	}
	return t
}

func outcomeLabel(err error) string {
	var ide *domain.InsufficientDataError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ide):
		return "insufficient_data"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid"
	default:
		return "error"
	}
}

func hash(s string) string { h := sha256.Sum256([]byte(s)); return hex.EncodeToString(h[:]) }

func ptr(s string) *string { return &s }
