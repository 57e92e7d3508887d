package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	resultcache "github.com/fairyhunter13/psychometric-engine/internal/adapter/cache"
	obsadapter "github.com/fairyhunter13/psychometric-engine/internal/adapter/observability"
	"github.com/fairyhunter13/psychometric-engine/internal/domain"
	"github.com/fairyhunter13/psychometric-engine/internal/domain/mocks"
	"github.com/fairyhunter13/psychometric-engine/internal/scoring"
	"github.com/fairyhunter13/psychometric-engine/internal/usecase"
)

func TestSubmit_ScoresAndPersists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine := newEngine(t)
	subs := mocks.NewMockSubmissionRepository(t)
	results := mocks.NewMockResultRepository(t)
	cache := mocks.NewMockResultCache(t)
	events := mocks.NewMockEventPublisher(t)

	cache.On("Get", mock.Anything, mock.AnythingOfType("string")).Return(domain.AssessmentResult{}, false, nil)
	cache.On("Set", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(nil)
	subs.On("Create", mock.Anything, mock.MatchedBy(func(s domain.Submission) bool {
		return s.Status == domain.SubmissionCompleted && s.AssessmentType == "core" && len(s.Responses) == 200
	})).Return("sub-1", nil)
	results.On("Upsert", mock.Anything, mock.MatchedBy(func(r domain.StoredResult) bool {
		return r.SubmissionID == "sub-1" && r.CalibrationVersion == engine.Calibration().Version()
	})).Return(nil)
	events.On("PublishScored", mock.Anything, mock.MatchedBy(func(ev domain.ScoredEvent) bool {
		return ev.SubmissionID == "sub-1" && len(ev.PrimaryType) == 4 && len(ev.Scores) == 5
	})).Return(nil)

	svc := usecase.NewAssessmentService(engine, subs, results, cache, nil, events)
	svc.Drift = obsadapter.NewTraitDriftMonitor(10, 15)
	res, err := svc.Submit(ctx, usecase.SubmitInput{Responses: midpointWire(engine.Calibration())})
	require.NoError(t, err)
	assert.Len(t, res.BigFive.Scores, 5)
	assert.InDelta(t, 50, res.BigFive.Scores[domain.Openness], 1)
	require.NotNil(t, res.Meta)
	assert.Equal(t, "core", res.Meta.AssessmentType)
}

func TestSubmit_CacheHitSkipsScoring(t *testing.T) {
	t.Parallel()
	engine := newEngine(t)
	cache := mocks.NewMockResultCache(t)
	cached := domain.AssessmentResult{Interpretation: "from cache"}
	cache.On("Get", mock.Anything, mock.AnythingOfType("string")).Return(cached, true, nil)

	svc := usecase.NewAssessmentService(engine, nil, nil, cache, nil, nil)
	res, err := svc.Submit(context.Background(), usecase.SubmitInput{AssessmentType: "core", Responses: midpointWire(engine.Calibration())})
	require.NoError(t, err)
	assert.Equal(t, "from cache", res.Interpretation)
}

func TestSubmit_CacheAndPublishFailuresAreNotFatal(t *testing.T) {
	t.Parallel()
	engine := newEngine(t)
	cache := mocks.NewMockResultCache(t)
	events := mocks.NewMockEventPublisher(t)
	cache.On("Get", mock.Anything, mock.Anything).Return(domain.AssessmentResult{}, false, errors.New("redis down"))
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))
	events.On("PublishScored", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	svc := usecase.NewAssessmentService(engine, nil, nil, cache, nil, events)
	_, err := svc.Submit(context.Background(), usecase.SubmitInput{Responses: midpointWire(engine.Calibration())})
	require.NoError(t, err)
}

func TestSubmit_InsufficientData(t *testing.T) {
	t.Parallel()
	engine := newEngine(t)
	svc := usecase.NewAssessmentService(engine, nil, nil, nil, nil, nil)

	_, err := svc.Submit(context.Background(), usecase.SubmitInput{Responses: midpointWire(engine.Calibration())[:50]})
	var ide *domain.InsufficientDataError
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, 50, ide.Actual)
	assert.Equal(t, 160, ide.Required)
	assert.Contains(t, err.Error(), "op=assessment.Submit")
}

func TestSubmit_PersistFailureIsLogged(t *testing.T) {
	t.Parallel()
	engine := newEngine(t)
	subs := mocks.NewMockSubmissionRepository(t)
	results := mocks.NewMockResultRepository(t)
	subs.On("Create", mock.Anything, mock.Anything).Return("", errors.New("db down"))

	svc := usecase.NewAssessmentService(engine, subs, results, nil, nil, nil)
	_, err := svc.Submit(context.Background(), usecase.SubmitInput{Responses: midpointWire(engine.Calibration())})
	require.NoError(t, err)
	results.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestCacheKey(t *testing.T) {
	a := []domain.WireResponse{{QuestionID: "Q2", Value: 3}, {QuestionID: "Q1", Value: 1}, {QuestionID: "Q1", Value: 4}}
	b := []domain.WireResponse{{QuestionID: "Q1", Value: 4}, {QuestionID: "Q2", Value: 3}}

	assert.Equal(t, usecase.CacheKey("core", "v1", a), usecase.CacheKey("core", "v1", b))
	assert.NotEqual(t, usecase.CacheKey("core", "v1", a), usecase.CacheKey("core", "v2", a))
	assert.NotEqual(t, usecase.CacheKey("core", "v1", a), usecase.CacheKey("discovery", "v1", a))
	assert.Len(t, usecase.CacheKey("core", "v1", nil), 64)
}

// forgedPair returns a response set with two Likert items answered at the
// extremes, and a second set where both are replaced by one unknown id whose
// text spells out the first pair.
func forgedPair(t *testing.T, cal *scoring.Calibration) (genuine, forged []domain.WireResponse) {
	t.Helper()
	base := midpointWire(cal)
	var idx []int
	for i, r := range base {
		if it, ok := cal.Item(r.QuestionID); ok && it.ResponseType.IsLikert() {
			idx = append(idx, i)
		}
		if len(idx) == 2 {
			break
		}
	}
	require.Len(t, idx, 2)
	first, second := base[idx[0]].QuestionID, base[idx[1]].QuestionID

	genuine = append([]domain.WireResponse(nil), base...)
	genuine[idx[0]].Value = 5
	genuine[idx[1]].Value = 4

	for i, r := range base {
		if i == idx[0] || i == idx[1] {
			continue
		}
		forged = append(forged, r)
	}
	forged = append(forged, domain.WireResponse{QuestionID: first + "=5|" + second, Value: 4})
	return genuine, forged
}

func TestCacheKey_QuestionIDCannotForgeAnotherSet(t *testing.T) {
	engine := newEngine(t)
	genuine, forged := forgedPair(t, engine.Calibration())
	v := engine.Calibration().Version()

	assert.NotEqual(t, usecase.CacheKey("core", v, genuine), usecase.CacheKey("core", v, forged))
	assert.NotEqual(t,
		usecase.CacheKey("core", v, []domain.WireResponse{{QuestionID: "Q1", Value: 12}}),
		usecase.CacheKey("core", v, []domain.WireResponse{{QuestionID: "Q1", Value: 1}, {QuestionID: "2", Value: 0}}))
	assert.NotEqual(t, usecase.CacheKey("core|v1", "", nil), usecase.CacheKey("core", "v1", nil))
}

func TestSubmit_SharedCacheServesEachSetItsOwnResult(t *testing.T) {
	engine := newEngine(t)
	genuine, forged := forgedPair(t, engine.Calibration())

	want, err := usecase.NewAssessmentService(engine, nil, nil, nil, nil, nil).
		Submit(context.Background(), usecase.SubmitInput{AssessmentType: "core", Responses: genuine})
	require.NoError(t, err)

	svc := usecase.NewAssessmentService(engine, nil, nil, resultcache.NewLRUCache(16, time.Minute), nil, nil)
	_, err = svc.Submit(context.Background(), usecase.SubmitInput{AssessmentType: "core", Responses: forged})
	require.NoError(t, err)
	got, err := svc.Submit(context.Background(), usecase.SubmitInput{AssessmentType: "core", Responses: genuine})
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestEnqueue(t *testing.T) {
	t.Parallel()
	engine := newEngine(t)
	responses := midpointWire(engine.Calibration())

	t.Run("success", func(t *testing.T) {
		subs := mocks.NewMockSubmissionRepository(t)
		q := mocks.NewMockQueue(t)
		subs.On("FindByIdempotencyKey", mock.Anything, "idem-1").Return(domain.Submission{}, domain.ErrNotFound)
		subs.On("Create", mock.Anything, mock.MatchedBy(func(s domain.Submission) bool {
			return s.Status == domain.SubmissionQueued && s.IdemKey != nil && *s.IdemKey == "idem-1"
		})).Return("sub-9", nil)
		q.On("EnqueueScoring", mock.Anything, domain.ScoreTaskPayload{SubmissionID: "sub-9", AssessmentType: "discovery"}).Return("t-1", nil)

		svc := usecase.NewAssessmentService(engine, subs, mocks.NewMockResultRepository(t), nil, q, nil)
		id, err := svc.Enqueue(context.Background(), usecase.SubmitInput{AssessmentType: "Discovery", Responses: responses}, "idem-1")
		require.NoError(t, err)
		assert.Equal(t, "sub-9", id)
	})

	t.Run("idempotent", func(t *testing.T) {
		subs := mocks.NewMockSubmissionRepository(t)
		subs.On("FindByIdempotencyKey", mock.Anything, "idem-2").Return(domain.Submission{ID: "sub-old"}, nil)
		svc := usecase.NewAssessmentService(engine, subs, mocks.NewMockResultRepository(t), nil, mocks.NewMockQueue(t), nil)
		id, err := svc.Enqueue(context.Background(), usecase.SubmitInput{Responses: responses}, "idem-2")
		require.NoError(t, err)
		assert.Equal(t, "sub-old", id)
	})

	t.Run("queue failure marks failed", func(t *testing.T) {
		subs := mocks.NewMockSubmissionRepository(t)
		q := mocks.NewMockQueue(t)
		subs.On("Create", mock.Anything, mock.Anything).Return("sub-3", nil)
		q.On("EnqueueScoring", mock.Anything, mock.Anything).Return("", errors.New("queue down"))
		subs.On("UpdateStatus", mock.Anything, "sub-3", domain.SubmissionFailed, mock.AnythingOfType("*string")).Return(nil)
		svc := usecase.NewAssessmentService(engine, subs, mocks.NewMockResultRepository(t), nil, q, nil)
		_, err := svc.Enqueue(context.Background(), usecase.SubmitInput{Responses: responses}, "")
		require.Error(t, err)
	})

	t.Run("validation", func(t *testing.T) {
		svc := usecase.NewAssessmentService(engine, mocks.NewMockSubmissionRepository(t), mocks.NewMockResultRepository(t), nil, mocks.NewMockQueue(t), nil)
		_, err := svc.Enqueue(context.Background(), usecase.SubmitInput{}, "")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		_, err = svc.Enqueue(context.Background(), usecase.SubmitInput{AssessmentType: "premium", Responses: responses}, "")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("not configured", func(t *testing.T) {
		svc := usecase.NewAssessmentService(engine, nil, nil, nil, nil, nil)
		_, err := svc.Enqueue(context.Background(), usecase.SubmitInput{Responses: responses}, "")
		assert.ErrorIs(t, err, domain.ErrUnavailable)
	})
}

func TestProcess(t *testing.T) {
	t.Parallel()
	engine := newEngine(t)
	responses := midpointWire(engine.Calibration())

	t.Run("scores queued submission", func(t *testing.T) {
		subs := mocks.NewMockSubmissionRepository(t)
		results := mocks.NewMockResultRepository(t)
		subs.On("Get", mock.Anything, "sub-1").Return(domain.Submission{ID: "sub-1", AssessmentType: "core", Responses: responses, Status: domain.SubmissionQueued}, nil)
		subs.On("UpdateStatus", mock.Anything, "sub-1", domain.SubmissionProcessing, (*string)(nil)).Return(nil).Once()
		results.On("Upsert", mock.Anything, mock.MatchedBy(func(r domain.StoredResult) bool { return r.SubmissionID == "sub-1" })).Return(nil)
		subs.On("UpdateStatus", mock.Anything, "sub-1", domain.SubmissionCompleted, (*string)(nil)).Return(nil).Once()

		svc := usecase.NewAssessmentService(engine, subs, results, nil, mocks.NewMockQueue(t), nil)
		require.NoError(t, svc.Process(context.Background(), domain.ScoreTaskPayload{SubmissionID: "sub-1"}))
	})

	t.Run("already completed", func(t *testing.T) {
		subs := mocks.NewMockSubmissionRepository(t)
		subs.On("Get", mock.Anything, "sub-2").Return(domain.Submission{ID: "sub-2", Status: domain.SubmissionCompleted}, nil)
		svc := usecase.NewAssessmentService(engine, subs, mocks.NewMockResultRepository(t), nil, nil, nil)
		require.NoError(t, svc.Process(context.Background(), domain.ScoreTaskPayload{SubmissionID: "sub-2"}))
	})

	t.Run("insufficient data is terminal", func(t *testing.T) {
		subs := mocks.NewMockSubmissionRepository(t)
		subs.On("Get", mock.Anything, "sub-3").Return(domain.Submission{ID: "sub-3", AssessmentType: "core", Responses: responses[:10], Status: domain.SubmissionQueued}, nil)
		subs.On("UpdateStatus", mock.Anything, "sub-3", domain.SubmissionProcessing, (*string)(nil)).Return(nil)
		subs.On("UpdateStatus", mock.Anything, "sub-3", domain.SubmissionFailed, mock.MatchedBy(func(msg *string) bool {
			return msg != nil && usecase.ErrorCodeFromMessage(*msg) == "INSUFFICIENT_DATA"
		})).Return(nil)

		svc := usecase.NewAssessmentService(engine, subs, mocks.NewMockResultRepository(t), nil, nil, nil)
		err := svc.Process(context.Background(), domain.ScoreTaskPayload{SubmissionID: "sub-3"})
		require.ErrorIs(t, err, domain.ErrInsufficientData)
		assert.False(t, domain.IsRetryable(err))
	})

	t.Run("storage error is retryable", func(t *testing.T) {
		subs := mocks.NewMockSubmissionRepository(t)
		results := mocks.NewMockResultRepository(t)
		subs.On("Get", mock.Anything, "sub-4").Return(domain.Submission{ID: "sub-4", AssessmentType: "core", Responses: responses, Status: domain.SubmissionProcessing}, nil)
		subs.On("UpdateStatus", mock.Anything, "sub-4", domain.SubmissionProcessing, (*string)(nil)).Return(nil)
		results.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

		svc := usecase.NewAssessmentService(engine, subs, results, nil, nil, nil)
		err := svc.Process(context.Background(), domain.ScoreTaskPayload{SubmissionID: "sub-4"})
		require.Error(t, err)
		assert.True(t, domain.IsRetryable(err))
	})
}

func TestStart(t *testing.T) {
	t.Parallel()
	svc := usecase.NewAssessmentService(newEngine(t), nil, nil, nil, nil, nil)
	qs, err := svc.Start(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Len(t, qs, 200)

	seed := "abc"
	a, err := svc.Start(context.Background(), &seed, "discovery")
	require.NoError(t, err)
	b, err := svc.Start(context.Background(), &seed, "discovery")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 76)
}

func TestFail(t *testing.T) {
	subs := mocks.NewMockSubmissionRepository(t)
	subs.On("UpdateStatus", mock.Anything, "sub-5", domain.SubmissionFailed, mock.MatchedBy(func(m *string) bool { return *m == "boom" })).Return(nil)
	svc := usecase.NewAssessmentService(newEngine(t), subs, nil, nil, nil, nil)
	require.NoError(t, svc.Fail(context.Background(), "sub-5", errors.New("boom")))
}

var _ usecase.Scorer = (*scoring.Engine)(nil)
