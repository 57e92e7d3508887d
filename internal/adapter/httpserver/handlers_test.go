package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/psychometric-engine/internal/adapter/httpserver"
	"github.com/fairyhunter13/psychometric-engine/internal/domain"
	"github.com/fairyhunter13/psychometric-engine/internal/domain/mocks"
	"github.com/fairyhunter13/psychometric-engine/internal/usecase"
)

func TestSubmitAssessment_Success(t *testing.T) {
	t.Parallel()
	srv, engine := newSyncServer(t)
	h := mount(srv)

	rec := doJSON(t, h, http.MethodPost, "/api/submit-assessment", map[string]any{
		"responses":        midpointWire(engine.Calibration()),
		"assessment_types": []string{"core"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var res domain.AssessmentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Len(t, res.MBTI.PrimaryType, 4)
	assert.Len(t, res.CognitiveFunctions.PrimaryStack, 4)
	assert.Len(t, res.BigFive.Scores, 5)
}

func TestSubmitAssessment_InsufficientData(t *testing.T) {
	t.Parallel()
	srv, engine := newSyncServer(t)
	all := midpointWire(engine.Calibration())

	var primary []domain.WireResponse
	for _, w := range all {
		if len(primary) == 50 {
			break
		}
		if it, ok := engine.Calibration().Item(w.QuestionID); ok && it.Layer == domain.LayerPrimary {
			primary = append(primary, w)
		}
	}
	rec := doJSON(t, mount(srv), http.MethodPost, "/api/submit-assessment", map[string]any{"responses": primary})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	env := decodeError(t, rec)
	assert.Equal(t, "INSUFFICIENT_DATA", env.Error.Code)
	assert.EqualValues(t, 50, env.Error.Details["actual"])
	assert.EqualValues(t, 160, env.Error.Details["required"])
}

func TestSubmitAssessment_BadRequests(t *testing.T) {
	t.Parallel()
	srv, _ := newSyncServer(t)
	h := mount(srv)

	cases := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"invalid json", "{nope", http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"no responses", map[string]any{"responses": []any{}}, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"unknown tier", map[string]any{"responses": []map[string]any{{"questionId": "Q1", "value": 3}}, "assessment_type": "premium"}, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"too large", `{"responses":"` + strings.Repeat("x", 1<<20) + `"}`, http.StatusRequestEntityTooLarge, "INVALID_ARGUMENT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/submit-assessment", tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, decodeError(t, rec).Error.Code)
		})
	}

	rec := doJSON(t, h, http.MethodPost, "/api/submit-assessment", map[string]any{}, "Accept", "text/html")
	assert.Equal(t, http.StatusNotAcceptable, rec.Code)
}

func TestStartAssessment_SeededOrderIsStable(t *testing.T) {
	t.Parallel()
	srv, _ := newSyncServer(t)
	h := mount(srv)

	type startResp struct {
		Questions []domain.Question `json:"questions"`
		Count     int               `json:"count"`
	}
	get := func(body map[string]any) startResp {
		rec := doJSON(t, h, http.MethodPost, "/api/start-assessment", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out startResp
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return out
	}

	a := get(map[string]any{"user_seed": "alice", "assessment_type": "core"})
	b := get(map[string]any{"user_seed": "alice", "assessment_type": "core"})
	plain := get(map[string]any{"assessment_type": "core"})
	assert.Equal(t, a.Questions, b.Questions)
	assert.Equal(t, len(plain.Questions), a.Count)
	assert.NotEqual(t, plain.Questions, a.Questions)

	rec := doJSON(t, h, http.MethodPost, "/api/start-assessment", map[string]any{"assessment_type": "premium"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnqueueAssessment(t *testing.T) {
	t.Parallel()
	engine := newEngine(t)
	responses := midpointWire(engine.Calibration())

	t.Run("async not configured", func(t *testing.T) {
		srv, _ := newSyncServer(t)
		rec := doJSON(t, mount(srv), http.MethodPost, "/v1/assessments", map[string]any{"responses": responses})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "UNAVAILABLE", decodeError(t, rec).Error.Code)
	})

	t.Run("accepted with idempotency key", func(t *testing.T) {
		subs := mocks.NewMockSubmissionRepository(t)
		q := mocks.NewMockQueue(t)
		subs.On("FindByIdempotencyKey", mock.Anything, "k-1").Return(domain.Submission{}, domain.ErrNotFound)
		subs.On("Create", mock.Anything, mock.Anything).Return("sub-1", nil)
		q.On("EnqueueScoring", mock.Anything, domain.ScoreTaskPayload{SubmissionID: "sub-1", AssessmentType: "core"}).Return("sub-1", nil)

		assess := usecase.NewAssessmentService(engine, subs, mocks.NewMockResultRepository(t), nil, q, nil)
		srv := httpserver.NewServer(testConfig(), assess, nil, nil)
		rec := doJSON(t, mount(srv), http.MethodPost, "/v1/assessments", map[string]any{"responses": responses}, "Idempotency-Key", "k-1")
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		assert.Equal(t, "/v1/assessments/sub-1", rec.Header().Get("Location"))
		assert.JSONEq(t, `{"id":"sub-1","status":"queued"}`, rec.Body.String())
	})
}

func TestAssessmentResult(t *testing.T) {
	t.Parallel()
	subs := mocks.NewMockSubmissionRepository(t)
	results := mocks.NewMockResultRepository(t)
	subs.On("Get", mock.Anything, "sub-1").Return(domain.Submission{ID: "sub-1", Status: domain.SubmissionCompleted, CreatedAt: time.Now()}, nil)
	subs.On("Get", mock.Anything, "missing").Return(domain.Submission{}, domain.ErrNotFound)
	results.On("GetBySubmissionID", mock.Anything, "sub-1").Return(domain.StoredResult{
		SubmissionID:       "sub-1",
		CalibrationVersion: "v1",
		Result:             domain.AssessmentResult{MBTI: domain.MBTIResult{PrimaryType: "ISFP"}},
	}, nil)

	srv := httpserver.NewServer(testConfig(), nil, usecase.NewResultService(subs, results), nil)
	h := mount(srv)

	rec := doJSON(t, h, http.MethodGet, "/v1/assessments/sub-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Contains(t, rec.Body.String(), `"ISFP"`)

	rec = doJSON(t, h, http.MethodGet, "/v1/assessments/sub-1", nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/v1/assessments/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/assessments/bad$id", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()
	ok := httpserver.ReadinessCheck{Name: "db", Probe: func(context.Context) error { return nil }}
	down := httpserver.ReadinessCheck{Name: "redis", Probe: func(context.Context) error { return errors.New("connection refused") }}

	h := mount(httpserver.NewServer(testConfig(), nil, nil, nil, ok))
	assert.Equal(t, http.StatusOK, doJSON(t, h, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(t, h, http.MethodGet, "/readyz", nil).Code)

	h = mount(httpserver.NewServer(testConfig(), nil, nil, nil, ok, down))
	rec := doJSON(t, h, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"checks":[{"name":"db","ok":true},{"name":"redis","ok":false,"details":"connection refused"}]}`, rec.Body.String())
}

func TestSubmitAssessment_InternalErrorsAreMasked(t *testing.T) {
	t.Parallel()
	srv := httpserver.NewServer(testConfig(), failingAssessments{}, nil, nil)
	rec := doJSON(t, mount(srv), http.MethodPost, "/api/submit-assessment", map[string]any{"responses": []map[string]any{{"questionId": "Q1", "value": 2}}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, "INTERNAL", env.Error.Code)
	assert.NotContains(t, env.Error.Message, "secret")
}

type failingAssessments struct{}

func (failingAssessments) Submit(domain.Context, usecase.SubmitInput) (domain.AssessmentResult, error) {
	return domain.AssessmentResult{}, errors.New("secret dsn leaked")
}

func (failingAssessments) Enqueue(domain.Context, usecase.SubmitInput, string) (string, error) {
	return "", errors.New("secret")
}

func (failingAssessments) Start(domain.Context, *string, string) ([]domain.Question, error) {
	return nil, errors.New("secret")
}
