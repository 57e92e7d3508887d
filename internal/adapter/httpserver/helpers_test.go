package httpserver_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/psychometric-engine/internal/adapter/httpserver"
	"github.com/fairyhunter13/psychometric-engine/internal/config"
	"github.com/fairyhunter13/psychometric-engine/internal/domain"
	"github.com/fairyhunter13/psychometric-engine/internal/scoring"
	"github.com/fairyhunter13/psychometric-engine/internal/usecase"
)

func newEngine(t *testing.T) *scoring.Engine {
	t.Helper()
	e, err := scoring.NewEngine(scoring.ReferenceCalibration())
	require.NoError(t, err)
	return e
}

// midpointWire answers every item of the calibration at the scale midpoint.
func midpointWire(cal *scoring.Calibration) []domain.WireResponse {
	out := make([]domain.WireResponse, 0, len(cal.Items))
	for _, it := range cal.Items {
		v := (it.ResponseType.Categories() + 1) / 2
		if it.ResponseType == domain.ForcedChoice {
			v = 1
		}
		out = append(out, domain.WireResponse{QuestionID: it.ID, Value: v})
	}
	return out
}

func testConfig() config.Config {
	return config.Config{AppEnv: "test", MaxUploadKB: 2048, RateLimitPerMin: 1000}
}

// mount wires the handlers the way the application router does, without
// the ambient middleware stack.
func mount(srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.RequestID())
	r.Post("/api/submit-assessment", srv.SubmitAssessmentHandler())
	r.Post("/api/start-assessment", srv.StartAssessmentHandler())
	r.Post("/v1/assessments", srv.EnqueueAssessmentHandler())
	r.Get("/v1/assessments/{id}", srv.AssessmentResultHandler())
	r.Get("/healthz", srv.HealthzHandler())
	r.Get("/readyz", srv.ReadyzHandler())
	r.Get("/admin/calibration", srv.CalibrationInfoHandler())
	r.Put("/admin/calibration", srv.ReplaceCalibrationHandler())
	return r
}

func newSyncServer(t *testing.T) (*httpserver.Server, *scoring.Engine) {
	t.Helper()
	engine := newEngine(t)
	assess := usecase.NewAssessmentService(engine, nil, nil, nil, nil, nil)
	cal := usecase.NewCalibrationService(engine, scoring.Overrides{})
	return httpserver.NewServer(testConfig(), assess, usecase.NewResultService(nil, nil), cal), engine
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}
