package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/psychometric-engine/internal/config"
	"github.com/fairyhunter13/psychometric-engine/internal/domain"
	"github.com/fairyhunter13/psychometric-engine/internal/usecase"
)

// AssessmentAPI is the assessment use case surface used by the handlers.
type AssessmentAPI interface {
	Submit(ctx domain.Context, in usecase.SubmitInput) (domain.AssessmentResult, error)
	Enqueue(ctx domain.Context, in usecase.SubmitInput, idemKey string) (string, error)
	Start(ctx domain.Context, seed *string, assessmentType string) ([]domain.Question, error)
}

// ResultAPI fetches async submission status.
type ResultAPI interface {
	Fetch(ctx domain.Context, id, ifNoneMatch string) (int, map[string]any, string, error)
}

// CalibrationAPI reads and replaces the active calibration.
type CalibrationAPI interface {
	Current() usecase.CalibrationInfo
	Export() ([]byte, error)
	Replace(ctx domain.Context, raw []byte) (usecase.CalibrationInfo, error)
}

// ReadinessCheck is one dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg         config.Config
	Assessments AssessmentAPI
	Results     ResultAPI
	Calibration CalibrationAPI
	Checks      []ReadinessCheck
}

// NewServer constructs a Server.
func NewServer(cfg config.Config, assessments AssessmentAPI, results ResultAPI, cal CalibrationAPI, checks ...ReadinessCheck) *Server {
	return &Server{Cfg: cfg, Assessments: assessments, Results: results, Calibration: cal, Checks: checks}
}

const maxJSONBody = 1 << 20

type submitRequest struct {
	Responses       []domain.WireResponse `json:"responses" validate:"required,min=1,max=1000"`
	AssessmentTypes []string              `json:"assessment_types" validate:"max=8,dive,max=32"`
	AssessmentType  string                `json:"assessment_type" validate:"max=32"`
}

func (r submitRequest) input() usecase.SubmitInput {
	typ := r.AssessmentType
	if typ == "" && len(r.AssessmentTypes) > 0 {
		typ = r.AssessmentTypes[0]
	}
	return usecase.SubmitInput{AssessmentType: typ, Responses: r.Responses}
}

type startRequest struct {
	UserSeed       *string `json:"user_seed" validate:"omitempty,max=256"`
	AssessmentType string  `json:"assessment_type" validate:"max=32"`
}

func acceptsJSON(w http.ResponseWriter, r *http.Request) bool {
	a := r.Header.Get("Accept")
	if a == "" || strings.Contains(a, "*/*") || strings.Contains(a, "application/json") {
		return true
	}
	writeJSON(w, http.StatusNotAcceptable, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "not acceptable", Details: map[string]string{"accept": a}}})
	return false
}

// decodeJSON reads a size-capped JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "payload too large", Details: map[string]int64{"max_bytes": tooLarge.Limit}}})
			return false
		}
		writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
		return false
	}
	if err := getValidator().Struct(dst); err != nil {
		writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), validationDetails(err))
		return false
	}
	return true
}

// SubmitAssessmentHandler scores a submission synchronously.
func (s *Server) SubmitAssessmentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		var req submitRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		res, err := s.Assessments.Submit(r.Context(), req.input())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// StartAssessmentHandler returns the ordered question list for a tier.
func (s *Server) StartAssessmentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		var req startRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		qs, err := s.Assessments.Start(r.Context(), req.UserSeed, req.AssessmentType)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"questions": qs, "count": len(qs)})
	}
}

// EnqueueAssessmentHandler stores a submission for asynchronous scoring.
func (s *Server) EnqueueAssessmentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		var req submitRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		id, err := s.Assessments.Enqueue(r.Context(), req.input(), r.Header.Get("Idempotency-Key"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.Header().Set("Location", "/v1/assessments/"+id)
		writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": string(domain.SubmissionQueued)})
	}
}

// AssessmentResultHandler returns submission status and, once scored, the result.
func (s *Server) AssessmentResultHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		if !validSubmissionID(id) {
			writeError(w, r, fmt.Errorf("%w: invalid id", domain.ErrInvalidArgument), map[string]string{"id": "format"})
			return
		}
		status, res, etag, err := s.Results.Fetch(r.Context(), id, r.Header.Get("If-None-Match"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.Header().Set("ETag", etag)
		if status == http.StatusNotModified {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, res)
	}
}

// HealthzHandler reports liveness.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler probes every configured dependency in parallel.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		results := make([]check, len(s.Checks))
		g, gctx := errgroup.WithContext(ctx)
		for i, c := range s.Checks {
			g.Go(func() error {
				res := check{Name: c.Name, OK: true}
				if err := c.Probe(gctx); err != nil {
					res.OK = false
					res.Details = err.Error()
				}
				results[i] = res
				return nil
			})
		}
		_ = g.Wait()

		status := http.StatusOK
		for _, c := range results {
			if !c.OK {
				status = http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, status, map[string]any{"checks": results})
	}
}
