// Package httpserver contains the HTTP handlers and middleware of the
// scoring API.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
	obsctx "github.com/fairyhunter13/psychometric-engine/internal/observability"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error, details any) {
	code := http.StatusInternalServerError
	codeStr := "INTERNAL"
	var insufficient *domain.InsufficientDataError
	switch {
	case errors.As(err, &insufficient):
		code = http.StatusUnprocessableEntity
		codeStr = "INSUFFICIENT_DATA"
		details = map[string]int{"actual": insufficient.Actual, "required": insufficient.Required}
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrUnknownItem),
		errors.Is(err, domain.ErrMalformedResponse):
		code = http.StatusBadRequest
		codeStr = "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrCalibration):
		code = http.StatusBadRequest
		codeStr = "CALIBRATION_INVALID"
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
		codeStr = "NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		code = http.StatusConflict
		codeStr = "CONFLICT"
	case errors.Is(err, domain.ErrUnavailable):
		code = http.StatusServiceUnavailable
		codeStr = "UNAVAILABLE"
	}
	msg := err.Error()
	if code == http.StatusInternalServerError {
		obsctx.LoggerFromContext(r.Context()).Error("request failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: msg, Details: details}})
}
