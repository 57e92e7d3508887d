package httpserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
)

// CalibrationInfoHandler describes the active calibration. With
// ?format=yaml it returns the full calibration document.
func (s *Server) CalibrationInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") != "yaml" {
			writeJSON(w, http.StatusOK, s.Calibration.Current())
			return
		}
		raw, err := s.Calibration.Export()
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
	}
}

// ReplaceCalibrationHandler validates an uploaded calibration YAML and swaps
// it in. A rejected upload leaves the active calibration untouched.
func (s *Server) ReplaceCalibrationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxBytes := s.Cfg.MaxUploadKB * 1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "payload too large", Details: map[string]int64{"max_kb": s.Cfg.MaxUploadKB}}})
				return
			}
			writeError(w, r, fmt.Errorf("%w: read body: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		if len(raw) == 0 {
			writeError(w, r, fmt.Errorf("%w: empty calibration", domain.ErrInvalidArgument), nil)
			return
		}
		if mt := mimetype.Detect(raw); !allowedCalibrationMIME(mt) {
			writeJSON(w, http.StatusUnsupportedMediaType, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "unsupported media type", Details: map[string]string{"mime": mt.String()}}})
			return
		}
		info, err := s.Calibration.Replace(r.Context(), raw)
		if err != nil {
			var cle *domain.CalibrationLoadError
			if errors.As(err, &cle) {
				writeError(w, r, err, map[string][]string{"problems": cle.Problems})
				return
			}
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

// allowedCalibrationMIME accepts plain text (YAML has no magic number) and JSON,
// which is valid YAML.
func allowedCalibrationMIME(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/plain") || m.Is("application/json") {
			return true
		}
	}
	return false
}
