// Package app assembles the HTTP router and the background loops the
// server and worker binaries share.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	httpserver "github.com/fairyhunter13/psychometric-engine/internal/adapter/httpserver"
	"github.com/fairyhunter13/psychometric-engine/internal/adapter/observability"
	"github.com/fairyhunter13/psychometric-engine/internal/config"
	"github.com/fairyhunter13/psychometric-engine/internal/service/ratelimiter"
)

// ParseOrigins splits a comma-separated origin list, trimming spaces.
// Empty input allows every origin.
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
// limiter may be nil, in which case scoring routes are limited per process.
func BuildRouter(cfg config.Config, srv *httpserver.Server, limiter ratelimiter.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(routeSpans)
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TimeoutMiddleware(30 * time.Second))
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", "If-None-Match", "Authorization"},
		ExposedHeaders:   []string{"X-Request-Id", "ETag", "Location", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Group(func(wr chi.Router) {
		wr.Use(httpserver.RateLimit(limiter, cfg.RateLimitPerMin))
		wr.Post("/api/submit-assessment", srv.SubmitAssessmentHandler())
		wr.Post("/api/start-assessment", srv.StartAssessmentHandler())
		wr.Post("/v1/assessments", srv.EnqueueAssessmentHandler())
	})
	r.Get("/v1/assessments/{id}", srv.AssessmentResultHandler())

	r.Get("/healthz", srv.HealthzHandler())
	r.Get("/readyz", srv.ReadyzHandler())
	r.Handle("/metrics", promhttp.Handler())

	if cfg.AdminEnabled() {
		r.Route("/admin", func(ar chi.Router) {
			ar.Use(httpserver.BasicAuth(cfg.AdminUsername, cfg.AdminPasswordHash))
			ar.Get("/calibration", srv.CalibrationInfoHandler())
			ar.Put("/calibration", srv.ReplaceCalibrationHandler())
		})
	}

	return httpserver.SecurityHeaders(r)
}

// routeSpans opens a server span per request and renames it to the matched
// chi route template once routing is done, so /v1/assessments/{id} is one
// span name regardless of the id. Unmatched requests keep the bare method.
func routeSpans(next http.Handler) http.Handler {
	named := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		rctx := chi.RouteContext(r.Context())
		if rctx == nil {
			return
		}
		if pattern := rctx.RoutePattern(); pattern != "" {
			span := trace.SpanFromContext(r.Context())
			span.SetName(r.Method + " " + pattern)
			span.SetAttributes(attribute.String("http.route", pattern))
		}
	})
	return otelhttp.NewHandler(named, "http.server",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string { return r.Method }))
}
