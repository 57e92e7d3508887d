package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"route", "method"},
	)

	ScoringDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scoring_duration_seconds",
			Help:    "Time spent scoring one submission",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"assessment_type"},
	)
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_submissions_total",
			Help: "Submissions scored, by outcome",
		},
		[]string{"assessment_type", "outcome"},
	)
	ResponsesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_responses_dropped_total",
			Help: "Responses excluded during normalization, by reason",
		},
		[]string{"reason"},
	)
	TraitScoreHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scoring_trait_score",
			Help:    "Distribution of Big Five display scores ([0,100])",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
		[]string{"trait"},
	)
	TraitDriftGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scoring_trait_drift",
			Help: "Absolute distance of the rolling mean trait score from its baseline",
		},
		[]string{"trait", "calibration"},
	)
	CalibrationReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calibration_reloads_total",
			Help: "Calibration reload attempts, by result",
		},
		[]string{"result"},
	)
	CircuitBreakerStateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)

	JobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"type"},
	)
	JobsProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_processing",
			Help: "Number of jobs currently processing",
		},
		[]string{"type"},
	)
	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of jobs completed",
		},
		[]string{"type"},
	)
	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_failed_total",
			Help: "Total number of jobs failed",
		},
		[]string{"type"},
	)
)

var registerOnce sync.Once

// InitMetrics registers all collectors with the default registry. Safe to call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			ScoringDuration,
			SubmissionsTotal,
			ResponsesDroppedTotal,
			TraitScoreHistogram,
			TraitDriftGauge,
			CalibrationReloadsTotal,
			CircuitBreakerStateGauge,
			JobsEnqueuedTotal,
			JobsProcessing,
			JobsCompletedTotal,
			JobsFailedTotal,
		)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// ObserveScoring records one scoring attempt.
func ObserveScoring(assessmentType, outcome string, took time.Duration) {
	ScoringDuration.WithLabelValues(assessmentType).Observe(took.Seconds())
	SubmissionsTotal.WithLabelValues(assessmentType, outcome).Inc()
}

// RecordDroppedResponse counts a response excluded during normalization.
func RecordDroppedResponse(reason string) {
	ResponsesDroppedTotal.WithLabelValues(reason).Inc()
}

// ObserveTraitScores records display scores for each trait.
func ObserveTraitScores(scores map[string]float64) {
	for trait, v := range scores {
		if v >= 0 && v <= 100 {
			TraitScoreHistogram.WithLabelValues(trait).Observe(v)
		}
	}
}

// RecordCalibrationReload counts a reload attempt.
func RecordCalibrationReload(ok bool) {
	result := "ok"
	if !ok {
		result = "rejected"
	}
	CalibrationReloadsTotal.WithLabelValues(result).Inc()
}

func EnqueueJob(jobType string) {
	JobsEnqueuedTotal.WithLabelValues(jobType).Inc()
}

func StartProcessingJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Inc()
}

func CompleteJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Dec()
	JobsCompletedTotal.WithLabelValues(jobType).Inc()
}

func FailJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Dec()
	JobsFailedTotal.WithLabelValues(jobType).Inc()
}
