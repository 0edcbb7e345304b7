package observability

import (
	"net/http"
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
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60, 300},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by provider and operation",
		},
		[]string{"provider", "operation"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 100},
		},
		[]string{"provider", "operation"},
	)
	AIRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_retries_total",
			Help: "Rate-limit retries issued by the resilient caller",
		},
		[]string{"provider"},
	)
	AIFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_failures_total",
			Help: "Terminal AI call failures by reason",
		},
		[]string{"provider", "reason"},
	)
	AIPromptTokens = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_prompt_tokens",
			Help:    "Estimated prompt tokens per AI call",
			Buckets: prometheus.ExponentialBuckets(64, 2, 10),
		},
		[]string{"provider"},
	)

	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searches_total",
			Help: "Completed searches by classified intent",
		},
		[]string{"intent"},
	)
	StageOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_outcomes_total",
			Help: "Pipeline stage outcomes by stage and status",
		},
		[]string{"stage", "status"},
	)
	CandidateEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "candidate_evaluations_total",
			Help: "Candidate evaluations by outcome",
		},
		[]string{"outcome"},
	)
	FinalScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ranking_final_score",
			Help:    "Distribution of fused final scores",
			Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)
	HistoryWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_writes_total",
			Help: "Search history writes by sink and result",
		},
		[]string{"sink", "result"},
	)
)

var registerOnce sync.Once

// InitMetrics registers all collectors with the default registry once per process.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AIRequestsTotal,
			AIRequestDuration,
			AIRetriesTotal,
			AIFailuresTotal,
			AIPromptTokens,
			SearchesTotal,
			StageOutcomesTotal,
			CandidateEvaluationsTotal,
			FinalScoreHistogram,
			HistoryWritesTotal,
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
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// ObserveAICall records one provider call and its latency.
func ObserveAICall(provider, operation string, started time.Time) {
	AIRequestsTotal.WithLabelValues(provider, operation).Inc()
	AIRequestDuration.WithLabelValues(provider, operation).Observe(time.Since(started).Seconds())
}

// RecordStage counts a stage outcome.
func RecordStage(stage, status string) {
	StageOutcomesTotal.WithLabelValues(stage, status).Inc()
}

// RecordSearch counts a completed search.
func RecordSearch(intent string) {
	if intent == "" {
		intent = "absent"
	}
	SearchesTotal.WithLabelValues(intent).Inc()
}

// ObserveFinalScore records a ranked candidate's final score.
func ObserveFinalScore(v float64) {
	if v >= 0 && v <= 1 {
		FinalScoreHistogram.Observe(v)
	}
}
