package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/fairyhunter13/ai-talent-ranker/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/observability"
	"github.com/fairyhunter13/ai-talent-ranker/internal/config"
	"github.com/fairyhunter13/ai-talent-ranker/internal/service/ratelimiter"
)

// readTimeout bounds the history and probe endpoints. Search runs under
// cfg.SearchTimeout instead.
const readTimeout = 30 * time.Second

// ParseOrigins splits a comma-separated origin list into a slice, trimming spaces.
// If the input is empty, returns ["*"].
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
// limiter may be nil, in which case only the per-IP limit applies to search.
func BuildRouter(cfg config.Config, srv *httpserver.Server, limiter ratelimiter.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", httpserver.UserIDHeader, "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(httpserver.UserIdentity())
		v1.Group(func(sr chi.Router) {
			if cfg.RateLimitPerMin > 0 {
				sr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, time.Minute))
			}
			sr.Use(httpserver.SearchAdmission(limiter))
			sr.Post("/search", srv.SearchHandler())
		})
		v1.Group(func(hr chi.Router) {
			hr.Use(httpserver.TimeoutMiddleware(readTimeout))
			hr.Get("/history", srv.HistoryListHandler())
			hr.Get("/history/{id}", srv.HistoryGetHandler())
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.Handler())
	r.With(httpserver.TimeoutMiddleware(readTimeout)).Get("/readyz", srv.ReadyzHandler())

	return httpserver.SecurityHeaders(r)
}
