package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/ai-talent-ranker/internal/config"
	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
	obsctx "github.com/fairyhunter13/ai-talent-ranker/internal/observability"
	"github.com/fairyhunter13/ai-talent-ranker/pkg/textx"
)

// Searcher runs one ranking search for a caller.
type Searcher interface {
	Search(ctx context.Context, userID, query string) (domain.SearchResult, error)
}

// HistoryReader serves a caller's past searches.
type HistoryReader interface {
	List(ctx context.Context, userID string) ([]domain.HistoryEntry, error)
	Get(ctx context.Context, searchID, userID string) (domain.SearchResult, error)
}

// Check is one named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg     config.Config
	Search  Searcher
	History HistoryReader
	Checks  []Check
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, search Searcher, history HistoryReader, checks ...Check) *Server {
	return &Server{Cfg: cfg, Search: search, History: history, Checks: checks}
}

const maxQueryLen = 4000

type searchRequest struct {
	Query string `json:"query" validate:"required,max=4000"`
}

type candidateView struct {
	Rank int `json:"rank"`
	domain.ScoredCandidate
}

type roleView struct {
	Role            string          `json:"role"`
	Spec            domain.RoleSpec `json:"spec"`
	TotalCandidates int             `json:"total_candidates"`
	Candidates      []candidateView `json:"candidates"`
}

type searchResponse struct {
	Query          string               `json:"query"`
	RefinedQuery   string               `json:"refined_query"`
	Intent         domain.Intent        `json:"intent"`
	Weights        domain.Weights       `json:"weights"`
	ProjectSummary string               `json:"project_summary,omitempty"`
	Roles          []roleView           `json:"roles"`
	Stages         []domain.StageReport `json:"stages"`
	Degraded       bool                 `json:"degraded"`
	CompletedAt    time.Time            `json:"completed_at"`
}

// buildSearchResponse keeps the first topK candidates of every role and
// reports how many were ranked in total.
func buildSearchResponse(res domain.SearchResult, topK int) searchResponse {
	out := searchResponse{
		Query:          res.Query,
		RefinedQuery:   res.RefinedQuery,
		Intent:         res.Intent,
		Weights:        res.Weights,
		ProjectSummary: res.ProjectSummary,
		Roles:          make([]roleView, 0, len(res.Roles)),
		Stages:         res.Stages,
		CompletedAt:    res.CompletedAt,
	}
	if out.Stages == nil {
		out.Stages = []domain.StageReport{}
	}
	for _, st := range res.Stages {
		if st.Degraded() {
			out.Degraded = true
			break
		}
	}
	for _, rr := range res.Roles {
		n := len(rr.Candidates)
		if topK > 0 && n > topK {
			n = topK
		}
		rv := roleView{Role: rr.Role, Spec: rr.Spec, TotalCandidates: len(rr.Candidates), Candidates: make([]candidateView, 0, n)}
		for i := 0; i < n; i++ {
			rv.Candidates = append(rv.Candidates, candidateView{Rank: i + 1, ScoredCandidate: rr.Candidates[i]})
		}
		out.Roles = append(out.Roles, rv)
	}
	return out
}

// SearchHandler runs the ranking pipeline for the posted query.
func (s *Server) SearchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if notAcceptable(w, r) {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		req.Query = textx.SanitizeText(SanitizeString(req.Query, maxQueryLen))
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), validationDetails(err))
			return
		}

		ctx := r.Context()
		if s.Cfg.SearchTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.Cfg.SearchTimeout)
			defer cancel()
		}
		res, err := s.Search.Search(ctx, obsctx.UserIDFromContext(r.Context()), req.Query)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, buildSearchResponse(res, s.Cfg.TopKResults))
	}
}

type historyItem struct {
	ID           string    `json:"id"`
	QueryText    string    `json:"query_text"`
	RefinedQuery string    `json:"refined_query,omitempty"`
	Intent       string    `json:"intent,omitempty"`
	SearchedAt   time.Time `json:"searched_at"`
}

// HistoryListHandler lists the caller's most recent searches.
func (s *Server) HistoryListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if notAcceptable(w, r) {
			return
		}
		uid := obsctx.UserIDFromContext(r.Context())
		if uid == "" {
			writeError(w, r, fmt.Errorf("%w: %s header required", domain.ErrInvalidArgument, UserIDHeader), nil)
			return
		}
		entries, err := s.History.List(r.Context(), uid)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		items := make([]historyItem, 0, len(entries))
		for _, e := range entries {
			items = append(items, historyItem{ID: e.ID, QueryText: e.QueryText, RefinedQuery: e.RefinedQuery, Intent: e.Intent, SearchedAt: e.SearchedAt})
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

// HistoryGetHandler replays a stored search of the caller.
func (s *Server) HistoryGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if notAcceptable(w, r) {
			return
		}
		uid := obsctx.UserIDFromContext(r.Context())
		if uid == "" {
			writeError(w, r, fmt.Errorf("%w: %s header required", domain.ErrInvalidArgument, UserIDHeader), nil)
			return
		}
		id := chi.URLParam(r, "id")
		if v := ValidateIdentifier("id", id); !v.Valid {
			writeError(w, r, fmt.Errorf("%w: invalid search id", domain.ErrInvalidArgument), v.Errors)
			return
		}
		res, err := s.History.Get(r.Context(), id, uid)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, buildSearchResponse(res, s.Cfg.TopKResults))
	}
}

// ReadyzHandler probes every configured dependency.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		out := make([]check, 0, len(s.Checks))
		st := http.StatusOK
		for _, c := range s.Checks {
			if c.Fn == nil {
				continue
			}
			err := c.Fn(ctx)
			if err != nil {
				st = http.StatusServiceUnavailable
				out = append(out, check{Name: c.Name, Details: err.Error()})
				continue
			}
			out = append(out, check{Name: c.Name, OK: true})
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": out})
	}
}
