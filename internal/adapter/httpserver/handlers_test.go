package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-talent-ranker/internal/config"
	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

type searcherStub struct {
	res      domain.SearchResult
	err      error
	gotUser  string
	gotQuery string
	calls    int
}

func (s *searcherStub) Search(_ context.Context, userID, query string) (domain.SearchResult, error) {
	s.calls++
	s.gotUser, s.gotQuery = userID, query
	return s.res, s.err
}

type historyStub struct {
	entries []domain.HistoryEntry
	res     domain.SearchResult
	err     error
}

func (h *historyStub) List(_ context.Context, _ string) ([]domain.HistoryEntry, error) {
	return h.entries, h.err
}

func (h *historyStub) Get(_ context.Context, _, _ string) (domain.SearchResult, error) {
	return h.res, h.err
}

type limiterStub struct {
	allowed bool
	retry   time.Duration
	err     error
	keys    []string
}

func (l *limiterStub) Allow(_ context.Context, key string, _ int64) (bool, time.Duration, error) {
	l.keys = append(l.keys, key)
	return l.allowed, l.retry, l.err
}

func testRouter(s *Server, lim *limiterStub) http.Handler {
	r := chi.NewRouter()
	r.Use(Recoverer(), RequestID(), UserIdentity())
	r.Group(func(sr chi.Router) {
		if lim != nil {
			sr.Use(SearchAdmission(lim))
		}
		sr.Post("/v1/search", s.SearchHandler())
	})
	r.Get("/v1/history", s.HistoryListHandler())
	r.Get("/v1/history/{id}", s.HistoryGetHandler())
	r.Get("/readyz", s.ReadyzHandler())
	return r
}

func rankedResult(n int) domain.SearchResult {
	cs := make([]domain.ScoredCandidate, 0, n)
	for i := 0; i < n; i++ {
		cs = append(cs, domain.ScoredCandidate{ID: fmt.Sprint(i + 1), FinalScore: 1 - float64(i)/10})
	}
	return domain.SearchResult{
		Query:        "go dev",
		RefinedQuery: "senior go developer",
		Intent:       domain.IntentSpecificRole,
		Weights:      domain.DefaultWeights(),
		Roles:        []domain.RoleResult{{Role: "GO DEVELOPER", Candidates: cs}},
		Stages:       []domain.StageReport{{Stage: "refine", Status: domain.StageOK}},
	}
}

func do(t *testing.T, h http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody(t, rec)["error"].(map[string]any)["code"].(string)
}

func TestSearchHandler_TruncatesToTopK(t *testing.T) {
	ss := &searcherStub{res: rankedResult(7)}
	srv := NewServer(config.Config{TopKResults: 5}, ss, &historyStub{})
	rec := do(t, testRouter(srv, nil), http.MethodPost, "/v1/search", `{"query":"  go dev "}`, map[string]string{UserIDHeader: "u-1"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "go dev", ss.gotQuery)
	assert.Equal(t, "u-1", ss.gotUser)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Roles, 1)
	assert.Equal(t, 7, resp.Roles[0].TotalCandidates)
	require.Len(t, resp.Roles[0].Candidates, 5)
	assert.Equal(t, 1, resp.Roles[0].Candidates[0].Rank)
	assert.Equal(t, "1", resp.Roles[0].Candidates[0].ID)
	assert.Equal(t, "5", resp.Roles[0].Candidates[4].ID)
	assert.False(t, resp.Degraded)
}

func TestSearchHandler_Anonymous(t *testing.T) {
	ss := &searcherStub{res: rankedResult(1)}
	srv := NewServer(config.Config{TopKResults: 5}, ss, &historyStub{})
	rec := do(t, testRouter(srv, nil), http.MethodPost, "/v1/search", `{"query":"go"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, ss.gotUser)
}

func TestSearchHandler_BlankQuery(t *testing.T) {
	ss := &searcherStub{}
	srv := NewServer(config.Config{}, ss, &historyStub{})
	rec := do(t, testRouter(srv, nil), http.MethodPost, "/v1/search", `{"query":"   \u0000 "}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ARGUMENT", errorCode(t, rec))
	assert.Zero(t, ss.calls)
}

func TestSearchHandler_BadJSON(t *testing.T) {
	srv := NewServer(config.Config{}, &searcherStub{}, &historyStub{})
	rec := do(t, testRouter(srv, nil), http.MethodPost, "/v1/search", `{"query":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchHandler_NotAcceptable(t *testing.T) {
	srv := NewServer(config.Config{}, &searcherStub{}, &historyStub{})
	rec := do(t, testRouter(srv, nil), http.MethodPost, "/v1/search", `{"query":"go"}`, map[string]string{"Accept": "text/html"})
	assert.Equal(t, http.StatusNotAcceptable, rec.Code)
}

func TestSearchHandler_InternalErrorHidesMessage(t *testing.T) {
	srv := NewServer(config.Config{}, &searcherStub{err: errors.New("pool exhausted")}, &historyStub{})
	rec := do(t, testRouter(srv, nil), http.MethodPost, "/v1/search", `{"query":"go"}`, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pool exhausted")
}

func TestSearchHandler_Degraded(t *testing.T) {
	res := rankedResult(1)
	res.Stages = append(res.Stages, domain.StageReport{Stage: "weights", Status: domain.StageFallback})
	srv := NewServer(config.Config{TopKResults: 5}, &searcherStub{res: res}, &historyStub{})
	rec := do(t, testRouter(srv, nil), http.MethodPost, "/v1/search", `{"query":"go"}`, nil)
	assert.Equal(t, true, decodeBody(t, rec)["degraded"])
}

func TestSearchAdmission_Denied(t *testing.T) {
	lim := &limiterStub{allowed: false, retry: 2600 * time.Millisecond}
	ss := &searcherStub{}
	srv := NewServer(config.Config{}, ss, &historyStub{})
	rec := do(t, testRouter(srv, lim), http.MethodPost, "/v1/search", `{"query":"go"}`, map[string]string{UserIDHeader: "u-9"})

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", errorCode(t, rec))
	assert.Equal(t, []string{"user:u-9"}, lim.keys)
	assert.Zero(t, ss.calls)
}

func TestSearchAdmission_AnonymousKeyedByIP(t *testing.T) {
	lim := &limiterStub{allowed: true}
	srv := NewServer(config.Config{}, &searcherStub{res: rankedResult(0)}, &historyStub{})
	rec := do(t, testRouter(srv, lim), http.MethodPost, "/v1/search", `{"query":"go"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ip:192.0.2.1"}, lim.keys)
}

func TestSearchAdmission_LimiterErrorFailsOpen(t *testing.T) {
	lim := &limiterStub{allowed: true, err: errors.New("redis down")}
	srv := NewServer(config.Config{}, &searcherStub{res: rankedResult(0)}, &historyStub{})
	rec := do(t, testRouter(srv, lim), http.MethodPost, "/v1/search", `{"query":"go"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserIdentity_Malformed(t *testing.T) {
	srv := NewServer(config.Config{}, &searcherStub{}, &historyStub{})
	rec := do(t, testRouter(srv, nil), http.MethodGet, "/v1/history", "", map[string]string{UserIDHeader: "bad user!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryListHandler(t *testing.T) {
	at := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	hs := &historyStub{entries: []domain.HistoryEntry{{ID: "3", QueryText: "go dev", SearchedAt: at}}}
	srv := NewServer(config.Config{}, &searcherStub{}, hs)
	h := testRouter(srv, nil)

	rec := do(t, h, http.MethodGet, "/v1/history", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/history", "", map[string]string{UserIDHeader: "u-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	items := decodeBody(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "3", item["id"])
	assert.Equal(t, "2026-04-01T08:00:00Z", item["searched_at"])
}

func TestHistoryGetHandler(t *testing.T) {
	hs := &historyStub{res: rankedResult(6)}
	srv := NewServer(config.Config{TopKResults: 5}, &searcherStub{}, hs)
	h := testRouter(srv, nil)

	rec := do(t, h, http.MethodGet, "/v1/history/42", "", map[string]string{UserIDHeader: "u-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Roles[0].Candidates, 5)
	assert.Equal(t, 6, resp.Roles[0].TotalCandidates)

	hs.err = fmt.Errorf("op=history.get: %w", domain.ErrNotFound)
	rec = do(t, h, http.MethodGet, "/v1/history/43", "", map[string]string{UserIDHeader: "u-1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestReadyzHandler(t *testing.T) {
	ok := Check{Name: "db", Fn: func(context.Context) error { return nil }}
	bad := Check{Name: "qdrant", Fn: func(context.Context) error { return errors.New("down") }}

	srv := NewServer(config.Config{}, nil, nil, ok)
	rec := do(t, testRouter(srv, nil), http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	srv = NewServer(config.Config{}, nil, nil, ok, bad)
	rec = do(t, testRouter(srv, nil), http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "down")
}

func TestRecoverer(t *testing.T) {
	h := Recoverer()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := do(t, h, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL", errorCode(t, rec))
}

func TestRequestID_Propagates(t *testing.T) {
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))
	rec := do(t, h, http.MethodGet, "/", "", map[string]string{"X-Request-Id": "abc"})
	assert.Equal(t, "abc", rec.Header().Get("X-Request-Id"))
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rec := do(t, h, http.MethodGet, "/", "", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
