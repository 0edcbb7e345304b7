package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/observability"
	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
	obsctx "github.com/fairyhunter13/ai-talent-ranker/internal/observability"
)

// SearchRunner is the pure query-to-result computation.
type SearchRunner interface {
	Run(ctx context.Context, query string) domain.SearchResult
}

// SearchService runs the pipeline and records the outcome in search history.
type SearchService struct {
	Runner       SearchRunner
	Recorder     domain.HistoryRecorder
	WriteTimeout time.Duration
}

// NewSearchService constructs a SearchService.
func NewSearchService(r SearchRunner, rec domain.HistoryRecorder, writeTimeout time.Duration) SearchService {
	return SearchService{Runner: r, Recorder: rec, WriteTimeout: writeTimeout}
}

// Search rejects a blank query and otherwise always returns a result. History
// is written after the computation and its failure only logs.
func (s SearchService) Search(ctx context.Context, userID, query string) (domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return domain.SearchResult{}, fmt.Errorf("%w: query is required", domain.ErrInvalidArgument)
	}
	res := s.Runner.Run(ctx, query)
	s.record(ctx, userID, res)
	return res, nil
}

func (s SearchService) record(ctx context.Context, userID string, res domain.SearchResult) {
	lg := obsctx.LoggerFromContext(ctx)
	if s.Recorder == nil || userID == "" {
		lg.Debug("search history not recorded", slog.Bool("has_recorder", s.Recorder != nil), slog.Bool("has_user", userID != ""))
		return
	}
	blob, err := json.Marshal(res)
	if err != nil {
		lg.Error("encode search result failed", slog.Any("error", err))
		return
	}
	timeout := s.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	entry := domain.HistoryEntry{
		UserID:       userID,
		QueryText:    res.Query,
		RefinedQuery: res.RefinedQuery,
		Intent:       string(res.Intent),
		Results:      blob,
		SearchedAt:   res.CompletedAt,
	}
	if err := s.Recorder.Record(wctx, entry); err != nil {
		lg.Warn("record search history failed", slog.String("user_id", userID), slog.Any("error", err))
	}
}

// DirectRecorder writes history synchronously into the store.
type DirectRecorder struct {
	Store domain.HistoryStore
}

// Record appends e to the store.
func (r DirectRecorder) Record(ctx context.Context, e domain.HistoryEntry) error {
	_, err := r.Store.Append(ctx, e)
	result := "ok"
	if err != nil {
		result = "error"
	}
	observability.HistoryWritesTotal.WithLabelValues("postgres", result).Inc()
	if err != nil {
		return fmt.Errorf("op=history.Record: %w", err)
	}
	return nil
}
