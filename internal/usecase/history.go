package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
	obsctx "github.com/fairyhunter13/ai-talent-ranker/internal/observability"
)

// HistoryService reads a user's past searches.
type HistoryService struct {
	Store domain.HistoryStore
	Limit int
}

// NewHistoryService constructs a HistoryService returning up to limit entries.
func NewHistoryService(store domain.HistoryStore, limit int) HistoryService {
	if limit <= 0 {
		limit = 10
	}
	return HistoryService{Store: store, Limit: limit}
}

// List returns the most recent searches of userID, newest first.
func (s HistoryService) List(ctx context.Context, userID string) ([]domain.HistoryEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidArgument)
	}
	entries, err := s.Store.List(ctx, userID, s.Limit)
	if err != nil {
		return nil, fmt.Errorf("op=history.List: %w", err)
	}
	return entries, nil
}

// Get returns the stored result of searchID when it belongs to userID.
func (s HistoryService) Get(ctx context.Context, searchID, userID string) (domain.SearchResult, error) {
	if strings.TrimSpace(searchID) == "" || strings.TrimSpace(userID) == "" {
		return domain.SearchResult{}, fmt.Errorf("%w: search id and user id are required", domain.ErrInvalidArgument)
	}
	e, err := s.Store.Get(ctx, searchID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.SearchResult{}, err
		}
		return domain.SearchResult{}, fmt.Errorf("op=history.Get: %w", err)
	}
	var res domain.SearchResult
	if err := json.Unmarshal(e.Results, &res); err != nil {
		obsctx.LoggerFromContext(ctx).Warn("stored search result undecodable",
			slog.String("search_id", searchID), slog.Any("error", err))
		return domain.SearchResult{}, fmt.Errorf("%w: search %s has no readable result", domain.ErrNotFound, searchID)
	}
	if res.Query == "" {
		res.Query = e.QueryText
	}
	if res.RefinedQuery == "" {
		res.RefinedQuery = e.RefinedQuery
	}
	if res.Intent == "" {
		res.Intent = domain.Intent(e.Intent)
	}
	if res.CompletedAt.IsZero() {
		res.CompletedAt = e.SearchedAt
	}
	return res, nil
}
