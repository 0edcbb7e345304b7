package postgres

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

// HistoryTable stores one row per search run by an identified user.
const HistoryTable = "search_history"

// HistoryRepo persists searches into search_history.
type HistoryRepo struct{ Pool PgxPool }

// NewHistoryRepo constructs a HistoryRepo with the given pool.
func NewHistoryRepo(p PgxPool) *HistoryRepo { return &HistoryRepo{Pool: p} }

// Append inserts e and returns the generated search id. A zero SearchedAt
// is stamped with the current time.
func (r *HistoryRepo) Append(ctx domain.Context, e domain.HistoryEntry) (string, error) {
	ctx, span := otel.Tracer("repo.history").Start(ctx, "history.Append")
	defer span.End()
	span.SetAttributes(dbAttrs("INSERT", HistoryTable)...)

	if strings.TrimSpace(e.UserID) == "" {
		return "", fmt.Errorf("op=history.append: %w: user id required", domain.ErrInvalidArgument)
	}
	at := e.SearchedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	results := e.Results
	if len(results) == 0 {
		results = []byte("null")
	}
	q := `INSERT INTO search_history (user_id, query_text, enhanced_query, intent, search_results, search_timestamp)
	VALUES ($1,$2,$3,$4,$5,$6) RETURNING id::text`
	var id string
	if err := r.Pool.QueryRow(ctx, q, e.UserID, e.QueryText, e.RefinedQuery, e.Intent, results, at).Scan(&id); err != nil {
		return "", fmt.Errorf("op=history.append: %w", err)
	}
	return id, nil
}

// List returns up to limit searches of userID, newest first. Results blobs
// are not loaded.
func (r *HistoryRepo) List(ctx domain.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	ctx, span := otel.Tracer("repo.history").Start(ctx, "history.List")
	defer span.End()
	span.SetAttributes(dbAttrs("SELECT", HistoryTable)...)

	if limit <= 0 {
		limit = 10
	}
	q := `SELECT id::text, query_text, COALESCE(enhanced_query,''), COALESCE(intent,''), search_timestamp
	FROM search_history WHERE user_id=$1 ORDER BY search_timestamp DESC LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("op=history.list: %w", err)
	}
	defer rows.Close()
	out := make([]domain.HistoryEntry, 0, limit)
	for rows.Next() {
		e := domain.HistoryEntry{UserID: userID}
		if err := rows.Scan(&e.ID, &e.QueryText, &e.RefinedQuery, &e.Intent, &e.SearchedAt); err != nil {
			return nil, fmt.Errorf("op=history.list: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=history.list: %w", err)
	}
	return out, nil
}

// Get loads one search scoped to its owner. A search of another user is
// reported as domain.ErrNotFound.
func (r *HistoryRepo) Get(ctx domain.Context, searchID, userID string) (domain.HistoryEntry, error) {
	ctx, span := otel.Tracer("repo.history").Start(ctx, "history.Get")
	defer span.End()
	span.SetAttributes(dbAttrs("SELECT", HistoryTable)...)

	q := `SELECT id::text, user_id, query_text, COALESCE(enhanced_query,''), COALESCE(intent,''), search_results, search_timestamp
	FROM search_history WHERE id::text=$1 AND user_id=$2`
	var e domain.HistoryEntry
	err := r.Pool.QueryRow(ctx, q, searchID, userID).Scan(&e.ID, &e.UserID, &e.QueryText, &e.RefinedQuery, &e.Intent, &e.Results, &e.SearchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.HistoryEntry{}, fmt.Errorf("op=history.get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("op=history.get: %w", err)
	}
	return e, nil
}
