// Package redpanda carries search history over Kafka: the API publishes each
// finished search and the worker appends it to the history store.
package redpanda

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

const (
	// TopicHistory receives one record per finished search.
	TopicHistory = "search-history"
	// TopicHistoryDLQ receives records the worker could not store.
	TopicHistoryDLQ = "search-history-dlq"
)

var errEmptyTopic = errors.New("topic name cannot be empty")

type historyMessage struct {
	UserID       string          `json:"user_id"`
	QueryText    string          `json:"query_text"`
	RefinedQuery string          `json:"enhanced_query"`
	Intent       string          `json:"intent"`
	Results      json.RawMessage `json:"search_results"`
	SearchedAt   time.Time       `json:"search_timestamp"`
}

func encodeEntry(e domain.HistoryEntry) ([]byte, error) {
	m := historyMessage{
		UserID:       e.UserID,
		QueryText:    e.QueryText,
		RefinedQuery: e.RefinedQuery,
		Intent:       e.Intent,
		Results:      json.RawMessage(e.Results),
		SearchedAt:   e.SearchedAt,
	}
	if len(m.Results) == 0 {
		m.Results = json.RawMessage("null")
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.encode: %w", err)
	}
	return b, nil
}

func decodeEntry(b []byte) (domain.HistoryEntry, error) {
	var m historyMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("op=redpanda.decode: %w: %v", domain.ErrSchemaInvalid, err)
	}
	if m.UserID == "" {
		return domain.HistoryEntry{}, fmt.Errorf("op=redpanda.decode: %w: missing user_id", domain.ErrSchemaInvalid)
	}
	return domain.HistoryEntry{
		UserID:       m.UserID,
		QueryText:    m.QueryText,
		RefinedQuery: m.RefinedQuery,
		Intent:       m.Intent,
		Results:      []byte(m.Results),
		SearchedAt:   m.SearchedAt,
	}, nil
}
