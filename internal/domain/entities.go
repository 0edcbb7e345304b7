// Package domain holds the ranking entities, the error taxonomy and the
// ports implemented by adapters.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrSchemaInvalid     = errors.New("schema invalid")
	ErrInternal          = errors.New("internal error")
)

// Context is an alias so ports read the same across packages.
type Context = context.Context

// LLMGateway (port) sends a single prompt to a language model.
type LLMGateway interface {
	Generate(ctx Context, prompt string) (string, error)
}

// Embedder (port) turns texts into dense vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx Context, texts []string) ([][]float32, error)
}

// VectorMatch is a single nearest-neighbour hit.
type VectorMatch struct {
	ID    string
	Score float64
}

// VectorIndex (port) is the vector retrieval service keyed by candidate id.
type VectorIndex interface {
	EnsureCollection(ctx Context) error
	Upsert(ctx Context, ids []string, vectors [][]float32) error
	Query(ctx Context, vector []float32, topK int) ([]VectorMatch, error)
}

// ResumeStore (port) serves candidate records.
type ResumeStore interface {
	LoadAll(ctx Context) ([]Candidate, error)
	GetByIDs(ctx Context, ids []string) ([]Candidate, error)
}

// HistoryEntry is one persisted search.
type HistoryEntry struct {
	ID           string
	UserID       string
	QueryText    string
	RefinedQuery string
	Intent       string
	Results      []byte
	SearchedAt   time.Time
}

// HistoryStore (port) persists searches per user.
type HistoryStore interface {
	Append(ctx Context, e HistoryEntry) (string, error)
	List(ctx Context, userID string, limit int) ([]HistoryEntry, error)
	Get(ctx Context, searchID, userID string) (HistoryEntry, error)
}

// HistoryRecorder (port) is the write-behind side channel used after a search.
type HistoryRecorder interface {
	Record(ctx Context, e HistoryEntry) error
}
