// Package indexsync (re-)populates the vector index from the resume store.
//
// Each candidate's consolidated full text is embedded in fixed-size batches
// and upserted under its candidate id. The target collection is created when
// absent.
package indexsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

// DefaultBatchSize is the number of texts embedded per request.
const DefaultBatchSize = 100

// Source yields candidates with at least ID and FullText populated.
type Source interface {
	LoadTexts(ctx context.Context) ([]domain.Candidate, error)
}

// Target is the writable side of the vector index.
type Target interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, ids []string, vectors [][]float32) error
}

// Report summarises one run.
type Report struct {
	Total   int `json:"total"`
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Batches int `json:"batches"`
}

// Syncer embeds every candidate from Source and writes it to Index.
type Syncer struct {
	Source    Source
	Embedder  domain.Embedder
	Index     Target
	BatchSize int
	// DryRun loads and counts candidates without embedding or writing.
	DryRun bool
	Logger *slog.Logger
}

// Run performs a full synchronisation. A failed batch aborts the run; batches
// already written stay in the index.
func (s Syncer) Run(ctx context.Context) (Report, error) {
	lg := s.Logger
	if lg == nil {
		lg = slog.Default()
	}
	size := s.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	cands, err := s.Source.LoadTexts(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("op=indexsync.Run: %w", err)
	}
	ids, texts, seen := make([]string, 0, len(cands)), make([]string, 0, len(cands)), make(map[string]struct{}, len(cands))
	rep := Report{Total: len(cands)}
	for _, c := range cands {
		text := strings.TrimSpace(c.FullText)
		if c.ID == "" || text == "" {
			rep.Skipped++
			continue
		}
		if _, dup := seen[c.ID]; dup {
			rep.Skipped++
			continue
		}
		seen[c.ID] = struct{}{}
		ids = append(ids, c.ID)
		texts = append(texts, text)
	}
	if s.DryRun {
		lg.Info("index sync dry run", slog.Int("total", rep.Total), slog.Int("indexable", len(ids)), slog.Int("skipped", rep.Skipped))
		return rep, nil
	}

	if err := s.Index.EnsureCollection(ctx); err != nil {
		return rep, fmt.Errorf("op=indexsync.Run: ensure collection: %w", err)
	}
	for i := 0; i < len(ids); i += size {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("op=indexsync.Run: %w", err)
		}
		end := min(i+size, len(ids))
		vecs, err := s.Embedder.Embed(ctx, texts[i:end])
		if err != nil {
			return rep, fmt.Errorf("op=indexsync.Run: embed batch %d: %w", rep.Batches, err)
		}
		if len(vecs) != end-i {
			return rep, fmt.Errorf("op=indexsync.Run: %w: embed batch %d returned %d vectors for %d texts", domain.ErrInternal, rep.Batches, len(vecs), end-i)
		}
		if err := s.Index.Upsert(ctx, ids[i:end], vecs); err != nil {
			return rep, fmt.Errorf("op=indexsync.Run: upsert batch %d: %w", rep.Batches, err)
		}
		rep.Batches++
		rep.Indexed += end - i
		lg.Debug("index batch written", slog.Int("batch", rep.Batches), slog.Int("indexed", rep.Indexed))
	}
	lg.Info("index sync complete", slog.Int("total", rep.Total), slog.Int("indexed", rep.Indexed), slog.Int("skipped", rep.Skipped), slog.Int("batches", rep.Batches))
	return rep, nil
}
