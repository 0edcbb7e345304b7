// Package snapshot keeps an in-memory copy of every resume so hydration
// after retrieval does not hit the database.
package snapshot

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

// Loader is the bulk source the snapshot is filled from.
type Loader interface {
	LoadAll(ctx domain.Context) ([]domain.Candidate, error)
}

// Store implements domain.ResumeStore over an in-memory snapshot. An empty
// snapshot is reloaded on the next read; concurrent reloads collapse into
// one load.
type Store struct {
	src   Loader
	group singleflight.Group

	mu    sync.RWMutex
	order []string
	byID  map[string]domain.Candidate
}

// New constructs an empty Store over src.
func New(src Loader) *Store {
	return &Store{src: src, byID: map[string]domain.Candidate{}}
}

// Load replaces the snapshot with a fresh copy of the source. The previous
// snapshot is kept when the source fails.
func (s *Store) Load(ctx domain.Context) error {
	_, err, _ := s.group.Do("load", func() (any, error) {
		cs, err := s.src.LoadAll(ctx)
		if err != nil {
			return nil, err
		}
		order := make([]string, 0, len(cs))
		byID := make(map[string]domain.Candidate, len(cs))
		for _, c := range cs {
			if _, dup := byID[c.ID]; !dup {
				order = append(order, c.ID)
			}
			byID[c.ID] = c
		}
		s.mu.Lock()
		s.order, s.byID = order, byID
		s.mu.Unlock()
		slog.Info("resume snapshot loaded", slog.Int("resumes", len(order)))
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("op=snapshot.Load: %w", err)
	}
	return nil
}

// Len reports how many resumes the snapshot holds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// LoadAll returns every resume in source order.
func (s *Store) LoadAll(ctx domain.Context) ([]domain.Candidate, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Candidate, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out, nil
}

// GetByIDs returns the known resumes among ids in the order of ids.
// Unknown ids are dropped.
func (s *Store) GetByIDs(ctx domain.Context, ids []string) ([]domain.Candidate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Candidate, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) ensure(ctx domain.Context) error {
	if s.Len() > 0 {
		return nil
	}
	return s.Load(ctx)
}
