package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

// Markers that identify each prompt template.
const (
	markRefine  = "Your Enhanced Search Query Output"
	markIntent  = "single-word category"
	markWeights = "weights for ranking criteria"
	markProject = "Project Description:"
	markRole    = "Present the output as a JSON array"
	markEval    = "---BEGIN RESUME DATA---"
)

var errGateway = errors.New("gateway down")

type fakeLLM struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	evalFn  func(prompt string) (string, error)
	calls   map[string]int
	prompts []string
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{replies: map[string]string{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeLLM) on(marker, reply string) *fakeLLM {
	f.replies[marker] = reply
	return f
}

func (f *fakeLLM) fail(marker string, err error) *fakeLLM {
	f.errs[marker] = err
	return f
}

func (f *fakeLLM) count(marker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[marker]
}

func (f *fakeLLM) Call(_ context.Context, prompt string) (string, error) {
	marker := ""
	for _, m := range []string{markRefine, markIntent, markWeights, markProject, markRole, markEval} {
		if strings.Contains(prompt, m) {
			marker = m
			break
		}
	}
	f.mu.Lock()
	f.calls[marker]++
	f.prompts = append(f.prompts, prompt)
	evalFn := f.evalFn
	reply, hasReply := f.replies[marker]
	err := f.errs[marker]
	f.mu.Unlock()

	if err != nil {
		return "", err
	}
	if marker == markEval && evalFn != nil {
		return evalFn(prompt)
	}
	if !hasReply {
		return "", fmt.Errorf("no scripted reply for %q", marker)
	}
	return reply, nil
}

type fakeEmbedder struct {
	err   error
	texts []string
}

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.texts = append(e.texts, texts...)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeIndex struct {
	matches []domain.VectorMatch
	err     error
	topK    int
}

func (x *fakeIndex) EnsureCollection(context.Context) error { return nil }

func (x *fakeIndex) Upsert(context.Context, []string, [][]float32) error { return nil }

func (x *fakeIndex) Query(_ context.Context, _ []float32, topK int) ([]domain.VectorMatch, error) {
	x.topK = topK
	if x.err != nil {
		return nil, x.err
	}
	if len(x.matches) > topK {
		return x.matches[:topK], nil
	}
	return x.matches, nil
}

type fakeStore struct {
	byID map[string]domain.Candidate
	err  error
}

func newFakeStore(cs ...domain.Candidate) *fakeStore {
	s := &fakeStore{byID: map[string]domain.Candidate{}}
	for _, c := range cs {
		s.byID[c.ID] = c
	}
	return s
}

func (s *fakeStore) LoadAll(context.Context) ([]domain.Candidate, error) {
	out := make([]domain.Candidate, 0, len(s.byID))
	for _, c := range s.byID {
		out = append(out, c)
	}
	return out, s.err
}

// GetByIDs returns records in map order so callers cannot rely on store order.
func (s *fakeStore) GetByIDs(_ context.Context, ids []string) ([]domain.Candidate, error) {
	if s.err != nil {
		return nil, s.err
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.Candidate
	for id, c := range s.byID {
		if want[id] {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
	err     error
	getErr  error
	listErr error
	limit   int
}

func (h *fakeHistory) Append(_ context.Context, e domain.HistoryEntry) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return "", h.err
	}
	e.ID = fmt.Sprintf("%d", len(h.entries)+1)
	h.entries = append(h.entries, e)
	return e.ID, nil
}

func (h *fakeHistory) List(_ context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	h.limit = limit
	if h.listErr != nil {
		return nil, h.listErr
	}
	var out []domain.HistoryEntry
	for i := len(h.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if h.entries[i].UserID == userID {
			out = append(out, h.entries[i])
		}
	}
	return out, nil
}

func (h *fakeHistory) Get(_ context.Context, searchID, userID string) (domain.HistoryEntry, error) {
	if h.getErr != nil {
		return domain.HistoryEntry{}, h.getErr
	}
	for _, e := range h.entries {
		if e.ID == searchID && e.UserID == userID {
			return e, nil
		}
	}
	return domain.HistoryEntry{}, domain.ErrNotFound
}

func candidate(id, skills string) domain.Candidate {
	return domain.Candidate{
		ID:                id,
		FullName:          "Candidate " + id,
		Experience:        "5 years backend at Acme",
		ProfessionalSkill: skills,
		Education:         "Bachelor of Computer Science",
	}
}
