package redpanda

import (
	"context"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

// fakeClient serves scripted batches, then cancels the run context.
type fakeClient struct {
	mu         sync.Mutex
	batches    [][]*kgo.Record
	cancel     context.CancelFunc
	produced   []*kgo.Record
	produceErr error
	committed  []*kgo.Record
	closed     bool
}

func (f *fakeClient) PollFetches(_ context.Context) kgo.Fetches {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		if f.cancel != nil {
			f.cancel()
		}
		return kgo.NewErrFetch(context.Canceled)
	}
	recs := f.batches[0]
	f.batches = f.batches[1:]
	return kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic:      TopicHistory,
		Partitions: []kgo.FetchPartition{{Partition: 0, Records: recs}},
	}}}}
}

func (f *fakeClient) CommitRecords(_ context.Context, rs ...*kgo.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, rs...)
	return nil
}

func (f *fakeClient) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if f.produceErr == nil {
			f.produced = append(f.produced, r)
		}
		out = append(out, kgo.ProduceResult{Record: r, Err: f.produceErr})
	}
	return out
}

func (f *fakeClient) Close() { f.closed = true }

type fakeStore struct {
	mu      sync.Mutex
	errs    []error
	entries []domain.HistoryEntry
	calls   int
}

func (s *fakeStore) Append(_ domain.Context, e domain.HistoryEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return "", err
		}
	}
	s.entries = append(s.entries, e)
	return "1", nil
}

func (s *fakeStore) List(domain.Context, string, int) ([]domain.HistoryEntry, error) {
	return nil, nil
}

func (s *fakeStore) Get(domain.Context, string, string) (domain.HistoryEntry, error) {
	return domain.HistoryEntry{}, domain.ErrNotFound
}
