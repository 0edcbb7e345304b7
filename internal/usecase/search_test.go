package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

type stubRunner struct {
	res   domain.SearchResult
	calls int
}

func (r *stubRunner) Run(_ context.Context, query string) domain.SearchResult {
	r.calls++
	res := r.res
	res.Query = query
	return res
}

type recorderFunc func(ctx context.Context, e domain.HistoryEntry) error

func (f recorderFunc) Record(ctx context.Context, e domain.HistoryEntry) error { return f(ctx, e) }

func TestSearch_BlankQueryRejected(t *testing.T) {
	runner := &stubRunner{}
	svc := NewSearchService(runner, nil, time.Second)
	_, err := svc.Search(context.Background(), "u1", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Zero(t, runner.calls)
}

func TestSearch_RecordsHistory(t *testing.T) {
	store := &fakeHistory{}
	runner := &stubRunner{res: domain.SearchResult{RefinedQuery: "Go developer", Intent: domain.IntentSpecificRole, CompletedAt: time.Unix(100, 0).UTC()}}
	svc := NewSearchService(runner, DirectRecorder{Store: store}, time.Second)

	res, err := svc.Search(context.Background(), "u1", "go dev")
	require.NoError(t, err)
	assert.Equal(t, "go dev", res.Query)
	require.Len(t, store.entries, 1)

	e := store.entries[0]
	assert.Equal(t, "u1", e.UserID)
	assert.Equal(t, "go dev", e.QueryText)
	assert.Equal(t, "Go developer", e.RefinedQuery)
	assert.Equal(t, "specific_role", e.Intent)
	var decoded domain.SearchResult
	require.NoError(t, json.Unmarshal(e.Results, &decoded))
	assert.Equal(t, "go dev", decoded.Query)
}

func TestSearch_HistoryFailureDoesNotFailSearch(t *testing.T) {
	store := &fakeHistory{err: errors.New("db down")}
	svc := NewSearchService(&stubRunner{}, DirectRecorder{Store: store}, time.Second)
	_, err := svc.Search(context.Background(), "u1", "q")
	assert.NoError(t, err)
}

func TestSearch_HistoryWriteSurvivesCancelledRequest(t *testing.T) {
	var gotDeadline bool
	var gotErr error
	rec := recorderFunc(func(ctx context.Context, _ domain.HistoryEntry) error {
		_, gotDeadline = ctx.Deadline()
		gotErr = ctx.Err()
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := NewSearchService(&stubRunner{}, rec, 50*time.Millisecond)
	_, err := svc.Search(ctx, "u1", "q")
	require.NoError(t, err)
	assert.True(t, gotDeadline)
	assert.NoError(t, gotErr)
}

func TestSearch_AnonymousSkipsHistory(t *testing.T) {
	called := false
	rec := recorderFunc(func(context.Context, domain.HistoryEntry) error { called = true; return nil })
	_, err := NewSearchService(&stubRunner{}, rec, time.Second).Search(context.Background(), "", "q")
	require.NoError(t, err)
	assert.False(t, called)
}
