package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

func seedHistory(t *testing.T, store *fakeHistory, userID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		blob, err := json.Marshal(domain.SearchResult{Query: fmt.Sprintf("q%d", i)})
		require.NoError(t, err)
		_, err = store.Append(context.Background(), domain.HistoryEntry{
			UserID:     userID,
			QueryText:  fmt.Sprintf("q%d", i),
			Results:    blob,
			SearchedAt: time.Unix(int64(i), 0),
		})
		require.NoError(t, err)
	}
}

func TestHistoryList_NewestFirstLimited(t *testing.T) {
	store := &fakeHistory{}
	seedHistory(t, store, "u1", 12)
	seedHistory(t, store, "u2", 1)

	got, err := NewHistoryService(store, 10).List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, "q11", got[0].QueryText)
	assert.Equal(t, 10, store.limit)
}

func TestHistoryList_Validation(t *testing.T) {
	_, err := NewHistoryService(&fakeHistory{}, 0).List(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = NewHistoryService(&fakeHistory{listErr: errors.New("boom")}, 0).List(context.Background(), "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=history.List")
}

func TestHistoryGet(t *testing.T) {
	store := &fakeHistory{}
	seedHistory(t, store, "u1", 2)
	svc := NewHistoryService(store, 10)
	ctx := context.Background()

	res, err := svc.Get(ctx, "2", "u1")
	require.NoError(t, err)
	assert.Equal(t, "q1", res.Query)

	_, err = svc.Get(ctx, "2", "someone-else")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Get(ctx, "", "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestHistoryGet_UndecodableIsNotFound(t *testing.T) {
	store := &fakeHistory{}
	_, _ = store.Append(context.Background(), domain.HistoryEntry{UserID: "u1", Results: []byte("{broken")})
	_, err := NewHistoryService(store, 10).Get(context.Background(), "1", "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHistoryGet_StoreErrorWrapped(t *testing.T) {
	store := &fakeHistory{getErr: errors.New("conn reset")}
	_, err := NewHistoryService(store, 10).Get(context.Background(), "1", "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}
