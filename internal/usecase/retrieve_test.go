package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

func TestRetrievalQuery(t *testing.T) {
	role := domain.RoleSpec{PositionTitle: "Senior Software Developer", ExperienceLevel: "5+ years", HardSkills: domain.StringList{"Python", "AWS"}}
	assert.Equal(t, "Senior Software Developer with 5+ years skills in Python, AWS", RetrievalQuery(role))
	assert.Equal(t, " with  skills in ", RetrievalQuery(domain.RoleSpec{}))
}

func TestRetrieve_PreservesOrderAndDropsDrift(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := &fakeIndex{matches: []domain.VectorMatch{{ID: "3", Score: 0.9}, {ID: "404", Score: 0.8}, {ID: "1", Score: 0.7}}}
	store := newFakeStore(candidate("1", "go"), candidate("3", "python"))
	r := Retriever{Embedder: emb, Index: idx, Store: store, TopK: 10}

	role := domain.RoleSpec{PositionTitle: "Dev", ExperienceLevel: "Senior", HardSkills: domain.StringList{"Go"}}
	got, rep := r.Retrieve(context.Background(), role)
	require.Equal(t, domain.StageOK, rep.Status)
	assert.Equal(t, []string{"3", "404", "1"}, got.IDs)
	assert.Equal(t, 0.8, got.Scores["404"])
	require.Len(t, got.Candidates, 2)
	assert.Equal(t, "3", got.Candidates[0].ID)
	assert.Equal(t, "1", got.Candidates[1].ID)
	assert.Equal(t, 10, idx.topK)
	assert.Equal(t, []string{"Dev with Senior skills in Go"}, emb.texts)
}

func TestRetrieve_NoMatches(t *testing.T) {
	r := Retriever{Embedder: &fakeEmbedder{}, Index: &fakeIndex{}, Store: newFakeStore(), TopK: 10}
	got, rep := r.Retrieve(context.Background(), domain.RoleSpec{})
	assert.Empty(t, got.IDs)
	assert.Equal(t, domain.StageOK, rep.Status)
}

func TestRetrieve_Failures(t *testing.T) {
	ctx := context.Background()

	r := Retriever{Embedder: &fakeEmbedder{err: errGateway}, Index: &fakeIndex{}, Store: newFakeStore(), TopK: 10}
	got, rep := r.Retrieve(ctx, domain.RoleSpec{})
	assert.Empty(t, got.IDs)
	assert.Equal(t, domain.StageFailed, rep.Status)

	r = Retriever{Embedder: &fakeEmbedder{}, Index: &fakeIndex{err: errGateway}, Store: newFakeStore(), TopK: 10}
	_, rep = r.Retrieve(ctx, domain.RoleSpec{})
	assert.Equal(t, domain.StageFailed, rep.Status)

	store := newFakeStore()
	store.err = errGateway
	r = Retriever{Embedder: &fakeEmbedder{}, Index: &fakeIndex{matches: []domain.VectorMatch{{ID: "1", Score: 1}}}, Store: store, TopK: 10}
	got, rep = r.Retrieve(ctx, domain.RoleSpec{})
	assert.Equal(t, []string{"1"}, got.IDs)
	assert.Empty(t, got.Candidates)
	assert.Equal(t, domain.StageFailed, rep.Status)
}
