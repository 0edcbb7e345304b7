package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
	obsctx "github.com/fairyhunter13/ai-talent-ranker/internal/observability"
)

// Retrieval is the shortlist for one role in similarity order.
type Retrieval struct {
	IDs        []string
	Scores     map[string]float64
	Candidates []domain.Candidate
}

// Retriever finds and hydrates candidates for a role.
type Retriever struct {
	Embedder domain.Embedder
	Index    domain.VectorIndex
	Store    domain.ResumeStore
	TopK     int
}

// RetrievalQuery renders the phrase embedded for a role.
func RetrievalQuery(role domain.RoleSpec) string {
	return fmt.Sprintf("%s with %s skills in %s", role.PositionTitle, role.ExperienceLevel, strings.Join(role.HardSkills, ", "))
}

// Retrieve embeds the role query, takes the TopK nearest ids and loads their
// records. Ids the store does not know are dropped. A failed embed or query
// yields an empty retrieval with a failed report.
func (r Retriever) Retrieve(ctx context.Context, role domain.RoleSpec) (Retrieval, domain.StageReport) {
	lg := obsctx.StageLogger(ctx, StageRetrieve).With(slog.String("role", role.DisplayTitle()))
	q := RetrievalQuery(role)
	vecs, err := r.Embedder.Embed(ctx, []string{q})
	if err != nil || len(vecs) != 1 {
		if err == nil {
			err = fmt.Errorf("%w: expected 1 vector, got %d", domain.ErrInternal, len(vecs))
		}
		lg.Error("embed retrieval query failed", slog.Any("error", err))
		return Retrieval{}, report(StageRetrieve, domain.StageFailed, err.Error())
	}
	matches, err := r.Index.Query(ctx, vecs[0], r.TopK)
	if err != nil {
		lg.Error("vector query failed", slog.Any("error", err))
		return Retrieval{}, report(StageRetrieve, domain.StageFailed, err.Error())
	}
	out := Retrieval{Scores: make(map[string]float64, len(matches))}
	for _, m := range matches {
		if _, dup := out.Scores[m.ID]; dup {
			continue
		}
		out.IDs = append(out.IDs, m.ID)
		out.Scores[m.ID] = m.Score
	}
	if len(out.IDs) == 0 {
		lg.Info("no candidates retrieved")
		return out, report(StageRetrieve, domain.StageOK, "no matches")
	}
	found, err := r.Store.GetByIDs(ctx, out.IDs)
	if err != nil {
		lg.Error("hydrate candidates failed", slog.Any("error", err))
		return out, report(StageRetrieve, domain.StageFailed, err.Error())
	}
	byID := make(map[string]domain.Candidate, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}
	out.Candidates = make([]domain.Candidate, 0, len(out.IDs))
	for _, id := range out.IDs {
		c, ok := byID[id]
		if !ok {
			lg.Debug("retrieved id missing from resume store", slog.String("candidate_id", id))
			continue
		}
		out.Candidates = append(out.Candidates, c)
	}
	lg.Debug("candidates retrieved", slog.Int("matches", len(out.IDs)), slog.Int("hydrated", len(out.Candidates)))
	return out, report(StageRetrieve, domain.StageOK, "")
}
