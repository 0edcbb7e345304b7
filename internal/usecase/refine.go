package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
	obsctx "github.com/fairyhunter13/ai-talent-ranker/internal/observability"
	"github.com/fairyhunter13/ai-talent-ranker/internal/prompts"
)

// Refiner corrects and clarifies a raw hiring query.
type Refiner struct {
	LLM LLMCaller
}

// Refine returns the model's rewrite of query, or query itself when the call
// fails or yields nothing.
func (r Refiner) Refine(ctx context.Context, query string) (string, domain.StageReport) {
	lg := obsctx.StageLogger(ctx, StageRefine)
	prompt, err := prompts.Render(prompts.QueryEnhancer, map[string]string{prompts.KeyUserQuery: query})
	if err != nil {
		lg.Error("render prompt failed", slog.Any("error", err))
		return query, report(StageRefine, domain.StageFallback, err.Error())
	}
	out, err := r.LLM.Call(ctx, prompt)
	if err != nil {
		lg.Warn("query refinement failed, using original query", slog.Any("error", err))
		return query, report(StageRefine, domain.StageFallback, err.Error())
	}
	refined := strings.TrimSpace(out)
	if refined == "" {
		lg.Warn("query refinement returned empty text, using original query")
		return query, report(StageRefine, domain.StageFallback, "empty response")
	}
	lg.Debug("query refined", slog.String("refined_query", refined))
	return refined, report(StageRefine, domain.StageOK, "")
}
