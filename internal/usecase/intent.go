package usecase

import (
	"context"
	"log/slog"
	"strings"

	ai "github.com/fairyhunter13/ai-talent-ranker/internal/adapter/ai"
	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
	obsctx "github.com/fairyhunter13/ai-talent-ranker/internal/observability"
	"github.com/fairyhunter13/ai-talent-ranker/internal/prompts"
)

// IntentClassifier runs the intent and dynamic-weight calls.
type IntentClassifier struct {
	LLM LLMCaller
	// SchemaCheck validates the weights object against the bundled schema.
	SchemaCheck bool
}

// ClassifyIntent returns the model's label for query. An empty intent means
// the call failed. Unrecognised labels are returned as-is with a fallback
// report so the planner can still route them.
func (c IntentClassifier) ClassifyIntent(ctx context.Context, query string) (domain.Intent, domain.StageReport) {
	lg := obsctx.StageLogger(ctx, StageIntent)
	prompt, err := prompts.Render(prompts.IntentClassifier, map[string]string{prompts.KeyUserQuery: query})
	if err != nil {
		lg.Error("render prompt failed", slog.Any("error", err))
		return "", report(StageIntent, domain.StageFailed, err.Error())
	}
	out, err := c.LLM.Call(ctx, prompt)
	if err != nil {
		lg.Warn("intent classification failed", slog.Any("error", err))
		return "", report(StageIntent, domain.StageFailed, err.Error())
	}
	label := normalizeLabel(out)
	intent := domain.Intent(label)
	if !intent.Known() {
		lg.Warn("unexpected intent label", slog.String("label", truncate(out, 200)))
		return intent, report(StageIntent, domain.StageFallback, "unrecognised label "+truncate(label, 64))
	}
	return intent, report(StageIntent, domain.StageOK, "")
}

func normalizeLabel(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "'\"`"))
}

// DynamicWeights derives per-criterion weights for query. Missing criteria
// keep their defaults; any failure returns the defaults unchanged.
func (c IntentClassifier) DynamicWeights(ctx context.Context, query string) (domain.Weights, domain.StageReport) {
	lg := obsctx.StageLogger(ctx, StageWeights)
	prompt, err := prompts.Render(prompts.WeightAdjuster, map[string]string{prompts.KeyUserQuery: query})
	if err != nil {
		lg.Error("render prompt failed", slog.Any("error", err))
		return domain.DefaultWeights(), report(StageWeights, domain.StageFallback, err.Error())
	}
	out, err := c.LLM.Call(ctx, prompt)
	if err != nil {
		lg.Warn("weight derivation failed, using defaults", slog.Any("error", err))
		return domain.DefaultWeights(), report(StageWeights, domain.StageFallback, err.Error())
	}
	schema := ai.SchemaNone
	if c.SchemaCheck {
		schema = ai.SchemaWeights
	}
	var raw map[string]any
	if err := ai.ParseJSON(out, schema, &raw); err != nil {
		lg.Warn("weights response unparsable, using defaults", slog.Any("error", err), slog.String("raw", truncate(out, 500)))
		return domain.DefaultWeights(), report(StageWeights, domain.StageFallback, err.Error())
	}
	w := domain.DefaultWeights()
	for k, v := range domain.WeightsFromRaw(raw) {
		w[k] = v
	}
	return w, report(StageWeights, domain.StageOK, "")
}
