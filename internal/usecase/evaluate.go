package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	ai "github.com/fairyhunter13/ai-talent-ranker/internal/adapter/ai"
	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/observability"
	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
	obsctx "github.com/fairyhunter13/ai-talent-ranker/internal/observability"
	"github.com/fairyhunter13/ai-talent-ranker/internal/prompts"
)

// EvalOutcome classifies one candidate evaluation.
type EvalOutcome string

const (
	EvalScored        EvalOutcome = "scored"
	EvalSkippedBlank  EvalOutcome = "skipped_blank"
	EvalGatewayFailed EvalOutcome = "gateway_failed"
	EvalParseFailed   EvalOutcome = "parse_failed"
	EvalEmpty         EvalOutcome = "empty"
)

// Usable reports whether the metrics can be scored.
func (o EvalOutcome) Usable() bool { return o == EvalScored }

// Evaluator extracts quality metrics for one candidate.
type Evaluator struct {
	LLM         LLMCaller
	SchemaCheck bool
}

type section struct {
	label string
	value func(domain.Candidate) string
}

var consolidationOrder = []section{
	{"experience", func(c domain.Candidate) string { return c.Experience }},
	{"language_skill", func(c domain.Candidate) string { return c.LanguageSkill }},
	{"certificate", func(c domain.Candidate) string { return c.Certificate }},
	{"achievement", func(c domain.Candidate) string { return c.Achievement }},
	{"project", func(c domain.Candidate) string { return c.Project }},
	{"activity", func(c domain.Candidate) string { return c.Activity }},
	{"professional_skill", func(c domain.Candidate) string { return c.ProfessionalSkill }},
	{"soft_skill", func(c domain.Candidate) string { return c.SoftSkill }},
	{"education", func(c domain.Candidate) string { return c.Education }},
}

// ConsolidateFields renders the scorable resume sections as one labelled
// block. Blank sections are skipped; the result is empty when all are blank.
func ConsolidateFields(c domain.Candidate) string {
	var b strings.Builder
	for _, s := range consolidationOrder {
		v := s.value(c)
		if strings.TrimSpace(v) == "" {
			continue
		}
		b.WriteString("### ")
		b.WriteString(strings.ToUpper(s.label))
		b.WriteString("\n")
		b.WriteString(v)
		b.WriteString("\n\n")
	}
	return b.String()
}

// Evaluate asks the model for the fourteen metrics of c. Only an EvalScored
// outcome carries metrics; every other outcome excludes the candidate.
func (e Evaluator) Evaluate(ctx context.Context, c domain.Candidate) (domain.QualityMetrics, EvalOutcome) {
	outcome, m := e.evaluate(ctx, c)
	observability.CandidateEvaluationsTotal.WithLabelValues(string(outcome)).Inc()
	return m, outcome
}

func (e Evaluator) evaluate(ctx context.Context, c domain.Candidate) (EvalOutcome, domain.QualityMetrics) {
	lg := obsctx.StageLogger(ctx, StageEvaluate).With(slog.String("candidate_id", c.ID))
	block := ConsolidateFields(c)
	if strings.TrimSpace(block) == "" {
		lg.Info("skipping candidate without scorable content")
		return EvalSkippedBlank, domain.QualityMetrics{}
	}
	prompt, err := prompts.Render(prompts.HybridEvaluation, map[string]string{prompts.KeyTextInput: block})
	if err != nil {
		lg.Error("render prompt failed", slog.Any("error", err))
		return EvalGatewayFailed, domain.QualityMetrics{}
	}
	out, err := e.LLM.Call(ctx, prompt)
	if err != nil {
		lg.Warn("quality extraction call failed", slog.Any("error", err))
		return EvalGatewayFailed, domain.QualityMetrics{}
	}
	schema := ai.SchemaNone
	if e.SchemaCheck {
		schema = ai.SchemaExtraction
	}
	var keys map[string]json.RawMessage
	if err := ai.ParseJSON(out, schema, &keys); err != nil {
		lg.Warn("quality extraction unparsable", slog.Any("error", err), slog.String("raw", truncate(out, 500)))
		return EvalParseFailed, domain.QualityMetrics{}
	}
	if len(keys) == 0 {
		lg.Warn("quality extraction empty")
		return EvalEmpty, domain.QualityMetrics{}
	}
	var m domain.QualityMetrics
	if err := json.Unmarshal([]byte(ai.CleanJSON(out)), &m); err != nil {
		lg.Warn("quality extraction has non-numeric metrics", slog.Any("error", err), slog.String("raw", truncate(out, 500)))
		return EvalParseFailed, domain.QualityMetrics{}
	}
	return EvalScored, m
}
