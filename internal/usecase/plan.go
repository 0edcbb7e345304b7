package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	ai "github.com/fairyhunter13/ai-talent-ranker/internal/adapter/ai"
	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
	obsctx "github.com/fairyhunter13/ai-talent-ranker/internal/observability"
	"github.com/fairyhunter13/ai-talent-ranker/internal/prompts"
)

// Planner expands a refined query into role specifications.
type Planner struct {
	LLM LLMCaller
}

// TemplateFor picks the project decomposer for project descriptions and the
// single-role extractor for everything else.
func TemplateFor(intent domain.Intent) prompts.Name {
	if intent == domain.IntentProjectDescription {
		return prompts.ProjectDecomposer
	}
	return prompts.RoleExtractor
}

// Plan returns the decomposition, or nil with a failed report when the model
// output cannot be decoded. A malformed plan is never defaulted.
func (p Planner) Plan(ctx context.Context, query string, intent domain.Intent) (*domain.Plan, domain.StageReport) {
	lg := obsctx.StageLogger(ctx, StagePlan).With(slog.String("intent", string(intent)))
	prompt, err := prompts.Render(TemplateFor(intent), map[string]string{prompts.KeyUserQuery: query})
	if err != nil {
		lg.Error("render prompt failed", slog.Any("error", err))
		return nil, report(StagePlan, domain.StageFailed, err.Error())
	}
	out, err := p.LLM.Call(ctx, prompt)
	if err != nil {
		lg.Warn("plan call failed", slog.Any("error", err))
		return nil, report(StagePlan, domain.StageFailed, err.Error())
	}
	plan, expected, err := decodePlan(out, intent)
	if err != nil {
		lg.Warn("plan response unparsable", slog.Any("error", err), slog.String("raw", truncate(out, 500)))
		return nil, report(StagePlan, domain.StageFailed, err.Error())
	}
	lg.Debug("plan decoded", slog.Int("roles", len(plan.Roles)))
	if !expected {
		return plan, report(StagePlan, domain.StageFallback, "unexpected plan shape for intent")
	}
	return plan, report(StagePlan, domain.StageOK, "")
}

// decodePlan accepts the shape the template asks for and, leniently, the
// other one: an object with team_composition, a role array or a single role
// object. expected is false when the shape did not match the intent.
func decodePlan(raw string, intent domain.Intent) (*domain.Plan, bool, error) {
	var msg json.RawMessage
	if err := ai.ParseJSON(raw, ai.SchemaNone, &msg); err != nil {
		return nil, false, err
	}
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 {
		return nil, false, &ai.ParseError{Raw: raw, Cause: fmt.Errorf("empty plan")}
	}
	project := intent == domain.IntentProjectDescription
	switch msg[0] {
	case '[':
		var roles []domain.RoleSpec
		if err := json.Unmarshal(msg, &roles); err != nil {
			return nil, false, &ai.ParseError{Raw: raw, Cause: err}
		}
		return &domain.Plan{Roles: roles}, !project, nil
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(msg, &probe); err != nil {
			return nil, false, &ai.ParseError{Raw: raw, Cause: err}
		}
		if _, ok := probe["team_composition"]; ok {
			var plan domain.Plan
			if err := json.Unmarshal(msg, &plan); err != nil {
				return nil, false, &ai.ParseError{Raw: raw, Cause: err}
			}
			return &plan, project, nil
		}
		if _, ok := probe["position_title"]; ok {
			var role domain.RoleSpec
			if err := json.Unmarshal(msg, &role); err != nil {
				return nil, false, &ai.ParseError{Raw: raw, Cause: err}
			}
			return &domain.Plan{Roles: []domain.RoleSpec{role}}, false, nil
		}
		if project {
			// project object without a team: a plan with no roles
			var plan domain.Plan
			_ = json.Unmarshal(msg, &plan)
			return &plan, false, nil
		}
		return nil, false, &ai.ParseError{Raw: raw, Cause: fmt.Errorf("object has neither team_composition nor position_title")}
	default:
		return nil, false, &ai.ParseError{Raw: raw, Cause: fmt.Errorf("plan is not an object or array")}
	}
}
