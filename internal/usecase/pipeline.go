package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/observability"
	"github.com/fairyhunter13/ai-talent-ranker/internal/config"
	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
	obsctx "github.com/fairyhunter13/ai-talent-ranker/internal/observability"
)

// Pipeline turns one hiring query into ranked shortlists per role. It holds
// no per-request state and is safe for concurrent use.
type Pipeline struct {
	Refiner   Refiner
	Intent    IntentClassifier
	Planner   Planner
	Retriever Retriever
	Evaluator Evaluator
	Scorer    Scorer
	// EvalConcurrency bounds in-flight candidate evaluations per role.
	EvalConcurrency int
	Now             func() time.Time
}

// NewPipeline wires the stages over shared service handles.
func NewPipeline(llm LLMCaller, emb domain.Embedder, index domain.VectorIndex, store domain.ResumeStore, cfg config.Config) *Pipeline {
	return &Pipeline{
		Refiner:         Refiner{LLM: llm},
		Intent:          IntentClassifier{LLM: llm, SchemaCheck: cfg.ResponseSchemaCheck},
		Planner:         Planner{LLM: llm},
		Retriever:       Retriever{Embedder: emb, Index: index, Store: store, TopK: cfg.ShortlistSize},
		Evaluator:       Evaluator{LLM: llm, SchemaCheck: cfg.ResponseSchemaCheck},
		Scorer:          ScorerFromConfig(cfg),
		EvalConcurrency: cfg.EvalConcurrency,
		Now:             time.Now,
	}
}

// Run executes refine, intent, weights and plan, then retrieves, evaluates
// and ranks for each role in plan order. Every stage degrades instead of
// failing, so Run always returns a result.
func (p *Pipeline) Run(ctx context.Context, query string) domain.SearchResult {
	tracer := otel.Tracer("usecase.pipeline")
	ctx, span := tracer.Start(ctx, "Pipeline.Run")
	defer span.End()
	lg := obsctx.LoggerFromContext(ctx)

	res := domain.SearchResult{Query: query, Roles: []domain.RoleResult{}}

	stepCtx, stepSpan := tracer.Start(ctx, "Pipeline.refine")
	refined, rep := p.Refiner.Refine(stepCtx, query)
	stepSpan.End()
	res.RefinedQuery = refined
	res.Stages = append(res.Stages, rep)

	stepCtx, stepSpan = tracer.Start(ctx, "Pipeline.classifyIntent")
	intent, rep := p.Intent.ClassifyIntent(stepCtx, refined)
	stepSpan.End()
	res.Intent = intent
	res.Stages = append(res.Stages, rep)

	stepCtx, stepSpan = tracer.Start(ctx, "Pipeline.dynamicWeights")
	weights, rep := p.Intent.DynamicWeights(stepCtx, refined)
	stepSpan.End()
	res.Weights = weights
	res.Stages = append(res.Stages, rep)

	stepCtx, stepSpan = tracer.Start(ctx, "Pipeline.plan")
	plan, rep := p.Planner.Plan(stepCtx, refined, intent)
	stepSpan.End()
	res.Stages = append(res.Stages, rep)

	var roles []domain.RoleSpec
	if plan != nil {
		res.ProjectSummary = plan.ProjectSummary
		roles = plan.Roles
	}
	span.SetAttributes(attribute.String("intent", string(intent)), attribute.Int("roles", len(roles)))

	for _, role := range roles {
		roleCtx, roleSpan := tracer.Start(ctx, "Pipeline.role")
		roleSpan.SetAttributes(attribute.String("role", role.DisplayTitle()))
		rr, reps, ok := p.rankRole(roleCtx, role, weights)
		roleSpan.End()
		res.Stages = append(res.Stages, reps...)
		if !ok {
			continue
		}
		res.Roles = append(res.Roles, rr)
	}

	res.CompletedAt = p.now()
	observability.RecordSearch(string(intent))
	lg.Info("search pipeline completed",
		slog.String("intent", string(intent)),
		slog.Int("roles_planned", len(roles)),
		slog.Int("roles_ranked", len(res.Roles)))
	return res
}

// rankRole returns ok=false when retrieval produced no ids, so the role is
// left out of the result.
func (p *Pipeline) rankRole(ctx context.Context, role domain.RoleSpec, weights domain.Weights) (domain.RoleResult, []domain.StageReport, bool) {
	title := role.DisplayTitle()
	retrieval, rep := p.Retriever.Retrieve(ctx, role)
	rep.Detail = joinDetail(title, rep.Detail)
	reports := []domain.StageReport{rep}
	if len(retrieval.IDs) == 0 {
		return domain.RoleResult{}, reports, false
	}

	type evalResult struct {
		metrics domain.QualityMetrics
		outcome EvalOutcome
	}
	results := make([]evalResult, len(retrieval.Candidates))
	g, gctx := errgroup.WithContext(ctx)
	limit := p.EvalConcurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)
	for i, c := range retrieval.Candidates {
		g.Go(func() error {
			m, outcome := p.Evaluator.Evaluate(gctx, c)
			results[i] = evalResult{metrics: m, outcome: outcome}
			return nil
		})
	}
	_ = g.Wait()

	scored := make([]domain.ScoredCandidate, 0, len(results))
	failed := 0
	for i, r := range results {
		if !r.outcome.Usable() {
			if r.outcome != EvalSkippedBlank {
				failed++
			}
			continue
		}
		c := retrieval.Candidates[i]
		sc := p.Scorer.Score(c, retrieval.Scores[c.ID], r.metrics, weights, role)
		observability.ObserveFinalScore(sc.FinalScore)
		scored = append(scored, sc)
	}
	Rank(scored)

	status := domain.StageOK
	detail := fmt.Sprintf("%d of %d candidates scored", len(scored), len(retrieval.Candidates))
	if failed > 0 {
		status = domain.StageFallback
	}
	reports = append(reports, report(StageEvaluate, status, joinDetail(title, detail)))
	return domain.RoleResult{Role: title, Spec: role, Candidates: scored}, reports, true
}

func joinDetail(role, detail string) string {
	if detail == "" {
		return role
	}
	return role + ": " + detail
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}
