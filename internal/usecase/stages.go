// Package usecase contains the ranking pipeline stages and the search and
// history services built on them.
package usecase

import (
	"context"

	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/observability"
	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
	"github.com/fairyhunter13/ai-talent-ranker/pkg/textx"
)

// LLMCaller is the resilient prompt/response call every stage goes through.
type LLMCaller interface {
	Call(ctx context.Context, prompt string) (string, error)
}

// Stage names reported in domain.StageReport.
const (
	StageRefine   = "refine"
	StageIntent   = "intent"
	StageWeights  = "weights"
	StagePlan     = "plan"
	StageRetrieve = "retrieve"
	StageEvaluate = "evaluate"
)

func report(stage string, status domain.StageStatus, detail string) domain.StageReport {
	observability.RecordStage(stage, string(status))
	return domain.StageReport{Stage: stage, Status: status, Detail: detail}
}

// truncate bounds raw model output quoted in logs.
func truncate(s string, n int) string { return textx.Truncate(s, n) }
