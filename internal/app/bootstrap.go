// Package app wires application components and startup helpers.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/ai"
	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/ai/gemini"
	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/ai/openai"
	"github.com/fairyhunter13/ai-talent-ranker/internal/config"
	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

// Embeddings providers accepted in EMBEDDINGS_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Collection is implemented by *qdrant.Index.
type Collection interface {
	EnsureCollection(ctx context.Context) error
}

// EnsureIndex creates the candidate collection when absent. Failure is logged
// and left to readiness, so the server can start before the index is up.
func EnsureIndex(ctx context.Context, idx Collection) {
	if idx == nil {
		return
	}
	if err := idx.EnsureCollection(ctx); err != nil {
		slog.Warn("qdrant ensure collection failed", slog.Any("error", err))
	}
}

// NewEmbedder selects the embeddings provider and fronts it with the
// in-process cache. models is only required for the gemini provider.
func NewEmbedder(cfg config.Config, models *genai.Models) (domain.Embedder, error) {
	var base domain.Embedder
	switch p := strings.ToLower(strings.TrimSpace(cfg.EmbeddingsProvider)); p {
	case "", ProviderGemini:
		if models == nil {
			return nil, fmt.Errorf("op=app.NewEmbedder: %w: gemini embeddings need GEMINI_API_KEY", domain.ErrInvalidArgument)
		}
		base = gemini.NewEmbedder(models, cfg.EmbeddingsModel, cfg.EmbeddingDim)
	case ProviderOpenAI:
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, fmt.Errorf("op=app.NewEmbedder: %w: openai embeddings need OPENAI_API_KEY", domain.ErrInvalidArgument)
		}
		base = openai.New(cfg)
	default:
		return nil, fmt.Errorf("op=app.NewEmbedder: %w: unknown embeddings provider %q", domain.ErrInvalidArgument, p)
	}
	return ai.NewEmbedCache(base, cfg.EmbedCacheSize), nil
}

// NewCaller returns the resilient LLM caller over the Gemini text model.
func NewCaller(cfg config.Config, models *genai.Models) *ai.ResilientCaller {
	gw := gemini.NewClient(models, cfg.GeminiModel)
	return ai.NewResilientCaller(gw, ai.CallerConfig{
		Provider:    "gemini",
		Timeout:     cfg.LLMCallTimeout,
		MaxAttempts: cfg.LLMMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay(),
	})
}
