package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/observability"
	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

// Embedder is a domain.Embedder on the Gemini embedding endpoint.
type Embedder struct {
	models modelsAPI
	model  string
	dim    int32
}

// NewEmbedder returns an embedder producing vectors of dim dimensions.
func NewEmbedder(models modelsAPI, model string, dim int) *Embedder {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultEmbeddingModel
	}
	return &Embedder{models: models, model: model, dim: int32(dim)}
}

// Embed returns one vector per text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e == nil || e.models == nil {
		return nil, fmt.Errorf("op=gemini.Embed: %w: embedder not initialized", domain.ErrInternal)
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}
	var cfg *genai.EmbedContentConfig
	if e.dim > 0 {
		cfg = &genai.EmbedContentConfig{OutputDimensionality: genai.Ptr(e.dim)}
	}
	start := time.Now()
	resp, err := e.models.EmbedContent(ctx, e.model, contents, cfg)
	observability.ObserveAICall("gemini", "embed", start)
	if err != nil {
		return nil, fmt.Errorf("op=gemini.Embed: %w", mapError(ctx, err))
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("op=gemini.Embed: %w: got %d embeddings for %d texts", domain.ErrInternal, got, len(texts))
	}
	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("op=gemini.Embed: %w: missing embedding %d", domain.ErrInternal, i)
		}
		out[i] = emb.Values
	}
	return out, nil
}
