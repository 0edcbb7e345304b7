// Package gemini implements the language model gateway and the embedder on
// the Google GenAI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

const (
	defaultModel          = "gemini-1.5-flash"
	defaultEmbeddingModel = "text-embedding-004"
)

// modelsAPI is the subset of *genai.Models used by the adapters.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// NewModels creates a GenAI client on the Gemini API backend and returns its
// models service.
func NewModels(ctx context.Context, apiKey string) (*genai.Models, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("op=gemini.NewModels: %w: api key is required", domain.ErrInvalidArgument)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("op=gemini.NewModels: %w", err)
	}
	return client.Models, nil
}

// Client is a domain.LLMGateway backed by a Gemini text model.
type Client struct {
	models modelsAPI
	model  string
	config *genai.GenerateContentConfig
}

// NewClient returns a gateway for model. Content safety filters are disabled
// for the four harm categories so resume text is never blocked.
func NewClient(models modelsAPI, model string) *Client {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	return &Client{models: models, model: model, config: &genai.GenerateContentConfig{SafetySettings: safetySettings()}}
}

func safetySettings() []*genai.SafetySetting {
	cats := []genai.HarmCategory{
		genai.HarmCategoryHateSpeech,
		genai.HarmCategoryHarassment,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	out := make([]*genai.SafetySetting, 0, len(cats))
	for _, c := range cats {
		out = append(out, &genai.SafetySetting{Category: c, Threshold: genai.HarmBlockThresholdBlockNone})
	}
	return out
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Generate sends prompt and returns the concatenated text of the response.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.models == nil {
		return "", fmt.Errorf("op=gemini.Generate: %w: client not initialized", domain.ErrInternal)
	}
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), c.config)
	if err != nil {
		return "", fmt.Errorf("op=gemini.Generate: %w", mapError(ctx, err))
	}
	return responseText(resp), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			b.WriteString(part.Text)
		}
		// only the first candidate carries the answer
		break
	}
	return b.String()
}

// mapError folds provider errors into the domain taxonomy.
func mapError(ctx context.Context, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return fmt.Errorf("%w: %s", domain.ErrUpstreamRateLimit, apiErr.Message)
		}
		if apiErr.Code == http.StatusGatewayTimeout || apiErr.Status == "DEADLINE_EXCEEDED" {
			return fmt.Errorf("%w: %s", domain.ErrUpstreamTimeout, apiErr.Message)
		}
		return err
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return mapError(ctx, *apiErrPtr)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
	}
	return err
}
