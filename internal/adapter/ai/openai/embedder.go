// Package openai implements domain.Embedder against any OpenAI-compatible
// /embeddings endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/observability"
	"github.com/fairyhunter13/ai-talent-ranker/internal/config"
	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Embedder calls the embeddings endpoint with bounded exponential retries on
// 429 and 5xx responses.
type Embedder struct {
	apiKey  string
	baseURL string
	model   string
	dim     int
	hc      *http.Client
	backoff func() backoff.BackOff
}

type embedReq struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embedResp struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// New builds an embedder from configuration.
func New(cfg config.Config) *Embedder {
	base := strings.TrimRight(strings.TrimSpace(cfg.OpenAIBaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	maxElapsed := 30 * time.Second
	if cfg.IsTest() {
		maxElapsed = 200 * time.Millisecond
	}
	return &Embedder{
		apiKey:  cfg.OpenAIAPIKey,
		baseURL: base,
		model:   cfg.EmbeddingsModel,
		dim:     cfg.EmbeddingDim,
		hc:      &http.Client{Timeout: 30 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		backoff: func() backoff.BackOff {
			expo := backoff.NewExponentialBackOff()
			expo.InitialInterval = 50 * time.Millisecond
			expo.MaxInterval = 2 * time.Second
			expo.MaxElapsedTime = maxElapsed
			return expo
		},
	}
}

// Embed returns one vector per text, ordered by the response index.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.apiKey == "" || e.model == "" {
		slog.Error("embedder not configured", slog.String("provider", "openai"), slog.Bool("has_api_key", e.apiKey != ""), slog.String("model", e.model))
		return nil, fmt.Errorf("op=openai.Embed: %w: OPENAI_API_KEY or EMBEDDINGS_MODEL missing", domain.ErrInvalidArgument)
	}
	if len(texts) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(embedReq{Model: e.model, Input: texts, Dimensions: e.dim})
	if err != nil {
		return nil, fmt.Errorf("op=openai.Embed: %w", err)
	}
	endpoint := e.baseURL + "/embeddings"

	var out embedResp
	op := func() error {
		start := time.Now()
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
		if err != nil {
			return backoff.Permanent(err)
		}
		r.Header.Set("Authorization", "Bearer "+e.apiKey)
		r.Header.Set("Content-Type", "application/json")
		resp, err := e.hc.Do(r)
		observability.ObserveAICall("openai", "embed", start)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			slog.Warn("ai provider rate limited", slog.String("provider", "openai"), slog.String("op", "embed"), slog.String("x_request_id", resp.Header.Get("X-Request-Id")))
			return fmt.Errorf("%w: embed status 429", domain.ErrUpstreamRateLimit)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			slog.Warn("ai provider 4xx", slog.String("provider", "openai"), slog.String("op", "embed"), slog.Int("status", resp.StatusCode), slog.String("body", snippet(resp.Body, 512)))
			return backoff.Permanent(fmt.Errorf("%w: embed status %d", domain.ErrInvalidArgument, resp.StatusCode))
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			slog.Error("ai provider non-2xx", slog.String("provider", "openai"), slog.String("op", "embed"), slog.Int("status", resp.StatusCode), slog.String("body", snippet(resp.Body, 512)))
			return fmt.Errorf("embed status %d", resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode embeddings: %w", err))
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(e.backoff(), ctx)); err != nil {
		return nil, fmt.Errorf("op=openai.Embed: %w", err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("op=openai.Embed: %w: got %d embeddings for %d texts", domain.ErrInternal, len(out.Data), len(texts))
	}
	res := make([][]float32, len(texts))
	for i, d := range out.Data {
		idx := d.Index
		if idx < 0 || idx >= len(res) || res[idx] != nil {
			idx = i
		}
		v := make([]float32, len(d.Embedding))
		for j := range d.Embedding {
			v[j] = float32(d.Embedding[j])
		}
		res[idx] = v
	}
	return res, nil
}

func snippet(r io.Reader, n int64) string {
	b, _ := io.ReadAll(io.LimitReader(r, n))
	return string(b)
}
