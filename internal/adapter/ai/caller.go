// Package ai holds the resilient LLM caller, JSON response parsing and the
// embedding cache shared by the provider adapters.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/observability"
	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
	obsctx "github.com/fairyhunter13/ai-talent-ranker/internal/observability"
)

// CallerConfig controls timeouts and the rate-limit retry schedule.
type CallerConfig struct {
	Provider    string
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ResilientCaller is the only path from pipeline stages to the language model.
// Rate-limit failures are retried on an exponential schedule; every other
// failure is returned on the first occurrence.
type ResilientCaller struct {
	gw     domain.LLMGateway
	cfg    CallerConfig
	sleep  SleepFunc
	tokens *tokencount.Counter
}

// CallerOption customises a ResilientCaller.
type CallerOption func(*ResilientCaller)

// WithSleep replaces the wait between retries. Tests use it to record delays.
func WithSleep(fn SleepFunc) CallerOption {
	return func(c *ResilientCaller) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// NewResilientCaller wraps gw. Zero config values fall back to 3 attempts,
// a 5s base delay and a 100s per-attempt timeout.
func NewResilientCaller(gw domain.LLMGateway, cfg CallerConfig, opts ...CallerOption) *ResilientCaller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 100 * time.Second
	}
	if cfg.Provider == "" {
		cfg.Provider = "llm"
	}
	c := &ResilientCaller{gw: gw, cfg: cfg, sleep: sleepCtx, tokens: tokencount.DefaultCounter}
	for _, o := range opts {
		o(c)
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *ResilientCaller) schedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.cfg.BaseDelay << uint(c.cfg.MaxAttempts)
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Call sends prompt through the gateway and returns the raw text response.
func (c *ResilientCaller) Call(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.gw == nil {
		return "", fmt.Errorf("op=ai.Call: %w: gateway not configured", domain.ErrInternal)
	}
	lg := obsctx.LoggerFromContext(ctx)
	observability.AIPromptTokens.WithLabelValues(c.cfg.Provider).Observe(float64(c.tokens.Estimate(prompt)))

	b := c.schedule()
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		out, err := c.attempt(ctx, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !errors.Is(err, domain.ErrUpstreamRateLimit) {
			observability.AIFailuresTotal.WithLabelValues(c.cfg.Provider, failureReason(err)).Inc()
			lg.Error("llm call failed", slog.String("provider", c.cfg.Provider), slog.Int("attempt", attempt+1), slog.Any("error", err))
			return "", fmt.Errorf("op=ai.Call: %w", err)
		}
		wait := b.NextBackOff()
		observability.AIRetriesTotal.WithLabelValues(c.cfg.Provider).Inc()
		lg.Warn("llm rate limited, backing off",
			slog.String("provider", c.cfg.Provider),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", c.cfg.MaxAttempts),
			slog.Duration("wait", wait))
		if serr := c.sleep(ctx, wait); serr != nil {
			return "", fmt.Errorf("op=ai.Call: %w", serr)
		}
	}
	observability.AIFailuresTotal.WithLabelValues(c.cfg.Provider, "retries_exhausted").Inc()
	lg.Error("llm retries exhausted", slog.String("provider", c.cfg.Provider), slog.Int("attempts", c.cfg.MaxAttempts), slog.Any("error", lastErr))
	return "", fmt.Errorf("op=ai.Call: retries exhausted after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

func (c *ResilientCaller) attempt(ctx context.Context, prompt string) (string, error) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	start := time.Now()
	out, err := c.gw.Generate(actx, prompt)
	observability.ObserveAICall(c.cfg.Provider, "generate", start)
	if err != nil && errors.Is(actx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrUpstreamTimeout) {
		err = fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
	}
	return out, err
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
