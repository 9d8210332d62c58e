// Package ai sends composed prompts to a generative model. Gemini and
// OpenAI backends share one Analyzer interface, a circuit breaker and a
// retry wrapper.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"doc-analysis-platform/internal/config"

	"github.com/sony/gobreaker"
)

var (
	ErrEmptyResponse = errors.New("model returned no text")
	ErrRateLimited   = errors.New("rate limit exceeded: wait before retry")
)

// Analyzer returns the model's answer for a prompt.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string) (string, error)
}

// ComposePrompt joins the user's prompt and the extracted document text.
func ComposePrompt(prompt, text string) string {
	return prompt + "\n\n" + text
}

// Client is an Analyzer that holds network resources.
type Client interface {
	Analyzer
	Close() error
}

// New builds the provider named by AI_PROVIDER wrapped in retries. The
// returned Client must be closed on shutdown.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Analyzer, Client, error) {
	var (
		client Client
		err    error
	)
	switch cfg.AIProvider {
	case "openai":
		client = NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, "", logger)
	case "gemini":
		client, err = NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.AITier, logger)
	default:
		err = fmt.Errorf("unknown AI provider %q", cfg.AIProvider)
	}
	if err != nil {
		return nil, nil, err
	}
	return WithRetry(client, cfg.AIMaxRetries, time.Second, logger), client, nil
}

type retrying struct {
	next       Analyzer
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// WithRetry retries transient failures up to maxRetries times, waiting
// baseDelay, 2*baseDelay, 4*baseDelay and so on between attempts.
func WithRetry(a Analyzer, maxRetries int, baseDelay time.Duration, logger *slog.Logger) Analyzer {
	if maxRetries <= 0 {
		return a
	}
	return &retrying{next: a, maxRetries: maxRetries, baseDelay: baseDelay, logger: logger}
}

func (r *retrying) Analyze(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		text, err := r.next.Analyze(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable(err) || attempt == r.maxRetries {
			break
		}

		delay := r.baseDelay << attempt
		r.logger.Warn("AI request failed, retrying", "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-time.After(delay):
		}
	}
	return "", lastErr
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return false
	case errors.Is(err, ErrRateLimited):
		return false
	}
	return true
}
