package ai

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"doc-analysis-platform/internal/telemetry"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

type GeminiClient struct {
	client  *genai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
	pacer   *rate.Limiter
	quota   *Quota
	logger  *slog.Logger
}

func NewGeminiClient(ctx context.Context, apiKey, model, tier string, logger *slog.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	limits := limitsForTier(tier)
	// pace at 90% of the per-minute allowance
	perSecond := rate.Limit(float64(limits.RequestsPerMinute) * 0.9 / 60)

	return &GeminiClient{
		client:  client,
		model:   model,
		breaker: newBreaker("GeminiAPI", logger),
		pacer:   rate.NewLimiter(perSecond, max(1, limits.RequestsPerMinute/10)),
		quota:   NewQuota(limits),
		logger:  logger,
	}, nil
}

// GenAI exposes the underlying client so Gemini OCR can share it.
func (gc *GeminiClient) GenAI() *genai.Client {
	return gc.client
}

func (gc *GeminiClient) Analyze(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("gemini-client").Start(ctx, "gemini.generate_content")
	defer span.End()

	estimatedTokens := estimateTokens(prompt)
	span.SetAttributes(
		attribute.Int("gemini.estimated_tokens", estimatedTokens),
		attribute.String("gemini.model", gc.model),
	)

	if !gc.quota.Allow(estimatedTokens) {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", ErrRateLimited
	}
	if err := gc.pacer.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.model)
		model.SetTemperature(0.7)

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}

		actualTokens := extractTokenUsage(resp)
		gc.quota.Record(actualTokens)
		telemetry.AITokensUsed.WithLabelValues("gemini", gc.model).Add(float64(actualTokens))
		span.SetAttributes(attribute.Int("gemini.actual_tokens", actualTokens))

		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
		}
		span.SetAttributes(attribute.Bool("gemini.error", true), attribute.String("gemini.error_message", err.Error()))
		return "", err
	}

	text := responseText(result.(*genai.GenerateContentResponse))
	if text == "" {
		return "", ErrEmptyResponse
	}
	span.SetAttributes(attribute.Bool("gemini.success", true))
	return text, nil
}

// Rough estimate: 1 token ≈ 4 characters
func estimateTokens(prompt string) int {
	return len(prompt) / 4
}

func extractTokenUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}
	return max(1, len(responseText(resp))/4)
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
