package ai

import (
	"context"
	"log/slog"
	"strings"

	"doc-analysis-platform/internal/telemetry"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// OpenAIClient analyzes prompts with a chat completion model.
type OpenAIClient struct {
	client  openai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewOpenAIClient builds a client. baseURL is optional and points the
// client at an OpenAI-compatible server.
func NewOpenAIClient(apiKey, model, baseURL string, logger *slog.Logger) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// retries are handled by WithRetry
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIClient{
		client:  openai.NewClient(opts...),
		model:   model,
		breaker: newBreaker("OpenAIAPI", logger),
		logger:  logger,
	}
}

func (oc *OpenAIClient) Analyze(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("openai-client").Start(ctx, "openai.chat_completion")
	defer span.End()
	span.SetAttributes(attribute.String("openai.model", oc.model))

	result, err := oc.breaker.Execute(func() (interface{}, error) {
		return oc.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(oc.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
		})
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("openai.error", true), attribute.String("openai.error_message", err.Error()))
		return "", err
	}

	resp := result.(*openai.ChatCompletion)
	telemetry.AITokensUsed.WithLabelValues("openai", oc.model).Add(float64(resp.Usage.TotalTokens))
	span.SetAttributes(attribute.Int64("openai.total_tokens", resp.Usage.TotalTokens))

	text := completionText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func completionText(resp *openai.ChatCompletion) string {
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

func (oc *OpenAIClient) Close() error { return nil }
