package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const providerAnthropic = "anthropic"

// AnthropicConfig configures the Anthropic messages client.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	Logger    zerolog.Logger
	// Options are appended to the SDK request options, e.g. a base URL in tests.
	Options []option.RequestOption
}

// AnthropicClient implements Client against the Anthropic messages API.
type AnthropicClient struct {
	client anthropic.Client
	cfg    AnthropicConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewAnthropicClient builds a client using the provided configuration.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required: %w", ErrNotConfigured)
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}

	opts := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, cfg.Options...)

	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/rubric-review-api/pkg/ai/anthropic"),
		logger: cfg.Logger.With().Str("component", "anthropic_client").Logger(),
	}, nil
}

// Provider reports the provider name.
func (c *AnthropicClient) Provider() string { return providerAnthropic }

// Complete sends one user message with a system prompt and returns the text reply.
func (c *AnthropicClient) Complete(parent context.Context, req CompletionRequest) (CompletionResponse, error) {
	ctx, span := c.tracer.Start(parent, "anthropic.complete", trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
	))
	defer span.End()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	start := time.Now()
	message, err := c.client.Messages.New(ctx, params)
	completionDuration.WithLabelValues(providerAnthropic, c.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		completionFailures.WithLabelValues(providerAnthropic, c.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return CompletionResponse{}, fmt.Errorf("anthropic complete: %w", err)
	}

	var builder strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			builder.WriteString(block.Text)
		}
	}

	text := strings.TrimSpace(builder.String())
	if text == "" {
		err := fmt.Errorf("no text content returned from anthropic")
		completionFailures.WithLabelValues(providerAnthropic, c.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return CompletionResponse{}, err
	}

	recordUsage(providerAnthropic, c.cfg.Model, message.Usage.InputTokens, message.Usage.OutputTokens)
	span.SetAttributes(
		attribute.Int64("usage.input_tokens", message.Usage.InputTokens),
		attribute.Int64("usage.output_tokens", message.Usage.OutputTokens),
	)
	c.logger.Debug().
		Str("model", string(message.Model)).
		Int64("input_tokens", message.Usage.InputTokens).
		Int64("output_tokens", message.Usage.OutputTokens).
		Msg("anthropic completion finished")

	return CompletionResponse{
		Text:         text,
		Model:        string(message.Model),
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}, nil
}
