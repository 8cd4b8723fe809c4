package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/nyaya-labs/nyaya/internal/domain"
	"github.com/nyaya-labs/nyaya/internal/metrics"
)

// Generator produces answers with the chat completions API.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	provider    string
	logger      *zap.Logger
}

// GeneratorConfig holds chat completion settings on top of the provider Config.
type GeneratorConfig struct {
	Config
	Temperature float32
	MaxTokens   int
}

// NewGenerator creates an OpenAI-compatible text generator.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	return &Generator{
		client:      newClient(&cfg.Config),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		provider:    cfg.Provider,
		logger:      cfg.Logger,
	}
}

func (g *Generator) request(prompt string) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: g.temperature,
	}
	if g.maxTokens > 0 {
		req.MaxTokens = g.maxTokens
	}
	return req
}

// Generate implements domain.Generator with a single chat completion call.
func (g *Generator) Generate(ctx context.Context, prompt string) (domain.GenerationResult, error) {
	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, g.request(prompt))
	if err != nil {
		g.fail("api_error")
		return domain.GenerationResult{}, parseAPIError("generation", err, domain.ErrGeneration)
	}

	if len(resp.Choices) == 0 {
		g.fail("empty_response")
		return domain.GenerationResult{}, fmt.Errorf("no choices in response: %w", domain.ErrGeneration)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		g.fail("content_filter")
		return domain.GenerationResult{}, fmt.Errorf("response blocked by content filter: %w", domain.ErrGeneration)
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		g.fail("empty_response")
		return domain.GenerationResult{}, fmt.Errorf("empty completion: %w", domain.ErrGeneration)
	}

	res := domain.GenerationResult{
		Text:             choice.Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	g.succeed(start, res)
	return res, nil
}

// GenerateStream implements domain.StreamGenerator. Deltas are passed to onDelta
// in arrival order; an onDelta error aborts the stream.
func (g *Generator) GenerateStream(
	ctx context.Context, prompt string, onDelta domain.DeltaFunc,
) (domain.GenerationResult, error) {
	start := time.Now()

	req := g.request(prompt)
	req.Stream = true
	req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := g.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		g.fail("api_error")
		return domain.GenerationResult{}, parseAPIError("generation", err, domain.ErrGeneration)
	}
	defer func() { _ = stream.Close() }()

	var (
		sb  strings.Builder
		res domain.GenerationResult
	)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			g.fail("stream_error")
			return domain.GenerationResult{}, parseAPIError("generation", err, domain.ErrGeneration)
		}
		if chunk.Usage != nil {
			res.PromptTokens = chunk.Usage.PromptTokens
			res.CompletionTokens = chunk.Usage.CompletionTokens
			res.TotalTokens = chunk.Usage.TotalTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.FinishReason == openai.FinishReasonContentFilter {
			g.fail("content_filter")
			return domain.GenerationResult{}, fmt.Errorf("response blocked by content filter: %w", domain.ErrGeneration)
		}
		if delta := choice.Delta.Content; delta != "" {
			sb.WriteString(delta)
			if err := onDelta(delta); err != nil {
				g.fail("client_abort")
				return domain.GenerationResult{}, fmt.Errorf("deliver delta: %w", err)
			}
		}
	}

	res.Text = sb.String()
	if strings.TrimSpace(res.Text) == "" {
		g.fail("empty_response")
		return domain.GenerationResult{}, fmt.Errorf("empty completion: %w", domain.ErrGeneration)
	}
	g.succeed(start, res)
	return res, nil
}

// HealthCheck verifies API availability via ListModels.
func (g *Generator) HealthCheck(ctx context.Context) error {
	return listModels(ctx, g.client)
}

func (g *Generator) fail(errorType string) {
	metrics.GenerationRequestsTotal.WithLabelValues(g.provider, g.model, "error").Inc()
	metrics.GenerationErrorsTotal.WithLabelValues(g.provider, g.model, errorType).Inc()
}

func (g *Generator) succeed(start time.Time, res domain.GenerationResult) {
	metrics.GenerationRequestsTotal.WithLabelValues(g.provider, g.model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(g.provider, g.model).Observe(time.Since(start).Seconds())
	if res.TotalTokens > 0 {
		metrics.GenerationTokensTotal.WithLabelValues(g.provider, g.model, "prompt").Add(float64(res.PromptTokens))
		metrics.GenerationTokensTotal.WithLabelValues(g.provider, g.model, "completion").Add(float64(res.CompletionTokens))
	}
}
