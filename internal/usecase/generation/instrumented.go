// Package generation decorates the text-generation provider with budget
// enforcement, per-request usage accounting and logging.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nyaya-labs/nyaya/internal/domain"
	"github.com/nyaya-labs/nyaya/internal/logger"
)

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
}

// provider is what the decorator wraps: a generator that can also stream.
type provider interface {
	domain.Generator
	domain.StreamGenerator
}

// InstrumentedGenerator wraps a provider with budget enforcement and logging.
type InstrumentedGenerator struct {
	inner    provider
	provider string
	model    string
	budget   BudgetChecker
	logger   *zap.Logger
}

// NewInstrumentedGenerator wraps a generator. budget may be nil.
func NewInstrumentedGenerator(
	inner provider, providerName, model string,
	budget BudgetChecker, logger *zap.Logger,
) *InstrumentedGenerator {
	return &InstrumentedGenerator{
		inner:    inner,
		provider: providerName,
		model:    model,
		budget:   budget,
		logger:   logger,
	}
}

// Generate checks budget, delegates to the inner generator, and records usage.
func (g *InstrumentedGenerator) Generate(ctx context.Context, prompt string) (domain.GenerationResult, error) {
	return g.run(ctx, "generate", len(prompt), func() (domain.GenerationResult, error) {
		return g.inner.Generate(ctx, prompt)
	})
}

// GenerateStream is Generate with incremental delivery through onDelta.
func (g *InstrumentedGenerator) GenerateStream(
	ctx context.Context, prompt string, onDelta domain.DeltaFunc,
) (domain.GenerationResult, error) {
	return g.run(ctx, "stream", len(prompt), func() (domain.GenerationResult, error) {
		return g.inner.GenerateStream(ctx, prompt, onDelta)
	})
}

func (g *InstrumentedGenerator) run(
	ctx context.Context, mode string, promptBytes int,
	call func() (domain.GenerationResult, error),
) (domain.GenerationResult, error) {
	log := logger.FromContext(ctx, g.logger).With(
		zap.String("provider", g.provider),
		zap.String("model", g.model),
		zap.String("mode", mode),
	)

	if g.budget != nil {
		if err := g.budget.Check(ctx); err != nil {
			log.Error("Generation budget exceeded", zap.Error(err))
			return domain.GenerationResult{}, fmt.Errorf("budget check: %w", err)
		}
	}

	start := time.Now()
	result, err := call()
	duration := time.Since(start)

	// A failed stream may still have consumed tokens.
	if g.budget != nil {
		g.budget.Record(int64(result.TotalTokens))
	}

	if err != nil {
		level := log.Error
		if errors.Is(err, context.Canceled) {
			level = log.Warn
		}
		level("Generation request failed",
			zap.Duration("duration", duration),
			zap.Int("prompt_bytes", promptBytes),
			zap.Error(err),
		)
		return domain.GenerationResult{}, fmt.Errorf("generate: %w", err)
	}

	domain.UsageFromContext(ctx).AddGenerationTokens(result.TotalTokens)

	log.Debug("Generation request completed",
		zap.Duration("duration", duration),
		zap.Int("prompt_bytes", promptBytes),
		zap.Int("answer_bytes", len(result.Text)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("completion_tokens", result.CompletionTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}
