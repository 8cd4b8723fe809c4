package domain

import "context"

// Generator produces an answer for a fully built prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (GenerationResult, error)
}

// DeltaFunc receives incremental answer text. Returning an error aborts the stream.
type DeltaFunc func(text string) error

// StreamGenerator produces an answer incrementally.
type StreamGenerator interface {
	GenerateStream(ctx context.Context, prompt string, onDelta DeltaFunc) (GenerationResult, error)
}

// GenerationResult is the generated answer and the provider-reported token usage.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
