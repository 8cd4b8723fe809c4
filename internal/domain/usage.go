package domain

import "context"

type requestUsageKey struct{}

// RequestUsage collects token usage for a single HTTP request.
// The handler puts a mutable pointer into the context before running the pipeline;
// the instrumented clients write to it; the handler reads it for response headers.
type RequestUsage struct {
	EmbeddingTokens  int
	GenerationTokens int
	EmbeddingUsed    bool // true if embedding was called, even on a cache hit with 0 tokens
	GenerationUsed   bool
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *RequestUsage) {
	u := &RequestUsage{}
	return context.WithValue(ctx, requestUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *RequestUsage {
	u, _ := ctx.Value(requestUsageKey{}).(*RequestUsage)
	return u
}

// AddEmbeddingTokens records tokens consumed by the embedding call.
func (u *RequestUsage) AddEmbeddingTokens(n int) {
	if u != nil {
		u.EmbeddingTokens += n
		u.EmbeddingUsed = true
	}
}

// AddGenerationTokens records tokens consumed by the generation call.
func (u *RequestUsage) AddGenerationTokens(n int) {
	if u != nil {
		u.GenerationTokens += n
		u.GenerationUsed = true
	}
}
