// Package query runs the retrieval-augmented answer pipeline:
// validate, retrieve, assemble context, build prompt, generate.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/nyaya-labs/nyaya/internal/domain"
	"github.com/nyaya-labs/nyaya/internal/logger"
	"github.com/nyaya-labs/nyaya/internal/metrics"
)

const tracerName = "nyaya/query"

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTopK sets k passed to the retriever. Zero lets the retriever pick its default.
func WithTopK(k int) Option {
	return func(p *Pipeline) { p.topK = k }
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// Pipeline answers one query per call. It holds no per-request state and is safe
// for concurrent use.
type Pipeline struct {
	retriever Retriever
	assembler Assembler
	builder   PromptBuilder
	generator domain.Generator
	topK      int
	tracer    trace.Tracer
	logger    *zap.Logger
}

// New creates a pipeline.
func New(
	r Retriever, a Assembler, b PromptBuilder, g domain.Generator,
	logger *zap.Logger, opts ...Option,
) *Pipeline {
	p := &Pipeline{
		retriever: r,
		assembler: a,
		builder:   b,
		generator: g,
		tracer:    otel.Tracer(tracerName),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run answers raw and returns Success or Failure. It never returns nil.
func (p *Pipeline) Run(ctx context.Context, raw string) Result {
	return p.run(ctx, raw, func(ctx context.Context, prompt string) (domain.GenerationResult, error) {
		return p.generator.Generate(ctx, prompt)
	})
}

// Stream is Run with the answer delivered incrementally through onDelta.
// Success.Answer still carries the full text. Generators without streaming
// support deliver the whole answer as one delta.
func (p *Pipeline) Stream(ctx context.Context, raw string, onDelta domain.DeltaFunc) Result {
	return p.run(ctx, raw, func(ctx context.Context, prompt string) (domain.GenerationResult, error) {
		if sg, ok := p.generator.(domain.StreamGenerator); ok {
			return sg.GenerateStream(ctx, prompt, onDelta)
		}
		res, err := p.generator.Generate(ctx, prompt)
		if err != nil {
			return res, err
		}
		if err := onDelta(res.Text); err != nil {
			return res, err
		}
		return res, nil
	})
}

type generateFunc func(ctx context.Context, prompt string) (domain.GenerationResult, error)

func (p *Pipeline) run(ctx context.Context, raw string, generate generateFunc) Result {
	ctx, span := p.tracer.Start(ctx, "query.run")
	defer span.End()
	log := logger.FromContext(ctx, p.logger)

	if strings.TrimSpace(raw) == "" {
		return p.finish(span, Failure{Kind: InvalidInput, Message: MessageRequired})
	}
	span.SetAttributes(
		attribute.Int("query.length", len(raw)),
		attribute.String("query.language", string(domain.DetectLanguage(raw))),
	)

	docs, err := p.retrieve(ctx, raw, log)
	if err != nil {
		return p.finish(span, Failure{Kind: EmbeddingFailed, Message: err.Error()})
	}

	ctxText, sources := p.assemble(ctx, docs)
	prompt := p.builder.Build(raw, ctxText)

	gctx, gspan := p.tracer.Start(ctx, "query.generate")
	gen, err := generate(gctx, prompt)
	if err != nil {
		gspan.RecordError(err)
		gspan.SetStatus(codes.Error, "generation failed")
		gspan.End()
		return p.finish(span, Failure{Kind: GenerationFailed, Message: err.Error()})
	}
	gspan.SetAttributes(attribute.Int("generation.total_tokens", gen.TotalTokens))
	gspan.End()

	log.Debug("Query answered",
		zap.Int("retrieved", len(docs)),
		zap.Int("sources", sources),
		zap.Int("prompt_bytes", len(prompt)),
		zap.Int("answer_bytes", len(gen.Text)),
	)
	return p.finish(span, Success{Answer: gen.Text, SourceCount: sources})
}

// retrieve returns documents or an embedding error. Any other failure, including
// a panic inside the retriever, degrades to no documents.
func (p *Pipeline) retrieve(ctx context.Context, raw string, log *zap.Logger) (docs []domain.RetrievedDocument, err error) {
	ctx, span := p.tracer.Start(ctx, "query.retrieve")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Retriever panicked, continuing without documents", zap.Any("panic", r), zap.Stack("stack"))
			span.SetStatus(codes.Error, "retriever panic")
			docs, err = nil, nil
		}
	}()

	docs, err = p.retriever.Retrieve(ctx, raw, p.topK)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrEmbedding) {
			span.SetStatus(codes.Error, "embedding failed")
			return nil, err
		}
		log.Warn("Retrieval failed, continuing without documents", zap.Error(err))
		return nil, nil
	}
	span.SetAttributes(attribute.Int("retrieval.documents", len(docs)))
	return docs, nil
}

func (p *Pipeline) assemble(ctx context.Context, docs []domain.RetrievedDocument) (string, int) {
	_, span := p.tracer.Start(ctx, "query.assemble")
	defer span.End()

	text, included := p.assembler.AssembleBounded(docs)
	span.SetAttributes(
		attribute.Int("context.documents", included),
		attribute.Int("context.bytes", len(text)),
	)
	return text, included
}

func (p *Pipeline) finish(span trace.Span, r Result) Result {
	switch v := r.(type) {
	case Success:
		metrics.QueryOutcomesTotal.WithLabelValues("success").Inc()
		span.SetAttributes(attribute.Int("query.sources", v.SourceCount))
	case Failure:
		metrics.QueryOutcomesTotal.WithLabelValues(string(v.Kind)).Inc()
		span.SetStatus(codes.Error, string(v.Kind))
	default:
		panic(fmt.Sprintf("query: unexpected result type %T", r))
	}
	return r
}
