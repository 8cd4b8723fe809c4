// Package retrieval turns a user query into the top-k most similar legal documents.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/nyaya-labs/nyaya/internal/domain"
	"github.com/nyaya-labs/nyaya/internal/logger"
	"github.com/nyaya-labs/nyaya/internal/metrics"
)

// DefaultTopK is the number of documents retrieved when the caller passes k <= 0.
const DefaultTopK = 5

// Option configures a Service.
type Option func(*Service)

// WithTopK overrides the default number of documents.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithMarkerStripping embeds the query without its language marker.
func WithMarkerStripping(enabled bool) Option {
	return func(s *Service) { s.stripMarker = enabled }
}

// Service embeds queries and searches the vector store.
// Embedding failures are returned; vector store failures degrade to an empty result.
type Service struct {
	embed       Embedder
	store       VectorStore
	topK        int
	stripMarker bool
	logger      *zap.Logger
}

// New creates a retrieval service.
func New(embed Embedder, store VectorStore, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		embed:  embed,
		store:  store,
		topK:   DefaultTopK,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retrieve returns at most k documents ordered by descending similarity.
// Errors always wrap domain.ErrEmbedding.
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievedDocument, error) {
	if k <= 0 {
		k = s.topK
	}

	emb, err := s.embed.Embed(ctx, s.embeddingText(query))
	if err != nil {
		if errors.Is(err, domain.ErrEmbedding) {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		return nil, fmt.Errorf("embed query: %w: %w", domain.ErrEmbedding, err)
	}
	if len(emb.Embedding) == 0 {
		return nil, fmt.Errorf("embed query: %w: empty vector", domain.ErrEmbedding)
	}

	start := time.Now()
	matches, err := s.store.SearchSimilar(ctx, emb.Embedding, k)
	metrics.RetrievalDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RetrievalFailuresTotal.Inc()
		logger.FromContext(ctx, s.logger).Warn("Vector search failed, continuing without documents",
			zap.Int("k", k),
			zap.Error(fmt.Errorf("%w: %w", domain.ErrRetrieval, err)),
		)
		return []domain.RetrievedDocument{}, nil
	}

	docs := make([]domain.RetrievedDocument, 0, min(len(matches), k))
	for _, m := range matches {
		if len(docs) == k {
			break
		}
		if math.IsNaN(m.Similarity) || math.IsInf(m.Similarity, 0) {
			continue
		}
		docs = append(docs, domain.RetrievedDocument{Content: m.Content, Similarity: m.Similarity})
	}
	metrics.RetrievalResults.Observe(float64(len(docs)))

	return docs, nil
}

// embeddingText picks the text sent to the embedder. A query that is nothing
// but markers is embedded as-is.
func (s *Service) embeddingText(query string) string {
	if !s.stripMarker {
		return query
	}
	if stripped := domain.StripLanguageMarker(query); stripped != "" {
		return stripped
	}
	return query
}
