package retrieval

import (
	"context"

	"github.com/nyaya-labs/nyaya/internal/db"
	"github.com/nyaya-labs/nyaya/internal/domain"
)

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorStore finds the documents nearest to a query vector.
type VectorStore interface {
	SearchSimilar(ctx context.Context, vector []float32, limit int) ([]db.Match, error)
}
