package query

import (
	"context"

	"github.com/nyaya-labs/nyaya/internal/domain"
)

// Retriever finds the documents most similar to the query.
// Errors wrapping domain.ErrEmbedding are fatal; anything else is treated as "no documents".
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievedDocument, error)
}

// Assembler renders documents into the prompt context and reports how many it used.
type Assembler interface {
	AssembleBounded(docs []domain.RetrievedDocument) (string, int)
}

// PromptBuilder renders the final prompt.
type PromptBuilder interface {
	Build(query, context string) string
}
