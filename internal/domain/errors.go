package domain

import "errors"

var (
	// ErrInvalidInput signals a missing or blank user message.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmbedding signals an embedding provider failure or a malformed embedding.
	ErrEmbedding = errors.New("embedding failed")
	// ErrRetrieval signals a vector store failure. The retriever absorbs it.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrGeneration signals a generation provider failure or an unusable completion.
	ErrGeneration = errors.New("generation failed")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrQuotaExceeded signals an exhausted token budget.
	ErrQuotaExceeded = errors.New("token quota exceeded")
)

// KeyPrefix namespaces every key nyaya writes to Redis.
const KeyPrefix = "nyaya:"
