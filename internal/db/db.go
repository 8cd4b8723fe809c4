// Package db defines the storage contracts used by nyaya: vector similarity
// search over pre-populated legal documents and a small key-value surface for
// the embedding cache and budget counters.
package db

import (
	"context"
	"time"
)

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// VectorSearcher is a read-only nearest-neighbour index over document embeddings.
type VectorSearcher interface {
	Pinger
	// SearchSimilar returns up to limit matches, most similar first.
	SearchSimilar(ctx context.Context, vector []float32, limit int) ([]Match, error)
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}
