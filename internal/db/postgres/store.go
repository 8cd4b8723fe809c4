// Package postgres implements db.VectorSearcher over a pgvector database that
// exposes a Supabase-style match function.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/nyaya-labs/nyaya/internal/db"
)

// Compile-time check: Store implements db.VectorSearcher.
var _ db.VectorSearcher = (*Store)(nil)

// DefaultMatchFunction is the SQL function created by the Supabase pgvector template.
const DefaultMatchFunction = "match_documents"

// Config holds connection parameters for a Postgres store.
type Config struct {
	DSN           string
	MatchFunction string // optionally schema-qualified, e.g. "legal.match_documents"
	MaxConns      int32
}

// querier is the subset of *pgxpool.Pool the store needs.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// Store calls match_function(query_embedding, match_count) and reads (content, similarity).
type Store struct {
	pool  querier
	query string
}

// NewStore creates a pooled Postgres store. The pool connects lazily.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	return newStore(pool, cfg.MatchFunction), nil
}

func newStore(pool querier, matchFunction string) *Store {
	if matchFunction == "" {
		matchFunction = DefaultMatchFunction
	}
	fn := pgx.Identifier(strings.Split(matchFunction, ".")).Sanitize()
	return &Store{
		pool:  pool,
		query: fmt.Sprintf("SELECT coalesce(content, ''), similarity FROM %s($1::vector, $2)", fn),
	}
}

// SearchSimilar returns up to limit matches as ranked by the match function.
func (s *Store) SearchSimilar(ctx context.Context, vector []float32, limit int) ([]db.Match, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	rows, err := s.pool.Query(ctx, s.query, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, &db.Error{Op: db.OpMatch, Err: err}
	}
	defer rows.Close()

	var matches []db.Match
	for rows.Next() {
		var m db.Match
		if err := rows.Scan(&m.Content, &m.Similarity); err != nil {
			return nil, &db.Error{Op: db.OpMatch, Err: fmt.Errorf("scan: %w", err)}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpMatch, Err: err}
	}

	// Custom match functions are not required to order their output.
	db.SortBySimilarity(matches)
	return matches, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// WaitForReady polls Ping until the database responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}
