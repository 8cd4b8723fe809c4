// Package budget persists token budget counters in a key-value store so limits
// survive restarts and are shared between replicas.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nyaya-labs/nyaya/internal/db"
)

// Default counter retention. Keys outlive their period so late readers still see the total.
const (
	DefaultDailyTTL   = 48 * time.Hour
	DefaultMonthlyTTL = 62 * 24 * time.Hour
)

// store is the consumer interface for budget operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store keeps period counters as integer keys (INCRBY + EXPIRE NX).
type Store struct {
	store    store
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New creates a budget store. Non-positive TTLs fall back to the defaults.
func New(s store, dailyTTL, monthTTL time.Duration) *Store {
	if dailyTTL <= 0 {
		dailyTTL = DefaultDailyTTL
	}
	if monthTTL <= 0 {
		monthTTL = DefaultMonthlyTTL
	}
	return &Store{
		store:    s,
		dailyTTL: dailyTTL,
		monthTTL: monthTTL,
	}
}

// IncrBy atomically adds val to the counter, sets its TTL on first write and
// returns the counter total across all writers.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) (int64, error) {
	total, err := s.store.IncrBy(ctx, key, val)
	if err != nil {
		return 0, fmt.Errorf("budget INCRBY %s: %w", key, err)
	}

	// NX: the first writer in a period sets the expiry, later writers keep it.
	if err := s.store.Expire(ctx, key, s.ttlForKey(key), true); err != nil {
		return total, fmt.Errorf("budget EXPIRE %s: %w", key, err)
	}

	return total, nil
}

// Get returns the current counter value. Returns 0 if the key does not exist.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("budget GET %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget GET %s parse: %w", key, err)
	}
	return val, nil
}

// ttlForKey picks the TTL from the key's period segment.
func (s *Store) ttlForKey(key string) time.Duration {
	// Keys follow the pattern nyaya:budget:daily:2006-01-02 or nyaya:budget:monthly:2006-01
	if strings.Contains(key, ":daily:") {
		return s.dailyTTL
	}
	return s.monthTTL
}
