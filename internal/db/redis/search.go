package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/nyaya-labs/nyaya/internal/db"
)

const scoreField = "__vector_score"

// SearchSimilar runs a KNN vector similarity search via FT.SEARCH against the
// configured index and returns matches ordered by similarity.
func (s *Store) SearchSimilar(ctx context.Context, vector []float32, limit int) ([]db.Match, error) {
	if s.index == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	queryStr := fmt.Sprintf("*=>[KNN %d @%s $BLOB AS %s]", limit, s.vectorField, scoreField)
	args := []string{
		s.index, queryStr,
		"RETURN", "2", s.contentField, scoreField,
		"LIMIT", "0", strconv.Itoa(limit),
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "no such index") || isRedisErr(err, "unknown index name") {
			return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%s: %w", s.index, db.ErrIndexNotFound)}
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	matches, err := s.parseKNNResult(raw)
	if err != nil {
		return nil, err
	}
	db.SortBySimilarity(matches)
	return matches, nil
}

// --- Result parsing ---

func (s *Store) parseKNNResult(raw []rueidis.RedisMessage) ([]db.Match, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	matches := make([]db.Match, 0, total)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		pairs := parseFieldPairs(fields)

		scoreStr, ok := pairs[scoreField]
		if !ok {
			continue
		}
		dist, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}

		matches = append(matches, db.Match{
			Key:        key,
			Content:    pairs[s.contentField],
			Similarity: max(0, 1.0-dist), // cosine distance → similarity, clamped to [0,1]
		})
	}

	return matches, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		k, err := fields[j].ToString()
		if err != nil {
			continue
		}
		v, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[k] = v
	}
	return m
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
