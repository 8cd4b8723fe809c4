// Package tokenizer counts model tokens for prompt budgeting.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used when the configured encoding is empty.
const DefaultEncoding = "cl100k_base"

// Counter counts tokens with a tiktoken BPE encoding.
// Gemini does not publish its tokenizer; cl100k_base is a close enough estimate for bounding.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// New loads the named encoding. The BPE ranks are fetched on first use and cached
// by tiktoken-go (TIKTOKEN_CACHE_DIR).
func New(encoding string) (*Counter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %q: %w", encoding, err)
	}
	return &Counter{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}
