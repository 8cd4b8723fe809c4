package tokenizer

import (
	"strings"
	"testing"
)

func TestNew_UnknownEncoding(t *testing.T) {
	_, err := New("not_a_real_encoding")
	if err == nil {
		t.Fatal("expected error for unknown encoding")
	}
	if !strings.Contains(err.Error(), "not_a_real_encoding") {
		t.Errorf("error should name the encoding: %v", err)
	}
}

func TestCount_EmptyText(t *testing.T) {
	// Empty text short-circuits before touching the encoder.
	c := &Counter{}
	if got := c.Count(""); got != 0 {
		t.Errorf("Count(\"\") = %d, want 0", got)
	}
}
