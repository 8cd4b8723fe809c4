package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyaya-labs/nyaya/internal/domain"
)

// wordCounter counts whitespace-separated words; good enough to exercise the bound.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func TestAssemble_TwoDocuments(t *testing.T) {
	a := NewAssembler(nil, 0)
	docs := []domain.RetrievedDocument{
		{Content: "Section 438 CrPC allows anticipatory bail.", Similarity: 0.91},
		{Content: "Bail is a right, jail the exception.", Similarity: 0.77},
	}

	got := a.Assemble(docs)

	want := "Document 1 (Similarity: 91.0%):\nSection 438 CrPC allows anticipatory bail.\n\n" +
		"Document 2 (Similarity: 77.0%):\nBail is a right, jail the exception."
	assert.Equal(t, want, got)
}

func TestAssemble_Empty(t *testing.T) {
	a := NewAssembler(nil, 0)
	assert.Equal(t, "", a.Assemble(nil))
	assert.Equal(t, "", a.Assemble([]domain.RetrievedDocument{}))
}

func TestAssemble_Deterministic(t *testing.T) {
	a := NewAssembler(nil, 0)
	docs := []domain.RetrievedDocument{{Content: "x", Similarity: 0.5}, {Content: "y", Similarity: 0.25}}
	assert.Equal(t, a.Assemble(docs), a.Assemble(docs))
}

func TestAssemble_BlockCountAndOrdinals(t *testing.T) {
	a := NewAssembler(nil, 0)
	docs := make([]domain.RetrievedDocument, 5)
	for i := range docs {
		docs[i] = domain.RetrievedDocument{Content: "body", Similarity: 0.5}
	}

	got := a.Assemble(docs)

	blocks := strings.Split(got, "\n\n")
	require.Len(t, blocks, 5)
	for i, b := range blocks {
		assert.True(t, strings.HasPrefix(b, "Document "+string(rune('1'+i))+" "), "block %d: %q", i, b)
	}
}

func TestAssemble_PreservesContentVerbatim(t *testing.T) {
	a := NewAssembler(nil, 0)
	content := "धारा 438\n  indented line\twith tab"
	got := a.Assemble([]domain.RetrievedDocument{{Content: content, Similarity: 1}})
	assert.Equal(t, "Document 1 (Similarity: 100.0%):\n"+content, got)
}

func TestFormatBlock_Rounding(t *testing.T) {
	tests := []struct {
		sim  float64
		want string
	}{
		{0.91, "91.0%"},
		{0.12345, "12.3%"},
		{0, "0.0%"},
		{0.9999, "100.0%"},
	}
	for _, tc := range tests {
		got := FormatBlock(1, domain.RetrievedDocument{Content: "c", Similarity: tc.sim})
		assert.Contains(t, got, "(Similarity: "+tc.want+")")
	}
}

func TestAssembleBounded_KeepsWholeBlocks(t *testing.T) {
	// Each block "Document N (Similarity: 50.0%):\nalpha beta" is 6 words.
	docs := []domain.RetrievedDocument{
		{Content: "alpha beta", Similarity: 0.5},
		{Content: "alpha beta", Similarity: 0.5},
		{Content: "alpha beta", Similarity: 0.5},
	}
	a := NewAssembler(wordCounter{}, 13)

	got, included := a.AssembleBounded(docs)

	assert.Equal(t, 2, included)
	assert.Equal(t, NewAssembler(nil, 0).Assemble(docs[:2]), got)
}

func TestAssembleBounded_FirstBlockTooLarge(t *testing.T) {
	a := NewAssembler(wordCounter{}, 3)

	got, included := a.AssembleBounded([]domain.RetrievedDocument{{Content: "alpha beta gamma", Similarity: 0.9}})

	assert.Equal(t, 0, included)
	assert.Equal(t, "", got)
}

func TestAssembleBounded_Unbounded(t *testing.T) {
	docs := []domain.RetrievedDocument{{Content: "a", Similarity: 0.1}, {Content: "b", Similarity: 0.2}}

	_, included := NewAssembler(wordCounter{}, 0).AssembleBounded(docs)
	assert.Equal(t, 2, included)

	_, included = NewAssembler(nil, 1).AssembleBounded(docs)
	assert.Equal(t, 2, included)
}
