// Package prompt turns retrieved documents and a user query into the text sent
// to the generation model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/nyaya-labs/nyaya/internal/domain"
)

const blockSeparator = "\n\n"

// TokenCounter counts model tokens in a piece of text.
type TokenCounter interface {
	Count(text string) int
}

// Assembler renders retrieved documents into the context section of the prompt.
type Assembler struct {
	counter   TokenCounter
	maxTokens int
}

// NewAssembler creates an Assembler. maxTokens <= 0 or a nil counter disables the bound.
func NewAssembler(counter TokenCounter, maxTokens int) *Assembler {
	return &Assembler{counter: counter, maxTokens: maxTokens}
}

// Assemble renders every document in rank order. Empty input yields "".
func (a *Assembler) Assemble(docs []domain.RetrievedDocument) string {
	text, _ := a.AssembleBounded(docs)
	return text
}

// AssembleBounded renders documents in rank order, keeping whole blocks only while
// they fit in the token bound. It returns the context and the number of
// documents included.
func (a *Assembler) AssembleBounded(docs []domain.RetrievedDocument) (string, int) {
	if len(docs) == 0 {
		return "", 0
	}
	bounded := a.counter != nil && a.maxTokens > 0

	var sb strings.Builder
	used, included := 0, 0
	for i, d := range docs {
		block := FormatBlock(i+1, d)
		if bounded {
			cost := a.counter.Count(block)
			if i > 0 {
				cost += a.counter.Count(blockSeparator)
			}
			if used+cost > a.maxTokens {
				break
			}
			used += cost
		}
		if i > 0 {
			sb.WriteString(blockSeparator)
		}
		sb.WriteString(block)
		included++
	}
	return sb.String(), included
}

// FormatBlock renders one document with its 1-based ordinal and similarity percentage.
func FormatBlock(ordinal int, d domain.RetrievedDocument) string {
	return fmt.Sprintf("Document %d (Similarity: %.1f%%):\n%s", ordinal, d.Similarity*100, d.Content)
}
