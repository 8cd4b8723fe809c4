package prompt

import (
	"strings"

	"github.com/nyaya-labs/nyaya/internal/domain"
)

// DefaultJurisdiction is the legal system the assistant specializes in.
const DefaultJurisdiction = "Indian law"

// NoDocumentsNotice replaces the context when retrieval found nothing.
const NoDocumentsNotice = "No relevant legal documents were found for this query. Say so, then provide general guidance."

// Builder produces the final generation prompt.
type Builder struct {
	jurisdiction string
}

// NewBuilder creates a Builder. Empty jurisdiction falls back to DefaultJurisdiction.
func NewBuilder(jurisdiction string) *Builder {
	if jurisdiction == "" {
		jurisdiction = DefaultJurisdiction
	}
	return &Builder{jurisdiction: jurisdiction}
}

// Build renders the prompt for the raw user query and the assembled context.
// The response language follows the markers in query.
func (b *Builder) Build(query, context string) string {
	if context == "" {
		context = NoDocumentsNotice
	}

	var sb strings.Builder
	sb.WriteString("You are a helpful legal assistant specializing in ")
	sb.WriteString(b.jurisdiction)
	sb.WriteString(".\n")
	sb.WriteString("Your role is to provide clear, accurate legal information in a conversational manner ")
	sb.WriteString("based on the provided legal documents.\n\n")

	sb.WriteString("IMPORTANT INSTRUCTIONS:\n")
	sb.WriteString("- Use the provided legal documents below as your primary source of information\n")
	sb.WriteString("- When citing information, reference the document it came from\n")
	sb.WriteString("- If the documents don't contain relevant information, say so and provide general guidance\n")
	sb.WriteString("- Explain legal processes step-by-step when asked\n\n")

	sb.WriteString("Respond in ")
	sb.WriteString(string(domain.DetectLanguage(query)))
	sb.WriteString(".\n\n")

	sb.WriteString("RETRIEVED LEGAL DOCUMENTS:\n")
	sb.WriteString(context)
	sb.WriteString("\n\n---\n\n")

	sb.WriteString("User query: ")
	sb.WriteString(query)
	sb.WriteString("\n\nBased on the legal documents provided above, please answer the user's question:")
	return sb.String()
}
