package query

// Result is the outcome of one pipeline run: Success or Failure.
type Result interface {
	isResult()
}

// Success carries the generated answer and the number of documents behind it.
type Success struct {
	Answer      string
	SourceCount int
}

// FailureKind classifies a failed run.
type FailureKind string

// Failure kinds.
const (
	InvalidInput     FailureKind = "invalid_input"
	EmbeddingFailed  FailureKind = "embedding_failed"
	GenerationFailed FailureKind = "generation_failed"
)

// Failure describes why a run produced no answer.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (Success) isResult() {}
func (Failure) isResult() {}

// MessageRequired is the Failure message for a missing or blank query.
const MessageRequired = "Message is required"
