package domain

// RetrievedDocument is a single vector store hit. Rank is its position in the
// result slice, best first.
type RetrievedDocument struct {
	Content    string
	Similarity float64 // cosine similarity, typically in [0, 1]
}
