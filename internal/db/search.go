package db

import "sort"

// Match is a single similarity search hit as returned by a vector store.
type Match struct {
	Key        string // store-specific identifier, may be empty
	Content    string
	Similarity float64 // cosine similarity, higher is closer
}

// SortBySimilarity orders matches best first, keeping store order for ties.
func SortBySimilarity(m []Match) {
	sort.SliceStable(m, func(i, j int) bool { return m[i].Similarity > m[j].Similarity })
}
