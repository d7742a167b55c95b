// Package models defines core data structures for records, queries, and answers.
package models

// VectorRecord is a stored embedding chunk with its document metadata.
// All records of one document share metadata except ChunkIndex.
type VectorRecord struct {
	ID          string    `json:"id"`
	Embedding   []float32 `json:"embedding"`
	DocumentID  string    `json:"document_id"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	ChunkIndex  int       `json:"chunk_index"`
	Department  string    `json:"department,omitempty"`
	Sensitivity string    `json:"sensitivity,omitempty"`
	Link        string    `json:"link,omitempty"`
	// Extra holds bounded optional metadata that does not participate in
	// access filtering.
	Extra map[string]string `json:"extra,omitempty"`
}

// RetrievalResult is a single search hit. Score is cosine similarity in [-1, 1].
type RetrievalResult struct {
	Record *VectorRecord `json:"record"`
	Score  float64       `json:"score"`
}

// Source identifies a retrieved passage in the final response.
type Source struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Score      float64 `json:"score"`
	Link       string  `json:"link,omitempty"`
}
