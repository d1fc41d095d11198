// Package rag implements retrieval-augmented answering over a small
// knowledge base: document chunking and ingestion, vector similarity
// search, and tone-styled answer generation.
package rag

import (
	"context"
	"math"
)

// Chunk is one embedded slice of a source document.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	Index      int       `json:"index"`
	Embedding  []float32 `json:"embedding"`
}

// SearchResult is a chunk scored against a query embedding.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// VectorStore stores embedded chunks and answers similarity queries.
// Implementations must be safe for concurrent use.
type VectorStore interface {
	Store(ctx context.Context, chunks []Chunk) error
	Search(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error)
	Delete(ctx context.Context, documentID string) error
	Close() error
}

// cosineSimilarity calculates cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
