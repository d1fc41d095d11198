package rag

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStore is a map-backed vector store. It is the default backend
// when no persistent knowledge base path is configured.
type InMemoryStore struct {
	mu     sync.RWMutex
	chunks map[string]Chunk
	docs   map[string][]string
}

// NewInMemoryStore creates an empty in-memory vector store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		chunks: make(map[string]Chunk),
		docs:   make(map[string][]string),
	}
}

// Store saves chunks with their embeddings.
func (s *InMemoryStore) Store(ctx context.Context, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chunk := range chunks {
		s.chunks[chunk.ID] = chunk
		s.docs[chunk.DocumentID] = append(s.docs[chunk.DocumentID], chunk.ID)
	}
	return nil
}

// Search returns the topK chunks most similar to the query embedding.
func (s *InMemoryStore) Search(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	for _, chunk := range s.chunks {
		results = append(results, SearchResult{Chunk: chunk, Score: cosineSimilarity(embedding, chunk.Embedding)})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Delete removes all chunks for a document.
func (s *InMemoryStore) Delete(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.docs[documentID] {
		delete(s.chunks, id)
	}
	delete(s.docs, documentID)
	return nil
}

// Len returns the number of stored chunks, used by tests.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
