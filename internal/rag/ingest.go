package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xKrishnaSaxena/WhatsBill/internal/genai"
)

// Default chunking parameters, in characters.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// Ingestor splits documents into overlapping chunks, embeds them, and
// writes them to the vector store.
type Ingestor struct {
	embedder     genai.ClientInterface
	store        VectorStore
	chunkSize    int
	chunkOverlap int
}

// NewIngestor creates an Ingestor. Non-positive sizes fall back to the
// package defaults.
func NewIngestor(embedder genai.ClientInterface, store VectorStore, chunkSize, chunkOverlap int) *Ingestor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Ingestor{
		embedder:     embedder,
		store:        store,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// IngestText chunks, embeds, and stores one document's text content.
func (in *Ingestor) IngestText(ctx context.Context, documentID, content string) error {
	chunks := in.chunk(documentID, content)
	if len(chunks) == 0 {
		return nil
	}
	for i := range chunks {
		embedding, err := in.embedder.Embed(ctx, chunks[i].Content)
		if err != nil {
			return fmt.Errorf("failed to embed chunk %d of %s: %w", i, documentID, err)
		}
		chunks[i].Embedding = embedding
	}
	if err := in.store.Store(ctx, chunks); err != nil {
		return fmt.Errorf("failed to store chunks for %s: %w", documentID, err)
	}
	slog.Info("Ingestor.IngestText: document ingested", "documentID", documentID, "chunks", len(chunks))
	return nil
}

// IngestFile reads a text file and ingests it, keyed by file path.
func (in *Ingestor) IngestFile(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return in.IngestText(ctx, path, string(content))
}

// IngestDir ingests every watchable file directly under dir.
func (in *Ingestor) IngestDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isWatchableFile(entry.Name()) {
			continue
		}
		if err := in.IngestFile(ctx, filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes a document's chunks from the store.
func (in *Ingestor) Remove(ctx context.Context, documentID string) error {
	return in.store.Delete(ctx, documentID)
}

// chunk splits content into overlapping pieces, breaking at word
// boundaries where possible.
func (in *Ingestor) chunk(documentID, content string) []Chunk {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	var chunks []Chunk
	start := 0
	index := 0
	for start < len(content) {
		end := start + in.chunkSize
		if end > len(content) {
			end = len(content)
		}
		if end < len(content) {
			if lastSpace := strings.LastIndex(content[start:end], " "); lastSpace > 0 {
				end = start + lastSpace
			}
		}
		piece := strings.TrimSpace(content[start:end])
		if piece != "" {
			chunks = append(chunks, Chunk{
				ID:         chunkID(documentID, index),
				DocumentID: documentID,
				Content:    piece,
				Index:      index,
			})
			index++
		}
		if end == len(content) {
			break
		}
		next := end - in.chunkOverlap
		// The overlap must never move the window backwards.
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

func chunkID(documentID string, index int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%d", documentID, index))
	return hex.EncodeToString(sum[:8])
}
