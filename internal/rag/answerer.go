package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xKrishnaSaxena/WhatsBill/internal/genai"
	"github.com/xKrishnaSaxena/WhatsBill/internal/models"
	"github.com/xKrishnaSaxena/WhatsBill/internal/tone"
)

// DefaultTopK is how many chunks back a generated answer.
const DefaultTopK = 4

const answerSystemPrompt = "You are WhatsBill's billing assistant. Answer using only the provided context."

// Answerer produces tone-styled answers grounded in the knowledge base.
type Answerer struct {
	genAI genai.ClientInterface
	store VectorStore
	topK  int
}

// NewAnswerer creates an Answerer. A non-positive topK falls back to
// DefaultTopK.
func NewAnswerer(genAI genai.ClientInterface, store VectorStore, topK int) *Answerer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Answerer{genAI: genAI, store: store, topK: topK}
}

// Answer retrieves context for the latest user message, generates a reply
// over the conversation transcript in the given tone, and humanizes the
// result. Earlier turns in the transcript are passed through so the model
// can resolve follow-up questions.
func (a *Answerer) Answer(ctx context.Context, transcript []models.Message, replyTone string) (string, error) {
	if len(transcript) == 0 {
		return "", models.ErrNoMessages
	}
	query := transcript[len(transcript)-1].Content
	embedding, err := a.genAI.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to embed query: %w", err)
	}
	results, err := a.store.Search(ctx, embedding, a.topK)
	if err != nil {
		return "", fmt.Errorf("similarity search failed: %w", err)
	}

	passages := make([]string, 0, len(results))
	for _, result := range results {
		passages = append(passages, result.Chunk.Content)
	}
	retrieved := strings.Join(passages, "\n\n")
	slog.Debug("Answerer.Answer: context retrieved", "passages", len(passages), "tone", replyTone)

	// The final user message is replaced with the tone-templated prompt
	// wrapping the retrieved context; earlier turns pass through as-is.
	prompt := tone.Prompt(retrieved, query, replyTone)
	messages := make([]models.Message, 0, len(transcript))
	messages = append(messages, transcript[:len(transcript)-1]...)
	messages = append(messages, models.Message{Role: models.RoleUser, Content: prompt})

	response, err := a.genAI.GenerateWithMessages(ctx, answerSystemPrompt, messages)
	if err != nil {
		return "", fmt.Errorf("answer generation failed: %w", err)
	}
	return tone.Humanize(response), nil
}
