package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"

	"github.com/xKrishnaSaxena/WhatsBill/internal/models"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

// mockEmbedService implements embedService for testing.
type mockEmbedService struct {
	resp openai.CreateEmbeddingResponse
	err  error
}

func (m *mockEmbedService) Create(ctx context.Context, params openai.EmbeddingNewParams) (openai.CreateEmbeddingResponse, error) {
	return m.resp, m.err
}

func TestGeneratePrompt_Success(t *testing.T) {
	mockResp := openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "Hello World"}},
		},
	}
	client := &Client{chat: &mockChatService{resp: mockResp}}
	out, err := client.GeneratePrompt(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
}

func TestGeneratePrompt_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	_, err := client.GeneratePrompt(context.Background(), "sys", "usr")
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGeneratePrompt_NoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: openai.ChatCompletion{}}}
	_, err := client.GeneratePrompt(context.Background(), "sys", "usr")
	if err != ErrNoChoicesReturned {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestGenerateWithMessages_Success(t *testing.T) {
	mock := &mockChatService{resp: openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "reply"}},
		},
	}}
	client := &Client{chat: mock}
	out, err := client.GenerateWithMessages(context.Background(), "be helpful", []models.Message{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
		{Role: models.RoleUser, Content: "question"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "reply" {
		t.Errorf("expected 'reply', got '%s'", out)
	}
	// system prompt + three transcript messages
	if len(mock.params.Messages) != 4 {
		t.Errorf("expected 4 messages sent to model, got %d", len(mock.params.Messages))
	}
}

func TestGenerateWithMessages_EmptyTranscript(t *testing.T) {
	client := &Client{chat: &mockChatService{}}
	_, err := client.GenerateWithMessages(context.Background(), "sys", nil)
	if err != models.ErrNoMessages {
		t.Errorf("expected ErrNoMessages, got %v", err)
	}
}

func TestGenerateWithMessages_InvalidRole(t *testing.T) {
	client := &Client{chat: &mockChatService{}}
	_, err := client.GenerateWithMessages(context.Background(), "sys", []models.Message{
		{Role: "narrator", Content: "x"},
	})
	if !errors.Is(err, models.ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
}

func TestEmbed_Success(t *testing.T) {
	client := &Client{embed: &mockEmbedService{resp: openai.CreateEmbeddingResponse{
		Data: []openai.Embedding{{Embedding: []float64{0.1, 0.2, 0.3}}},
	}}}
	vector, err := client.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(vector) != 3 {
		t.Errorf("expected 3 dims, got %d", len(vector))
	}
}

func TestEmbed_EmptyText(t *testing.T) {
	client := &Client{embed: &mockEmbedService{}}
	if _, err := client.Embed(context.Background(), ""); err != models.ErrEmptyMessage {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestEmbed_NoData(t *testing.T) {
	client := &Client{embed: &mockEmbedService{}}
	if _, err := client.Embed(context.Background(), "text"); err != ErrNoEmbeddingReturned {
		t.Errorf("expected ErrNoEmbeddingReturned, got %v", err)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error when API key not provided, got nil")
	}
}
