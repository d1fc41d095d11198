// Package genai wraps the OpenAI API for WhatsBill. It covers the two model
// needs of the assistant: chat completions for answers and reminder parsing,
// and embeddings for knowledge base retrieval.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/xKrishnaSaxena/WhatsBill/internal/models"
)

// ErrNoChoicesReturned indicates the model response carried no choices.
var ErrNoChoicesReturned = errors.New("no choices returned from model")

// ErrNoEmbeddingReturned indicates the embedding response carried no vectors.
var ErrNoEmbeddingReturned = errors.New("no embedding returned from model")

// chatService defines the minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// embedService defines the minimal interface for embeddings.
type embedService interface {
	Create(ctx context.Context, params openai.EmbeddingNewParams) (openai.CreateEmbeddingResponse, error)
}

// ClientInterface is the surface other packages program against, so tests
// can substitute a mock for the real OpenAI-backed client.
type ClientInterface interface {
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	GenerateWithMessages(ctx context.Context, systemPrompt string, messages []models.Message) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey         string
	Model          openai.ChatModel
	EmbeddingModel openai.EmbeddingModel
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the default chat model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.Model = model }
}

// WithEmbeddingModel overrides the default embedding model.
func WithEmbeddingModel(model openai.EmbeddingModel) Option {
	return func(o *Opts) { o.EmbeddingModel = model }
}

// Client is the OpenAI-backed implementation of ClientInterface.
type Client struct {
	chat           chatService
	embed          embedService
	model          openai.ChatModel
	embeddingModel openai.EmbeddingModel
}

// realChatService adapts the OpenAI SDK to the chatService interface.
type realChatService struct {
	client openai.Client
}

func (s *realChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// realEmbedService adapts the OpenAI SDK to the embedService interface.
type realEmbedService struct {
	client openai.Client
}

func (s *realEmbedService) Create(ctx context.Context, params openai.EmbeddingNewParams) (openai.CreateEmbeddingResponse, error) {
	resp, err := s.client.Embeddings.New(ctx, params)
	if err != nil {
		return openai.CreateEmbeddingResponse{}, err
	}
	return *resp, nil
}

// NewClient creates a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not provided via options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	slog.Debug("GenAI client config loaded", "APIKey_set", cfg.APIKey != "", "model", cfg.Model)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key must be provided")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = openai.EmbeddingModelTextEmbedding3Small
	}

	client := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{
		chat:           &realChatService{client: client},
		embed:          &realEmbedService{client: client},
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
	}, nil
}

// GeneratePrompt runs a single system+user prompt pair and returns the
// model's reply text.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	}
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateWithMessages runs a completion over a conversation transcript
// with an optional system prompt prepended.
func (c *Client) GenerateWithMessages(ctx context.Context, systemPrompt string, messages []models.Message) (string, error) {
	if len(messages) == 0 {
		return "", models.ErrNoMessages
	}
	var converted []openai.ChatCompletionMessageParamUnion
	if systemPrompt != "" {
		converted = append(converted, openai.SystemMessage(systemPrompt))
	}
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleUser:
			converted = append(converted, openai.UserMessage(msg.Content))
		case models.RoleAssistant:
			converted = append(converted, openai.AssistantMessage(msg.Content))
		default:
			return "", fmt.Errorf("%w: %q", models.ErrInvalidRole, msg.Role)
		}
	}

	resp, err := c.chat.Create(ctx, openai.ChatCompletionNewParams{Model: c.model, Messages: converted})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	slog.Debug("GenAI completion generated", "messages", len(messages), "responseLength", len(resp.Choices[0].Message.Content))
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, models.ErrEmptyMessage
	}
	params := openai.EmbeddingNewParams{
		Model: c.embeddingModel,
		Input: openai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
	}
	resp, err := c.embed.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrNoEmbeddingReturned
	}
	vector := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}
