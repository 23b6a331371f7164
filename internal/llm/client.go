// Package llm wraps the OpenAI-compatible API used for answer generation and
// embeddings.
//
// API access is optional: when no key is configured the client reports
// itself unavailable and the caller degrades gracefully instead of failing.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/lodestone-data/lodestone/internal/config"
	"github.com/lodestone-data/lodestone/internal/log"
)

// ErrUnavailable is returned when no API key is configured.
var ErrUnavailable = errors.New("llm: no API key configured")

// Turn is one message in a chat exchange. Role is "system", "user", or
// "assistant".
type Turn struct {
	Role    string
	Content string
}

// Client talks to an OpenAI-compatible endpoint for chat completions and
// embeddings. Safe for concurrent use.
type Client struct {
	api           *openai.Client
	model         string
	embedderModel string
	temperature   float32
	maxTokens     int
	timeout       time.Duration
	limiter       *rate.Limiter
	logger        log.Logger
}

// New builds a Client from config. Returns ErrUnavailable when no API key is
// set; callers treat that as a degraded mode, not a startup failure.
func New(cfg *config.Config, logger log.Logger) (*Client, error) {
	key := cfg.APIKey()
	if key == "" {
		return nil, ErrUnavailable
	}
	if logger == nil {
		logger = log.NewNop()
	}

	apiCfg := openai.DefaultConfig(key)
	if cfg.APIBaseURL != "" {
		apiCfg.BaseURL = cfg.APIBaseURL
	}

	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		api:           openai.NewClientWithConfig(apiCfg),
		model:         cfg.ModelName,
		embedderModel: cfg.EmbedderModel,
		temperature:   cfg.Temperature,
		maxTokens:     cfg.MaxTokens,
		timeout:       time.Duration(cfg.RequestTimeout) * time.Second,
		limiter:       rate.NewLimiter(rate.Limit(rps), burst),
		logger:        logger,
	}, nil
}

// Generate runs a chat completion over the system prompt and conversation
// turns and returns the assistant's reply.
func (c *Client) Generate(ctx context.Context, systemPrompt string, turns []Turn) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, t := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    t.Role,
			Content: t.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns one embedding vector per input text, in order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embedderModel),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding response index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
