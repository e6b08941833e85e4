package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// ErrNotConfigured is returned before any network call when the answer
// provider has no API key. The key is injected configuration; there is no
// ambient fallback.
var ErrNotConfigured = errors.New("assistant provider not configured: missing API key")

// AnswerClient generates an answer suggestion for a batch of spoken text.
type AnswerClient interface {
	GenerateAnswer(ctx context.Context, jobType, spokenText string) (string, error)
}

type ClientConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
}

// OpenRouterClient calls an OpenRouter-hosted chat model through the
// OpenAI-compatible API surface.
type OpenRouterClient struct {
	client *openai.Client
	config ClientConfig
	log    zerolog.Logger
}

func NewOpenRouterClient(config ClientConfig, log zerolog.Logger) *OpenRouterClient {
	var client *openai.Client
	if config.APIKey != "" {
		clientConfig := openai.DefaultConfig(config.APIKey)
		clientConfig.BaseURL = openRouterBaseURL
		client = openai.NewClientWithConfig(clientConfig)
	}
	return &OpenRouterClient{client: client, config: config, log: log}
}

func (c *OpenRouterClient) GenerateAnswer(ctx context.Context, jobType, spokenText string) (string, error) {
	if c.config.APIKey == "" || c.client == nil {
		return "", ErrNotConfigured
	}

	req := openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildInterviewPrompt(jobType, spokenText)},
		},
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		c.log.Error().Err(err).Dur("duration", duration).Msg("answer generation failed")
		return "", fmt.Errorf("openrouter chat completion: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openrouter returned no answer")
	}

	c.log.Debug().Dur("duration", duration).Str("model", c.config.Model).Msg("answer generated")
	return resp.Choices[0].Message.Content, nil
}
