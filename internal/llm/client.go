package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"graphmem/pkg/logger"
)

// CompletionClient is the language-model collaborator contract: a prompt pair
// in, free text out. Failures surface immediately; the core never retries.
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt, userMsg string) (string, error)
}

// Client talks to any OpenAI-compatible completion endpoint (OpenAI, LiteLLM,
// OpenRouter) selected by base URL.
type Client struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewClient creates a completion client. Proxies such as LiteLLM accept a
// dummy key, so an empty apiKey is substituted rather than rejected.
func NewClient(baseURL, apiKey, modelID string) *Client {
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL + "/v1"

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  modelID,
		logger: logger.Get(),
	}
}

// Complete sends one completion request and returns the reply text.
func (c *Client) Complete(ctx context.Context, systemPrompt, userMsg string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userMsg,
			},
		},
		Temperature: 0.7,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.String("model", c.model),
			zap.Error(err),
		)
		return "", fmt.Errorf("completion request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}

	c.logger.Debug("LLM response generated",
		zap.String("model", c.model),
		zap.Int("content_length", len(resp.Choices[0].Message.Content)),
	)
	return resp.Choices[0].Message.Content, nil
}
