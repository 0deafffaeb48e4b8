// Package llm calls chat-completion APIs for llm nodes.
package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rendis/flowrun/pkg/schema"
)

// DefaultTimeout bounds a single completion request.
const DefaultTimeout = 60 * time.Second

// Request is one completion call. APIHost is the base URL of an
// OpenAI-compatible endpoint, e.g. https://api.openai.com/v1.
type Request struct {
	ModelName    string
	APIKey       string
	APIHost      string
	Temperature  float64
	Prompt       string
	SystemPrompt string
}

// Client generates text for a prompt.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ChatCompleter is the subset of *openai.Client used here.
type ChatCompleter interface {
	CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
// A client is built per request because key and host are node inputs.
type OpenAIClient struct {
	httpClient *http.Client
	timeout    time.Duration
	newClient  func(cfg openai.ClientConfig) ChatCompleter
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(c *OpenAIClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) OpenAIOption {
	return func(c *OpenAIClient) { c.httpClient = hc }
}

// NewOpenAIClient creates an OpenAIClient.
func NewOpenAIClient(opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		newClient: func(cfg openai.ClientConfig) ChatCompleter {
			return openai.NewClientWithConfig(cfg)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate sends the prompt and returns the first choice's content.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	cfg := openai.DefaultConfig(req.APIKey)
	if req.APIHost != "" {
		cfg.BaseURL = strings.TrimRight(req.APIHost, "/")
	}
	cfg.HTTPClient = c.httpClient

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := c.newClient(cfg).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.ModelName,
		Messages:    messages,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeLLM, "chat completion failed: %s", err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"model": req.ModelName, "host": cfg.BaseURL})
	}
	if len(resp.Choices) == 0 {
		return "", schema.NewError(schema.ErrCodeLLM, "chat completion returned no choices").
			WithDetails(map[string]any{"model": req.ModelName})
	}
	return resp.Choices[0].Message.Content, nil
}
