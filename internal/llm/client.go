// Package llm talks to an OpenAI-compatible chat completion endpoint
// (Groq by default) and decodes the ordering replies it produces.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var (
	// ErrTransport covers network failures, timeouts and non-2xx replies.
	ErrTransport = errors.New("llm transport failure")
	// ErrEmptyReply means the endpoint answered without any choice.
	ErrEmptyReply = errors.New("llm returned no choices")
)

// Completer sends a single prompt and returns the model's text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client is a Completer backed by langchaingo's OpenAI driver.
type Client struct {
	model       llms.Model
	timeout     time.Duration
	temperature float64
	maxTokens   int
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	model, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	return NewClientWithModel(model, cfg.Timeout), nil
}

// NewClientWithModel wraps an already constructed model.
func NewClientWithModel(model llms.Model, timeout time.Duration) *Client {
	return &Client{
		model:       model,
		timeout:     timeout,
		temperature: 0.3,
		maxTokens:   1000,
	}
}

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.model.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)},
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		// the openai driver reports a 2xx reply without choices as an error
		if errors.Is(err, openai.ErrEmptyResponse) {
			return "", ErrEmptyReply
		}
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return resp.Choices[0].Content, nil
}
