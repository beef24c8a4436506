// Package llm talks to chat-completion providers and turns retrieved context into a
// hypothesis.
package llm

import (
	"context"
	"net/http"
	"time"

	"github.com/hyperjump/hypogen/pkg/utils"
	"go.uber.org/zap"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatClient completes a conversation and returns the assistant's reply.
type ChatClient interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// OpenAIConfig configures OpenAIClient.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float64
	// Timeout bounds one request; 0 leaves only the caller's deadline.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAIClient calls an OpenAI-compatible /chat/completions endpoint.
type OpenAIClient struct {
	cfg    OpenAIConfig
	logger *zap.Logger
}

// Option configures OpenAIClient and Agent.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets a logger for debug output (request attempts, latencies).
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = utils.OrNop(o.logger)
	return o
}

// NewOpenAIClient returns a client for cfg.
func NewOpenAIClient(cfg OpenAIConfig, opts ...Option) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	o := applyOptions(opts)
	return &OpenAIClient{cfg: cfg, logger: o.logger}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete sends messages and returns the first choice's content. An empty content
// is a valid answer; a response without choices is a permanent error.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	callCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()
	req := chatRequest{Model: c.cfg.Model, Messages: messages, Temperature: c.cfg.Temperature}
	var resp chatResponse
	err := PostJSON(callCtx, c.cfg.HTTPClient, c.cfg.BaseURL, "/chat/completions", c.cfg.APIKey, req, &resp)
	c.logger.Debug("llm chat completion",
		zap.String("model", c.cfg.Model),
		zap.Int("messages", len(messages)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindPermanent, Message: "response has no choices"}
	}
	return resp.Choices[0].Message.Content, nil
}
