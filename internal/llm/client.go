// Package llm wraps the Anthropic Messages API for the RAG drivers: one-shot
// completions and a bounded tool-calling loop.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ErrNoAPIKey is returned by New when no key is configured.
var ErrNoAPIKey = errors.New("ANTHROPIC_API_KEY is not set")

// Client sends chat requests to one model.
type Client struct {
	api       anthropic.Client
	model     anthropic.Model
	maxTokens int64
	logger    *slog.Logger
}

// New builds a client. Extra request options are appended after the key, so
// tests can point the client at a fake server.
func New(apiKey, model string, maxTokens int, logger *slog.Logger, opts ...option.RequestOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		api:       anthropic.NewClient(opts...),
		model:     anthropic.Model(model),
		maxTokens: int64(maxTokens),
		logger:    logger,
	}, nil
}

// Model names the model requests are sent to.
func (c *Client) Model() string { return string(c.model) }

// Complete sends one user prompt and returns the text of the reply.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	conversation := []anthropic.MessageParam{userText(prompt)}
	message, err := c.send(ctx, system, conversation, nil)
	if err != nil {
		return "", err
	}
	return textOf(message), nil
}

func (c *Client) send(ctx context.Context, system string, conversation []anthropic.MessageParam, tools []anthropic.ToolUnionParam) (*anthropic.Message, error) {
	params := anthropic.MessageNewParams{
		MaxTokens: c.maxTokens,
		Messages:  conversation,
		Model:     c.model,
		Tools:     tools,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	message, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}
	c.logger.Debug("model reply",
		"model", c.model,
		"stop_reason", message.StopReason,
		"input_tokens", message.Usage.InputTokens,
		"output_tokens", message.Usage.OutputTokens,
	)
	return message, nil
}

func userText(text string) anthropic.MessageParam {
	return anthropic.MessageParam{
		Content: []anthropic.ContentBlockParamUnion{{
			OfText: &anthropic.TextBlockParam{Text: text},
		}},
		Role: anthropic.MessageParamRoleUser,
	}
}

// textOf joins the text blocks of a reply.
func textOf(message *anthropic.Message) string {
	var parts []string
	for _, block := range message.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, variant.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
