// Package anthropic implements the completion gateway over the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/RuokeZhang/IntelliFlow/gateway"
)

// Completer calls the Anthropic Messages API.
type Completer struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// New creates a Completer for the given API key and model.
func New(apiKey, model string, maxTokens int64) *Completer {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Completer{
		client:    &client,
		model:     model,
		maxTokens: maxTokens,
	}
}

// Complete sends the prepared context and returns the concatenated text
// blocks of the response. Errors are returned as-is for the caller to
// classify; this layer never retries.
func (c *Completer) Complete(ctx context.Context, system string, messages []gateway.ChatMessage) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  toParams(messages),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// toParams maps gateway messages onto API message params. The API accepts
// only user and assistant roles; anything else is folded into a user turn.
func toParams(messages []gateway.ChatMessage) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "assistant":
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return params
}
