// Package claude implements llm.Provider over the Anthropic Messages API.
package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/intake/internal/llm"
)

// jsonHint is appended to the system prompt when a JSON-object response is
// requested; the Messages API has no native constrained-output mode.
const jsonHint = "Respond with a single JSON object and nothing else."

// Client calls the Anthropic Messages API.
type Client struct {
	client anthropic.Client
}

// New creates a Claude-backed provider with the given API key.
func New(apiKey string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Complete sends one generation request and returns the concatenated text
// content of the response.
func (c *Client) Complete(ctx context.Context, model string, req *llm.Request) (string, error) {
	system, msgs := toSDKMessages(req.Messages)
	if req.ForceJSON {
		system = strings.TrimSpace(system + "\n" + jsonHint)
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		Messages:    msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude messages: %w", err)
	}

	return textContent(msg), nil
}

// toSDKMessages separates system messages (the Messages API takes them as a
// top-level field) from the conversational turns.
func toSDKMessages(in []llm.Message) (string, []anthropic.MessageParam) {
	var system []string
	msgs := make([]anthropic.MessageParam, 0, len(in))
	for _, m := range in {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return strings.Join(system, "\n"), msgs
}

// textContent concatenates the text blocks of a response.
func textContent(msg *anthropic.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}
