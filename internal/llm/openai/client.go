// Package openai implements llm.Provider over any OpenAI-compatible chat
// completion endpoint.
package openai

import (
	"context"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/linnemanlabs/intake/internal/llm"
)

// Client calls an OpenAI-compatible chat completion API.
type Client struct {
	client *goopenai.Client
}

// New creates a provider for the given API key. baseURL overrides the
// endpoint for compatible gateways; empty means api.openai.com.
func New(apiKey, baseURL string) *Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{client: goopenai.NewClientWithConfig(cfg)}
}

// Complete sends one generation request. When a JSON object is requested it
// uses the native json_object response format.
func (c *Client) Complete(ctx context.Context, model string, req *llm.Request) (string, error) {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := m.Role
		switch role {
		case goopenai.ChatMessageRoleSystem, goopenai.ChatMessageRoleUser, goopenai.ChatMessageRoleAssistant:
		default:
			role = goopenai.ChatMessageRoleUser
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	ccReq := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}
	if req.ForceJSON {
		ccReq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, ccReq)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
