// Package openai implements llm.Completer with the OpenAI Chat Completions API.
package openai

import (
	"context"
	"fmt"
	"log/slog"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/nadzzz/voicedesk/internal/config"
	"github.com/nadzzz/voicedesk/internal/llm"
	"github.com/nadzzz/voicedesk/internal/resilience"
)

// Completer calls the Chat Completions API.
type Completer struct {
	client *goopenai.Client
	model  string
	caller *resilience.Caller
}

// NewClient builds a go-openai client, honouring a custom base URL
// (Azure-compatible gateways, test servers).
func NewClient(cfg config.OpenAIConfig) *goopenai.Client {
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return goopenai.NewClientWithConfig(oc)
}

// New creates a Completer from config.
func New(cfg config.OpenAIConfig, caller *resilience.Caller) *Completer {
	return &Completer{
		client: NewClient(cfg),
		model:  cfg.ChatModel,
		caller: caller,
	}
}

// Name returns the provider identifier.
func (c *Completer) Name() string { return "openai" }

// Complete sends one chat request.
func (c *Completer) Complete(ctx context.Context, req llm.Request) (string, error) {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := goopenai.ChatMessageRoleUser
		if m.Role == llm.RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	creq := goopenai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		creq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := resilience.Call(ctx, c.caller, func(ctx context.Context) (goopenai.ChatCompletionResponse, error) {
		return c.client.CreateChatCompletion(ctx, creq)
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", llm.ErrEmptyReply
	}

	slog.Debug("chat completion done", "provider", "openai", "model", c.model, "tokens", resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}
