// Package anthropic implements llm.Completer with the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nadzzz/voicedesk/internal/config"
	"github.com/nadzzz/voicedesk/internal/llm"
	"github.com/nadzzz/voicedesk/internal/resilience"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	apiVersion     = "2023-06-01"
)

// Completer calls POST /messages.
type Completer struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	caller     *resilience.Caller
}

// New creates a Completer from config.
func New(cfg config.AnthropicConfig, caller *resilience.Caller) *Completer {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Completer{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(base, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		caller:     caller,
	}
}

// Name returns the provider identifier.
func (c *Completer) Name() string { return "anthropic" }

// Complete sends one Messages request. The API has no JSON mode, so for
// JSON requests the reply is primed with an opening brace which is put
// back in front of the returned text.
func (c *Completer) Complete(ctx context.Context, req llm.Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	body := request{
		Model:       c.model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Temperature: req.Temperature,
		Messages:    make([]message, 0, len(req.Messages)+1),
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, message{Role: string(m.Role), Content: m.Content})
	}
	if req.JSON {
		body.Messages = append(body.Messages, message{Role: string(llm.RoleAssistant), Content: "{"})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshalling request: %w", err)
	}

	result, err := resilience.Call(ctx, c.caller, func(ctx context.Context) (*response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", apiVersion)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if err := resilience.CheckResponse("anthropic", resp); err != nil {
			return nil, err
		}

		var out response
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		return &out, nil
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range result.Content {
		if block.Type == "" || block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", llm.ErrEmptyReply
	}
	if req.JSON && !strings.HasPrefix(strings.TrimSpace(text), "{") {
		text = "{" + text
	}

	slog.Debug("chat completion done", "provider", "anthropic", "model", c.model, "stop_reason", result.StopReason)
	return strings.TrimSpace(text), nil
}

// --- Wire types ---

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature float32   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}
