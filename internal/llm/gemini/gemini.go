// Package gemini implements llm.Completer with the Gemini generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nadzzz/voicedesk/internal/config"
	"github.com/nadzzz/voicedesk/internal/llm"
	"github.com/nadzzz/voicedesk/internal/resilience"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Completer calls models/{model}:generateContent.
type Completer struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	caller     *resilience.Caller
}

// New creates a Completer from config.
func New(cfg config.GeminiConfig, caller *resilience.Caller) *Completer {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &Completer{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(base, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		caller:     caller,
	}
}

// Name returns the provider identifier.
func (c *Completer) Name() string { return "gemini" }

// Complete sends one generateContent request.
func (c *Completer) Complete(ctx context.Context, req llm.Request) (string, error) {
	body := request{
		Contents: make([]content, 0, len(req.Messages)),
		GenerationConfig: generationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		},
	}
	if req.System != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}
	for _, m := range req.Messages {
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		body.Contents = append(body.Contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}
	if req.JSON {
		body.GenerationConfig.ResponseMIMEType = "application/json"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshalling request: %w", err)
	}

	// The key travels in a header; transport errors print the URL.
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))

	result, err := resilience.Call(ctx, c.caller, func(ctx context.Context) (*response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if err := resilience.CheckResponse("gemini", resp); err != nil {
			return nil, err
		}

		var out response
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		return &out, nil
	})
	if err != nil {
		return "", fmt.Errorf("gemini generateContent: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("gemini error %d: %s", result.Error.Code, result.Error.Message)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", llm.ErrEmptyReply
	}

	var sb strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", llm.ErrEmptyReply
	}

	slog.Debug("chat completion done", "provider", "gemini", "model", c.model, "finish_reason", result.Candidates[0].FinishReason)
	return text, nil
}

// --- Wire types ---

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type request struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	Temperature      float32 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type response struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
