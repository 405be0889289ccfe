package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/voicedesk/internal/config"
	"github.com/nadzzz/voicedesk/internal/llm"
	"github.com/nadzzz/voicedesk/internal/resilience"
)

func testCaller(name string) *resilience.Caller {
	p := resilience.DefaultPolicy()
	p.InitialInterval = time.Millisecond
	p.MaxInterval = time.Millisecond
	return resilience.New(name, p)
}

func TestComplete(t *testing.T) {
	var got request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content":      map[string]any{"role": "model", "parts": []map[string]string{{"text": "Aapka "}, {"text": "card block ho jayega."}}},
				"finishReason": "STOP",
			}},
		})
	}))
	defer server.Close()

	c := New(config.GeminiConfig{APIKey: "test-key", BaseURL: server.URL, Model: "gemini-test"}, testCaller("gemini-ok"))
	out, err := c.Complete(context.Background(), llm.Request{
		System: "be helpful",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "card block karna hai"},
		},
		JSON:        true,
		Temperature: 0.2,
		MaxTokens:   100,
	})
	require.NoError(t, err)
	assert.Equal(t, "Aapka card block ho jayega.", out)

	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "be helpful", got.SystemInstruction.Parts[0].Text)
	require.Len(t, got.Contents, 1)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "application/json", got.GenerationConfig.ResponseMIMEType)
	assert.Equal(t, 100, got.GenerationConfig.MaxOutputTokens)
}

func TestComplete_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":400,"message":"API key not valid"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	c := New(config.GeminiConfig{APIKey: "bad", BaseURL: server.URL}, testCaller("gemini-400"))
	_, err := c.Complete(context.Background(), llm.Request{})

	var se *resilience.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
}

func TestComplete_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	c := New(config.GeminiConfig{APIKey: "k", BaseURL: server.URL}, testCaller("gemini-empty"))
	_, err := c.Complete(context.Background(), llm.Request{})
	assert.ErrorIs(t, err, llm.ErrEmptyReply)
}

func TestComplete_TransportErrorHidesKey(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	c := New(config.GeminiConfig{APIKey: "super-secret-key", BaseURL: baseURL, Model: "gemini-test"}, testCaller("gemini-down"))
	_, err := c.Complete(context.Background(), llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "super-secret-key")
}
