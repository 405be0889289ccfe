// Package llm defines the hosted chat-completion contract shared by the
// hosted intent classifier and the reply generator.
package llm

import (
	"context"
	"errors"
	"strings"
)

// Role of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role
	Content string
}

// Request is a single completion call.
type Request struct {
	// System is the instruction placed ahead of the conversation.
	System   string
	Messages []Message

	// JSON asks the provider for a JSON object reply where it supports it.
	JSON bool

	Temperature float32
	MaxTokens   int
}

// Completer produces one assistant reply for a request.
type Completer interface {
	// Name returns the provider identifier (e.g., "openai", "gemini").
	Name() string

	// Complete returns the reply text. An empty reply is ErrEmptyReply.
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrEmptyReply is returned when the provider answers with no text.
var ErrEmptyReply = errors.New("empty reply from model")

// StripFences removes a surrounding markdown code fence (```json ... ```)
// that some models add around JSON even when asked not to.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[") {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
