// Package reply generates the assistant's answer with a hosted chat model
// under a fixed compliance instruction.
package reply

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nadzzz/voicedesk/internal/fault"
	"github.com/nadzzz/voicedesk/internal/intent"
	"github.com/nadzzz/voicedesk/internal/llm"
	"github.com/nadzzz/voicedesk/internal/message"
)

// SystemInstruction is sent with every generation request.
const SystemInstruction = `You are a customer help-desk assistant for a retail bank.
Rules:
- Be polite, professional and concise: at most three short sentences.
- Do not give financial, investment or tax advice.
- Never promise or guarantee approvals, refunds, reversals or timelines.
- Never ask for, repeat or assume personal data: no account numbers, card numbers, PINs, OTPs, passwords, Aadhaar or PAN numbers.
- For anything that needs the customer's account, direct them to the bank's official app, website or branch.
- Reply in the same language and script the customer used.`

// Options tune generation.
type Options struct {
	Temperature float32
	MaxTokens   int
}

// Generator produces replies.
type Generator struct {
	completer llm.Completer
	opts      Options
}

// New creates a Generator.
func New(completer llm.Completer, opts Options) *Generator {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 300
	}
	return &Generator{completer: completer, opts: opts}
}

// Generate answers u. label and language steer the model; neither is
// shown to the customer.
func (g *Generator) Generate(ctx context.Context, u message.Utterance, label intent.Label, language string) (string, error) {
	const op = "reply.generate"

	out, err := g.completer.Complete(ctx, llm.Request{
		System:      SystemInstruction + "\n\n" + contextNote(label, language),
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: u.Text()}},
		Temperature: g.opts.Temperature,
		MaxTokens:   g.opts.MaxTokens,
	})
	if err != nil {
		return "", fault.E(fault.KindGeneration, op, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", fault.E(fault.KindGeneration, op, llm.ErrEmptyReply)
	}

	slog.Debug("reply generated", "provider", g.completer.Name(), "intent", label, "language", language, "length", len(out))
	return out, nil
}

func contextNote(label intent.Label, language string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The request was classified as: %s.\n", label)
	if language != "" {
		fmt.Fprintf(&sb, "Detected language (ISO-639-1): %s.\n", language)
	}
	return sb.String()
}
