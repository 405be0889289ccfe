// Package openai implements stt.Transcriber with the OpenAI Audio
// Transcription API (Whisper).
package openai

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/nadzzz/voicedesk/internal/config"
	"github.com/nadzzz/voicedesk/internal/fault"
	"github.com/nadzzz/voicedesk/internal/langid"
	llmopenai "github.com/nadzzz/voicedesk/internal/llm/openai"
	"github.com/nadzzz/voicedesk/internal/resilience"
	"github.com/nadzzz/voicedesk/internal/stt"
)

// Transcriber calls /audio/transcriptions.
type Transcriber struct {
	client *goopenai.Client
	model  string
	caller *resilience.Caller
}

// New creates a Transcriber from config.
func New(cfg config.OpenAIConfig, caller *resilience.Caller) *Transcriber {
	model := cfg.TranscriptionModel
	if model == "" {
		model = goopenai.Whisper1
	}
	return &Transcriber{
		client: llmopenai.NewClient(cfg),
		model:  model,
		caller: caller,
	}
}

// Name returns the backend identifier.
func (t *Transcriber) Name() string { return "openai" }

// Transcribe uploads audio and asks for verbose JSON so the detected
// language comes back with the text.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, contentType string, opts stt.TranscribeOpts) (*stt.Result, error) {
	const op = "openai.transcribe"
	if len(audio) == 0 {
		return nil, fault.Errorf(fault.KindTranscription, op, "empty audio")
	}

	resp, err := resilience.Call(ctx, t.caller, func(ctx context.Context) (goopenai.AudioResponse, error) {
		return t.client.CreateTranscription(ctx, goopenai.AudioRequest{
			Model:    t.model,
			Reader:   bytes.NewReader(audio),
			FilePath: "audio" + stt.ExtFromContentType(contentType),
			Language: opts.Language,
			Prompt:   opts.Prompt,
			Format:   goopenai.AudioResponseFormatVerboseJSON,
		})
	})
	if err != nil {
		return nil, fault.E(fault.KindTranscription, op, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, fault.E(fault.KindTranscription, op, stt.ErrNoSpeech)
	}

	// OpenAI returns full language names ("english"); normalise to ISO-639-1.
	lang := langid.Normalize(resp.Language)

	slog.Debug("transcription complete", "backend", "openai", "text_length", len(text), "language", lang)
	return &stt.Result{Text: text, Language: lang}, nil
}
