// Package openai implements tts.Synthesizer with the OpenAI speech API.
package openai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/nadzzz/voicedesk/internal/audio"
	"github.com/nadzzz/voicedesk/internal/config"
	"github.com/nadzzz/voicedesk/internal/fault"
	llmopenai "github.com/nadzzz/voicedesk/internal/llm/openai"
	"github.com/nadzzz/voicedesk/internal/resilience"
	"github.com/nadzzz/voicedesk/internal/tts"
)

// DefaultVoices maps ISO-639-1 codes to OpenAI voices.
var DefaultVoices = map[string]string{
	"en": string(goopenai.VoiceAlloy),
	"hi": string(goopenai.VoiceNova),
}

// Synthesizer calls POST /audio/speech and asks for WAV output.
type Synthesizer struct {
	client *goopenai.Client
	model  string
	voices tts.VoiceTable
	caller *resilience.Caller
}

// New creates a Synthesizer from config.
func New(cfg config.OpenAIConfig, voices tts.VoiceTable, caller *resilience.Caller) *Synthesizer {
	model := cfg.TTSModel
	if model == "" {
		model = string(goopenai.TTSModel1)
	}
	return &Synthesizer{
		client: llmopenai.NewClient(cfg),
		model:  model,
		voices: voices,
		caller: caller,
	}
}

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return "openai" }

// Synthesize renders text with the voice selected for opts.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	const op = "openai.synthesize"
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fault.Errorf(fault.KindSynthesis, op, "empty text for synthesis")
	}

	voice, sel := s.voices.Select(opts)
	slog.Debug("openai synthesize", "text_length", len(text), "voice", voice, "language", opts.Language, "selection", sel)

	data, err := resilience.Call(ctx, s.caller, func(ctx context.Context) ([]byte, error) {
		resp, err := s.client.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
			Model:          goopenai.SpeechModel(s.model),
			Input:          text,
			Voice:          goopenai.SpeechVoice(voice),
			ResponseFormat: goopenai.SpeechResponseFormatWav,
		})
		if err != nil {
			return nil, err
		}
		defer resp.Close()

		out, err := io.ReadAll(resp)
		if err != nil {
			return nil, fmt.Errorf("reading speech: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, fault.E(fault.KindSynthesis, op, err)
	}
	if len(data) == 0 {
		return nil, fault.Errorf(fault.KindSynthesis, op, "empty audio from provider")
	}

	return &tts.SynthesizeResult{
		Audio:       data,
		ContentType: audio.ContentTypeWAV,
		Voice:       voice,
		Language:    opts.Language,
		Selection:   sel,
	}, nil
}

// Close is a no-op.
func (s *Synthesizer) Close() error { return nil }
