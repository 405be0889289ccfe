// Package local implements stt.Transcriber against a self-hosted Whisper.
//
// Two flavours are supported:
//   - "openai": OpenAI-compatible API (whisper.cpp server, faster-whisper)
//   - "asr":    ahmetoner/whisper-asr-webservice (POST /asr with query params)
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/nadzzz/voicedesk/internal/config"
	"github.com/nadzzz/voicedesk/internal/fault"
	"github.com/nadzzz/voicedesk/internal/langid"
	"github.com/nadzzz/voicedesk/internal/resilience"
	"github.com/nadzzz/voicedesk/internal/stt"
)

// Transcriber posts audio to a local Whisper endpoint.
type Transcriber struct {
	endpoint  string
	flavour   string
	vadFilter bool
	client    *http.Client
	caller    *resilience.Caller
}

// New creates a Transcriber from config.
func New(cfg config.LocalWhisperConfig, caller *resilience.Caller) *Transcriber {
	flavour := cfg.Type
	if flavour == "" {
		flavour = "openai"
	}
	return &Transcriber{
		endpoint:  cfg.Endpoint,
		flavour:   flavour,
		vadFilter: cfg.VADFilter,
		client:    &http.Client{},
		caller:    caller,
	}
}

// Name returns the backend identifier.
func (t *Transcriber) Name() string { return "local" }

// Transcribe sends audio to the configured endpoint.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, contentType string, opts stt.TranscribeOpts) (*stt.Result, error) {
	const op = "local.transcribe"
	if len(audio) == 0 {
		return nil, fault.Errorf(fault.KindTranscription, op, "empty audio")
	}

	res, err := resilience.Call(ctx, t.caller, func(ctx context.Context) (*whisperResponse, error) {
		req, err := t.buildRequest(ctx, audio, contentType, opts)
		if err != nil {
			return nil, err
		}
		return t.do(req)
	})
	if err != nil {
		return nil, fault.E(fault.KindTranscription, op, err)
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		return nil, fault.E(fault.KindTranscription, op, stt.ErrNoSpeech)
	}
	lang := langid.Normalize(res.Language)

	slog.Debug("transcription complete", "backend", "local", "flavour", t.flavour, "text_length", len(text), "language", lang)
	return &stt.Result{Text: text, Language: lang}, nil
}

// --- Internal helpers ---

type whisperResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// buildRequest rebuilds the multipart body on every attempt so retries
// never send a drained reader.
func (t *Transcriber) buildRequest(ctx context.Context, audio []byte, contentType string, opts stt.TranscribeOpts) (*http.Request, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	field := "file"
	if t.flavour == "asr" {
		field = "audio_file"
	}
	part, err := writer.CreateFormFile(field, "audio"+stt.ExtFromContentType(contentType))
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("writing audio: %w", err)
	}

	reqURL := t.endpoint
	if t.flavour == "asr" {
		// API: POST /asr?task=transcribe&language=en&output=json&vad_filter=true
		q := make(url.Values)
		q.Set("task", "transcribe")
		q.Set("output", "json")
		q.Set("encode", "true")
		if opts.Language != "" {
			q.Set("language", opts.Language)
		}
		if opts.Prompt != "" {
			q.Set("initial_prompt", opts.Prompt)
		}
		if t.vadFilter {
			q.Set("vad_filter", "true")
		}
		reqURL += "?" + q.Encode()
	} else {
		if opts.Language != "" {
			_ = writer.WriteField("language", opts.Language)
		}
		if opts.Prompt != "" {
			_ = writer.WriteField("prompt", opts.Prompt)
		}
		_ = writer.WriteField("response_format", "verbose_json")
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

func (t *Transcriber) do(req *http.Request) (*whisperResponse, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if err := resilience.CheckResponse("whisper", resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading transcription: %w", err)
	}
	var out whisperResponse
	if err := json.Unmarshal(data, &out); err != nil {
		// Some servers answer plain text when asked for json.
		return &whisperResponse{Text: string(data)}, nil
	}
	return &out, nil
}
