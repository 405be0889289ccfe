// Package message defines the core data types flowing through the voicedesk pipeline.
package message

import (
	"encoding/base64"
	"errors"
	"time"

	"github.com/nadzzz/voicedesk/internal/tts"
)

// ResponseMode controls what natural-language output the caller wants.
// The caller declares desired output in the request; the dispatcher
// populates or omits response fields accordingly.
type ResponseMode string

const (
	// ResponseModeText returns the reply text only.
	ResponseModeText ResponseMode = "text"

	// ResponseModeAudio returns TTS-synthesized audio only (no text).
	ResponseModeAudio ResponseMode = "audio"

	// ResponseModeTextAudio returns both text and synthesized audio.
	ResponseModeTextAudio ResponseMode = "text+audio"
)

// WantsText reports whether the mode includes reply text.
func (m ResponseMode) WantsText() bool {
	return m == ResponseModeText || m == ResponseModeTextAudio
}

// WantsAudio reports whether the mode includes synthesized audio.
func (m ResponseMode) WantsAudio() bool {
	return m == ResponseModeAudio || m == ResponseModeTextAudio
}

// Message represents an incoming query from any transport.
type Message struct {
	// ID is a unique identifier for this message (UUID).
	ID string `json:"id"`

	// Session scopes the cooldown guard and the result cache.
	Session string `json:"session"`

	// Source identifies the sender (e.g., "web", "ivr-gateway").
	Source string `json:"source,omitempty"`

	// Audio is the raw audio payload. Nil if the message is text-only.
	Audio []byte `json:"audio,omitempty"`

	// ContentType is the MIME type of the audio (e.g., "audio/wav", "audio/mpeg").
	ContentType string `json:"content_type,omitempty"`

	// Text is typed input; it bypasses transcription.
	Text string `json:"text,omitempty"`

	// ResponseMode selects text, audio, or both. Empty means the dispatcher default.
	ResponseMode ResponseMode `json:"response_mode,omitempty"`

	// Timestamp is when the message was received.
	Timestamp time.Time `json:"timestamp"`
}

// HasAudio returns true if the message contains an audio payload.
func (m *Message) HasAudio() bool {
	return len(m.Audio) > 0
}

// Utterance is what the user said, fixed once ingestion and transcription
// are done. It is never mutated after construction.
type Utterance struct {
	text     string
	language string
	audioRef string
}

// NewUtterance builds an Utterance. language and audioRef may be empty.
func NewUtterance(text, language, audioRef string) Utterance {
	return Utterance{text: text, language: language, audioRef: audioRef}
}

// Text returns the recognised or typed text.
func (u Utterance) Text() string { return u.text }

// Language returns the source language tag, if one was supplied.
func (u Utterance) Language() string { return u.language }

// AudioRef returns the id of the originating audio, if any.
func (u Utterance) AudioRef() string { return u.audioRef }

// FromAudio reports whether the utterance was transcribed from audio.
func (u Utterance) FromAudio() bool { return u.audioRef != "" }

// Result is the outcome of processing a message through the pipeline.
type Result struct {
	// MessageID is the original message ID.
	MessageID string `json:"message_id"`

	// Session echoes the session key.
	Session string `json:"session"`

	// Transcript is the text the pipeline worked on (transcribed or typed).
	Transcript string `json:"transcript"`

	// Language is the resolved ISO-639-1 language tag.
	Language string `json:"language"`

	// LanguageSource is "transcription", "guesser" or "default".
	LanguageSource string `json:"language_source,omitempty"`

	// Intent is the resolved intent label.
	Intent string `json:"intent"`

	// Rationale is the hosted classifier's explanation; empty for the keyword engine.
	Rationale string `json:"rationale,omitempty"`

	// ResponseText is the generated reply. Populated when the response mode includes text.
	ResponseText string `json:"response_text,omitempty"`

	// ResponseAudio is the synthesized reply as a base64 string.
	ResponseAudio string `json:"response_audio,omitempty"`

	// ResponseContentType is the MIME type of ResponseAudio (e.g., "audio/wav").
	ResponseContentType string `json:"response_content_type,omitempty"`

	// Voice is the TTS voice used for ResponseAudio.
	Voice string `json:"voice,omitempty"`

	// VoiceFallback is true when the reply language had no voice and the default was used.
	VoiceFallback bool `json:"voice_fallback,omitempty"`

	// RateLimited is true when the cooldown guard intercepted the request.
	RateLimited bool `json:"rate_limited,omitempty"`

	// Cached is true when the result was served from the session cache.
	Cached bool `json:"cached,omitempty"`

	// Error is set if processing failed at any stage.
	Error string `json:"error,omitempty"`

	// CompletedAt is when the pipeline produced this result.
	CompletedAt time.Time `json:"completed_at"`

	// Audio is the rendered reply owned by this request until Release.
	Audio *tts.Artifact `json:"-"`
}

// SetResponseAudioBytes base64-encodes raw audio bytes into ResponseAudio.
func (r *Result) SetResponseAudioBytes(audio []byte) {
	if len(audio) > 0 {
		r.ResponseAudio = base64.StdEncoding.EncodeToString(audio)
	}
}

// ResponseAudioBytes decodes ResponseAudio.
func (r *Result) ResponseAudioBytes() ([]byte, error) {
	if r.ResponseAudio == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(r.ResponseAudio)
}

// InlineAudio copies the audio artifact into ResponseAudio.
func (r *Result) InlineAudio() error {
	if r.Audio == nil {
		return nil
	}
	data, err := r.Audio.Bytes()
	if err != nil {
		return err
	}
	r.SetResponseAudioBytes(data)
	r.ResponseContentType = r.Audio.ContentType
	return nil
}

// Release deletes the audio artifact once the result has been delivered.
func (r *Result) Release() error {
	if r == nil || r.Audio == nil {
		return nil
	}
	err := r.Audio.Release()
	r.Audio = nil
	return err
}

// Clone returns a copy that does not share the audio artifact.
func (r *Result) Clone() *Result {
	c := *r
	c.Audio = nil
	return &c
}

// ErrNoInput is returned for messages with neither audio nor text.
var ErrNoInput = errors.New("message has no audio and no text")
