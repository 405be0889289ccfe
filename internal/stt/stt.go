// Package stt defines the speech-to-text contract.
//
// Two backends implement it: openai (hosted Whisper via go-openai) and
// local (any self-hosted Whisper-compatible endpoint).
package stt

import (
	"context"
	"errors"
	"strings"
)

// DomainPrompt biases recognition toward banking vocabulary.
const DomainPrompt = "Banking help desk. Terms: UPI, KYC, EMI, NEFT, IMPS, RTGS, Aadhaar, PAN card, debit card, credit card, cheque book, fixed deposit, net banking."

// ErrNoSpeech is returned when the service recognises no words.
var ErrNoSpeech = errors.New("no speech recognised")

// TranscribeOpts controls transcription behavior.
type TranscribeOpts struct {
	// Language is the ISO-639-1 code to guide transcription. Empty lets
	// the service detect it.
	Language string

	// Prompt provides context to improve recognition of domain-specific terms.
	Prompt string
}

// Result is a transcript plus the language the service reported.
type Result struct {
	Text string

	// Language is ISO-639-1 when the service reports one, else empty.
	Language string
}

// Transcriber converts audio to text. Failures are transcription faults.
type Transcriber interface {
	// Name returns the backend identifier (e.g., "openai", "local").
	Name() string

	// Transcribe converts audio bytes to text.
	Transcribe(ctx context.Context, audio []byte, contentType string, opts TranscribeOpts) (*Result, error)
}

// ExtFromContentType picks the file extension that upload APIs use to
// detect the codec.
func ExtFromContentType(ct string) string {
	switch {
	case strings.Contains(ct, "wav"):
		return ".wav"
	case strings.Contains(ct, "ogg"):
		return ".ogg"
	case strings.Contains(ct, "mp3"), strings.Contains(ct, "mpeg"):
		return ".mp3"
	case strings.Contains(ct, "flac"):
		return ".flac"
	case strings.Contains(ct, "webm"):
		return ".webm"
	case strings.Contains(ct, "m4a"), strings.Contains(ct, "mp4"):
		return ".m4a"
	default:
		return ".wav"
	}
}
