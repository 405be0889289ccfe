// Package tts defines the interface for text-to-speech synthesis.
//
// voicedesk uses TTS to speak the generated reply in the language resolved
// for the query. Languages without a configured voice are rendered with the
// default voice; the result says so explicitly instead of hiding it.
package tts

import (
	"context"
	"fmt"
)

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Language is the ISO-639-1 code (e.g., "en", "hi") to select the voice.
	Language string

	// Voice overrides automatic language-based voice selection.
	Voice string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Name returns the backend identifier (e.g., "openai", "piper").
	Name() string

	// Synthesize generates audio for the given text.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// Selection records how the voice was chosen.
type Selection int

const (
	// VoiceExplicit means the caller named the voice.
	VoiceExplicit Selection = iota

	// VoiceMatched means the requested language had its own voice.
	VoiceMatched

	// VoiceFallback means the requested language had no voice and the default was used.
	VoiceFallback
)

func (s Selection) String() string {
	switch s {
	case VoiceExplicit:
		return "explicit"
	case VoiceMatched:
		return "matched"
	case VoiceFallback:
		return "fallback"
	default:
		return fmt.Sprintf("selection(%d)", int(s))
	}
}

// SynthesizeResult holds the output of TTS synthesis.
type SynthesizeResult struct {
	// Audio is the synthesized audio in a standard container.
	Audio []byte

	// ContentType is the MIME type of the audio (e.g., "audio/wav").
	ContentType string

	// Voice is the voice that rendered the audio.
	Voice string

	// Language is the language that was requested.
	Language string

	// Selection says whether Voice matched Language or is the default fallback.
	Selection Selection
}

// Fallback reports whether the default voice stood in for an unsupported language.
func (r *SynthesizeResult) Fallback() bool {
	return r.Selection == VoiceFallback
}

// VoiceTable maps ISO-639-1 codes to backend voice names with a default.
type VoiceTable struct {
	DefaultLanguage string
	Voices          map[string]string
}

// NewVoiceTable merges overrides into defaults. defaultLanguage must have a voice.
func NewVoiceTable(defaultLanguage string, defaults, overrides map[string]string) (VoiceTable, error) {
	voices := make(map[string]string, len(defaults)+len(overrides))
	for k, v := range defaults {
		voices[k] = v
	}
	for k, v := range overrides {
		voices[k] = v
	}
	if voices[defaultLanguage] == "" {
		return VoiceTable{}, fmt.Errorf("no voice configured for default language %q", defaultLanguage)
	}
	return VoiceTable{DefaultLanguage: defaultLanguage, Voices: voices}, nil
}

// Select picks the voice for opts.
func (t VoiceTable) Select(opts SynthesizeOpts) (string, Selection) {
	if opts.Voice != "" {
		return opts.Voice, VoiceExplicit
	}
	if v, ok := t.Voices[opts.Language]; ok && v != "" {
		return v, VoiceMatched
	}
	return t.Voices[t.DefaultLanguage], VoiceFallback
}
