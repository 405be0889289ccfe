// Package langid resolves the ISO-639-1 language of an utterance.
//
// Precedence is fixed: the transcription service's language when it is a
// valid code, then the whatlanggo statistical guesser, then the configured
// default. There is no confidence threshold; very short inputs can be
// mis-identified.
package langid

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Source records which strategy produced a tag.
type Source string

const (
	SourceTranscription Source = "transcription"
	SourceGuesser       Source = "guesser"
	SourceDefault       Source = "default"
)

// Resolution is a resolved language tag.
type Resolution struct {
	Tag    string
	Source Source
}

// Resolver applies the precedence above.
type Resolver struct {
	defaultTag string
	options    whatlanggo.Options
}

// New creates a Resolver. When allowed is non-empty the guesser only
// chooses among those ISO-639-1 codes; unknown codes are ignored.
func New(defaultTag string, allowed []string) *Resolver {
	r := &Resolver{defaultTag: strings.ToLower(defaultTag)}
	if len(allowed) > 0 {
		want := make(map[string]bool, len(allowed))
		for _, a := range allowed {
			want[strings.ToLower(a)] = true
		}
		wl := make(map[whatlanggo.Lang]bool)
		for lang := range whatlanggo.Langs {
			if want[lang.Iso6391()] {
				wl[lang] = true
			}
		}
		if len(wl) > 0 {
			r.options.Whitelist = wl
		}
	}
	return r
}

// Resolve picks the tag for text. transcriptLang may be empty or a full
// language name as some providers return.
func (r *Resolver) Resolve(text, transcriptLang string) Resolution {
	if tag := Normalize(transcriptLang); isISO6391(tag) {
		return Resolution{Tag: tag, Source: SourceTranscription}
	}

	if strings.TrimSpace(text) != "" {
		info := whatlanggo.DetectWithOptions(text, r.options)
		if tag := info.Lang.Iso6391(); isISO6391(tag) {
			return Resolution{Tag: tag, Source: SourceGuesser}
		}
	}

	return Resolution{Tag: r.defaultTag, Source: SourceDefault}
}

// Normalize converts full language names (as returned by hosted
// transcription) to ISO-639-1 codes and lower-cases everything else.
func Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if code, ok := names[lang]; ok {
		return code
	}
	return lang
}

func isISO6391(tag string) bool {
	if len(tag) != 2 {
		return false
	}
	for _, c := range tag {
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}

var names = map[string]string{
	"english":    "en",
	"hindi":      "hi",
	"bengali":    "bn",
	"tamil":      "ta",
	"telugu":     "te",
	"marathi":    "mr",
	"gujarati":   "gu",
	"kannada":    "kn",
	"malayalam":  "ml",
	"punjabi":    "pa",
	"urdu":       "ur",
	"french":     "fr",
	"spanish":    "es",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"dutch":      "nl",
	"russian":    "ru",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"arabic":     "ar",
	"turkish":    "tr",
}
