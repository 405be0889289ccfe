package langid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_TranscriptionWins(t *testing.T) {
	r := New("en", nil)

	res := r.Resolve("what's my balance", "hindi")
	assert.Equal(t, Resolution{Tag: "hi", Source: SourceTranscription}, res)

	res = r.Resolve("what's my balance", "HI")
	assert.Equal(t, Resolution{Tag: "hi", Source: SourceTranscription}, res)
}

func TestResolve_InvalidTranscriptionFallsThrough(t *testing.T) {
	r := New("en", []string{"en", "hi"})
	res := r.Resolve("मेरा खाता बंद हो गया है, कृपया मदद करें", "klingon")
	assert.Equal(t, Resolution{Tag: "hi", Source: SourceGuesser}, res)
}

func TestResolve_Guesser(t *testing.T) {
	r := New("en", nil)
	res := r.Resolve("I would like to know the current balance of my savings account please", "")
	assert.Equal(t, "en", res.Tag)
	assert.Equal(t, SourceGuesser, res.Source)
}

func TestResolve_WhitelistKeepsRomanisedHindiOnLatinCandidates(t *testing.T) {
	r := New("en", []string{"en", "hi"})
	res := r.Resolve("mujhe apna card block karna hai", "")
	assert.Equal(t, "en", res.Tag)
}

func TestResolve_Default(t *testing.T) {
	r := New("EN", nil)
	assert.Equal(t, Resolution{Tag: "en", Source: SourceDefault}, r.Resolve("", ""))
	assert.Equal(t, Resolution{Tag: "en", Source: SourceDefault}, r.Resolve("   ", ""))
	assert.Equal(t, Resolution{Tag: "en", Source: SourceDefault}, r.Resolve("12345 !!!", ""))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "en", Normalize("English"))
	assert.Equal(t, "hi", Normalize(" hindi "))
	assert.Equal(t, "fr", Normalize("FR"))
	assert.Equal(t, "", Normalize(""))
}
