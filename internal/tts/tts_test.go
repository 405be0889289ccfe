package tts

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoiceTable_Select(t *testing.T) {
	table, err := NewVoiceTable("en", map[string]string{"en": "alloy", "hi": "nova"}, map[string]string{"hi": "shimmer"})
	require.NoError(t, err)

	voice, sel := table.Select(SynthesizeOpts{Language: "hi"})
	assert.Equal(t, "shimmer", voice)
	assert.Equal(t, VoiceMatched, sel)

	voice, sel = table.Select(SynthesizeOpts{Language: "ta"})
	assert.Equal(t, "alloy", voice)
	assert.Equal(t, VoiceFallback, sel)

	voice, sel = table.Select(SynthesizeOpts{Language: "ta", Voice: "echo"})
	assert.Equal(t, "echo", voice)
	assert.Equal(t, VoiceExplicit, sel)
}

func TestNewVoiceTable_RequiresDefaultVoice(t *testing.T) {
	_, err := NewVoiceTable("fr", map[string]string{"en": "alloy"}, nil)
	assert.Error(t, err)
}

type stubSynth struct {
	res *SynthesizeResult
	err error
}

func (s *stubSynth) Name() string { return "stub" }
func (s *stubSynth) Synthesize(context.Context, string, SynthesizeOpts) (*SynthesizeResult, error) {
	return s.res, s.err
}
func (s *stubSynth) Close() error { return nil }

func TestRender_WritesAndReleasesArtifact(t *testing.T) {
	dir := t.TempDir()
	synth := &stubSynth{res: &SynthesizeResult{
		Audio:       []byte("RIFFdata"),
		ContentType: "audio/wav",
		Voice:       "alloy",
		Selection:   VoiceFallback,
	}}

	a, err := Render(context.Background(), synth, dir, "hello", SynthesizeOpts{Language: "ta"})
	require.NoError(t, err)
	assert.FileExists(t, a.Path)
	assert.Equal(t, ".wav", a.Path[len(a.Path)-4:])
	assert.Equal(t, VoiceFallback, a.Selection)

	data, err := a.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFFdata"), data)

	require.NoError(t, a.Release())
	_, statErr := os.Stat(a.Path)
	assert.True(t, os.IsNotExist(statErr))
	assert.NoError(t, a.Release())
}

func TestRender_PropagatesFailure(t *testing.T) {
	boom := errors.New("boom")
	_, err := Render(context.Background(), &stubSynth{err: boom}, t.TempDir(), "hello", SynthesizeOpts{})
	assert.ErrorIs(t, err, boom)
}
