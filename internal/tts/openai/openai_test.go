package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/voicedesk/internal/config"
	"github.com/nadzzz/voicedesk/internal/fault"
	"github.com/nadzzz/voicedesk/internal/resilience"
	"github.com/nadzzz/voicedesk/internal/tts"
)

func testCaller(name string) *resilience.Caller {
	p := resilience.DefaultPolicy()
	p.InitialInterval = time.Millisecond
	p.MaxInterval = time.Millisecond
	return resilience.New(name, p)
}

func newSynth(t *testing.T, url, name string) *Synthesizer {
	t.Helper()
	table, err := tts.NewVoiceTable("en", DefaultVoices, nil)
	require.NoError(t, err)
	return New(config.OpenAIConfig{APIKey: "k", BaseURL: url + "/v1"}, table, testCaller(name))
}

func TestSynthesize(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/audio/speech", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF-fake"))
	}))
	defer server.Close()

	s := newSynth(t, server.URL, "tts-openai-ok")

	res, err := s.Synthesize(context.Background(), "Aapka card block ho gaya hai.", tts.SynthesizeOpts{Language: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF-fake"), res.Audio)
	assert.Equal(t, "audio/wav", res.ContentType)
	assert.Equal(t, "nova", res.Voice)
	assert.False(t, res.Fallback())

	assert.Equal(t, "tts-1", got["model"])
	assert.Equal(t, "nova", got["voice"])
	assert.Equal(t, "wav", got["response_format"])
	assert.Equal(t, "Aapka card block ho gaya hai.", got["input"])
}

func TestSynthesize_UnsupportedLanguageFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("RIFF"))
	}))
	defer server.Close()

	s := newSynth(t, server.URL, "tts-openai-fallback")
	res, err := s.Synthesize(context.Background(), "vanakkam", tts.SynthesizeOpts{Language: "ta"})
	require.NoError(t, err)
	assert.Equal(t, "alloy", res.Voice)
	assert.Equal(t, "ta", res.Language)
	assert.True(t, res.Fallback())
}

func TestSynthesize_Errors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	s := newSynth(t, server.URL, "tts-openai-err")

	_, err := s.Synthesize(context.Background(), "  ", tts.SynthesizeOpts{Language: "en"})
	assert.ErrorIs(t, err, fault.ErrSynthesis)
	assert.Equal(t, 0, calls)

	_, err = s.Synthesize(context.Background(), "hello", tts.SynthesizeOpts{Language: "en"})
	assert.ErrorIs(t, err, fault.ErrSynthesis)
	assert.Equal(t, 2, calls)
}
