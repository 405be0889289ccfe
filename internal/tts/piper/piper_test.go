package piper

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/voicedesk/internal/config"
	"github.com/nadzzz/voicedesk/internal/fault"
	"github.com/nadzzz/voicedesk/internal/resilience"
	"github.com/nadzzz/voicedesk/internal/tts"
)

// fakeWyoming serves one connection per reply function.
func fakeWyoming(t *testing.T, reply func(net.Conn, *wyomingEvent)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				evt, _, err := readEvent(conn)
				if err != nil {
					return
				}
				reply(conn, evt)
			}()
		}
	}()
	return ln.Addr().String()
}

func newSynth(t *testing.T, cfg config.PiperConfig) *Synthesizer {
	t.Helper()
	table, err := tts.NewVoiceTable("en", DefaultVoices, nil)
	require.NoError(t, err)
	p := resilience.DefaultPolicy()
	p.InitialInterval = time.Millisecond
	p.MaxInterval = time.Millisecond
	return New(cfg, table, resilience.New("piper-"+t.Name(), p))
}

func pcm(samples ...int16) []byte {
	buf := &bytes.Buffer{}
	for _, s := range samples {
		_ = binary.Write(buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}

func TestSynthesize(t *testing.T) {
	var seen *wyomingEvent
	addr := fakeWyoming(t, func(conn net.Conn, evt *wyomingEvent) {
		seen = evt
		_ = writeEvent(conn, wyomingEvent{Type: "audio-start", Data: map[string]any{"rate": 16000, "width": 2, "channels": 1}}, nil)
		_ = writeEvent(conn, wyomingEvent{Type: "audio-chunk"}, pcm(0, 1000, -1000))
		_ = writeEvent(conn, wyomingEvent{Type: "audio-chunk"}, pcm(500))
		_ = writeEvent(conn, wyomingEvent{Type: "audio-stop"}, nil)
	})

	s := newSynth(t, config.PiperConfig{Endpoint: "tcp://" + addr})
	res, err := s.Synthesize(context.Background(), "Your card is blocked.", tts.SynthesizeOpts{Language: "hi"})
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, "synthesize", seen.Type)
	assert.Equal(t, "Your card is blocked.", seen.Data["text"])
	assert.Equal(t, map[string]any{"name": "hi_IN-pratham-medium"}, seen.Data["voice"])

	assert.Equal(t, "audio/wav", res.ContentType)
	assert.Equal(t, tts.VoiceMatched, res.Selection)

	dec := wav.NewDecoder(bytes.NewReader(res.Audio))
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1000, -1000, 500}, buf.Data)
	assert.Equal(t, 16000, int(dec.SampleRate))
}

func TestSynthesize_PerLanguageEndpoint(t *testing.T) {
	hiAddr := fakeWyoming(t, func(conn net.Conn, evt *wyomingEvent) {
		_ = writeEvent(conn, wyomingEvent{Type: "audio-start"}, nil)
		_ = writeEvent(conn, wyomingEvent{Type: "audio-stop"}, nil)
	})

	s := newSynth(t, config.PiperConfig{Endpoints: map[string]string{"hi": hiAddr}})
	_, err := s.Synthesize(context.Background(), "namaste", tts.SynthesizeOpts{Language: "hi"})
	require.NoError(t, err)

	_, err = s.Synthesize(context.Background(), "hello", tts.SynthesizeOpts{Language: "en"})
	assert.ErrorIs(t, err, fault.ErrSynthesis)
}

func TestSynthesize_ServerError(t *testing.T) {
	addr := fakeWyoming(t, func(conn net.Conn, evt *wyomingEvent) {
		_ = writeEvent(conn, wyomingEvent{Type: "error", Data: map[string]any{"text": "voice not found"}}, nil)
	})

	s := newSynth(t, config.PiperConfig{Endpoint: addr})
	_, err := s.Synthesize(context.Background(), "hello", tts.SynthesizeOpts{Language: "ta"})
	assert.ErrorIs(t, err, fault.ErrSynthesis)
	assert.ErrorIs(t, err, errPiper)
	assert.Contains(t, err.Error(), "voice not found")
}

func TestSynthesize_EmptyText(t *testing.T) {
	s := newSynth(t, config.PiperConfig{Endpoint: "127.0.0.1:1"})
	_, err := s.Synthesize(context.Background(), " ", tts.SynthesizeOpts{})
	assert.ErrorIs(t, err, fault.ErrSynthesis)
}

func TestReadWriteEvent(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, writeEvent(buf, wyomingEvent{Type: "audio-chunk", Data: map[string]any{"rate": 22050.0}}, []byte{1, 2, 3}))

	evt, payload, err := readEvent(buf)
	require.NoError(t, err)
	assert.Equal(t, "audio-chunk", evt.Type)
	assert.Equal(t, 22050.0, evt.Data["rate"])
	assert.Equal(t, []byte{1, 2, 3}, payload)

	_, _, err = readEvent(bytes.NewBufferString("garbage\n"))
	assert.Error(t, err)
}
