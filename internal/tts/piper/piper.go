// Package piper synthesizes speech with a local Piper voice server.
//
// Piper (e.g. the linuxserver/piper image) talks Wyoming over TCP, usually
// on port 10200. Every Wyoming frame is a text header line carrying two
// lengths, then that many bytes of JSON event plus a newline, then the
// binary payload:
//
//	12 4096\n{"type":"x"}\n<4096 bytes>
package piper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/nadzzz/voicedesk/internal/audio"
	"github.com/nadzzz/voicedesk/internal/config"
	"github.com/nadzzz/voicedesk/internal/fault"
	"github.com/nadzzz/voicedesk/internal/resilience"
	"github.com/nadzzz/voicedesk/internal/tts"
)

// DefaultVoices maps ISO-639-1 codes to Piper voice models.
var DefaultVoices = map[string]string{
	"en": "en_US-lessac-medium",
	"hi": "hi_IN-pratham-medium",
}

// errPiper marks an error event sent by the server.
var errPiper = errors.New("piper error")

// Synthesizer speaks one Wyoming synthesize exchange per call.
type Synthesizer struct {
	endpoint  string            // fallback host:port
	endpoints map[string]string // language -> host:port
	voices    tts.VoiceTable
	caller    *resilience.Caller
}

// New resolves per-language endpoints from cfg.
func New(cfg config.PiperConfig, voices tts.VoiceTable, caller *resilience.Caller) *Synthesizer {
	endpoints := make(map[string]string, len(cfg.Endpoints))
	for lang, ep := range cfg.Endpoints {
		endpoints[lang] = cleanEndpoint(ep)
	}
	return &Synthesizer{
		endpoint:  cleanEndpoint(cfg.Endpoint),
		endpoints: endpoints,
		voices:    voices,
		caller:    caller,
	}
}

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return "piper" }

// Synthesize sends text to Piper and returns WAV audio.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	const op = "piper.synthesize"
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fault.Errorf(fault.KindSynthesis, op, "empty text for synthesis")
	}

	voice, sel := s.voices.Select(opts)

	endpoint := s.endpoints[opts.Language]
	if endpoint == "" {
		endpoint = s.endpoint
	}
	if endpoint == "" {
		return nil, fault.Errorf(fault.KindSynthesis, op, "no piper endpoint configured for language %q", opts.Language)
	}

	slog.Debug("piper synthesize", "text_length", len(text), "voice", voice, "language", opts.Language, "endpoint", endpoint)

	wav, err := resilience.Call(ctx, s.caller, func(ctx context.Context) ([]byte, error) {
		return synthesize(ctx, endpoint, text, voice)
	})
	if err != nil {
		return nil, fault.E(fault.KindSynthesis, op, err)
	}

	return &tts.SynthesizeResult{
		Audio:       wav,
		ContentType: audio.ContentTypeWAV,
		Voice:       voice,
		Language:    opts.Language,
		Selection:   sel,
	}, nil
}

// Close is a no-op; connections are per-request.
func (s *Synthesizer) Close() error { return nil }

// --- Internal helpers ---

func cleanEndpoint(ep string) string {
	ep = strings.TrimPrefix(ep, "tcp://")
	return strings.TrimPrefix(ep, "http://")
}

// synthesize runs one synthesize exchange: audio-start, audio-chunk*, audio-stop.
func synthesize(ctx context.Context, endpoint, text, voice string) ([]byte, error) {
	d := net.Dialer{Timeout: 10 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(30 * time.Second)
	}
	_ = conn.SetDeadline(deadline)

	err = writeEvent(conn, wyomingEvent{
		Type: "synthesize",
		Data: map[string]any{"text": text, "voice": map[string]any{"name": voice}},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("synthesize request: %w", err)
	}

	format := pcmFormat{Rate: 22050, Width: 2, Channels: 1}
	var pcm bytes.Buffer
	for {
		evt, payload, err := readEvent(conn)
		if err != nil {
			return nil, fmt.Errorf("piper stream: %w", err)
		}

		switch evt.Type {
		case "audio-start":
			format.update(evt.Data)
		case "audio-chunk":
			pcm.Write(payload)
		case "audio-stop":
			if format.Width != 2 {
				return nil, fmt.Errorf("unsupported sample width %d", format.Width)
			}
			slog.Debug("piper stream complete", "pcm_bytes", pcm.Len(), "rate", format.Rate, "channels", format.Channels)
			return audio.EncodeWAV(audio.PCM16(pcm.Bytes()), format.Rate, format.Channels)
		case "error":
			reason, _ := evt.Data["text"].(string)
			if reason == "" {
				reason = "no detail"
			}
			return nil, fmt.Errorf("%w: %s", errPiper, reason)
		default:
			slog.Debug("ignoring piper event", "type", evt.Type)
		}
	}
}

// pcmFormat is the raw stream layout announced by audio-start.
type pcmFormat struct {
	Rate, Width, Channels int
}

// update overrides fields present in an audio-start payload. JSON numbers
// arrive as float64.
func (f *pcmFormat) update(data map[string]any) {
	for key, dst := range map[string]*int{"rate": &f.Rate, "width": &f.Width, "channels": &f.Channels} {
		if v, ok := data[key].(float64); ok {
			*dst = int(v)
		}
	}
}

type wyomingEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// writeEvent frames evt and payload as a single write.
func writeEvent(w io.Writer, evt wyomingEvent, payload []byte) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", evt.Type, err)
	}
	var frame bytes.Buffer
	frame.Grow(len(body) + len(payload) + 16)
	fmt.Fprintf(&frame, "%d %d\n", len(body), len(payload))
	frame.Write(body)
	frame.WriteByte('\n')
	frame.Write(payload)
	_, err = w.Write(frame.Bytes())
	return err
}

// readEvent consumes exactly one frame from r. The header is read a byte at
// a time so nothing past the frame is buffered away from the caller.
func readEvent(r io.Reader) (*wyomingEvent, []byte, error) {
	var header []byte
	b := make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, nil, fmt.Errorf("frame header: %w", err)
		}
		if b[0] == '\n' {
			break
		}
		header = append(header, b[0])
	}

	var bodyLen, payloadLen int
	if n, err := fmt.Sscanf(string(header), "%d %d", &bodyLen, &payloadLen); err != nil || n != 2 || bodyLen < 0 || payloadLen < 0 {
		return nil, nil, fmt.Errorf("malformed frame header %q", header)
	}

	frame := make([]byte, bodyLen+1+payloadLen) // body, newline, payload
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, nil, fmt.Errorf("frame body: %w", err)
	}
	evt := new(wyomingEvent)
	if err := json.Unmarshal(frame[:bodyLen], evt); err != nil {
		return nil, nil, fmt.Errorf("decode event: %w", err)
	}
	var payload []byte
	if payloadLen > 0 {
		payload = frame[bodyLen+1:]
	}
	return evt, payload, nil
}
