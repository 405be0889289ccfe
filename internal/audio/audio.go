// Package audio normalises inbound voice payloads before transcription:
// WAV and MP3 are decoded and re-encoded as mono 16-bit PCM WAV, other
// containers pass through for the hosted service to handle.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/orcaman/writerseeker"

	"github.com/nadzzz/voicedesk/internal/fault"
)

// ContentTypeWAV is the MIME type of every converted clip.
const ContentTypeWAV = "audio/wav"

var (
	// ErrEmpty is returned for zero-length payloads.
	ErrEmpty = errors.New("empty audio")
	// ErrUnsupported is returned when a payload claims a format it does not decode as.
	ErrUnsupported = errors.New("unsupported or corrupt audio")
)

// Clip is a payload ready for transcription.
type Clip struct {
	Data        []byte
	ContentType string

	// SampleRate, Channels and Duration are zero for pass-through clips.
	SampleRate int
	Channels   int
	Duration   time.Duration

	// Converted is false when Data is the caller's original bytes.
	Converted bool
}

// Normalize prepares data for transcription. Failures are transcription faults.
func Normalize(data []byte, contentType string) (*Clip, error) {
	const op = "audio.normalize"

	if len(data) == 0 {
		return nil, fault.E(fault.KindTranscription, op, ErrEmpty)
	}

	var (
		clip *Clip
		err  error
	)
	switch Sniff(data, contentType) {
	case FormatWAV:
		clip, err = normalizeWAV(data)
	case FormatMP3:
		clip, err = normalizeMP3(data)
	default:
		ct := contentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		return &Clip{Data: data, ContentType: ct}, nil
	}
	if err != nil {
		return nil, fault.E(fault.KindTranscription, op, err)
	}
	return clip, nil
}

// Format is a container recognised by Sniff.
type Format int

const (
	FormatOther Format = iota
	FormatWAV
	FormatMP3
)

// Sniff identifies the container from magic bytes, falling back to the
// declared content type.
func Sniff(data []byte, contentType string) Format {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 && data[1]&0x06 != 0:
		return FormatMP3
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "wav"):
		return FormatWAV
	case strings.Contains(ct, "mpeg"), strings.Contains(ct, "mp3"):
		return FormatMP3
	}
	return FormatOther
}

// EncodeWAV writes interleaved 16-bit samples as a RIFF/WAVE file.
func EncodeWAV(samples []int, sampleRate, channels int) ([]byte, error) {
	ws := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(ws, sampleRate, 16, channels, 1)

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encoder write buffer: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoder close: %w", err)
	}

	out, err := io.ReadAll(ws.Reader())
	if err != nil {
		return nil, fmt.Errorf("reading wav into memory: %w", err)
	}
	return out, nil
}

// PCM16 converts little-endian signed 16-bit PCM bytes to samples.
func PCM16(raw []byte) []int {
	out := make([]int, len(raw)/2)
	for i := range out {
		out[i] = int(int16(binary.LittleEndian.Uint16(raw[2*i:])))
	}
	return out
}

// --- Internal helpers ---

func normalizeWAV(data []byte) (*Clip, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a PCM wav file", ErrUnsupported)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: decoding wav: %v", ErrUnsupported, err)
	}

	channels := buf.Format.NumChannels
	rate := buf.Format.SampleRate
	if channels <= 0 || rate <= 0 || len(buf.Data) == 0 {
		return nil, fmt.Errorf("%w: wav has no samples", ErrUnsupported)
	}
	depth := int(dec.BitDepth)

	// Already mono 16-bit: keep the caller's bytes.
	if channels == 1 && depth == 16 {
		return &Clip{
			Data:        data,
			ContentType: ContentTypeWAV,
			SampleRate:  rate,
			Channels:    1,
			Duration:    duration(len(buf.Data), rate),
		}, nil
	}

	mono := downmix(buf.Data, channels)
	for i, s := range mono {
		mono[i] = to16(s, depth)
	}
	return encodeClip(mono, rate)
}

func normalizeMP3(data []byte) (*Clip, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding mp3: %v", ErrUnsupported, err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding mp3: %v", ErrUnsupported, err)
	}
	if len(raw) < 4 {
		return nil, fmt.Errorf("%w: mp3 has no samples", ErrUnsupported)
	}

	// go-mp3 always yields interleaved stereo 16-bit LE.
	return encodeClip(downmix(PCM16(raw), 2), dec.SampleRate())
}

func encodeClip(mono []int, rate int) (*Clip, error) {
	out, err := EncodeWAV(mono, rate, 1)
	if err != nil {
		return nil, err
	}
	return &Clip{
		Data:        out,
		ContentType: ContentTypeWAV,
		SampleRate:  rate,
		Channels:    1,
		Duration:    duration(len(mono), rate),
		Converted:   true,
	}, nil
}

// downmix averages interleaved frames into one channel.
func downmix(samples []int, channels int) []int {
	if channels == 1 {
		out := make([]int, len(samples))
		copy(out, samples)
		return out
	}
	frames := len(samples) / channels
	out := make([]int, frames)
	for f := 0; f < frames; f++ {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += samples[f*channels+c]
		}
		out[f] = sum / channels
	}
	return out
}

// to16 rescales a sample of the given bit depth to signed 16-bit.
// 8-bit WAV is unsigned.
func to16(s, depth int) int {
	switch {
	case depth == 8:
		return (s - 128) << 8
	case depth > 16:
		return s >> (depth - 16)
	default:
		return s
	}
}

func duration(frames, rate int) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(rate)
}
