package tts

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Artifact is a rendered audio file on local disk. The request that created
// it owns it and must call Release once the audio has been delivered.
type Artifact struct {
	Path        string
	ContentType string
	Voice       string
	Selection   Selection

	once sync.Once
	err  error
}

// Render synthesizes text and writes the audio to a temp file in dir
// (os.TempDir when empty).
func Render(ctx context.Context, s Synthesizer, dir, text string, opts SynthesizeOpts) (*Artifact, error) {
	res, err := s.Synthesize(ctx, text, opts)
	if err != nil {
		return nil, err
	}
	a, err := WriteArtifact(dir, res.Audio, res.ContentType)
	if err != nil {
		return nil, err
	}
	a.Voice = res.Voice
	a.Selection = res.Selection
	return a, nil
}

// WriteArtifact stores audio in a new temp file.
func WriteArtifact(dir string, audio []byte, contentType string) (*Artifact, error) {
	f, err := os.CreateTemp(dir, "voicedesk-*"+extFor(contentType))
	if err != nil {
		return nil, fmt.Errorf("creating audio artifact: %w", err)
	}
	if _, err := f.Write(audio); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("writing audio artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("closing audio artifact: %w", err)
	}
	return &Artifact{Path: f.Name(), ContentType: contentType}, nil
}

// Bytes reads the artifact back.
func (a *Artifact) Bytes() ([]byte, error) {
	return os.ReadFile(a.Path)
}

// Release deletes the file. It is safe to call more than once.
func (a *Artifact) Release() error {
	if a == nil {
		return nil
	}
	a.once.Do(func() {
		if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
			a.err = fmt.Errorf("removing audio artifact: %w", err)
		}
	})
	return a.err
}

func extFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "wav"):
		return ".wav"
	case strings.Contains(contentType, "mpeg"), strings.Contains(contentType, "mp3"):
		return ".mp3"
	case strings.Contains(contentType, "ogg"), strings.Contains(contentType, "opus"):
		return ".ogg"
	default:
		return ".bin"
	}
}
