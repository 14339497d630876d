package devserver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrUnavailable means no fixture is configured for the service.
	ErrUnavailable = errors.New("service unavailable")
	// ErrNoSpeech means the clip held nothing to transcribe.
	ErrNoSpeech = errors.New("no speech detected in audio")
)

// Synthesizer turns text into an mp3 clip.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Transcriber turns an audio clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType string) (string, error)
}

// FixtureSynthesizer answers every request with the same clip.
type FixtureSynthesizer struct {
	Clip []byte
}

// LoadFixtureSynthesizer reads the clip at path. An empty path yields a
// synthesizer that reports the service as unavailable.
func LoadFixtureSynthesizer(path string) (*FixtureSynthesizer, error) {
	if strings.TrimSpace(path) == "" {
		return &FixtureSynthesizer{}, nil
	}
	clip, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read speech fixture: %w", err)
	}
	return &FixtureSynthesizer{Clip: clip}, nil
}

// Synthesize returns the fixture clip.
func (s *FixtureSynthesizer) Synthesize(_ context.Context, _ string, _ string) ([]byte, error) {
	if len(s.Clip) == 0 {
		return nil, ErrUnavailable
	}
	return s.Clip, nil
}

// FixtureTranscriber returns a fixed transcript for any non-empty clip.
type FixtureTranscriber struct {
	Text string
}

// Transcribe returns the fixture text.
func (t FixtureTranscriber) Transcribe(_ context.Context, audio []byte, _ string) (string, error) {
	if t.Text == "" {
		return "", ErrUnavailable
	}
	if len(audio) == 0 {
		return "", ErrNoSpeech
	}
	return t.Text, nil
}
