// Package media abstracts the audio devices the widget drives: microphone
// capture and clip playback.
package media

import (
	"context"
	"errors"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/model/speech"
)

var (
	// ErrPermissionDenied is returned when the capture device cannot be opened.
	ErrPermissionDenied = errors.New("microphone access denied")
	// ErrPlaybackRejected is returned when a clip cannot be played.
	ErrPlaybackRejected = errors.New("audio playback rejected")
)

// Recorder opens capture sessions on the microphone.
type Recorder interface {
	Start(ctx context.Context) (Capture, error)
}

// Capture is an active recording. Both Stop and Release free the device;
// only Stop returns the buffered audio.
type Capture interface {
	Stop() (speech.Recording, error)
	Release()
}

// Player plays encoded audio clips.
type Player interface {
	Play(ctx context.Context, audio []byte, format string) (Playback, error)
}

// Playback is a clip being played. Done yields the outcome once and is then
// closed. Stop interrupts playback; Done still delivers.
type Playback interface {
	Done() <-chan error
	Stop()
}
