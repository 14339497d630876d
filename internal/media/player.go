package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// CommandPlayer plays clips by writing them to a temp file and running an
// external player on it (mpg123, ffplay, afplay ...).
type CommandPlayer struct {
	Program string
	Args    []string
	TempDir string
}

// NewCommandPlayer parses a command line such as "mpg123 -q". The clip path
// is appended as the last argument.
func NewCommandPlayer(commandLine string) (*CommandPlayer, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errors.New("player command is empty")
	}
	return &CommandPlayer{Program: fields[0], Args: fields[1:]}, nil
}

// Play starts the player in the background.
func (p *CommandPlayer) Play(ctx context.Context, audio []byte, format string) (Playback, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty clip", ErrPlaybackRejected)
	}

	ext := format
	if ext == "" {
		ext = "mp3"
	}
	f, err := os.CreateTemp(p.TempDir, "dentalchat-*."+ext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlaybackRejected, err)
	}
	path := f.Name()
	if _, err := f.Write(audio); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%w: %v", ErrPlaybackRejected, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("%w: %v", ErrPlaybackRejected, err)
	}

	args := append(append([]string{}, p.Args...), path)
	cmd := exec.CommandContext(ctx, p.Program, args...)
	if err := cmd.Start(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("%w: %v", ErrPlaybackRejected, err)
	}

	pb := &commandPlayback{cmd: cmd, done: make(chan error, 1)}
	go func() {
		err := cmd.Wait()
		os.Remove(path)
		if pb.wasStopped() {
			err = nil
		} else if err != nil {
			err = fmt.Errorf("%w: %v", ErrPlaybackRejected, err)
		}
		pb.done <- err
		close(pb.done)
	}()

	slog.Debug("playback started", "component", "media", "program", p.Program, "bytes", len(audio))
	return pb, nil
}

type commandPlayback struct {
	cmd  *exec.Cmd
	done chan error

	mu      sync.Mutex
	stopped bool
}

func (p *commandPlayback) Done() <-chan error { return p.done }

func (p *commandPlayback) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

func (p *commandPlayback) wasStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// SilentPlayer accepts every clip and finishes immediately.
type SilentPlayer struct{}

// Play returns a playback that is already done.
func (SilentPlayer) Play(_ context.Context, audio []byte, _ string) (Playback, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty clip", ErrPlaybackRejected)
	}
	done := make(chan error, 1)
	done <- nil
	close(done)
	return silentPlayback{done: done}, nil
}

type silentPlayback struct {
	done chan error
}

func (p silentPlayback) Done() <-chan error { return p.done }
func (silentPlayback) Stop()                {}
