package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/model/speech"
)

const captureChunkSize = 4096

// CommandRecorder captures audio by running an external program that writes
// the encoded stream to stdout (arecord, ffmpeg, sox ...).
type CommandRecorder struct {
	Program     string
	Args        []string
	ContentType string
}

// NewCommandRecorder parses a command line such as
// "ffmpeg -f pulse -i default -f webm -".
func NewCommandRecorder(commandLine, contentType string) (*CommandRecorder, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errors.New("recorder command is empty")
	}
	return &CommandRecorder{Program: fields[0], Args: fields[1:], ContentType: contentType}, nil
}

// Start launches the capture program.
func (r *CommandRecorder) Start(ctx context.Context) (Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(r.Program, r.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	capture := &commandCapture{
		cmd:         cmd,
		contentType: r.ContentType,
		readDone:    make(chan struct{}),
	}
	go capture.drain(stdout)

	slog.Debug("capture started", "component", "media", "program", r.Program, "pid", cmd.Process.Pid)
	return capture, nil
}

type commandCapture struct {
	cmd         *exec.Cmd
	contentType string

	mu       sync.Mutex
	chunks   [][]byte
	readErr  error
	readDone chan struct{}

	once sync.Once
}

func (c *commandCapture) drain(stdout io.Reader) {
	defer close(c.readDone)

	buf := make([]byte, captureChunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			c.mu.Lock()
			c.chunks = append(c.chunks, chunk)
			c.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				c.mu.Lock()
				c.readErr = err
				c.mu.Unlock()
			}
			return
		}
	}
}

// Stop asks the program to finish its container, then joins the chunks.
func (c *commandCapture) Stop() (speech.Recording, error) {
	var rec speech.Recording
	var stopErr error

	c.once.Do(func() {
		c.interrupt()
		<-c.readDone
		// exit status is ignored: capture tools exit non-zero on SIGINT
		_ = c.cmd.Wait()

		c.mu.Lock()
		defer c.mu.Unlock()

		size := 0
		for _, chunk := range c.chunks {
			size += len(chunk)
		}
		data := make([]byte, 0, size)
		for _, chunk := range c.chunks {
			data = append(data, chunk...)
		}
		c.chunks = nil

		rec = speech.Recording{Data: data, ContentType: c.contentType}
		stopErr = c.readErr
	})

	return rec, stopErr
}

// Release kills the program and drops whatever was captured.
func (c *commandCapture) Release() {
	c.once.Do(func() {
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		<-c.readDone
		_ = c.cmd.Wait()

		c.mu.Lock()
		c.chunks = nil
		c.mu.Unlock()
	})
}

func (c *commandCapture) interrupt() {
	if c.cmd.Process == nil {
		return
	}
	if runtime.GOOS == "windows" {
		_ = c.cmd.Process.Kill()
		return
	}
	if err := c.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		_ = c.cmd.Process.Kill()
	}
}

// FileRecorder "captures" a pre-recorded clip. Useful for demos and kiosks
// without a microphone.
type FileRecorder struct {
	Path        string
	ContentType string
}

// Start checks that the clip is readable.
func (r *FileRecorder) Start(ctx context.Context) (Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(r.Path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return &fileCapture{path: r.Path, contentType: r.ContentType}, nil
}

type fileCapture struct {
	path        string
	contentType string
}

func (c *fileCapture) Stop() (speech.Recording, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return speech.Recording{}, fmt.Errorf("failed to read recording: %w", err)
	}
	return speech.Recording{Data: data, ContentType: c.contentType}, nil
}

func (c *fileCapture) Release() {}

// DeniedRecorder refuses every capture, as a browser does when the user
// blocks the microphone.
type DeniedRecorder struct{}

// Start always fails with ErrPermissionDenied.
func (DeniedRecorder) Start(context.Context) (Capture, error) {
	return nil, ErrPermissionDenied
}
