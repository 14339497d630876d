package media

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/config"
)

func TestDeniedRecorder(t *testing.T) {
	_, err := DeniedRecorder{}.Start(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestFileRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.webm")
	if err := os.WriteFile(path, []byte("webm-bytes"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	rec := &FileRecorder{Path: path, ContentType: "audio/webm"}
	capture, err := rec.Start(context.Background())
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	got, err := capture.Stop()
	if err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if string(got.Data) != "webm-bytes" || got.ContentType != "audio/webm" {
		t.Fatalf("unexpected recording %+v", got)
	}
}

func TestFileRecorderMissingFile(t *testing.T) {
	rec := &FileRecorder{Path: filepath.Join(t.TempDir(), "missing.webm")}
	if _, err := rec.Start(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestCommandRecorderCollectsStdout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	rec := &CommandRecorder{Program: "sh", Args: []string{"-c", "printf abc; exec sleep 5"}, ContentType: "audio/ogg"}
	capture, err := rec.Start(context.Background())
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		c := capture.(*commandCapture)
		c.mu.Lock()
		n := len(c.chunks)
		c.mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	got, err := capture.Stop()
	if err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if string(got.Data) != "abc" {
		t.Fatalf("unexpected data %q", got.Data)
	}
	if got.ContentType != "audio/ogg" {
		t.Fatalf("unexpected content type %q", got.ContentType)
	}

	// a second Stop is a no-op
	again, _ := capture.Stop()
	if len(again.Data) != 0 {
		t.Fatalf("second Stop returned data %q", again.Data)
	}
}

func TestCommandRecorderStartFailure(t *testing.T) {
	rec := &CommandRecorder{Program: filepath.Join(t.TempDir(), "no-such-binary")}
	if _, err := rec.Start(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestNewCommandRecorderRejectsEmpty(t *testing.T) {
	if _, err := NewCommandRecorder("   ", "audio/webm"); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestSilentPlayer(t *testing.T) {
	pb, err := SilentPlayer{}.Play(context.Background(), []byte{1, 2, 3}, "mp3")
	if err != nil {
		t.Fatalf("Play returned error: %v", err)
	}
	select {
	case err := <-pb.Done():
		if err != nil {
			t.Fatalf("unexpected playback error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("silent playback did not finish")
	}

	if _, err := (SilentPlayer{}).Play(context.Background(), nil, "mp3"); !errors.Is(err, ErrPlaybackRejected) {
		t.Fatalf("expected ErrPlaybackRejected, got %v", err)
	}
}

func TestCommandPlayerStop(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sleep")
	}
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}

	// "sleep 5 <clip>" fails on the extra operand on some systems, so wrap it.
	player := &CommandPlayer{Program: "sh", Args: []string{"-c", "sleep 5", "player"}, TempDir: t.TempDir()}
	pb, err := player.Play(context.Background(), []byte("mp3"), "mp3")
	if err != nil {
		t.Fatalf("Play returned error: %v", err)
	}

	pb.Stop()
	select {
	case err := <-pb.Done():
		if err != nil {
			t.Fatalf("stopped playback should finish cleanly, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("playback did not stop")
	}
}

func TestFactory(t *testing.T) {
	rec, err := NewRecorder(config.MediaConfig{Recorder: config.RecorderNone})
	if err != nil {
		t.Fatalf("NewRecorder returned error: %v", err)
	}
	if _, ok := rec.(DeniedRecorder); !ok {
		t.Fatalf("expected DeniedRecorder, got %T", rec)
	}

	player, err := NewPlayer(config.MediaConfig{Player: config.PlayerCommand, PlayCommand: "mpg123 -q"})
	if err != nil {
		t.Fatalf("NewPlayer returned error: %v", err)
	}
	cp, ok := player.(*CommandPlayer)
	if !ok || cp.Program != "mpg123" || len(cp.Args) != 1 {
		t.Fatalf("unexpected player %#v", player)
	}

	if _, err := NewPlayer(config.MediaConfig{Player: "tape"}); err == nil {
		t.Fatal("expected error for unknown player")
	}
}
