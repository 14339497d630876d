package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/backend"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/config"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/media"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/session"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/widget"
	"github.com/zhouzirui/dental-assistant/chatbot/pkg/logger"
)

const drainTimeout = 5 * time.Second

// setupLogging installs the default logger. forceFile keeps log lines off a
// terminal the UI owns.
func setupLogging(cfg config.LogConfig, forceFile bool) (io.Closer, error) {
	if forceFile && cfg.Output != "file" {
		cfg.Output = "file"
	}
	closer, err := logger.Setup(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return closer, nil
}

// newController wires the backend client, session store and media devices
// into a widget controller.
func newController(cfg *config.Config) (*widget.Controller, error) {
	client, err := backend.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	recorder, err := media.NewRecorder(cfg.Media)
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder: %w", err)
	}
	player, err := media.NewPlayer(cfg.Media)
	if err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	sessions := session.NewManager(session.NewFileStore(cfg.Widget.StoragePath))

	ctrl := widget.New(client, sessions, recorder, player, widget.Options{
		Voice:          cfg.API.Voice,
		AutoSpeak:      cfg.Widget.AutoSpeak,
		AutoSpeakDelay: cfg.Widget.AutoSpeakDelay,
		ContentType:    cfg.Media.ContentType,
	})

	slog.Info("widget ready",
		"backend", client.BaseURL(),
		"storage", cfg.Widget.StoragePath,
		"recorder", cfg.Media.Recorder,
		"player", cfg.Media.Player,
	)
	return ctrl, nil
}

// shutdown tears the controller down and waits for the final save.
func shutdown(ctrl *widget.Controller) {
	ctrl.Teardown()

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := ctrl.Wait(ctx); err != nil {
		slog.Warn("background work still running at exit", "error", err)
	}
}
