package media

import (
	"fmt"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/config"
)

// NewRecorder builds the capture backend selected in cfg.
func NewRecorder(cfg config.MediaConfig) (Recorder, error) {
	switch cfg.Recorder {
	case config.RecorderCommand:
		return NewCommandRecorder(cfg.RecordCommand, cfg.ContentType)
	case config.RecorderFile:
		return &FileRecorder{Path: cfg.RecordFile, ContentType: cfg.ContentType}, nil
	case config.RecorderNone:
		return DeniedRecorder{}, nil
	default:
		return nil, fmt.Errorf("unknown recorder %q", cfg.Recorder)
	}
}

// NewPlayer builds the playback backend selected in cfg.
func NewPlayer(cfg config.MediaConfig) (Player, error) {
	switch cfg.Player {
	case config.PlayerCommand:
		return NewCommandPlayer(cfg.PlayCommand)
	case config.PlayerSilent:
		return SilentPlayer{}, nil
	default:
		return nil, fmt.Errorf("unknown player %q", cfg.Player)
	}
}
