package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/config"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/devserver"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/server"
	"github.com/zhouzirui/dental-assistant/chatbot/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	closer, err := logger.Setup(cfg.Log)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	if envErr != nil {
		slog.Warn("failed to load .env file, continuing with system environment variables only", "error", envErr)
	}

	deps := devserver.Deps{
		Transcriber: devserver.FixtureTranscriber{Text: cfg.Dev.TranscriptText},
	}

	// Chat replies: Ark model when configured, keyword rules otherwise
	if cfg.AI.Enabled() {
		responder, err := devserver.NewModelResponder(ctx, cfg.AI)
		if err != nil {
			slog.Warn("failed to initialize Ark responder, falling back to keyword rules", "error", err)
		} else {
			deps.Responder = responder
			slog.Info("Ark responder initialized", "model", cfg.AI.Model)
		}
	} else {
		slog.Info("Ark 凭证未配置，使用关键词回复")
	}

	if cfg.Dev.SpeechFixture != "" {
		synth, err := devserver.LoadFixtureSynthesizer(cfg.Dev.SpeechFixture)
		if err != nil {
			slog.Error("failed to load speech fixture", "path", cfg.Dev.SpeechFixture, "error", err)
			os.Exit(1)
		}
		deps.Synthesizer = synth
	} else {
		slog.Info("DEV_SPEECH_FIXTURE not set, /speech will report no audio")
	}

	if cfg.Dev.ArchiveDir != "" {
		deps.Archive = devserver.DirArchive{Dir: cfg.Dev.ArchiveDir}
		slog.Info("saving conversations to disk", "dir", cfg.Dev.ArchiveDir)
	}

	router := devserver.NewRouter(devserver.New(deps))

	srv := server.New(cfg.Server.Addr, router)
	if err := server.ListenAndServe(ctx, "dental stand-in backend", srv); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
