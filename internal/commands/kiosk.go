package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/handler"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/server"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/ui"
)

var kioskAddr string

// kioskCmd serves the widget to a local browser page.
var kioskCmd = &cobra.Command{
	Use:   "kiosk",
	Short: "serve the widget to a browser page on this machine",
	Long: `Run the kiosk bridge: a local HTTP server exposing the widget under /api/widget
(REST, server-sent events and WebSocket). Microphone capture and audio playback
happen on this host.`,
	Example: `  # Listen on the address from PORT
  $ dentalchat kiosk

  # Listen on loopback only
  $ dentalchat kiosk --addr 127.0.0.1:8090`,
	Args: cobra.NoArgs,
	RunE: runKiosk,
}

func init() {
	kioskCmd.SilenceUsage = true
	kioskCmd.Flags().StringVar(&kioskAddr, "addr", "", "listen address (defaults to PORT)")
}

func runKiosk(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		ui.PrintError("failed to load config: %v", err)
		return fmt.Errorf("config load failed")
	}

	closer, err := setupLogging(cfg.Log, false)
	if err != nil {
		ui.PrintError("%v", err)
		return err
	}
	defer closer.Close()

	ctrl, err := newController(cfg)
	if err != nil {
		ui.PrintError("%v", err)
		return err
	}
	defer shutdown(ctrl)

	addr := cfg.Server.Addr
	if kioskAddr != "" {
		addr = kioskAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if msg := cfg.Widget.InitialMessage; msg != "" {
		ctrl.Open()
		go ctrl.OpenWithMessage(ctx, msg)
	}

	ui.PrintBanner("🦷  Dental Assistant - Kiosk Bridge")
	ui.PrintInfo("widget API on http://%s/api/widget", displayAddr(addr))

	srv := server.New(addr, handler.NewRouter(ctrl))
	if err := server.ListenAndServe(ctx, "kiosk bridge", srv); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
