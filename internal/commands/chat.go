package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/tui"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/ui"
)

// chatCmd is the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "start the terminal chat widget",
	Long: `Open the chat widget in the terminal.

Features:
  • text and voice messages
  • spoken replies on demand or automatically
  • the session survives restarts until a new conversation is started`,
	Example: `  # Start the terminal widget
  $ dentalchat chat

  # Keyboard controls:
  • Enter     send the message
  • Ctrl+R    start or stop a voice recording
  • Ctrl+L    listen to the latest reply
  • Ctrl+A    toggle auto-speak
  • Ctrl+N    start a new conversation
  • Esc       quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.SilenceUsage = true
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		ui.PrintError("failed to load config: %v", err)
		return fmt.Errorf("config load failed")
	}

	closer, err := setupLogging(cfg.Log, true)
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

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	program := tui.NewChatProgram(ctx, ctrl)
	if msg := cfg.Widget.InitialMessage; msg != "" {
		go ctrl.OpenWithMessage(context.WithoutCancel(ctx), msg)
	}

	if err := program.Run(); err != nil {
		return fmt.Errorf("failed to run chat TUI: %w", err)
	}
	return nil
}
