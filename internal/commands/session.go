package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/session"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/ui"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "inspect or replace the stored session",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "show the stored session token",
	Args:  cobra.NoArgs,
	RunE:  runSessionShow,
}

var sessionRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "replace the stored session token with a new one",
	Args:  cobra.NoArgs,
	RunE:  runSessionRotate,
}

func init() {
	sessionShowCmd.SilenceUsage = true
	sessionRotateCmd.SilenceUsage = true
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionRotateCmd)
}

func runSessionShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		ui.PrintError("failed to load config: %v", err)
		return fmt.Errorf("config load failed")
	}

	store := session.NewFileStore(cfg.Widget.StoragePath)
	token, _, err := store.Get(session.StorageKey)
	if err != nil {
		ui.PrintError("failed to read session storage: %v", err)
		return err
	}

	fmt.Fprintln(ui.Output, ui.RenderDetails("Session", []ui.Field{
		{Key: "Token", Value: token},
		{Key: "Storage", Value: store.Path()},
		{Key: "Backend", Value: cfg.API.BaseURL},
		{Key: "Voice", Value: cfg.API.Voice},
	}))
	return nil
}

func runSessionRotate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		ui.PrintError("failed to load config: %v", err)
		return fmt.Errorf("config load failed")
	}

	manager := session.NewManager(session.NewFileStore(cfg.Widget.StoragePath))
	previous := manager.Activate()
	token := manager.Rotate()

	ui.PrintSuccess("new session %s", token)
	ui.PrintInfo("replaced %s", previous)
	return nil
}
