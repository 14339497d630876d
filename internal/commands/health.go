package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/backend"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/ui"
)

const healthTimeout = 10 * time.Second

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "check that the assistant service is reachable",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	healthCmd.SilenceUsage = true
}

func runHealth(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		ui.PrintError("failed to load config: %v", err)
		return fmt.Errorf("config load failed")
	}

	client, err := backend.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
	if err != nil {
		ui.PrintError("%v", err)
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
	defer cancel()

	status, err := client.Health(ctx)
	if err != nil {
		ui.PrintErrorBox("Assistant unreachable", fmt.Sprintf("%s\n%v", client.BaseURL(), err))
		return fmt.Errorf("health check failed")
	}

	content := fmt.Sprintf("%s\nstatus: %s", client.BaseURL(), status.Status)
	if status.Timestamp != "" {
		content += "\ntime:   " + status.Timestamp
	}
	ui.PrintSuccessBox("Assistant reachable", content)
	return nil
}
