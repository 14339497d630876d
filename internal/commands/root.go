package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/dental-assistant/chatbot/internal/config"
	"github.com/zhouzirui/dental-assistant/chatbot/internal/ui"
)

const version = "0.1.0"

// Flag overrides applied on top of the environment configuration.
var (
	flagAPIURL    string
	flagStorage   string
	flagVoice     string
	flagAutoSpeak bool
)

// rootCmd is the root command
var rootCmd = &cobra.Command{
	Use:     "dentalchat",
	Short:   "Dental Assistant chat widget",
	Version: version,
	Long: `A chat widget for the dental clinic assistant. Talk to the assistant by text
or voice from the terminal, or run the kiosk bridge so a local browser page can
drive the same widget.`,
	Example: `  # Start the terminal widget
  $ dentalchat chat

  # Serve the widget to a browser page on this machine
  $ dentalchat kiosk --addr 127.0.0.1:8090

  # Check that the assistant service is reachable
  $ dentalchat health

  # Show or replace the stored session
  $ dentalchat session show
  $ dentalchat session rotate`,
}

// Execute executes the root command
func Execute() error {
	rootCmd.SetVersionTemplate(formatVersion())
	return rootCmd.Execute()
}

func init() {
	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagAPIURL, "api-url", "", "assistant service base URL (overrides DENTAL_API_BASE_URL)")
	flags.StringVar(&flagStorage, "storage", "", "session storage file (overrides DENTAL_STORAGE_PATH)")
	flags.StringVar(&flagVoice, "voice", "", "speech synthesis voice (overrides DENTAL_VOICE)")
	flags.BoolVar(&flagAutoSpeak, "auto-speak", false, "speak every new reply (overrides DENTAL_AUTO_SPEAK)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(kioskCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(sessionCmd)

	// Set custom template with bold uppercase headers
	rootCmd.SetUsageTemplate(usageTemplate())
	rootCmd.SetHelpTemplate(usageTemplate())
}

// loadConfig reads the environment and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.API.BaseURL = flagAPIURL
	}
	if flags.Changed("storage") {
		cfg.Widget.StoragePath = flagStorage
	}
	if flags.Changed("voice") {
		cfg.API.Voice = flagVoice
	}
	if flags.Changed("auto-speak") {
		cfg.Widget.AutoSpeak = flagAutoSpeak
	}
	return cfg, nil
}

func usageTemplate() string {
	return `{{if .Long}}{{.Long}}

{{end}}` + ui.Styles.Bold.Render("USAGE") + `
  {{.UseLine}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}

{{if .HasExample}}` + ui.Styles.Bold.Render("EXAMPLES") + `
{{.Example}}

{{end}}{{if .HasAvailableSubCommands}}` + ui.Styles.Bold.Render("COMMANDS") + `{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasAvailableLocalFlags}}` + ui.Styles.Bold.Render("OPTIONS") + `
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}` + ui.Styles.Bold.Render("GLOBAL OPTIONS") + `
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`
}

// formatVersion formats the version output
func formatVersion() string {
	return fmt.Sprintf("dentalchat version %s\n", version)
}
