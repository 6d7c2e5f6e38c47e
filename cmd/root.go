package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/cloudmailbot/internal/logging"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logFormat  string
	debug      bool
}

var flags globalFlags

// rootCmd represents the base command for the cloudmailbot application
var rootCmd = &cobra.Command{
	Use:   "cloudmailbot",
	Short: "Chat commands for a CloudMail mail server",
	Long: `cloudmailbot lets chat users register CloudMail mailboxes, bind them to
their chat identity and read the newest mail.

It can run as:
  - A Signal bot (bot)
  - An MCP (Model Context Protocol) server for AI assistants (serve)
  - An interactive console for testing commands (chat)`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		format := flags.logFormat
		if format == "" {
			format = defaultLogFormat(cmd)
		}
		slog.SetDefault(logging.New(os.Stderr, logging.Options{Format: format, Debug: flags.debug}))
	},
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "cloudmailbot version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// defaultLogFormat is JSON for the long-running modes and text otherwise.
func defaultLogFormat(cmd *cobra.Command) string {
	switch cmd.Name() {
	case "serve", "bot":
		return "json"
	default:
		return "text"
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Config file (default: ~/.config/cloudmailbot/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format: text or json (default: json for serve and bot, text otherwise)")
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newBotCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newDebugCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCredentialCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
