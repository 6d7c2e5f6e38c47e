package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/cloudmailbot/internal/bot"
	"github.com/teemow/cloudmailbot/internal/server"
	signalcli "github.com/teemow/cloudmailbot/internal/signal"
)

type botOptions struct {
	account      string
	pollInterval time.Duration
	metrics      MetricsConfig
}

func newBotCmd() *cobra.Command {
	var opts botOptions

	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the Signal chat bot",
		Long: `Poll Signal through signal-cli and answer mailbox commands:

  /注册邮箱 <用户名> <密码>   register a mailbox and bind it
  /绑定邮箱 <邮箱或用户名>    bind an existing mailbox
  /解绑邮箱                  remove the binding
  /最新邮件                  show the newest mail
  /邮件调试                  check admin login (admin_ids only)
  /邮箱帮助                  list commands

Group messages are answered in the group. signal-cli must be installed and
registered for the account.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.metrics = resolveMetricsConfig(cmd, opts.metrics, os.Getenv)
			return runBot(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.account, "account", "", "Signal phone number, overrides signal.account")
	cmd.Flags().DurationVar(&opts.pollInterval, "poll-interval", 0, "Receive timeout per poll, overrides signal.poll_interval")
	cmd.Flags().BoolVar(&opts.metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&opts.metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runBot(cmd *cobra.Command, opts botOptions) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("account") {
		cfg.Signal.Account = opts.account
	}
	if cmd.Flags().Changed("poll-interval") {
		cfg.Signal.PollInterval = opts.pollInterval
	}
	if cfg.Signal.Account == "" {
		return errors.New("no Signal account configured: set signal.account or pass --account")
	}

	client, err := signalcli.NewClient(cfg.Signal.Account, signalcli.WithLogger(slog.Default()))
	if err != nil {
		return fmt.Errorf("failed to create Signal client: %w", err)
	}

	provider, instrConfig, err := newProvider(shutdownCtx)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			slog.Warn("error during instrumentation shutdown", "error", err)
		}
	}()

	if opts.metrics.Enabled && provider.Enabled() {
		metricsServer, err := startMetricsServer(provider, opts.metrics)
		if err != nil {
			return err
		}
		defer stopMetricsServer(metricsServer)
	}

	serverContext, err := newServerContext(shutdownCtx, cfg, provider, instrConfig.AuditLogging)
	if err != nil {
		return err
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			slog.Warn("error during server context shutdown", "error", err)
		}
	}()

	transport := &bot.SignalTransport{Client: client, PollTimeout: cfg.Signal.PollInterval}
	b := bot.New(transport, serverContext.Router(), slog.Default())

	slog.Info("signal bot started", "account", client.UserID())
	return b.Run(shutdownCtx)
}
