package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teemow/cloudmailbot/internal/config"
	"github.com/teemow/cloudmailbot/internal/credential"
	"github.com/teemow/cloudmailbot/internal/instrumentation"
	"github.com/teemow/cloudmailbot/internal/server"
)

// loadConfig reads the configuration and fills a missing admin password
// from the OS keyring.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ResolvePassword(credential.Get); err != nil && !errors.Is(err, credential.ErrNotFound) {
		slog.Warn("could not read admin password from keyring", "error", err)
	}
	return cfg, nil
}

// newServerContext wires the shared dependencies. provider may be nil or
// disabled, in which case no metrics or audit records are produced.
func newServerContext(ctx context.Context, cfg *config.Config, provider *instrumentation.Provider, auditCfg instrumentation.AuditLoggingConfig) (*server.ServerContext, error) {
	opts := []server.Option{server.WithLogger(slog.Default())}
	if provider != nil && provider.Enabled() {
		opts = append(opts, server.WithMetrics(provider.Metrics()))
	}
	if auditCfg.Enabled {
		opts = append(opts, server.WithAuditLogger(instrumentation.NewAuditLoggerWithConfig(slog.Default(), auditCfg)))
	}

	sc, err := server.NewServerContext(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create server context: %w", err)
	}
	return sc, nil
}

// newProvider starts OpenTelemetry for the long-running modes.
func newProvider(ctx context.Context) (*instrumentation.Provider, instrumentation.Config, error) {
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, instrConfig, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	return provider, instrConfig, nil
}
