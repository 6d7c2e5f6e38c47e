// Package server holds the process-wide wiring shared by the MCP server,
// the chat bot and the CLI.
//
// # Key Components
//
// ServerContext builds the CloudMail client, the binding store and the
// command router from the loaded configuration, and tears them down on
// Shutdown. Every front end dispatches through the same router, so chat
// and MCP invocations share token caching, audit logging and metrics.
//
// HealthChecker serves Kubernetes probes:
//   - /healthz liveness
//   - /readyz readiness, failing while shutting down
//   - /healthz/detailed uptime, store backend and missing CloudMail settings
//
// MetricsServer exposes the Prometheus registry on a dedicated port so
// operational metrics stay off the MCP listener.
package server
