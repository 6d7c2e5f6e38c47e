// Package instrumentation wires OpenTelemetry metrics and tracing for
// cloudmailbot.
//
// Metrics:
//
//   - cloudmail_api_requests_total / cloudmail_api_request_duration_seconds:
//     calls to the CloudMail API by endpoint, method and result kind
//   - cloudmail_token_refresh_total: token acquisitions by slot and result
//   - chat_command_invocations_total / chat_command_duration_seconds:
//     chat commands by command name and status
//   - mcp_tool_invocations_total / mcp_tool_duration_seconds: MCP tools
//   - http_requests_total / http_request_duration_seconds: inbound HTTP
//
// Exporters: prometheus (default, scraped from the dedicated metrics
// port), otlp and stdout. Tracing is off unless TRACING_EXPORTER is set.
//
// Label values are kept low-cardinality: endpoints are mapped to a fixed
// set (EndpointLabel) and chat users are never used as labels.
package instrumentation
