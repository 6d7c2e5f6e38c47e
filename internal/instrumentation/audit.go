package instrumentation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// CommandInvocation is one audited chat command or MCP tool call.
//
// UserID and Mailbox are personal data. Without IncludePII the audit
// logger only emits hashes of them.
type CommandInvocation struct {
	Command string
	Source  string // "chat" or "mcp"
	UserID  string
	Mailbox string
	Admin   bool

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
}

// NewCommandInvocation starts timing a command.
func NewCommandInvocation(command, source string) *CommandInvocation {
	return &CommandInvocation{
		Command:   command,
		Source:    source,
		StartTime: time.Now(),
	}
}

// WithUser sets the chat user ID.
func (ci *CommandInvocation) WithUser(userID string, admin bool) *CommandInvocation {
	ci.UserID = userID
	ci.Admin = admin
	return ci
}

// WithMailbox sets the mailbox the command touched.
func (ci *CommandInvocation) WithMailbox(mailbox string) *CommandInvocation {
	ci.Mailbox = mailbox
	return ci
}

// WithSpanContext copies the trace ID from the span in ctx.
func (ci *CommandInvocation) WithSpanContext(ctx context.Context) *CommandInvocation {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		ci.TraceID = span.SpanContext().TraceID().String()
	}
	return ci
}

// Complete stops timing. A non-nil err marks the invocation failed.
func (ci *CommandInvocation) Complete(err error) *CommandInvocation {
	ci.Duration = time.Since(ci.StartTime)
	ci.Success = err == nil
	if err != nil {
		ci.Error = err.Error()
	}
	return ci
}

// Status returns StatusSuccess or StatusError.
func (ci *CommandInvocation) Status() string {
	if ci.Success {
		return StatusSuccess
	}
	return StatusError
}

func (ci *CommandInvocation) attrs(includePII bool) []any {
	user, mailbox := ci.UserID, ci.Mailbox
	if !includePII {
		user = hashID(user)
		mailbox = ExtractUserDomain(mailbox)
	}

	attrs := []any{
		slog.String("command", ci.Command),
		slog.String("source", ci.Source),
		slog.String("user", user),
		slog.Bool("admin", ci.Admin),
		slog.Duration("duration", ci.Duration),
		slog.Bool("success", ci.Success),
	}
	if ci.Mailbox != "" {
		key := "mailbox_domain"
		if includePII {
			key = "mailbox"
		}
		attrs = append(attrs, slog.String(key, mailbox))
	}
	if ci.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ci.TraceID))
	}
	if ci.Error != "" {
		attrs = append(attrs, slog.String("error", ci.Error))
	}
	return attrs
}

func hashID(id string) string {
	if id == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(id))
	return "id:" + hex.EncodeToString(sum[:8])
}

// AuditLogger writes one structured record per command.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger returns an enabled audit logger without PII.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig returns an audit logger configured by config.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogCommand logs ci. Safe on a nil receiver.
func (al *AuditLogger) LogCommand(ci *CommandInvocation) {
	if al == nil || !al.enabled || ci == nil {
		return
	}
	if ci.Success {
		al.logger.Info("command_executed", ci.attrs(al.includePII)...)
	} else {
		al.logger.Warn("command_failed", ci.attrs(al.includePII)...)
	}
}
