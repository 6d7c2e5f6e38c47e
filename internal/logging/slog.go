package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Common log attribute keys.
const (
	KeyOperation = "operation"
	KeyCommand   = "command"
	KeyEndpoint  = "endpoint"
	KeyTokenKind = "token_kind"
	KeyUserHash  = "user_hash"
	KeyChatUser  = "chat_user"
	KeyDuration  = "duration"
	KeyStatus    = "status"
	KeyError     = "error"
	KeyTool      = "tool"
)

// Status values shared by log lines and audit records.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Options controls the root logger built by New.
type Options struct {
	// Format is "text" or "json". Anything else falls back to text.
	Format string
	// Debug lowers the level to slog.LevelDebug.
	Debug bool
}

// New builds the root logger for a command. Server modes use JSON so the
// output can be shipped as-is; the interactive commands use text.
func New(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithCommand returns a logger with the chat command attribute set.
func WithCommand(logger *slog.Logger, command string) *slog.Logger {
	return logger.With(slog.String(KeyCommand, command))
}

// WithTool returns a logger with the MCP tool attribute set.
func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(slog.String(KeyTool, tool))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Endpoint returns a slog attribute for a remote API path.
func Endpoint(path string) slog.Attr {
	return slog.String(KeyEndpoint, path)
}

// TokenKind returns a slog attribute naming a token slot.
func TokenKind(kind string) slog.Attr {
	return slog.String(KeyTokenKind, kind)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// A nil error yields an empty group, which slog drops from the output.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail returns a stable hash of an address so log lines can be
// correlated without exposing the mailbox.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	return "user:" + shortHash(email)
}

// UserHash returns a slog attribute with the anonymized mailbox address.
func UserHash(email string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeEmail(email))
}

// ChatUser returns a slog attribute with the hashed chat user identifier.
// Chat IDs are phone numbers on some transports.
func ChatUser(userID string) slog.Attr {
	if userID == "" {
		return slog.String(KeyChatUser, "")
	}
	return slog.String(KeyChatUser, "chat:"+shortHash(userID))
}

// SanitizeToken returns a length indicator for a token and never any of
// its content.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

// ExtractDomain returns the domain part of an address, or "" if the input
// is not of the form local@domain.
func ExtractDomain(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return ""
	}
	return domain
}

// Domain returns a slog attribute for the mailbox domain.
func Domain(email string) slog.Attr {
	return slog.String("user_domain", ExtractDomain(email))
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
