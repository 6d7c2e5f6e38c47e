// Package logging provides structured logging helpers for cloudmailbot.
//
// All packages log through log/slog. This package keeps attribute names
// consistent and keeps secrets and personal data out of the logs:
//
//   - mailbox addresses and chat user IDs are hashed (UserHash, ChatUser)
//   - tokens are reduced to a length indicator (SanitizeToken)
//
// Typical usage:
//
//	logger := logging.WithOperation(slog.Default(), "cloudmail.login")
//	logger.Warn("token request failed", logging.Err(err))
package logging
