package signal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Runner executes signal-cli with args and returns its stdout and stderr.
type Runner func(ctx context.Context, args ...string) (stdout, stderr string, err error)

// ExecRunner runs the signal-cli binary from PATH.
func ExecRunner(ctx context.Context, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "signal-cli", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Client runs signal-cli as one registered account.
type Client struct {
	userID string
	run    Runner
	logger *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithRunner replaces the signal-cli invocation, e.g. in tests.
func WithRunner(r Runner) Option {
	return func(c *Client) { c.run = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the phone number userID. Without
// WithRunner, signal-cli must be on PATH.
func NewClient(userID string, opts ...Option) (*Client, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}
	if !strings.HasPrefix(userID, "+") {
		return nil, fmt.Errorf("userID must be a phone number starting with + (e.g., +15551234567)")
	}

	c := &Client{userID: userID, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}

	if c.run == nil {
		if _, err := exec.LookPath("signal-cli"); err != nil {
			return nil, &SignalError{
				Op:     "initialize",
				UserID: userID,
				Err:    fmt.Errorf("signal-cli not found in PATH. Please install signal-cli: https://github.com/AsamK/signal-cli"),
			}
		}
		c.run = ExecRunner
	}
	return c, nil
}

// UserID returns the account phone number.
func (c *Client) UserID() string {
	return c.userID
}

// Send delivers text to target.
func (c *Client) Send(ctx context.Context, target Target, text string) error {
	if text == "" {
		return &SignalError{Op: "send", UserID: c.userID, Err: errors.New("message cannot be empty")}
	}

	args := []string{"-u", c.userID, "send", "-m", text}
	switch {
	case target.GroupID != "":
		args = append(args, "-g", target.GroupID)
	case strings.HasPrefix(target.Recipient, "+"):
		args = append(args, target.Recipient)
	case target.Recipient == "":
		return &SignalError{Op: "send", UserID: c.userID, Err: errors.New("recipient cannot be empty")}
	default:
		return &SignalError{
			Op:     "send",
			UserID: c.userID,
			Err:    errors.New("recipient must be a phone number starting with + (e.g., +15551234567)"),
		}
	}

	if _, stderr, err := c.run(ctx, args...); err != nil {
		return &SignalError{
			Op:     "send",
			UserID: c.userID,
			Err:    fmt.Errorf("failed to send message: %w (stderr: %s)", err, strings.TrimSpace(stderr)),
		}
	}
	return nil
}

// Receive waits up to timeout for incoming messages. Envelopes without text
// (receipts, typing indicators) are skipped. No messages is not an error.
func (c *Client) Receive(ctx context.Context, timeout time.Duration) ([]Message, error) {
	seconds := int(timeout.Seconds())
	if seconds <= 0 {
		return nil, &SignalError{Op: "receive", UserID: c.userID, Err: errors.New("timeout must be at least one second")}
	}

	args := []string{"-u", c.userID, "-o", "json", "receive", "--timeout", strconv.Itoa(seconds)}
	stdout, stderr, err := c.run(ctx, args...)
	if err != nil {
		if strings.Contains(strings.ToLower(stderr), "timeout") {
			return nil, nil
		}
		return nil, &SignalError{
			Op:     "receive",
			UserID: c.userID,
			Err:    fmt.Errorf("failed to receive messages: %w (stderr: %s)", err, strings.TrimSpace(stderr)),
		}
	}

	return c.parseReceiveOutput(stdout), nil
}

// parseReceiveOutput decodes one JSON envelope per line. Lines that do not
// decode are logged and skipped.
func (c *Client) parseReceiveOutput(output string) []Message {
	var msgs []Message
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var env envelopeLine
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			c.logger.Warn("skipping undecodable signal-cli line", slog.String("error", err.Error()))
			continue
		}
		dm := env.Envelope.DataMessage
		if dm == nil || strings.TrimSpace(dm.Message) == "" {
			continue
		}

		sender := env.Envelope.SourceNumber
		if sender == "" {
			sender = env.Envelope.Source
		}
		msg := Message{
			SenderID:   sender,
			SenderName: env.Envelope.SourceName,
			Text:       dm.Message,
			Timestamp:  env.Envelope.Timestamp,
		}
		if dm.GroupInfo != nil {
			msg.GroupID = dm.GroupInfo.GroupID
		}
		msgs = append(msgs, msg)
	}
	return msgs
}
