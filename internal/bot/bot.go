// Package bot connects a chat transport to the command router: it polls
// for messages, runs the mailbox commands found in them and sends the
// replies back where the message came from.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/teemow/cloudmailbot/internal/commands"
	"github.com/teemow/cloudmailbot/internal/logging"
	"github.com/teemow/cloudmailbot/internal/signal"
)

// Transport is a chat network the bot listens on.
type Transport interface {
	// Receive blocks until messages arrive or the poll times out.
	Receive(ctx context.Context) ([]signal.Message, error)
	Send(ctx context.Context, target signal.Target, text string) error
}

// Handler runs command text for a user.
type Handler interface {
	Handle(ctx context.Context, userID, text string) (commands.Reply, bool)
}

// Bot is the receive → route → reply loop.
type Bot struct {
	transport    Transport
	handler      Handler
	logger       *slog.Logger
	errorBackoff time.Duration
}

// New creates a Bot.
func New(transport Transport, handler Handler, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		transport:    transport,
		handler:      handler,
		logger:       logging.WithOperation(logger, "bot"),
		errorBackoff: time.Second,
	}
}

// Run polls until ctx is cancelled. Receive errors are logged and polling
// continues after a short pause.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("bot started")
	for {
		if err := ctx.Err(); err != nil {
			b.logger.Info("bot stopped")
			return nil
		}

		msgs, err := b.transport.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				continue
			}
			b.logger.Warn("receive failed", logging.Err(err))
			select {
			case <-ctx.Done():
			case <-time.After(b.errorBackoff):
			}
			continue
		}

		for _, msg := range msgs {
			b.HandleMessage(ctx, msg)
		}
	}
}

// HandleMessage runs msg if it is a command and sends every reply message.
// Non-command text is ignored.
func (b *Bot) HandleMessage(ctx context.Context, msg signal.Message) {
	reply, handled := b.handler.Handle(ctx, msg.SenderID, msg.Text)
	if !handled {
		return
	}

	target := msg.ReplyTarget()
	for _, text := range reply.Messages {
		if err := b.transport.Send(ctx, target, text); err != nil {
			b.logger.Error("sending reply failed",
				logging.ChatUser(msg.SenderID),
				logging.Err(err))
			return
		}
	}
}

// SignalTransport adapts a signal.Client to Transport.
type SignalTransport struct {
	Client      *signal.Client
	PollTimeout time.Duration
}

func (t *SignalTransport) Receive(ctx context.Context) ([]signal.Message, error) {
	timeout := t.PollTimeout
	if timeout < time.Second {
		timeout = 5 * time.Second
	}
	return t.Client.Receive(ctx, timeout)
}

func (t *SignalTransport) Send(ctx context.Context, target signal.Target, text string) error {
	return t.Client.Send(ctx, target, text)
}
