package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/cloudmailbot/internal/commands"
	"github.com/teemow/cloudmailbot/internal/instrumentation"
)

// chatHandler is the part of the router the console needs.
type chatHandler interface {
	Handle(ctx context.Context, userID, text string) (commands.Reply, bool)
}

func newChatCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run mailbox commands from the terminal",
		Long: `Read chat commands from standard input and print the replies, acting as
the given chat user. Useful to try the configuration without a chat network.

Example:
  echo "/绑定邮箱 alice" | cloudmailbot chat --user +15551234567`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sc, err := newServerContext(ctx, cfg, nil, instrumentation.AuditLoggingConfig{})
			if err != nil {
				return err
			}
			defer func() { _ = sc.Shutdown() }()

			return runChat(ctx, sc.Router(), userID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&userID, "user", "console", "Chat user ID the commands run as")
	return cmd
}

// runChat answers one command per input line until EOF, /quit or
// cancellation. Lines are read on a separate goroutine so an interrupt ends
// the loop without waiting for the next line.
func runChat(ctx context.Context, h chatHandler, userID string, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	stop := make(chan struct{})
	defer close(stop)
	var scanErr error
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
		scanErr = scanner.Err()
	}()

	prompt := func() { fmt.Fprint(out, "> ") }
	prompt()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case raw, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return scanErr
			}
			line := strings.TrimSpace(raw)
			switch {
			case line == "":
			case line == "/quit" || line == "/exit":
				return nil
			default:
				reply, handled := h.Handle(ctx, userID, line)
				if !handled {
					fmt.Fprintln(out, "不是邮箱指令，发送 /邮箱帮助 查看可用指令。")
				} else {
					fmt.Fprintln(out, reply.Text())
				}
			}
			prompt()
		}
	}
}
