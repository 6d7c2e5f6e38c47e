package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/teemow/cloudmailbot/internal/cloudmail"
	"github.com/teemow/cloudmailbot/internal/commands"
	"github.com/teemow/cloudmailbot/internal/mailfmt"
)

// tokenSources is the part of cloudmail.TokenCache the debug command uses.
type tokenSources interface {
	TokenSource(ctx context.Context, kind cloudmail.TokenKind) oauth2.TokenSource
}

func newDebugCmd() *cobra.Command {
	var mailbox string

	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Check CloudMail connectivity",
		Long: `Authenticate against both CloudMail token endpoints and print a token
prefix and expiry for each. With --mailbox, also fetch and print the newest
mail of that mailbox.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if missing := cfg.Missing(); len(missing) > 0 {
				return fmt.Errorf("missing configuration: %v", missing)
			}

			client := cloudmail.New(cloudmail.Config{
				BaseURL:       cfg.APIBaseURL,
				AdminEmail:    cfg.AdminEmail,
				AdminPassword: cfg.AdminPassword,
				Timeout:       cfg.HTTPTimeout,
			})

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if err := checkTokens(ctx, client.Tokens(), out); err != nil {
				return err
			}
			if mailbox == "" {
				return nil
			}
			return printLatest(ctx, client, commands.NormalizeAddress(mailbox, cfg.EmailDomain), out)
		},
	}

	cmd.Flags().StringVar(&mailbox, "mailbox", "", "Also show the newest mail of this mailbox")
	return cmd
}

// checkTokens obtains both tokens and reports each. It fails if either
// cannot be obtained.
func checkTokens(ctx context.Context, tokens tokenSources, out io.Writer) error {
	var failed []string
	for _, kind := range []cloudmail.TokenKind{cloudmail.TokenQuery, cloudmail.TokenRegistration} {
		tok, err := tokens.TokenSource(ctx, kind).Token()
		if err != nil {
			fmt.Fprintf(out, "✗ %-12s %v\n", kind, err)
			failed = append(failed, kind.String())
			continue
		}
		fmt.Fprintf(out, "✓ %-12s %s... expires %s\n", kind, tokenPrefix(tok.AccessToken), tok.Expiry.Format(time.RFC3339))
	}
	if len(failed) > 0 {
		return fmt.Errorf("token check failed for: %v", failed)
	}
	return nil
}

func printLatest(ctx context.Context, client *cloudmail.Client, mailbox string, out io.Writer) error {
	mail, err := client.LatestMail(ctx, mailbox)
	if err != nil {
		return fmt.Errorf("fetching latest mail of %s: %w", mailbox, err)
	}
	if mail == nil {
		fmt.Fprintf(out, "📭 %s has no mail\n", mailbox)
		return nil
	}
	fmt.Fprintln(out, mailfmt.Summarize(mailbox, mail).String())
	return nil
}

func tokenPrefix(token string) string {
	r := []rune(token)
	if len(r) > 10 {
		r = r[:10]
	}
	return string(r)
}
