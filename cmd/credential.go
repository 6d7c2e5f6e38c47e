package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/teemow/cloudmailbot/internal/config"
	"github.com/teemow/cloudmailbot/internal/credential"
)

func newCredentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage the admin password in the OS keyring",
		Long: `Store the CloudMail admin password in the OS keyring instead of the config
file. It is used whenever admin_password is not configured.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Store the admin password",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Admin password: ")
			if err != nil {
				return err
			}
			if password == "" {
				return errors.New("empty password, nothing stored")
			}
			if err := credential.Set(config.PasswordCredentialKey, password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Admin password stored in keyring.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the stored admin password",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := credential.Delete(config.PasswordCredentialKey)
			if errors.Is(err, credential.ErrNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "No admin password stored.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Admin password removed from keyring.")
			return nil
		},
	})

	return cmd
}

// readSecret prompts without echo when in is a terminal, and reads one line
// otherwise so the password can be piped in.
func readSecret(in io.Reader, prompt io.Writer, label string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, label)
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimSpace(string(secret)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
