package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration after merging defaults, the config file, .env and
CLOUDMAIL_* environment variables. Secrets are masked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			redacted := cfg.Redacted()
			data, err := yaml.Marshal(&redacted)
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			if err != nil {
				return err
			}

			if missing := cfg.Missing(); len(missing) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "\nwarning: missing %v, commands will report the configuration as incomplete\n", missing)
			}
			return nil
		},
	})

	return cmd
}
