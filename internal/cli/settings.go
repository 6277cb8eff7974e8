package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tinoosan/launcher/internal/repo"
)

// newSettingsCmd prints or edits the saved settings without starting an
// update cycle.
func newSettingsCmd(opts *options) *cobra.Command {
	var installPath, commandLine string
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the install path and command line",
		Long: `Show the saved settings, or change them with --set-install-path and
--set-command-line. The command line may contain %command%, which is replaced
by the game executable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			store, err := repo.Open(cfg.Settings)
			if err != nil {
				return err
			}
			defer closeStore(store)

			ctx := cmd.Context()
			saved, err := repo.LoadOrDefault(ctx, store)
			if err != nil {
				return err
			}
			s := saved.WithDefaults(cfg.InstallPath)

			if cmd.Flags().Changed("set-install-path") || cmd.Flags().Changed("set-command-line") {
				if cmd.Flags().Changed("set-install-path") {
					if strings.TrimSpace(installPath) == "" {
						return fmt.Errorf("install path must not be empty")
					}
					s.InstallPath = installPath
				}
				if cmd.Flags().Changed("set-command-line") {
					s.CommandLine = commandLine
				}
				s = s.WithDefaults(cfg.InstallPath)
				if err := store.Save(ctx, s); err != nil {
					return fmt.Errorf("save settings: %w", err)
				}
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(s); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVar(&installPath, "set-install-path", "", "New install directory")
	cmd.Flags().StringVar(&commandLine, "set-command-line", "", "New command line template")
	return cmd
}
