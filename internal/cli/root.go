// Package cli is the launcher's command line: the terminal UI by default,
// headless update and play commands, and the control API.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tinoosan/launcher/internal/config"
	"github.com/tinoosan/launcher/internal/logging"
	"github.com/tinoosan/launcher/internal/reconciler"
)

type options struct {
	configPath  string
	engine      string
	installPath string
	settings    string
	httpAddr    string
	logLevel    string
	logFile     string
}

// Execute runs the root command with signal handling. The caller prints
// the returned error and exits non-zero.
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd(version).ExecuteContext(ctx)
}

func newRootCmd(version string) *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   "launcher",
		Short: "Keep Unvanquished up to date and launch it",
		Long: `launcher checks the published game version, downloads updates over
BitTorrent and starts the game.

Without a subcommand it opens the terminal UI.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return start(cmd.Context(), opts, tuiFrontend, true)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to launcher.yaml or launcher.toml")
	rootCmd.PersistentFlags().StringVar(&opts.engine, "engine", "", "Transfer engine: torrent or aria2")
	rootCmd.PersistentFlags().StringVar(&opts.installPath, "install-path", "", "Default install directory when none is saved")
	rootCmd.PersistentFlags().StringVar(&opts.settings, "settings", "", "Settings store: memory, postgres, a DSN or a .yaml/.toml file")
	rootCmd.PersistentFlags().StringVar(&opts.httpAddr, "http", "", "Serve the control API on this address, e.g. 127.0.0.1:9090")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "Write logs to this file, rotated")

	_ = rootCmd.RegisterFlagCompletionFunc("engine", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{config.EngineTorrent, config.EngineAria2}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newUpdateCmd(opts))
	rootCmd.AddCommand(newPlayCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newSettingsCmd(opts))
	rootCmd.AddCommand(newVersionCmd(version))

	return rootCmd
}

func newUpdateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Check for and install updates without the UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return start(cmd.Context(), opts, headless(reconciler.GoalUpdate), false)
		},
	}
}

func newPlayCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Update if needed, then start the game",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return start(cmd.Context(), opts, headless(reconciler.GoalPlay), false)
		},
	}
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the update cycle behind the HTTP control API only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.httpAddr == "" {
				opts.httpAddr = "127.0.0.1:9090"
			}
			return start(cmd.Context(), opts, serveOnly, false)
		},
	}
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the launcher version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "launcher version %s\n", version)
			return nil
		},
	}
}

// loadConfig reads the config file and applies flag overrides last.
func loadConfig(opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Engine, opts.engine)
	set(&cfg.InstallPath, opts.installPath)
	set(&cfg.Settings, opts.settings)
	set(&cfg.HTTP.Addr, opts.httpAddr)
	set(&cfg.Log.Level, opts.logLevel)
	set(&cfg.Log.File, opts.logFile)
	return cfg, cfg.Validate()
}

// start builds the app and runs front. The terminal UI owns the screen, so
// logs then go to a file only.
func start(ctx context.Context, opts *options, front frontend, interactive bool) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if interactive {
		cfg.Log.Quiet = true
		if cfg.Log.File == "" {
			cfg.Log.File = defaultLogFile()
		}
	}
	log, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	return run(ctx, a, front)
}

func defaultLogFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "unvanquished-launcher", "launcher.log")
}
