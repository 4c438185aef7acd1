package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/wsi/cmd/wsi/cmd/command"
	"github.com/agentstation/wsi/cmd/wsi/cmd/serve"
	"github.com/agentstation/wsi/cmd/wsi/cmd/version"
	"github.com/agentstation/wsi/cmd/wsi/cmd/watch"
)

// Execute runs the wsi CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "wsi",
		Short:   "Building-management event client",
		Version: a.version,
		Long: `wsi connects to a WSI building-management server, keeps the open
events in memory and serves filtered, live views of them.

The server URL and token come from WSI_URL and WSI_TOKEN, a .env file or
~/.wsi.yaml.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{
		ID:    "core",
		Title: "Core Commands:",
	})

	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default is $HOME/.wsi.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringP("format", "o", "", "output format: table, json, yaml, wide")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")

	rootCmd.SetVersionTemplate("wsi {{.Version}}\n")

	a.registerCommands(rootCmd)
	return rootCmd
}

// setupCommand is called before any command runs. An explicit --config
// file is loaded here, after flag parsing.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	if a.configFile != "" {
		cfg, err := LoadConfig(a.configFile)
		if err != nil {
			return err
		}
		a.config = cfg
	}

	a.config.UpdateFromFlags(
		mustGetBool(cmd, "verbose"),
		mustGetBool(cmd, "quiet"),
		mustGetBool(cmd, "no-color"),
		mustGetString(cmd, "format"),
		mustGetString(cmd, "log-level"),
	)

	// Reinitialize logger with updated config
	logger := NewLogger(a.config)
	a.logger = &logger
	return nil
}

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(serve.NewCommand(a))
	rootCmd.AddCommand(watch.NewCommand(a))
	rootCmd.AddCommand(command.NewCommand(a))
	rootCmd.AddCommand(version.NewCommand(a))
}

// ExitOnError prints err and exits with status 1.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

// mustGetBool retrieves a boolean flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}

// mustGetString retrieves a string flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}
