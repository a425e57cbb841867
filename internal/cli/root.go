// Package cli implements pbctl, the administration tool for a pbtracker data
// directory.
package cli

import (
	"fmt"
	"os"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/pbtracker/pbtracker-server/internal/di"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DataPath string
	EnvFile  string
	LogLevel string
}

// configArgs turns the global flags into server configuration flags.
func (o *RootOptions) configArgs() []string {
	args := []string{"-env-file", o.EnvFile, "-log-level", o.LogLevel}
	if o.DataPath != "" {
		args = append(args, "-data-path", o.DataPath)
	}
	return args
}

// NewRootCommand creates the root command for pbctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pbctl",
		Short: "Administer a pbtracker data directory",
		Long: `Administer the database, users, catalog and search index of a
pbtracker installation. Run it against a stopped server or one sharing the
same data directory.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DataPath, "data-path", "", "data directory (default: $DATA_PATH or ~/pbtracker)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "path to .env file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))

	return cmd
}

// withContainer bootstraps the services for one command and shuts them down
// afterwards.
func withContainer(opts *RootOptions, fn func(i do.Injector) error) error {
	injector := di.NewContainer(opts.configArgs())
	defer func() {
		if report := injector.Shutdown(); report != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", report)
		}
	}()

	if err := di.Bootstrap(injector); err != nil {
		return err
	}
	return fn(injector)
}
