package cli

import (
	"fmt"
	"os"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/pbtracker/pbtracker-server/internal/di/providers"
	"github.com/pbtracker/pbtracker-server/internal/service"
	"github.com/pbtracker/pbtracker-server/internal/store/sqlite"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(rootOpts, func(i do.Injector) error {
				// Opening the store applies migrations.
				storeHandle, err := do.Invoke[*providers.StoreHandle](i)
				if err != nil {
					return err
				}
				version, err := sqlite.SchemaVersion(cmd.Context(), storeHandle.DB())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
				return nil
			})
		},
	}
}

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage runners",
	}

	var moderator bool
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Register a runner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(rootOpts, func(i do.Injector) error {
				auth, err := do.Invoke[*service.AuthService](i)
				if err != nil {
					return err
				}
				user, err := auth.CreateUser(cmd.Context(), args[0], moderator)
				if err != nil {
					return err
				}
				role := "runner"
				if user.IsMod {
					role = "moderator"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", role, user.Username, user.ID)
				return nil
			})
		},
	}
	add.Flags().BoolVar(&moderator, "mod", false, "grant moderator rights")

	cmd.AddCommand(add)
	return cmd
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token <username>",
		Short: "Issue an access token for a runner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(rootOpts, func(i do.Injector) error {
				auth, err := do.Invoke[*service.AuthService](i)
				if err != nil {
					return err
				}
				token, _, err := auth.IssueToken(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
}

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the game catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Merge games, categories and records from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return withContainer(rootOpts, func(i do.Injector) error {
				catalog, err := do.Invoke[*service.CatalogService](i)
				if err != nil {
					return err
				}
				report, err := catalog.Import(cmd.Context(), f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"%d games (%d new), %d new categories, %d records set, %d names replaced\n",
					report.Games, report.GamesCreated, report.CategoriesCreated, report.RecordsSet, report.Renamed)
				return nil
			})
		},
	})

	return cmd
}

// NewSearchCommand creates the search command group.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Maintain the game search index",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(rootOpts, func(i do.Injector) error {
				search, err := do.Invoke[*service.SearchService](i)
				if err != nil {
					return err
				}
				count, err := search.Reindex(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "indexed %d games\n", count)
				return nil
			})
		},
	})

	return cmd
}
