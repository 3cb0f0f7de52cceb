package main

import (
	"context"

	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/config"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/repositories/repomanager"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Test seams.
var (
	openRepositories = repomanager.Open
	readPassword     = term.ReadPassword
)

// dsnOverride, when set, replaces DATABASE_URL.
var dsnOverride string

// NewRootCmd creates the root command of the admin CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "Administrative tasks for the student performance server",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&dsnOverride, "dsn", "", "database DSN (defaults to DATABASE_URL)")

	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewCreateUserCmd())

	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if dsnOverride != "" {
		cfg.DatabaseDSN = dsnOverride
	}
	if err := cfg.Validate(); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return cfg, nil
}

// openMigrated connects to the configured database and brings the schema
// up to date.
func openMigrated(ctx context.Context, cfg *config.Config) (repomanager.RepositoryManager, error) {
	repos, err := openRepositories(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	if err := repos.RunMigrations(ctx); err != nil {
		_ = repos.Close()
		return nil, oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	return repos, nil
}
