package admin

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/crawlvec/internal/config"
	"github.com/cloo-solutions/crawlvec/internal/database"
	"github.com/cloo-solutions/crawlvec/internal/logger"
)

// MigrateCmd returns the migrate command.
func MigrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply pending schema migrations to the postgres store named by CRAWLVEC_STORE_URL.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			backend, _ := cfg.StoreBackend()
			if backend != config.BackendPostgres {
				return fmt.Errorf("migrations require a postgres STORE_URL, got %s backend", backend)
			}

			log := logger.New(logger.FromFlags(cfg.Debug, cfg.LogFormat))
			return database.Migrate(cfg.StoreURL, dir, log)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", database.DefaultMigrationsDir, "Migrations directory")

	return cmd
}
