package command

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/staydrive/inventory-engine/internal/config"
	"github.com/staydrive/inventory-engine/internal/db"
	"github.com/staydrive/inventory-engine/internal/pkg/log"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the PostgreSQL schema",
	Long: `Apply the bundled schema to the database named by DB_DSN.
Every statement is idempotent, so running it against an up to date
database is harmless.`,
	Args: cobra.NoArgs,
	RunE: migrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func migrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage != config.StoragePostgres {
		return errors.New("migrate requires STORAGE=postgres")
	}

	pool, err := db.NewPool(ctx, cfg.DBDSN, 1)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	log.Info(ctx, "schema migrated")
	return nil
}
