package main

import (
	"github.com/citadel-ai/langcheckchat/internal/repository"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		db, err := repository.NewDB(cfg.Database.Driver, cfg.Database.DSN, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := repository.MigrateDB(db, logger); err != nil {
			return err
		}
		logger.Info("Database is up to date", zap.String("driver", cfg.Database.Driver))
		return nil
	},
}
