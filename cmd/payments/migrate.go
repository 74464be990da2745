package main

import (
	"context"
	"idempotent-payments/internal/config"
	"idempotent-payments/internal/database"
	"idempotent-payments/internal/logger"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the payments schema in Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := logger.New(cfg.LogLevel, cfg.IsProduction())
			ctx := context.Background()

			db, err := database.NewPostgres(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			log.Info("schema is up to date")
			return nil
		},
	}
}
