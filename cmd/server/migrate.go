package main

import (
	"github.com/spf13/cobra"

	"github.com/iliyamo/wedding-planner/internal/config"
	"github.com/iliyamo/wedding-planner/internal/database"
	"github.com/iliyamo/wedding-planner/internal/logging"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logging.Setup(cfg.Env, cfg.LogLevel)

			db, err := database.Open(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return database.Migrate(cmd.Context(), db, cfg.DBDriver)
		},
	}
}
