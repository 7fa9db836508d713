package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/iliyamo/wedding-planner/internal/config"
	"github.com/iliyamo/wedding-planner/internal/logging"
	"github.com/iliyamo/wedding-planner/internal/queue"
)

func consumeActivityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume-activity",
		Short: "Consume activity events and append them to the activity log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logging.Setup(cfg.Env, cfg.LogLevel)

			c := queue.NewConsumer(cfg.AMQPURL, cfg.ActivityQueue, cfg.ActivityLogDir)
			err := c.Run(cmd.Context())
			if errors.Is(err, context.Canceled) {
				slog.Info("activity consumer stopped")
				return nil
			}
			return err
		},
	}
}
