package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/iliyamo/wedding-planner/internal/config"
	"github.com/iliyamo/wedding-planner/internal/database"
	"github.com/iliyamo/wedding-planner/internal/logging"
	"github.com/iliyamo/wedding-planner/internal/metrics"
	"github.com/iliyamo/wedding-planner/internal/router"
	"github.com/iliyamo/wedding-planner/internal/service"
	"github.com/iliyamo/wedding-planner/internal/upload"
)

func serveCmd() *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply pending migrations at startup")
	return cmd
}

func runServe(ctx context.Context, skipMigrate bool) error {
	cfg := config.Load()
	logger := logging.Setup(cfg.Env, cfg.LogLevel)

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if !skipMigrate {
		if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
			return err
		}
	}

	store, err := upload.NewStore(cfg.UploadDir)
	if err != nil {
		return err
	}

	// Redis only backs rate limiting; the API runs without it.
	rl := config.LoadRateLimitConfig()
	var rdb *redis.Client
	if rl.Enabled {
		rdb, err = config.NewRedisClient(ctx, config.LoadRedisConfig())
		if err != nil {
			slog.Warn("redis unavailable, rate limiting disabled", "err", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	events := service.NewActivityPublisher(cfg.AMQPURL, cfg.ActivityQueue)
	defer events.Close()
	if !events.Enabled() {
		slog.Info("AMQP_URL not set, activity events disabled")
	}

	var stt service.Transcriber = service.DisabledTranscriber{}
	if g, err := service.NewGeminiTranscriber(ctx, cfg.GeminiAPIKey, cfg.GeminiModel); err == nil {
		stt = g
	} else if !errors.Is(err, service.ErrTranscriberDisabled) {
		slog.Warn("speech-to-text unavailable", "err", err)
	}

	e := router.New(router.Deps{
		Cfg:       cfg,
		RateLimit: rl,
		DB:        db,
		Redis:     rdb,
		Store:     store,
		Metrics:   metrics.New(),
		Events:    events,
		STT:       stt,
		Logger:    logger,
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr, "env", cfg.Env, "driver", cfg.DBDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
