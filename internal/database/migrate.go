package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/iliyamo/wedding-planner/internal/config"
)

//go:embed migrations/mysql/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migrate applies all pending up migrations for the given driver.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	src, err := iofs.New(migrationsFS, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	var (
		target  migratedb.Driver
		release func() error
	)
	switch driver {
	case config.DriverMySQL:
		// A dedicated connection; closing the migrator releases only it.
		conn, err := db.Conn(ctx)
		if err != nil {
			return fmt.Errorf("acquire connection: %w", err)
		}
		target, err = mysql.WithConnection(ctx, conn, &mysql.Config{})
		if err != nil {
			conn.Close()
			return fmt.Errorf("create mysql driver: %w", err)
		}
		release = target.Close
	case config.DriverSQLite:
		// The sqlite driver's Close closes the shared *sql.DB, so it is
		// never called here.
		target, err = sqlite.WithInstance(db, &sqlite.Config{})
		if err != nil {
			return fmt.Errorf("create sqlite driver: %w", err)
		}
		release = func() error { return nil }
	default:
		return fmt.Errorf("unsupported driver %q", driver)
	}
	defer func() {
		if err := release(); err != nil {
			slog.Warn("release migration connection", "err", err)
		}
	}()

	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	version, dirty, verr := m.Version()
	if verr == nil {
		slog.Info("database migrated", "driver", driver, "version", version, "dirty", dirty)
	}
	return nil
}
