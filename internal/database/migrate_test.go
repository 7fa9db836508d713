package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wedding-planner/internal/config"
	"github.com/iliyamo/wedding-planner/internal/database"
	"github.com/iliyamo/wedding-planner/internal/database/dbtest"
)

func TestMigrate_CreatesSchema(t *testing.T) {
	db := dbtest.New(t)

	for _, table := range []string{"users", "refresh_tokens", "guests", "expenses", "expense_items", "expense_documents", "requirements"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := dbtest.New(t)
	require.NoError(t, database.Migrate(context.Background(), db, config.DriverSQLite))

	// the shared handle must survive the migrator
	require.NoError(t, db.Ping())
}

func TestMigrate_ForeignKeysEnforced(t *testing.T) {
	db := dbtest.New(t)

	var on int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&on))
	assert.Equal(t, 1, on)

	_, err := db.Exec(`INSERT INTO guests (id, user_id, name, created_at, updated_at)
		VALUES ('g1', 'missing-user', 'Asha', '2026-01-01 00:00:00', '2026-01-01 00:00:00')`)
	assert.Error(t, err)
}

func TestOpenSQLite_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "wedding.db")
	db, err := database.OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("CREATE TABLE scratch (x INTEGER)")
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestMigrate_UnknownDriver(t *testing.T) {
	db := dbtest.New(t)
	assert.Error(t, database.Migrate(context.Background(), db, "postgres"))
}
