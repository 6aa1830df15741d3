package testdb

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasknotify/internal/ciutil"
	"github.com/phrazzld/tasknotify/internal/config"
	"github.com/phrazzld/tasknotify/internal/platform/database"
	"github.com/stretchr/testify/require"
)

// PostgresURLEnv names the variable that enables Postgres-backed tests.
const PostgresURLEnv = ciutil.EnvTestDatabaseURL

// TestTimeout bounds database setup in tests.
const TestTimeout = 10 * time.Second

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Open creates a fresh, fully migrated SQLite database for the test and
// closes it when the test ends.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tasknotify_test.db")
	return open(t, config.DatabaseConfig{Driver: database.DriverSQLite, URL: path})
}

// OpenPostgres connects to the database named by TASKNOTIFY_TEST_DATABASE_URL
// and applies migrations, skipping the test when the variable is unset.
func OpenPostgres(t *testing.T) *sqlx.DB {
	t.Helper()

	url := ciutil.TestDatabaseURL(DiscardLogger())
	if url == "" {
		t.Skipf("%s not set, skipping Postgres test", PostgresURLEnv)
	}
	return open(t, config.DatabaseConfig{Driver: database.DriverPostgres, URL: url, MaxOpenConns: 4})
}

func open(t *testing.T, cfg config.DatabaseConfig) *sqlx.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	db, err := database.Open(ctx, cfg, DiscardLogger())
	require.NoError(t, err, "open test database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(ctx, db, DiscardLogger()), "migrate test database")
	return db
}

// WithTx runs fn inside a transaction that is always rolled back, for tests
// that must not leave rows behind in a shared database.
func WithTx(t *testing.T, db *sqlx.DB, fn func(t *testing.T, tx *sqlx.Tx)) {
	t.Helper()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err, "begin test transaction")
	defer func() {
		_ = tx.Rollback()
	}()

	fn(t, tx)
}
