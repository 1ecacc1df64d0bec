package database

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// TestDSNEnv names the environment variable holding the test database DSN
const TestDSNEnv = "RACE_ESCROW_TEST_DATABASE_DSN"

// SetupTestDB connects to the test database and applies migrations.
// The test is skipped when no test database is configured.
func SetupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv(TestDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set, skipping database test", TestDSNEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := NewDBFromDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to create test database connection: %v", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	if _, err := Migrate(ctx, db, log); err != nil {
		db.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { TeardownTestDB(t, db) })
	return db
}

// TeardownTestDB removes ledger rows and closes the database connection
func TeardownTestDB(t *testing.T, db *DB) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.pool.Exec(ctx, "TRUNCATE ledger_accounts"); err != nil {
		t.Logf("warning: failed to truncate ledger_accounts: %v", err)
	}
	db.Close()
}
