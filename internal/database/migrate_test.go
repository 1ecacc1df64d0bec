package database

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrationsOrdered(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, "0001_ledger_accounts", migrations[0].version)
	assert.Contains(t, migrations[0].sql, "CREATE TABLE IF NOT EXISTS ledger_accounts")
	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].version, migrations[i].version)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := SetupTestDB(t)
	log := logrus.New()
	log.SetOutput(io.Discard)

	applied, err := Migrate(context.Background(), db, log)
	require.NoError(t, err)
	assert.Empty(t, applied)
}
