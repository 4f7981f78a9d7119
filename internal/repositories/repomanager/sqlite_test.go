package repomanager

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophid/internal/models"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestOpen_SQLiteRunsMigrationsIdempotently(t *testing.T) {
	ctx := context.Background()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "gophid.db")

	db, m, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	_, ok := m.(*SQLiteRepositoryManager)
	require.True(t, ok)

	require.NoError(t, m.RunMigrations(ctx, db))
	require.NoError(t, m.RunMigrations(ctx, db))

	assert.True(t, tableExists(t, db, "goose_db_version"))
	assert.True(t, tableExists(t, db, "accounts"))
	assert.True(t, tableExists(t, db, "metadata"))

	created, err := m.Accounts(db).CreateAccount(ctx, &models.Account{NativeIdentity: "B1", LookupKey: "K"}, "src")
	require.NoError(t, err)
	got, err := m.Accounts(db).FindByLookupKey(ctx, "src", "K")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	require.NoError(t, m.Metadata(db).Set(ctx, "k", []byte("v")))
	assert.Nil(t, m.TxOptions())
}

func TestOpen_PostgresDSNSelectsPostgresManager(t *testing.T) {
	// nothing listens on port 1, so only the ping fails
	_, _, err := Open(context.Background(), "postgres://u:p@127.0.0.1:1/db?connect_timeout=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db ping error")
}
