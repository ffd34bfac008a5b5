package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("SQLite")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)

	d, err = ParseDialect("postgresql")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	_, err = ParseDialect("mysql")
	assert.Error(t, err)
}

func TestDialect_Rebind(t *testing.T) {
	query := "SELECT * FROM t WHERE a = ? AND b = '?' AND c = ?"

	assert.Equal(t, query, SQLite.Rebind(query))
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = '?' AND c = $2", Postgres.Rebind(query))
}

func TestDialect_LockClause(t *testing.T) {
	assert.Equal(t, "", SQLite.LockClause())
	assert.Equal(t, " FOR UPDATE", Postgres.LockClause())
}

// TestMigrate_SQLite verifies the embedded migrations create the schema on a fresh
// database and are a no-op on the second run.
func TestMigrate_SQLite(t *testing.T) {
	db, err := Open(SQLite, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	applied, err := Migrate(context.Background(), db, SQLite)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, applied)

	for _, table := range []string{"portfolio", "holding", "portfolio_snapshot"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}

	applied, err = Migrate(context.Background(), db, SQLite)
	require.NoError(t, err)
	assert.Empty(t, applied)

	current, latest, err := SchemaVersion(context.Background(), db, SQLite)
	require.NoError(t, err)
	assert.Equal(t, int64(2), current)
	assert.Equal(t, int64(2), latest)

	assert.NoError(t, HealthCheck(db))
}

// TestOpen_SQLiteForeignKeys verifies foreign keys are enforced on every connection.
func TestOpen_SQLiteForeignKeys(t *testing.T) {
	db, err := Open(SQLite, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = Migrate(context.Background(), db, SQLite)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO portfolio_snapshot (id, portfolio_id, date, total_value, holdings_data, updated_at)
		VALUES ('s1', 'missing-portfolio', '2024-01-01', '0', '{}', '2024-01-01T00:00:00Z')`)
	assert.Error(t, err)
}

func TestOpen_UnknownDialect(t *testing.T) {
	_, err := Open(Dialect("oracle"), "dsn")
	assert.Error(t, err)
}
