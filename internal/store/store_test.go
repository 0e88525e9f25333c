package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesPragmas(t *testing.T) {
	db := createTestDB(t)

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestOpen_RequiresDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{DSN: "x.db"})
	assert.Error(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "nope", DSN: "x"})
	assert.Error(t, err)
}

func TestEnsureIDTable_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := createTestDB(t)

	require.NoError(t, EnsureIDTable(ctx, db, "sqlite3", "ID_TABLE"))
	require.NoError(t, EnsureIDTable(ctx, db, "sqlite3", "ID_TABLE"))

	_, err := db.Exec("INSERT INTO ID_TABLE (table_name, next_id, quantity) VALUES ('book', 1, 10)")
	require.NoError(t, err)

	var version int
	require.NoError(t, db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestEnsureIDTable_RejectsBadName(t *testing.T) {
	db := createTestDB(t)
	err := EnsureIDTable(context.Background(), db, "sqlite3", "id; DROP TABLE x")
	assert.Error(t, err)
}

func TestValidIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"ID_TABLE", true},
		{"main.id_table", true},
		{"t1", true},
		{"1t", false},
		{"", false},
		{"a..b", false},
		{"a b", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, validIdentifier(tt.in), tt.in)
	}
}

func TestIsSQLite(t *testing.T) {
	assert.True(t, IsSQLite("sqlite3"))
	assert.True(t, IsSQLite("SQLite"))
	assert.False(t, IsSQLite("duckdb"))
}
