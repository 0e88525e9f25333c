package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"
)

//go:embed idtable.sql
var idTableSQL string

// Schema version tracking for the id table:
// 0 - no id table
// 1 - id table with table_name, next_id, quantity
const currentSchemaVersion = 1

// Options configure a connection source.
type Options struct {
	// Driver is the database/sql driver name, e.g. "sqlite3" or "duckdb".
	Driver string
	// DSN is passed to sql.Open unchanged.
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open creates a pooled connection source and verifies it with a ping.
//
// SQLite sources are configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// The pragmas are per connection, so they are also expected in the DSN
// (see SQLiteDSN) when more than one connection is pooled.
func Open(ctx context.Context, opts Options) (*sql.DB, error) {
	if opts.Driver == "" {
		return nil, fmt.Errorf("open datasource: no driver")
	}
	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if IsSQLite(opts.Driver) {
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	return db, nil
}

// IsSQLite reports whether driver is one of the SQLite driver names.
func IsSQLite(driver string) bool {
	switch strings.ToLower(driver) {
	case "sqlite3", "sqlite":
		return true
	}
	return false
}

// SQLiteDSN appends the per-connection pragmas of a pooled SQLite source to
// a file path, in mattn/go-sqlite3 query parameter form.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_synchronous=NORMAL"
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// EnsureIDTable creates the id table used by the id broker if it does not
// exist. It is idempotent. On SQLite the schema version is tracked in
// user_version.
func EnsureIDTable(ctx context.Context, db *sql.DB, driver, table string) error {
	if !validIdentifier(table) {
		return fmt.Errorf("invalid id table name %q", table)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(idTableSQL, table)); err != nil {
		return fmt.Errorf("failed to create id table: %w", err)
	}
	if !IsSQLite(driver) {
		return nil
	}

	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version >= currentSchemaVersion {
		return nil
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// validIdentifier accepts plain and schema-qualified SQL identifiers.
func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			switch {
			case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			case r >= '0' && r <= '9' && i > 0:
			default:
				return false
			}
		}
	}
	return true
}
