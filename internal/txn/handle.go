package txn

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/roach88/peerdb/internal/registry"
)

// State is the lifecycle state of a Handle.
type State string

const (
	StateOpen       State = "OPEN"
	StateCommitted  State = "COMMITTED"
	StateRolledBack State = "ROLLED_BACK"
	StateClosed     State = "CLOSED"
)

// Handle is one unit of work on a single pooled connection. It is created by
// Manager.Begin and must be finished exactly once with Commit or Rollback;
// Manager.Close finishes it if the caller did not.
//
// A Handle must not be shared between goroutines.
type Handle struct {
	id   string
	db   *registry.Database
	conn *sql.Conn
	tx   *sql.Tx

	committed  bool
	rolledBack bool
	closed     bool
}

// ID returns the UUIDv7 that correlates log lines of this handle.
func (h *Handle) ID() string { return h.id }

// Database returns the registration the handle was opened on.
func (h *Handle) Database() *registry.Database { return h.db }

// DBName returns the name of the database the handle was opened on.
func (h *Handle) DBName() string { return h.db.Name }

// Transactional reports whether statements run inside a database transaction.
func (h *Handle) Transactional() bool { return h.tx != nil }

// Committed reports whether Commit succeeded.
func (h *Handle) Committed() bool { return h.committed }

// RolledBack reports whether the handle was rolled back.
func (h *Handle) RolledBack() bool { return h.rolledBack }

// Closed reports whether the connection was released.
func (h *Handle) Closed() bool { return h.closed }

// State returns the current lifecycle state. A committed or rolled back
// handle reports that state even after its connection was released.
func (h *Handle) State() State {
	switch {
	case h.committed:
		return StateCommitted
	case h.rolledBack:
		return StateRolledBack
	case h.closed:
		return StateClosed
	default:
		return StateOpen
	}
}

// ExecContext runs a statement on the handle's transaction or connection.
func (h *Handle) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if h.tx != nil {
		return h.tx.ExecContext(ctx, query, args...)
	}
	return h.conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a query on the handle's transaction or connection.
func (h *Handle) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if h.tx != nil {
		return h.tx.QueryContext(ctx, query, args...)
	}
	return h.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query on the handle's transaction or
// connection.
func (h *Handle) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	if h.tx != nil {
		return h.tx.QueryRowContext(ctx, query, args...)
	}
	return h.conn.QueryRowContext(ctx, query, args...)
}

// release returns the connection to the pool. It is idempotent.
func (h *Handle) release() {
	if h.closed {
		return
	}
	h.closed = true
	if err := h.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		slog.Warn("release connection failed", "db", h.db.Name, "tx", h.id, "error", err)
	}
}
