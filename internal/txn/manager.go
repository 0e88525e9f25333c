// Package txn manages connection and transaction lifecycles.
//
// Each Handle moves through OPEN -> {COMMITTED | ROLLED_BACK} -> CLOSED. The
// connection is released on every path out of OPEN, so calling code never
// branches on whether an engine honors transactions:
//
//	h, err := mgr.Begin(ctx, "main")
//	if err != nil {
//		return err
//	}
//	defer mgr.Close(h) // rolls back unless committed
//	...
//	return mgr.Commit(ctx, h)
//
// Managers are chosen from a compile-time registry keyed by tag.
package txn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/peerdb/internal/registry"
	"github.com/roach88/peerdb/internal/sqlerr"
)

// Manager begins and finishes handles.
type Manager interface {
	// Begin acquires a connection of the named database (the default when
	// empty) and opens a transaction when the database supports one.
	Begin(ctx context.Context, dbName string) (*Handle, error)

	// Commit commits h and releases its connection. Committing a handle that
	// was rolled back or closed is a contract violation.
	Commit(ctx context.Context, h *Handle) error

	// Rollback rolls h back and releases its connection. It is a no-op with
	// a warning when h is already closed.
	Rollback(ctx context.Context, h *Handle) error

	// SafeRollback is Rollback for cleanup paths: errors are logged, never
	// returned.
	SafeRollback(ctx context.Context, h *Handle)

	// Close rolls h back unless it was committed, then releases it.
	Close(h *Handle)
}

// Factory creates a Manager over a registry.
type Factory func(reg *registry.Registry) Manager

// DefaultManagerName is the manager used when none is configured.
const DefaultManagerName = "default"

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// RegisterManager makes a manager available under tag. It panics on
// duplicates.
func RegisterManager(tag string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[tag]; dup {
		panic(fmt.Sprintf("txn: manager %q registered twice", tag))
	}
	factories[tag] = f
}

// NewManager creates the manager registered under tag. An empty tag selects
// DefaultManagerName.
func NewManager(tag string, reg *registry.Registry) (Manager, error) {
	if tag == "" {
		tag = DefaultManagerName
	}
	mu.RLock()
	f, ok := factories[tag]
	mu.RUnlock()
	if !ok {
		return nil, sqlerr.New(sqlerr.KindConfiguration, "unknown transaction manager %q (have %v)", tag, ManagerNames())
	}
	return f(reg), nil
}

// ManagerNames returns the registered manager tags, sorted.
func ManagerNames() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func init() {
	RegisterManager(DefaultManagerName, func(reg *registry.Registry) Manager {
		return NewDefaultManager(reg)
	})
	RegisterManager("autocommit", func(reg *registry.Registry) Manager {
		return NewAutocommitManager(reg)
	})
}

// DefaultManager opens a database transaction per handle when the adapter
// supports transactions and the database is not configured for autocommit.
type DefaultManager struct {
	reg           *registry.Registry
	transactional bool
}

// NewDefaultManager creates the default manager.
func NewDefaultManager(reg *registry.Registry) *DefaultManager {
	return &DefaultManager{reg: reg, transactional: true}
}

// NewAutocommitManager creates a manager that never opens database
// transactions; every statement commits on its own.
func NewAutocommitManager(reg *registry.Registry) *DefaultManager {
	return &DefaultManager{reg: reg}
}

// Begin implements Manager.
func (m *DefaultManager) Begin(ctx context.Context, dbName string) (*Handle, error) {
	d, err := m.reg.Lookup(dbName)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}

	conn, err := d.DB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin %s: acquire connection: %w", d.Name, sqlerr.Classify(err))
	}

	h := &Handle{
		id:   uuid.Must(uuid.NewV7()).String(),
		db:   d,
		conn: conn,
	}

	if m.transactional && !d.Autocommit && d.Adapter.SupportsTransactions() {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			h.release()
			return nil, fmt.Errorf("begin %s: %w", d.Name, sqlerr.Classify(err))
		}
		h.tx = tx
	}

	slog.Debug("begin", "db", d.Name, "tx", h.id, "transactional", h.tx != nil)
	return h, nil
}

// Commit implements Manager.
func (m *DefaultManager) Commit(ctx context.Context, h *Handle) error {
	if h == nil {
		return sqlerr.New(sqlerr.KindContract, "commit: nil handle")
	}
	switch {
	case h.rolledBack:
		return sqlerr.New(sqlerr.KindContract, "commit: transaction %s was rolled back", h.id)
	case h.closed:
		return sqlerr.New(sqlerr.KindContract, "commit: transaction %s is closed", h.id)
	}

	// CRITICAL: the connection is released on every path, including failure.
	defer h.release()

	if h.tx != nil {
		if err := h.tx.Commit(); err != nil {
			slog.Debug("commit failed", "db", h.db.Name, "tx", h.id, "error", err)
			return fmt.Errorf("commit %s: %w", h.db.Name, sqlerr.Classify(err))
		}
	}
	h.committed = true
	slog.Debug("commit", "db", h.db.Name, "tx", h.id)
	return nil
}

// Rollback implements Manager.
func (m *DefaultManager) Rollback(ctx context.Context, h *Handle) error {
	if h == nil {
		return nil
	}
	if h.closed {
		slog.Warn("rollback of closed transaction ignored", "db", h.db.Name, "tx", h.id, "state", h.State())
		return nil
	}

	defer h.release()

	h.rolledBack = true
	if h.tx != nil {
		if err := h.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			return fmt.Errorf("rollback %s: %w", h.db.Name, sqlerr.Classify(err))
		}
	}
	slog.Debug("rollback", "db", h.db.Name, "tx", h.id)
	return nil
}

// SafeRollback implements Manager.
func (m *DefaultManager) SafeRollback(ctx context.Context, h *Handle) {
	if err := m.Rollback(ctx, h); err != nil {
		slog.Error("rollback failed", "db", h.db.Name, "tx", h.id, "error", err)
	}
}

// Close implements Manager.
func (m *DefaultManager) Close(h *Handle) {
	if h == nil || h.closed {
		return
	}
	if !h.committed {
		m.SafeRollback(context.Background(), h)
		return
	}
	h.release()
}

// Run executes fn in a handle of its own and commits when fn succeeds. The
// handle is rolled back when fn fails.
func Run(ctx context.Context, m Manager, dbName string, fn func(h *Handle) error) error {
	h, err := m.Begin(ctx, dbName)
	if err != nil {
		return err
	}
	defer m.Close(h)

	if err := fn(h); err != nil {
		return err
	}
	return m.Commit(ctx, h)
}
