// Package executor builds and runs INSERT, UPDATE, DELETE and SELECT
// statements for one table from criteria and column values.
//
// Every public write has two forms: the plain form opens, commits and
// releases a handle of its own; the ...With form joins the caller's handle
// and never commits, so several operations can share one transaction.
//
// # Boolean Coercion
//
// Columns whose storage type is BOOLEANINT or BOOLEANCHAR have bool, *bool
// and nil values rewritten to 1/0/NULL or 'Y'/'N'/NULL before any statement
// is built, both in column values and anywhere in the criteria predicate
// tree. schema.BoolFromStorage reverses the mapping for record mappers.
//
// # Errors
//
// Every engine error is passed through sqlerr.Classify. Nothing is retried.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/peerdb/internal/criteria"
	"github.com/roach88/peerdb/internal/cursor"
	"github.com/roach88/peerdb/internal/querysql"
	"github.com/roach88/peerdb/internal/registry"
	"github.com/roach88/peerdb/internal/schema"
	"github.com/roach88/peerdb/internal/sqlerr"
	"github.com/roach88/peerdb/internal/txn"
)

// Executor runs statements for one default table and maps result rows to T.
type Executor[T any] struct {
	reg    *registry.Registry
	mgr    txn.Manager
	dbName string
	table  string
	mapper cursor.Mapper[T]
}

// New creates an executor for table in database dbName (the registry
// default when empty).
func New[T any](reg *registry.Registry, mgr txn.Manager, dbName, table string, mapper cursor.Mapper[T]) *Executor[T] {
	if dbName == "" {
		dbName = reg.DefaultName()
	}
	return &Executor[T]{reg: reg, mgr: mgr, dbName: dbName, table: table, mapper: mapper}
}

// Registry returns the registry the executor resolves databases in.
func (e *Executor[T]) Registry() *registry.Registry { return e.reg }

// Manager returns the transaction manager of the executor.
func (e *Executor[T]) Manager() txn.Manager { return e.mgr }

// DBName returns the default database name.
func (e *Executor[T]) DBName() string { return e.dbName }

// TableName returns the default table name.
func (e *Executor[T]) TableName() string { return e.table }

// DBFor returns the database criteria c targets.
func (e *Executor[T]) DBFor(c *criteria.Criteria) string {
	if c != nil && c.DBName != "" {
		return c.DBName
	}
	return e.dbName
}

// Select runs c in a handle of its own and returns all mapped records.
func (e *Executor[T]) Select(ctx context.Context, c *criteria.Criteria) ([]T, error) {
	var out []T
	err := txn.Run(ctx, e.mgr, e.DBFor(c), func(h *txn.Handle) error {
		var err error
		out, err = e.SelectWith(ctx, h, c)
		return err
	})
	return out, err
}

// SelectWith runs c on h and returns all mapped records. It fails with
// KindTooManyRows when c asserts a single record and more rows arrive.
func (e *Executor[T]) SelectWith(ctx context.Context, h *txn.Handle, c *criteria.Criteria) ([]T, error) {
	cur, err := e.SelectCursorWith(ctx, h, c)
	if err != nil {
		return nil, err
	}
	recs, err := cur.Collect()
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", e.table, err)
	}
	if c.SingleRecord && len(recs) > 1 {
		return nil, sqlerr.New(sqlerr.KindTooManyRows,
			"select from %s returned %d rows where at most one was expected", e.table, len(recs))
	}
	return recs, nil
}

// SelectSingle runs c as a single-record query. found is false when no row
// matched.
func (e *Executor[T]) SelectSingle(ctx context.Context, c *criteria.Criteria) (rec T, found bool, err error) {
	c = c.Clone().SetSingleRecord(true)
	recs, err := e.Select(ctx, c)
	if err != nil || len(recs) == 0 {
		return rec, false, err
	}
	return recs[0], true, nil
}

// SelectCursor runs c in a handle of its own and returns the lazy cursor.
// The caller must close the cursor; closing it finishes the handle.
func (e *Executor[T]) SelectCursor(ctx context.Context, c *criteria.Criteria) (*cursor.Cursor[T], error) {
	h, err := e.mgr.Begin(ctx, e.DBFor(c))
	if err != nil {
		return nil, err
	}
	cur, err := e.SelectCursorWith(ctx, h, c)
	if err != nil {
		e.mgr.Close(h)
		return nil, err
	}
	return cur.OnClose(func() error {
		return e.mgr.Commit(ctx, h)
	}), nil
}

// SelectCursorWith runs c on h and returns the lazy cursor. Offset and limit
// are emulated when the adapter cannot render them.
func (e *Executor[T]) SelectCursorWith(ctx context.Context, h *txn.Handle, c *criteria.Criteria) (*cursor.Cursor[T], error) {
	d := h.Database()
	q, err := e.buildSelect(d, c)
	if err != nil {
		return nil, err
	}

	sqlText := q.String()
	slog.Debug("select", "db", d.Name, "tx", h.ID(), "sql", sqlText)
	rows, err := h.QueryContext(ctx, sqlText, q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", e.table, sqlerr.Classify(err))
	}

	cur := cursor.New(rows, e.mapper)
	if !q.NativeLimit {
		cur.Window(q.Offset, q.Limit)
	}
	return cur, nil
}

// buildSelect defaults the select list to all columns of the default table,
// coerces booleans and injects the default table when the source clause is
// empty. c is not modified.
func (e *Executor[T]) buildSelect(d *registry.Database, c *criteria.Criteria) (*querysql.Query, error) {
	c = c.Clone()
	if len(c.SelectColumns) == 0 {
		tm, err := d.Table(e.table)
		if err != nil {
			return nil, fmt.Errorf("select: %w", err)
		}
		for _, cm := range tm.Columns() {
			c.AddSelectColumn(cm.Column())
		}
	}
	e.coerceCriteria(d, c)

	q, err := querysql.NewBuilder(d.Adapter).BuildSelect(c)
	if err != nil {
		return nil, sqlerr.Wrap(sqlerr.KindContract, err, "select from %s", e.table)
	}
	if len(q.From) == 0 {
		q.AddTable(e.fullTableName(d))
	}
	return q, nil
}

// fullTableName returns the schema-qualified default table name.
func (e *Executor[T]) fullTableName(d *registry.Database) string {
	if tm, ok := d.Map.Table(e.table); ok {
		return tm.FullName()
	}
	return e.table
}

// resolveIDMethod maps Native and the empty method to concrete methods.
func resolveIDMethod(d *registry.Database, m schema.IDMethod) schema.IDMethod {
	switch m {
	case "":
		return schema.NoIDMethod
	case schema.Native:
		return d.Adapter.NativeIDMethod()
	}
	return m
}
