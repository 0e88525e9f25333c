package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/peerdb/internal/column"
	"github.com/roach88/peerdb/internal/criteria"
	"github.com/roach88/peerdb/internal/idgen"
	"github.com/roach88/peerdb/internal/querysql"
	"github.com/roach88/peerdb/internal/registry"
	"github.com/roach88/peerdb/internal/schema"
	"github.com/roach88/peerdb/internal/sqlerr"
	"github.com/roach88/peerdb/internal/txn"
)

// Insert writes vs in a handle of its own and returns the primary key, or
// nil for a keyless table. The target database is the one vs is tagged
// with, else the executor default.
func (e *Executor[T]) Insert(ctx context.Context, vs *column.Values) (any, error) {
	var key any
	err := txn.Run(ctx, e.mgr, e.dbForValues(vs), func(h *txn.Handle) error {
		var err error
		key, err = e.InsertWith(ctx, h, vs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// InsertWith writes vs on h. Pre-insert keys are generated and injected when
// absent; post-insert keys are read back on h.
func (e *Executor[T]) InsertWith(ctx context.Context, h *txn.Handle, vs *column.Values) (any, error) {
	d := h.Database()
	tm, err := d.Table(e.table)
	if err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	vs = e.coerceValues(d, vs)

	pk := tm.PrimaryKey()
	var gen idgen.Generator
	if pk != nil {
		if m := resolveIDMethod(d, tm.IDMethod); m != schema.NoIDMethod {
			g, ok := d.IDGenerator(m)
			if !ok {
				return nil, sqlerr.New(sqlerr.KindConfiguration,
					"insert into %s: no %s id generator registered for database %s", tm.Name, m, d.Name)
			}
			gen = g
		}
	}

	var key any
	if pk != nil {
		if tv, ok := vs.Get(pk.Column()); ok && !tv.IsExpression() && tv.Value() != nil {
			key = tv.Value()
		}
	}

	if gen != nil && gen.IsPriorToInsert() && key == nil {
		k, err := gen.ID(ctx, h, tm.IDParameter())
		if err != nil {
			return nil, fmt.Errorf("insert into %s: generate key: %w", tm.Name, err)
		}
		key = k
		vs.Put(pk.Column(), column.NewValue(k, pk.SQLType))
	}

	cols := make([]string, 0, vs.Len())
	marks := make([]string, 0, vs.Len())
	var args []any
	for col, tv := range vs.All() {
		cols = append(cols, col.ColumnName())
		if expr, ok := tv.Expression(); ok {
			marks = append(marks, expr)
			continue
		}
		marks = append(marks, "?")
		args = append(args, tv.Value())
	}

	var sqlText string
	if len(cols) == 0 {
		sqlText = "INSERT INTO " + tm.FullName() + " DEFAULT VALUES"
	} else {
		sqlText = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			tm.FullName(), strings.Join(cols, ", "), strings.Join(marks, ", "))
	}

	postInsert := gen != nil && gen.IsPostInsert() && key == nil
	if postInsert && gen.Method() == schema.ReturnedKeys {
		sqlText += " RETURNING " + pk.Name
		slog.Debug("insert", "db", d.Name, "tx", h.ID(), "sql", sqlText)
		if err := h.QueryRowContext(ctx, sqlText, args...).Scan(&key); err != nil {
			return nil, fmt.Errorf("insert into %s: %w", tm.Name, sqlerr.Classify(err))
		}
		return generatedKey(tm, pk, key)
	}

	slog.Debug("insert", "db", d.Name, "tx", h.ID(), "sql", sqlText)
	res, err := h.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", tm.Name, sqlerr.Classify(err))
	}

	if postInsert {
		id, err := res.LastInsertId()
		if err == nil {
			return id, nil
		}
		k, err := gen.ID(ctx, h, tm.IDParameter())
		if err != nil {
			return nil, fmt.Errorf("insert into %s: read key: %w", tm.Name, err)
		}
		return generatedKey(tm, pk, k)
	}
	return key, nil
}

// generatedKey returns keys of integer key columns as int64. Drivers scan
// RETURNING values and identity queries into different integer widths, or
// into []byte.
func generatedKey(tm *schema.TableMap, pk *schema.ColumnMap, key any) (any, error) {
	switch pk.SQLType {
	case column.TypeTinyInt, column.TypeInteger, column.TypeBigInt:
		n, err := idgen.KeyAs[int64](key)
		if err != nil {
			return nil, sqlerr.Wrap(sqlerr.KindPersistence, err, "insert into %s: generated key", tm.Name)
		}
		return n, nil
	default:
		return key, nil
	}
}

// InsertSelect runs "INSERT INTO table (targets) <select c>" in a handle of
// its own on dbName (the criteria or executor default when empty) and
// returns the number of rows written.
func (e *Executor[T]) InsertSelect(ctx context.Context, targets []column.Column, c *criteria.Criteria, dbName string) (int64, error) {
	if dbName == "" {
		dbName = e.DBFor(c)
	}
	var n int64
	err := txn.Run(ctx, e.mgr, dbName, func(h *txn.Handle) error {
		var err error
		n, err = e.InsertSelectWith(ctx, h, targets, c)
		return err
	})
	return n, err
}

// InsertSelectWith is InsertSelect on h. When the table's key is generated by
// a sequence and absent from targets, the key column and the adapter's
// next-value expression are prepended.
func (e *Executor[T]) InsertSelectWith(ctx context.Context, h *txn.Handle, targets []column.Column, c *criteria.Criteria) (int64, error) {
	d := h.Database()
	tm, err := d.Table(e.table)
	if err != nil {
		return 0, fmt.Errorf("insert select: %w", err)
	}
	sqlText, args, err := e.insertSelectSQL(d, tm, targets, c)
	if err != nil {
		return 0, err
	}
	return e.exec(ctx, h, "insert select into "+tm.Name, sqlText, args)
}

// insertSelectSQL renders "INSERT INTO table (targets) <select c>" for d.
func (e *Executor[T]) insertSelectSQL(d *registry.Database, tm *schema.TableMap, targets []column.Column, c *criteria.Criteria) (string, []any, error) {
	if len(targets) != len(c.SelectColumns) {
		return "", nil, sqlerr.New(sqlerr.KindContract,
			"insert select into %s: %d target columns for %d select columns", tm.Name, len(targets), len(c.SelectColumns))
	}

	c = c.Clone()
	cols := make([]string, 0, len(targets)+1)
	for _, t := range targets {
		cols = append(cols, t.ColumnName())
	}

	if pk := tm.PrimaryKey(); pk != nil && !containsColumn(targets, pk.Name) &&
		resolveIDMethod(d, tm.IDMethod) == schema.Sequence {
		expr := d.Adapter.SequenceNextValueExpression(tm.IDParameter())
		if expr == "" {
			return "", nil, sqlerr.New(sqlerr.KindConfiguration,
				"insert select into %s: adapter %s has no sequence expression", tm.Name, d.Adapter.Name())
		}
		cols = append([]string{pk.Name}, cols...)
		// CRITICAL: Expr, not Parse; "seq.NEXTVAL" must not become a source table.
		c.SelectColumns = append([]column.Column{column.Expr(expr)}, c.SelectColumns...)
	}
	e.coerceCriteria(d, c)

	q, err := querysql.NewBuilder(d.Adapter).BuildSelect(c)
	if err != nil {
		return "", nil, sqlerr.Wrap(sqlerr.KindContract, err, "insert select into %s", tm.Name)
	}
	if !q.NativeLimit {
		return "", nil, sqlerr.New(sqlerr.KindContract,
			"insert select into %s: adapter %s cannot limit the select", tm.Name, d.Adapter.Name())
	}
	if len(q.From) == 0 {
		q.AddTable(tm.FullName())
	}

	sqlText := fmt.Sprintf("INSERT INTO %s (%s) %s", tm.FullName(), strings.Join(cols, ", "), q.String())
	return sqlText, q.Args(), nil
}

// Update writes vs in a handle of its own, selecting the row by the primary
// key in vs. It fails before touching the database when vs has no key.
func (e *Executor[T]) Update(ctx context.Context, vs *column.Values) (int64, error) {
	d, err := e.reg.Lookup(e.dbForValues(vs))
	if err != nil {
		return 0, fmt.Errorf("update: %w", err)
	}
	set, c, err := e.byPrimaryKey(d, vs)
	if err != nil {
		return 0, err
	}
	return e.UpdateWhere(ctx, set, c)
}

// UpdateWith is Update on h.
func (e *Executor[T]) UpdateWith(ctx context.Context, h *txn.Handle, vs *column.Values) (int64, error) {
	set, c, err := e.byPrimaryKey(h.Database(), vs)
	if err != nil {
		return 0, err
	}
	return e.UpdateWhereWith(ctx, h, set, c)
}

// byPrimaryKey splits vs into the SET values and a criteria selecting the
// row by its primary key. The key column is removed from the SET values.
func (e *Executor[T]) byPrimaryKey(d *registry.Database, vs *column.Values) (*column.Values, *criteria.Criteria, error) {
	tm, err := d.Table(e.table)
	if err != nil {
		return nil, nil, fmt.Errorf("update: %w", err)
	}
	pk := tm.PrimaryKey()
	if pk == nil {
		return nil, nil, sqlerr.New(sqlerr.KindContract, "update %s: table has no single primary key", tm.Name)
	}
	tv, ok := vs.Get(pk.Column())
	if !ok || tv.IsExpression() || tv.Value() == nil {
		return nil, nil, sqlerr.New(sqlerr.KindContract, "update %s: no value for primary key %s", tm.Name, pk.Name)
	}

	set := vs.Clone()
	set.Remove(pk.Column())
	c := criteria.New().WhereEq(pk.Column(), tv.Value())
	c.DBName = vs.DBName()
	return set, c, nil
}

// UpdateWhere writes vs to every row matching c in a handle of its own.
func (e *Executor[T]) UpdateWhere(ctx context.Context, vs *column.Values, c *criteria.Criteria) (int64, error) {
	dbName := vs.DBName()
	if dbName == "" {
		dbName = e.DBFor(c)
	}
	var n int64
	err := txn.Run(ctx, e.mgr, dbName, func(h *txn.Handle) error {
		var err error
		n, err = e.UpdateWhereWith(ctx, h, vs, c)
		return err
	})
	return n, err
}

// UpdateWhereWith is UpdateWhere on h.
func (e *Executor[T]) UpdateWhereWith(ctx context.Context, h *txn.Handle, vs *column.Values, c *criteria.Criteria) (int64, error) {
	d := h.Database()
	tm, err := d.Table(e.table)
	if err != nil {
		return 0, fmt.Errorf("update: %w", err)
	}
	if vs.Len() == 0 {
		return 0, sqlerr.New(sqlerr.KindContract, "update %s: no values to set", tm.Name)
	}
	vs = e.coerceValues(d, vs)
	c = c.Clone()
	e.coerceCriteria(d, c)

	set := make([]string, 0, vs.Len())
	var setParams []any
	for col, tv := range vs.All() {
		if expr, ok := tv.Expression(); ok {
			set = append(set, col.ColumnName()+" = "+expr)
			continue
		}
		set = append(set, col.ColumnName()+" = ?")
		setParams = append(setParams, tv.Value())
	}

	q, err := querysql.NewBuilder(d.Adapter).BuildUpdate(tm.FullName(), set, setParams, c)
	if err != nil {
		return 0, sqlerr.Wrap(sqlerr.KindContract, err, "update %s", tm.Name)
	}
	return e.exec(ctx, h, "update "+tm.Name, q.String(), q.Args())
}

// Delete removes the rows matching c in a handle of its own.
func (e *Executor[T]) Delete(ctx context.Context, c *criteria.Criteria) (int64, error) {
	var n int64
	err := txn.Run(ctx, e.mgr, e.DBFor(c), func(h *txn.Handle) error {
		var err error
		n, err = e.DeleteWith(ctx, h, c)
		return err
	})
	return n, err
}

// DeleteWith is Delete on h. The default table is added to the source clause
// unless c already references it under any casing, with or without its
// schema.
//
// Table names that differ only by case are treated as the same table; a
// schema where two such tables coexist is not supported.
func (e *Executor[T]) DeleteWith(ctx context.Context, h *txn.Handle, c *criteria.Criteria) (int64, error) {
	d := h.Database()
	c = c.Clone()
	e.coerceCriteria(d, c)

	q, err := querysql.NewBuilder(d.Adapter).BuildDelete(c)
	if err != nil {
		return 0, sqlerr.Wrap(sqlerr.KindContract, err, "delete from %s", e.table)
	}
	table := e.fullTableName(d)
	if !q.HasTable(table, sameTable) {
		q.AddTable(table)
	}
	return e.exec(ctx, h, "delete from "+e.table, q.String(), q.Args())
}

// foldEqual compares table names under Unicode case folding.
func foldEqual(a, b string) bool {
	f := cases.Fold()
	return f.String(a) == f.String(b)
}

// sameTable compares table names that may carry a schema. The schemas are
// only compared when both names have one.
func sameTable(a, b string) bool {
	sa, ta := splitTable(a)
	sb, tb := splitTable(b)
	if sa != "" && sb != "" && !foldEqual(sa, sb) {
		return false
	}
	return foldEqual(ta, tb)
}

func splitTable(full string) (schemaName, table string) {
	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		return full[:i], full[i+1:]
	}
	return "", full
}

func containsColumn(cols []column.Column, name string) bool {
	for _, c := range cols {
		if foldEqual(c.ColumnName(), name) {
			return true
		}
	}
	return false
}

func (e *Executor[T]) dbForValues(vs *column.Values) string {
	if vs != nil && vs.DBName() != "" {
		return vs.DBName()
	}
	return e.dbName
}
