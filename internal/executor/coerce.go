package executor

import (
	"github.com/roach88/peerdb/internal/column"
	"github.com/roach88/peerdb/internal/criteria"
	"github.com/roach88/peerdb/internal/registry"
	"github.com/roach88/peerdb/internal/schema"
)

// columnMeta resolves col, falling back to the default table for columns
// without a table qualifier.
func (e *Executor[T]) columnMeta(d *registry.Database, col column.Column) *schema.ColumnMap {
	if col.TableName() != "" {
		return d.Map.ColumnFor(col)
	}
	if col.ColumnName() == "" {
		return nil
	}
	tm, ok := d.Map.Table(e.table)
	if !ok {
		return nil
	}
	cm, _ := tm.ColumnByName(col.ColumnName())
	return cm
}

// coerceCriteria rewrites boolean comparison values in the where and having
// trees of c. c must be a copy owned by the caller.
func (e *Executor[T]) coerceCriteria(d *registry.Database, c *criteria.Criteria) {
	fn := func(cr *criteria.Criterion) {
		cm := e.columnMeta(d, cr.Column)
		if cm == nil || !(cm.IsBooleanInt() || cm.IsBooleanChar()) {
			return
		}
		if bs, ok := cr.Value.([]bool); ok {
			vals := make([]any, len(bs))
			for i, b := range bs {
				vals[i], _, _ = schema.BoolToStorage(cm, b)
			}
			cr.Value = vals
			return
		}
		if out, _, ok := schema.BoolToStorage(cm, cr.Value); ok {
			cr.Value = out
		}
	}
	c.Where = criteria.Transform(c.Where, fn)
	c.Having = criteria.Transform(c.Having, fn)
}

// coerceValues returns a copy of vs with boolean literals converted to their
// storage representation. Expressions are left alone.
func (e *Executor[T]) coerceValues(d *registry.Database, vs *column.Values) *column.Values {
	out := vs.Clone()
	for col, tv := range vs.All() {
		if tv.IsExpression() {
			continue
		}
		if v, t, ok := schema.BoolToStorage(e.columnMeta(d, col), tv.Value()); ok {
			out.Put(col, column.NewValue(v, t))
		}
	}
	return out
}
