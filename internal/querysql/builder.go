package querysql

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/peerdb/internal/column"
	"github.com/roach88/peerdb/internal/criteria"
	"github.com/roach88/peerdb/internal/dialect"
)

// Builder turns criteria into parameterized SQL for one dialect.
//
// CRITICAL: values are never interpolated - every literal becomes a "?" placeholder.
type Builder struct {
	adapter dialect.Adapter
}

// NewBuilder creates a Builder for the given adapter.
func NewBuilder(a dialect.Adapter) *Builder {
	return &Builder{adapter: a}
}

// Adapter returns the dialect adapter of the builder.
func (b *Builder) Adapter() dialect.Adapter { return b.adapter }

// BuildSelect builds a SELECT from c. The source clause holds every table c
// references; it is empty when c only selects expressions.
func (b *Builder) BuildSelect(c *criteria.Criteria) (*Query, error) {
	if len(c.SelectColumns) == 0 {
		return nil, fmt.Errorf("build select: no select columns")
	}

	q := &Query{
		Kind:      KindSelect,
		Offset:    c.Offset,
		Limit:     c.Limit,
		FetchSize: c.FetchSize,
	}
	if c.Distinct {
		q.Modifiers = append(q.Modifiers, "DISTINCT")
	}
	for _, col := range c.SelectColumns {
		q.Select = append(q.Select, col.SQLExpression())
	}

	q.From = b.fromClause(c)

	if err := b.whereClause(q, c.Where); err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	for _, g := range c.GroupBy {
		q.GroupBy = append(q.GroupBy, g.SQLExpression())
	}
	if c.Having != nil {
		sql, params, err := b.compilePredicate(c.Having)
		if err != nil {
			return nil, fmt.Errorf("build select: having: %w", err)
		}
		q.Having = sql
		q.Params = append(q.Params, params...)
	}

	for _, o := range c.OrderBy {
		expr := o.Column.SQLExpression()
		if o.IgnoreCase {
			expr = b.adapter.IgnoreCase(expr)
		}
		if o.Descending {
			q.OrderBy = append(q.OrderBy, expr+" DESC")
		} else {
			q.OrderBy = append(q.OrderBy, expr+" ASC")
		}
	}

	b.applyLimit(q)
	return q, nil
}

// BuildDelete builds a DELETE restricted by the where clause of c.
func (b *Builder) BuildDelete(c *criteria.Criteria) (*Query, error) {
	q := &Query{Kind: KindDelete, Limit: criteria.NoLimit}
	for _, t := range c.Tables() {
		q.AddTable(t)
	}
	if err := b.whereClause(q, c.Where); err != nil {
		return nil, fmt.Errorf("build delete: %w", err)
	}
	return q, nil
}

// BuildUpdate builds "UPDATE table SET ..." restricted by the where clause of c.
// set holds the rendered assignments and setParams their parameters.
func (b *Builder) BuildUpdate(table string, set []string, setParams []any, c *criteria.Criteria) (*Query, error) {
	if len(set) == 0 {
		return nil, fmt.Errorf("build update: nothing to set")
	}
	q := &Query{
		Kind:      KindUpdate,
		From:      []FromElement{{Table: table}},
		Set:       set,
		SetParams: setParams,
		Limit:     criteria.NoLimit,
	}
	if c != nil {
		if err := b.whereClause(q, c.Where); err != nil {
			return nil, fmt.Errorf("build update: %w", err)
		}
	}
	return q, nil
}

// applyLimit renders the limit natively when the adapter supports both offset
// and limit; otherwise the window is left for the caller to emulate.
func (b *Builder) applyLimit(q *Query) {
	if q.Offset <= 0 && q.Limit < 0 {
		q.NativeLimit = true
		return
	}
	if b.adapter.SupportsNativeLimit() && b.adapter.SupportsNativeOffset() {
		q.LimitClause = b.adapter.LimitClause(q.Offset, q.Limit)
		q.NativeLimit = true
	}
}

// fromClause lists referenced tables; join targets become join elements.
func (b *Builder) fromClause(c *criteria.Criteria) []FromElement {
	joined := map[string]bool{}
	for _, j := range c.Joins {
		joined[j.Right.FullTableName()] = true
	}

	var from []FromElement
	seen := map[string]bool{}
	addPlain := func(t string) {
		if t == "" || seen[t] || joined[t] {
			return
		}
		seen[t] = true
		from = append(from, FromElement{Table: t})
	}
	for _, j := range c.Joins {
		addPlain(j.Left.FullTableName())
	}
	for _, t := range c.Tables() {
		addPlain(t)
	}
	for _, j := range c.Joins {
		t := j.Right.FullTableName()
		if seen[t] {
			continue
		}
		seen[t] = true
		jt := j.Type
		if jt == "" {
			jt = criteria.InnerJoin
		}
		from = append(from, FromElement{
			Table:     t,
			JoinType:  jt,
			Condition: j.Left.SQLExpression() + " = " + j.Right.SQLExpression(),
		})
	}
	return from
}

// whereClause splits a top-level conjunction into separate Where entries.
func (b *Builder) whereClause(q *Query, p criteria.Predicate) error {
	if p == nil {
		return nil
	}
	parts := []criteria.Predicate{p}
	if and, ok := p.(*criteria.And); ok {
		parts = and.Parts
	}
	for _, part := range parts {
		sql, params, err := b.compilePredicate(part)
		if err != nil {
			return err
		}
		switch part.(type) {
		case *criteria.And, *criteria.Or:
			if len(parts) > 1 {
				sql = "(" + sql + ")"
			}
		}
		q.Where = append(q.Where, sql)
		q.Params = append(q.Params, params...)
	}
	return nil
}

// compilePredicate compiles a predicate to an SQL fragment and its parameters.
func (b *Builder) compilePredicate(p criteria.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case *criteria.Criterion:
		return b.compileCriterion(pred)
	case *criteria.And:
		return b.compileJunction(pred.Parts, " AND ", "1 = 1")
	case *criteria.Or:
		return b.compileJunction(pred.Parts, " OR ", "1 = 0")
	case *criteria.Raw:
		return pred.SQL, pred.Params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (b *Builder) compileJunction(parts []criteria.Predicate, sep, empty string) (string, []any, error) {
	if len(parts) == 0 {
		return empty, nil, nil
	}
	var sqlParts []string
	var allParams []any
	for _, part := range parts {
		sql, params, err := b.compilePredicate(part)
		if err != nil {
			return "", nil, err
		}
		switch part.(type) {
		case *criteria.And, *criteria.Or:
			sql = "(" + sql + ")"
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}
	if len(sqlParts) == 1 {
		return sqlParts[0], allParams, nil
	}
	return strings.Join(sqlParts, sep), allParams, nil
}

func (b *Builder) compileCriterion(c *criteria.Criterion) (string, []any, error) {
	lhs := c.Column.SQLExpression()
	if lhs == "" {
		return "", nil, fmt.Errorf("criterion without column")
	}
	op := c.Op
	if op == "" {
		op = criteria.Equal
	}

	switch op {
	case criteria.IsNull, criteria.IsNotNull:
		return lhs + " " + string(op), nil, nil
	case criteria.In, criteria.NotIn:
		return b.compileIn(lhs, op, c.Value)
	}

	if c.Value == nil {
		switch op {
		case criteria.Equal:
			return lhs + " IS NULL", nil, nil
		case criteria.NotEqual:
			return lhs + " IS NOT NULL", nil, nil
		default:
			return "", nil, fmt.Errorf("%s: operator %s with NULL value", lhs, op)
		}
	}

	// column to column comparison
	if other, ok := c.Value.(column.Column); ok {
		return lhs + " " + string(op) + " " + other.SQLExpression(), nil, nil
	}

	rhs := "?"
	if _, isString := c.Value.(string); isString && c.IgnoreCase {
		lhs = b.adapter.IgnoreCase(lhs)
		rhs = b.adapter.IgnoreCase(rhs)
	}
	return lhs + " " + string(op) + " " + rhs, []any{c.Value}, nil
}

// compileIn expands a slice value to one placeholder per element.
func (b *Builder) compileIn(lhs string, op criteria.Operator, v any) (string, []any, error) {
	rv := reflect.ValueOf(v)
	if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return "", nil, fmt.Errorf("%s: %s needs a slice value, got %T", lhs, op, v)
	}
	if rv.Len() == 0 {
		if op == criteria.In {
			return "1 = 0", nil, nil
		}
		return "1 = 1", nil, nil
	}
	marks := make([]string, rv.Len())
	params := make([]any, rv.Len())
	for i := range rv.Len() {
		marks[i] = "?"
		params[i] = rv.Index(i).Interface()
	}
	return fmt.Sprintf("%s %s (%s)", lhs, op, strings.Join(marks, ", ")), params, nil
}
