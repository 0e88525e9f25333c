// Package criteria is the dialect-independent query description handed to
// the executor: selected columns, a predicate tree, ordering, grouping, joins,
// offset/limit and the single-record assertion.
package criteria

import (
	"slices"

	"github.com/roach88/peerdb/internal/column"
)

// NoLimit is the Limit value meaning "all rows".
const NoLimit = -1

// Order is one ORDER BY entry.
type Order struct {
	Column     column.Column
	Descending bool
	IgnoreCase bool
}

// JoinType is the kind of a join.
type JoinType string

const (
	InnerJoin JoinType = "INNER JOIN"
	LeftJoin  JoinType = "LEFT JOIN"
	RightJoin JoinType = "RIGHT JOIN"
)

// Join links two columns of different tables.
type Join struct {
	Left  column.Column
	Right column.Column
	Type  JoinType
}

// Criteria describes a query.
type Criteria struct {
	DBName        string
	SelectColumns []column.Column
	Where         Predicate
	OrderBy       []Order
	GroupBy       []column.Column
	Having        Predicate
	Joins         []Join
	Distinct      bool
	Offset        int
	Limit         int
	SingleRecord  bool
	FetchSize     int
}

// New returns empty criteria without limit.
func New() *Criteria {
	return &Criteria{Limit: NoLimit}
}

// AddSelectColumn appends output columns.
func (c *Criteria) AddSelectColumn(cols ...column.Column) *Criteria {
	c.SelectColumns = append(c.SelectColumns, cols...)
	return c
}

// And adds p to the top-level conjunction of the where clause.
func (c *Criteria) And(p Predicate) *Criteria {
	switch w := c.Where.(type) {
	case nil:
		c.Where = p
	case *And:
		w.Parts = append(w.Parts, p)
	default:
		c.Where = AllOf(w, p)
	}
	return c
}

// Or combines the current where clause with p by disjunction.
func (c *Criteria) Or(p Predicate) *Criteria {
	if c.Where == nil {
		c.Where = p
		return c
	}
	c.Where = AnyOf(c.Where, p)
	return c
}

// WhereEq adds col = v to the where clause.
func (c *Criteria) WhereEq(col column.Column, v any) *Criteria {
	return c.And(Eq(col, v))
}

// AddAscendingOrderBy appends an ascending order.
func (c *Criteria) AddAscendingOrderBy(col column.Column) *Criteria {
	c.OrderBy = append(c.OrderBy, Order{Column: col})
	return c
}

// AddDescendingOrderBy appends a descending order.
func (c *Criteria) AddDescendingOrderBy(col column.Column) *Criteria {
	c.OrderBy = append(c.OrderBy, Order{Column: col, Descending: true})
	return c
}

// AddGroupBy appends grouping columns.
func (c *Criteria) AddGroupBy(cols ...column.Column) *Criteria {
	c.GroupBy = append(c.GroupBy, cols...)
	return c
}

// AddJoin appends a join between left and right.
func (c *Criteria) AddJoin(left, right column.Column, t JoinType) *Criteria {
	c.Joins = append(c.Joins, Join{Left: left, Right: right, Type: t})
	return c
}

// SetLimit sets the maximum number of rows, or NoLimit.
func (c *Criteria) SetLimit(n int) *Criteria {
	c.Limit = n
	return c
}

// SetOffset sets the number of rows to skip.
func (c *Criteria) SetOffset(n int) *Criteria {
	c.Offset = n
	return c
}

// SetSingleRecord asserts that the query returns at most one row.
func (c *Criteria) SetSingleRecord(b bool) *Criteria {
	c.SingleRecord = b
	return c
}

// SetDistinct toggles SELECT DISTINCT.
func (c *Criteria) SetDistinct(b bool) *Criteria {
	c.Distinct = b
	return c
}

// Clone returns a copy that shares no slices with c. The predicate trees are
// copied too. Cloning nil yields an empty criteria.
func (c *Criteria) Clone() *Criteria {
	if c == nil {
		return New()
	}
	cp := *c
	cp.SelectColumns = slices.Clone(c.SelectColumns)
	cp.OrderBy = slices.Clone(c.OrderBy)
	cp.GroupBy = slices.Clone(c.GroupBy)
	cp.Joins = slices.Clone(c.Joins)
	cp.Where = Transform(c.Where, func(*Criterion) {})
	cp.Having = Transform(c.Having, func(*Criterion) {})
	return &cp
}

// Tables returns the tables referenced by select columns, predicates, order
// and joins, in first-seen order. Expression columns without a table are
// skipped.
func (c *Criteria) Tables() []string {
	var tables []string
	seen := map[string]bool{}
	add := func(col column.Column) {
		name := col.FullTableName()
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		tables = append(tables, name)
	}
	for _, col := range c.SelectColumns {
		add(col)
	}
	Walk(c.Where, func(cr *Criterion) { add(cr.Column) })
	for _, o := range c.OrderBy {
		add(o.Column)
	}
	for _, g := range c.GroupBy {
		add(g)
	}
	return tables
}
