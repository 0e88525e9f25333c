package column

import "strings"

// Column identifies a database column.
//
// The zero value is not useful; use New or Parse.
type Column struct {
	schema string
	table  string
	name   string
	expr   string
}

// New creates a column from its parts. schema may be empty.
func New(schema, table, name string) Column {
	c := Column{schema: schema, table: table, name: name}
	c.expr = c.qualified()
	return c
}

// Parse creates a column from an SQL expression such as "book.title" or
// "library.book.title". Expressions that are not plain dotted identifiers
// (e.g. "count(*)") keep the full text as SQL expression and have no table.
func Parse(expr string) Column {
	expr = strings.TrimSpace(expr)
	if strings.ContainsAny(expr, "() ,*+-/'") {
		return Column{expr: expr}
	}
	parts := strings.Split(expr, ".")
	switch len(parts) {
	case 1:
		return Column{name: parts[0], expr: expr}
	case 2:
		return Column{table: parts[0], name: parts[1], expr: expr}
	default:
		n := len(parts)
		return Column{
			schema: strings.Join(parts[:n-2], "."),
			table:  parts[n-2],
			name:   parts[n-1],
			expr:   expr,
		}
	}
}

// Expr creates a column for an SQL expression that is used as is, such as
// "book_seq.NEXTVAL". It has no schema, table or name, so it never adds a
// table to a source clause.
func Expr(sql string) Column {
	return Column{expr: strings.TrimSpace(sql)}
}

func (c Column) qualified() string {
	switch {
	case c.table == "":
		return c.name
	case c.schema == "":
		return c.table + "." + c.name
	default:
		return c.schema + "." + c.table + "." + c.name
	}
}

// SchemaName returns the schema part, or "" if the column is unqualified.
func (c Column) SchemaName() string { return c.schema }

// TableName returns the table part without schema.
func (c Column) TableName() string { return c.table }

// ColumnName returns the bare column name.
func (c Column) ColumnName() string { return c.name }

// SQLExpression returns the text used for this column in SQL statements.
func (c Column) SQLExpression() string { return c.expr }

// FullTableName returns "schema.table", or "table" without schema.
func (c Column) FullTableName() string {
	if c.schema == "" {
		return c.table
	}
	return c.schema + "." + c.table
}

// String implements fmt.Stringer.
func (c Column) String() string { return c.expr }

// Equal reports whether two columns have the same SQL expression.
func Equal(a, b Column) bool {
	return a.expr == b.expr
}
