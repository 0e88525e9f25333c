package querysql

import (
	"strings"

	"github.com/roach88/peerdb/internal/criteria"
)

// Kind is the statement kind of a Query.
type Kind int

const (
	KindSelect Kind = iota + 1
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "SELECT"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FromElement is one entry of the source clause. JoinType is empty for plain
// comma-separated tables.
type FromElement struct {
	Table     string
	JoinType  criteria.JoinType
	Condition string
}

// Query is a built statement. Its clause lists are exported and may be
// changed before String is called; String renders them as they are.
type Query struct {
	Kind      Kind
	Modifiers []string
	Select    []string
	From      []FromElement
	Set       []string
	Where     []string
	GroupBy   []string
	Having    string
	OrderBy   []string

	// SetParams belong to the SET list of an UPDATE, Params to WHERE and HAVING.
	SetParams []any
	Params    []any

	// LimitClause is the rendered native limit, or "".
	LimitClause string
	// Offset and Limit are the requested window. When NativeLimit is false the
	// caller must apply them to the result rows.
	Offset      int
	Limit       int
	NativeLimit bool

	// FetchSize is a driver hint; database/sql has no equivalent so it is
	// carried for callers that batch themselves.
	FetchSize int
}

// HasTable reports whether table is in the source clause, comparing with
// the given equality function.
func (q *Query) HasTable(table string, eq func(a, b string) bool) bool {
	for _, f := range q.From {
		if eq(f.Table, table) {
			return true
		}
	}
	return false
}

// AddTable appends a plain table to the source clause.
func (q *Query) AddTable(table string) {
	q.From = append(q.From, FromElement{Table: table})
}

// Args returns the statement parameters in placeholder order.
func (q *Query) Args() []any {
	if len(q.SetParams) == 0 {
		return q.Params
	}
	args := make([]any, 0, len(q.SetParams)+len(q.Params))
	args = append(args, q.SetParams...)
	return append(args, q.Params...)
}

// String renders the statement.
func (q *Query) String() string {
	var b strings.Builder
	switch q.Kind {
	case KindSelect:
		b.WriteString("SELECT ")
		for _, m := range q.Modifiers {
			b.WriteString(m)
			b.WriteByte(' ')
		}
		b.WriteString(strings.Join(q.Select, ", "))
		b.WriteString(" FROM ")
		b.WriteString(q.fromSQL())
	case KindDelete:
		b.WriteString("DELETE FROM ")
		b.WriteString(q.fromSQL())
	case KindUpdate:
		b.WriteString("UPDATE ")
		if len(q.From) > 0 {
			b.WriteString(q.From[0].Table)
		}
		b.WriteString(" SET ")
		b.WriteString(strings.Join(q.Set, ", "))
	}

	if len(q.Where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.Where, " AND "))
	}
	if q.Kind != KindSelect {
		return b.String()
	}
	if len(q.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(q.GroupBy, ", "))
	}
	if q.Having != "" {
		b.WriteString(" HAVING ")
		b.WriteString(q.Having)
	}
	if len(q.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.OrderBy, ", "))
	}
	b.WriteString(q.LimitClause)
	return b.String()
}

func (q *Query) fromSQL() string {
	var b strings.Builder
	for i, f := range q.From {
		switch {
		case f.JoinType != "":
			b.WriteString(" ")
			b.WriteString(string(f.JoinType))
			b.WriteString(" ")
			b.WriteString(f.Table)
			b.WriteString(" ON ")
			b.WriteString(f.Condition)
		case i > 0:
			b.WriteString(", ")
			b.WriteString(f.Table)
		default:
			b.WriteString(f.Table)
		}
	}
	return b.String()
}
