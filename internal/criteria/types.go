package criteria

import "github.com/roach88/peerdb/internal/column"

// Predicate is a filter condition.
//
// This is a sealed interface - only types in this package implement it, so the
// SQL builder can switch over it exhaustively.
//
// Predicate types:
//   - *Criterion: column <op> value
//   - *And: all parts must hold
//   - *Or: at least one part must hold
//   - *Raw: verbatim SQL with its own parameters
type Predicate interface {
	predicateNode()
}

// Operator is a comparison operator.
type Operator string

const (
	Equal        Operator = "="
	NotEqual     Operator = "<>"
	LessThan     Operator = "<"
	LessEqual    Operator = "<="
	GreaterThan  Operator = ">"
	GreaterEqual Operator = ">="
	Like         Operator = "LIKE"
	NotLike      Operator = "NOT LIKE"
	In           Operator = "IN"
	NotIn        Operator = "NOT IN"
	IsNull       Operator = "IS NULL"
	IsNotNull    Operator = "IS NOT NULL"
)

// Criterion compares a column against a value.
//
// A nil Value with Equal or NotEqual is rendered as IS NULL / IS NOT NULL.
// For In and NotIn, Value must be a slice.
type Criterion struct {
	Column     column.Column
	Op         Operator
	Value      any
	IgnoreCase bool
}

func (*Criterion) predicateNode() {}

// And is a conjunction.
type And struct {
	Parts []Predicate
}

func (*And) predicateNode() {}

// Or is a disjunction.
type Or struct {
	Parts []Predicate
}

func (*Or) predicateNode() {}

// Raw is a verbatim SQL fragment with "?" placeholders for Params.
type Raw struct {
	SQL    string
	Params []any
}

func (*Raw) predicateNode() {}

// Eq returns col = v.
func Eq(col column.Column, v any) *Criterion {
	return &Criterion{Column: col, Op: Equal, Value: v}
}

// Cmp returns col <op> v.
func Cmp(col column.Column, op Operator, v any) *Criterion {
	return &Criterion{Column: col, Op: op, Value: v}
}

// AllOf returns the conjunction of parts.
func AllOf(parts ...Predicate) *And {
	return &And{Parts: parts}
}

// AnyOf returns the disjunction of parts.
func AnyOf(parts ...Predicate) *Or {
	return &Or{Parts: parts}
}

// Transform returns a copy of p in which every Criterion has been passed through
// fn. The original tree is not modified.
func Transform(p Predicate, fn func(*Criterion)) Predicate {
	switch pred := p.(type) {
	case nil:
		return nil
	case *Criterion:
		cp := *pred
		fn(&cp)
		return &cp
	case *And:
		out := &And{Parts: make([]Predicate, len(pred.Parts))}
		for i, part := range pred.Parts {
			out.Parts[i] = Transform(part, fn)
		}
		return out
	case *Or:
		out := &Or{Parts: make([]Predicate, len(pred.Parts))}
		for i, part := range pred.Parts {
			out.Parts[i] = Transform(part, fn)
		}
		return out
	case *Raw:
		cp := *pred
		return &cp
	default:
		return p
	}
}

// Walk calls fn for every Criterion in p, depth first.
func Walk(p Predicate, fn func(*Criterion)) {
	switch pred := p.(type) {
	case *Criterion:
		fn(pred)
	case *And:
		for _, part := range pred.Parts {
			Walk(part, fn)
		}
	case *Or:
		for _, part := range pred.Parts {
			Walk(part, fn)
		}
	}
}
