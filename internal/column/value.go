package column

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIllegalState is returned when a TypedValue would hold both a literal value
// and an SQL expression.
var ErrIllegalState = errors.New("illegal state")

// SQLType is the engine type code attached to a literal value.
type SQLType int

const (
	TypeNull SQLType = iota
	TypeBoolean
	TypeTinyInt
	TypeInteger
	TypeBigInt
	TypeNumeric
	TypeDouble
	TypeChar
	TypeVarchar
	TypeDate
	TypeTimestamp
	TypeBlob
	TypeOther
)

var sqlTypeNames = map[SQLType]string{
	TypeNull:      "NULL",
	TypeBoolean:   "BOOLEAN",
	TypeTinyInt:   "TINYINT",
	TypeInteger:   "INTEGER",
	TypeBigInt:    "BIGINT",
	TypeNumeric:   "NUMERIC",
	TypeDouble:    "DOUBLE",
	TypeChar:      "CHAR",
	TypeVarchar:   "VARCHAR",
	TypeDate:      "DATE",
	TypeTimestamp: "TIMESTAMP",
	TypeBlob:      "BLOB",
	TypeOther:     "OTHER",
}

func (t SQLType) String() string {
	if s, ok := sqlTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("SQLType(%d)", int(t))
}

// ParseSQLType returns the type code named s, ignoring case.
func ParseSQLType(s string) (SQLType, error) {
	for t, name := range sqlTypeNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return TypeOther, fmt.Errorf("unknown sql type %q", s)
}

// TypedValue is either a literal value with a type code or a raw SQL expression.
type TypedValue struct {
	value   any
	sqlType SQLType
	hasLit  bool

	expr    string
	hasExpr bool
}

// NewValue creates a TypedValue holding a literal.
func NewValue(v any, t SQLType) *TypedValue {
	return &TypedValue{value: v, sqlType: t, hasLit: true}
}

// NewExpression creates a TypedValue holding a verbatim SQL expression,
// e.g. "CURRENT_TIMESTAMP".
func NewExpression(expr string) *TypedValue {
	return &TypedValue{expr: expr, hasExpr: true}
}

// SetValue replaces the literal value and its type code.
func (v *TypedValue) SetValue(val any, t SQLType) error {
	if v.hasExpr {
		return fmt.Errorf("set value: expression %q already set: %w", v.expr, ErrIllegalState)
	}
	v.value = val
	v.sqlType = t
	v.hasLit = true
	return nil
}

// SetExpression replaces the SQL expression.
func (v *TypedValue) SetExpression(expr string) error {
	if v.hasLit {
		return fmt.Errorf("set expression: literal value already set: %w", ErrIllegalState)
	}
	v.expr = expr
	v.hasExpr = true
	return nil
}

// Value returns the literal value (nil for expressions and SQL NULL).
func (v *TypedValue) Value() any { return v.value }

// SQLType returns the type code of the literal value.
func (v *TypedValue) SQLType() SQLType { return v.sqlType }

// Expression returns the SQL expression and whether one is set.
func (v *TypedValue) Expression() (string, bool) { return v.expr, v.hasExpr }

// IsExpression reports whether the value is a verbatim SQL expression.
func (v *TypedValue) IsExpression() bool { return v.hasExpr }

func (v *TypedValue) String() string {
	if v.hasExpr {
		return v.expr
	}
	return fmt.Sprintf("%v (%s)", v.value, v.sqlType)
}
