// Package column provides the column value model used by every write path.
//
// A Column identifies a database column by schema, table and name. Two columns
// are equal when their SQL expressions are equal; the expression is fixed at
// construction time.
//
// Values is an ordered map from Column to *TypedValue. Insertion order is
// preserved and determines the column order of generated INSERT statements.
//
// A TypedValue carries either a literal value together with its SQL type code,
// or a verbatim SQL expression that is inlined into the statement text. Never
// both: setting one while the other is set fails with ErrIllegalState.
package column
