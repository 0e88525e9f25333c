package dialect

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/peerdb/internal/schema"
	"github.com/roach88/peerdb/internal/sqlerr"
)

type sqlite struct{}

func (sqlite) Name() string                    { return "sqlite" }
func (sqlite) SupportsNativeLimit() bool       { return true }
func (sqlite) SupportsNativeOffset() bool      { return true }
func (sqlite) SupportsReturning() bool         { return true }
func (sqlite) SupportsTransactions() bool      { return true }
func (sqlite) SupportsConcurrentWriters() bool { return false }
func (sqlite) NativeIDMethod() schema.IDMethod { return schema.AutoIncrement }

// LimitClause uses LIMIT -1 when only an offset is given; SQLite rejects a bare
// OFFSET.
func (sqlite) LimitClause(offset, limit int) string {
	if limit < 0 && offset > 0 {
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", offset)
	}
	return limitOffset(offset, limit)
}

func (sqlite) IDQuery(name string) string {
	return "SELECT last_insert_rowid()"
}

// SQLite has no sequence objects.
func (sqlite) SequenceNextValueExpression(name string) string { return "" }

func (sqlite) IgnoreCase(expr string) string { return "UPPER(" + expr + ")" }

// ExtractState maps SQLite result codes onto SQLSTATE values. SQLite reports
// a stale WAL snapshot as BUSY_SNAPSHOT; it is the engine's equivalent of a
// serialization failure.
func (sqlite) ExtractState(err error) (sqlerr.State, bool) {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return sqlerr.State{}, false
	}
	st := sqlerr.State{VendorCode: int(se.ExtendedCode)}
	switch se.Code {
	case sqlite3.ErrConstraint:
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			st.SQLState = "23505"
		case sqlite3.ErrConstraintNotNull:
			st.SQLState = "23502"
		case sqlite3.ErrConstraintForeignKey:
			st.SQLState = "23503"
		case sqlite3.ErrConstraintCheck:
			st.SQLState = "23514"
		default:
			st.SQLState = "23000"
		}
	case sqlite3.ErrBusy:
		if se.ExtendedCode == sqlite3.ErrBusySnapshot {
			st.SQLState = "40001"
		} else {
			st.SQLState = "HY000"
		}
	default:
		st.SQLState = "HY000"
	}
	return st, true
}
