package dialect

import (
	"strings"

	"github.com/roach88/peerdb/internal/schema"
	"github.com/roach88/peerdb/internal/sqlerr"
)

// duckdb targets github.com/duckdb/duckdb-go. Keys come from sequences.
type duckdb struct{}

func (duckdb) Name() string                         { return "duckdb" }
func (duckdb) SupportsNativeLimit() bool            { return true }
func (duckdb) SupportsNativeOffset() bool           { return true }
func (duckdb) SupportsReturning() bool              { return true }
func (duckdb) SupportsTransactions() bool           { return true }
func (duckdb) SupportsConcurrentWriters() bool      { return true }
func (duckdb) NativeIDMethod() schema.IDMethod      { return schema.Sequence }
func (duckdb) LimitClause(offset, limit int) string { return limitOffset(offset, limit) }
func (duckdb) IgnoreCase(expr string) string        { return "UPPER(" + expr + ")" }

func (d duckdb) IDQuery(name string) string {
	return "SELECT " + d.SequenceNextValueExpression(name)
}

func (duckdb) SequenceNextValueExpression(name string) string {
	return "nextval('" + name + "')"
}

// ExtractState reads the error class duckdb prefixes to every message,
// e.g. "Constraint Error: Duplicate key ...".
func (duckdb) ExtractState(err error) (sqlerr.State, bool) {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Constraint Error:"):
		return sqlerr.State{SQLState: "23000"}, true
	case strings.Contains(msg, "TransactionContext Error:") && strings.Contains(msg, "onflict"):
		return sqlerr.State{SQLState: "40001"}, true
	default:
		return sqlerr.State{}, false
	}
}
