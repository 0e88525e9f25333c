package dialect

import (
	"github.com/roach88/peerdb/internal/schema"
	"github.com/roach88/peerdb/internal/sqlerr"
)

// postgres relies on the SQLState() method pq and pgx errors expose, which
// the classifier reads directly.
type postgres struct{}

func (postgres) Name() string                         { return "postgresql" }
func (postgres) SupportsNativeLimit() bool            { return true }
func (postgres) SupportsNativeOffset() bool           { return true }
func (postgres) SupportsReturning() bool              { return true }
func (postgres) SupportsTransactions() bool           { return true }
func (postgres) SupportsConcurrentWriters() bool      { return true }
func (postgres) NativeIDMethod() schema.IDMethod      { return schema.Sequence }
func (postgres) LimitClause(offset, limit int) string { return limitOffset(offset, limit) }
func (postgres) IgnoreCase(expr string) string        { return "UPPER(" + expr + ")" }
func (postgres) ExtractState(err error) (sqlerr.State, bool) {
	return sqlerr.State{}, false
}

func (p postgres) IDQuery(name string) string {
	return "SELECT " + p.SequenceNextValueExpression(name)
}

func (postgres) SequenceNextValueExpression(name string) string {
	return "nextval('" + name + "')"
}
