package dialect

import (
	"fmt"
	"strings"

	"github.com/roach88/peerdb/internal/schema"
	"github.com/roach88/peerdb/internal/sqlerr"
)

// mysqlMaxRows is the documented "no limit" row count for LIMIT offset, count.
const mysqlMaxRows = "18446744073709551615"

type mysql struct{}

func (mysql) Name() string                    { return "mysql" }
func (mysql) SupportsNativeLimit() bool       { return true }
func (mysql) SupportsNativeOffset() bool      { return true }
func (mysql) SupportsReturning() bool         { return false }
func (mysql) SupportsTransactions() bool      { return true }
func (mysql) SupportsConcurrentWriters() bool { return true }
func (mysql) NativeIDMethod() schema.IDMethod { return schema.AutoIncrement }
func (mysql) IgnoreCase(expr string) string   { return "UPPER(" + expr + ")" }

func (mysql) LimitClause(offset, limit int) string {
	switch {
	case limit >= 0 && offset > 0:
		return fmt.Sprintf(" LIMIT %d, %d", offset, limit)
	case limit >= 0:
		return fmt.Sprintf(" LIMIT %d", limit)
	case offset > 0:
		return fmt.Sprintf(" LIMIT %d, %s", offset, mysqlMaxRows)
	default:
		return ""
	}
}

func (mysql) IDQuery(name string) string { return "SELECT LAST_INSERT_ID()" }

// MySQL has no sequence objects.
func (mysql) SequenceNextValueExpression(name string) string { return "" }

// ExtractState parses the "Error 1213 (40001): ..." form produced by
// go-sql-driver/mysql.
func (mysql) ExtractState(err error) (sqlerr.State, bool) {
	msg := err.Error()
	i := strings.Index(msg, "Error ")
	if i < 0 {
		return sqlerr.State{}, false
	}
	var code int
	var state string
	if _, scanErr := fmt.Sscanf(msg[i:], "Error %d (%5s)", &code, &state); scanErr != nil || len(state) != 5 {
		return sqlerr.State{}, false
	}
	return sqlerr.State{SQLState: state, VendorCode: code}, true
}
