package dialect

import (
	"fmt"
	"strings"

	"github.com/roach88/peerdb/internal/schema"
	"github.com/roach88/peerdb/internal/sqlerr"
)

// oracle emulates offset/limit in software; ROWNUM wrapping is left to the
// cursor adapter.
type oracle struct{}

func (oracle) Name() string                         { return "oracle" }
func (oracle) SupportsNativeLimit() bool            { return false }
func (oracle) SupportsNativeOffset() bool           { return false }
func (oracle) SupportsReturning() bool              { return false }
func (oracle) SupportsTransactions() bool           { return true }
func (oracle) SupportsConcurrentWriters() bool      { return true }
func (oracle) NativeIDMethod() schema.IDMethod      { return schema.Sequence }
func (oracle) LimitClause(offset, limit int) string { return "" }
func (oracle) IgnoreCase(expr string) string        { return "UPPER(" + expr + ")" }

func (o oracle) IDQuery(name string) string {
	return "SELECT " + o.SequenceNextValueExpression(name) + " FROM DUAL"
}

func (oracle) SequenceNextValueExpression(name string) string {
	return name + ".NEXTVAL"
}

// ExtractState parses "ORA-NNNNN" codes. ORA-00060 (deadlock) is reported
// with SQLSTATE 61000 and ORA-00001 (unique constraint) with 23000.
func (oracle) ExtractState(err error) (sqlerr.State, bool) {
	msg := err.Error()
	i := strings.Index(msg, "ORA-")
	if i < 0 {
		return sqlerr.State{}, false
	}
	var code int
	if _, scanErr := fmt.Sscanf(msg[i:], "ORA-%5d", &code); scanErr != nil {
		return sqlerr.State{}, false
	}
	st := sqlerr.State{VendorCode: code}
	switch code {
	case 1, 1400, 2291, 2292, 2290:
		st.SQLState = "23000"
	case 60:
		st.SQLState = "61000"
	default:
		st.SQLState = "HY000"
	}
	return st, true
}
