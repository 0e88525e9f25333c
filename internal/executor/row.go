package executor

import (
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/roach88/peerdb/internal/cursor"
	"github.com/roach88/peerdb/internal/schema"
)

// Row is a generic record: column labels and values in select order. It is
// the record type of executors built without a table-specific mapper, such
// as the ones behind the CLI.
type Row struct {
	Columns []string
	Values  []any
}

// MapRow is a cursor.Mapper producing a Row. []byte values are copied to
// strings so the Row stays valid after the cursor advances.
func MapRow(rows *sql.Rows) (Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return Row{}, fmt.Errorf("read columns: %w", err)
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return Row{}, fmt.Errorf("scan row: %w", err)
	}
	for i, v := range vals {
		if b, ok := v.([]byte); ok {
			vals[i] = string(b)
		}
	}
	return Row{Columns: cols, Values: vals}, nil
}

// MapRowFor is MapRow for the columns of tm: values of BOOLEANINT and
// BOOLEANCHAR columns are read back as bool, or nil for NULL. Labels that
// are not columns of tm are left as scanned. A nil tm yields MapRow.
func MapRowFor(tm *schema.TableMap) cursor.Mapper[Row] {
	if tm == nil {
		return MapRow
	}
	return func(rows *sql.Rows) (Row, error) {
		r, err := MapRow(rows)
		if err != nil {
			return r, err
		}
		for i, label := range r.Columns {
			cm, ok := tm.ColumnByName(label)
			if !ok || !(cm.IsBooleanInt() || cm.IsBooleanChar()) {
				continue
			}
			b, err := schema.BoolFromStorage(cm, r.Values[i])
			if err != nil {
				return r, err
			}
			if b == nil {
				r.Values[i] = nil
			} else {
				r.Values[i] = *b
			}
		}
		return r, nil
	}
}

// Get returns the value of the named column.
func (r Row) Get(name string) (any, bool) {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i], true
		}
	}
	return nil, false
}

// MarshalJSON renders the row as an object with keys in select order.
func (r Row) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, c := range r.Columns {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c, err)
		}
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}'), nil
}
