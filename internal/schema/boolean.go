package schema

import (
	"fmt"
	"strings"

	"github.com/roach88/peerdb/internal/column"
)

// BoolToStorage converts v to the storage representation of c. It returns
// (converted, type, true) when c has boolean storage and v is a bool, *bool or
// nil; otherwise ok is false and v should be used unchanged.
func BoolToStorage(c *ColumnMap, v any) (out any, t column.SQLType, ok bool) {
	if c == nil || !(c.IsBooleanInt() || c.IsBooleanChar()) {
		return nil, 0, false
	}
	var b *bool
	switch val := v.(type) {
	case nil:
	case bool:
		b = &val
	case *bool:
		b = val
	default:
		return nil, 0, false
	}

	if c.IsBooleanInt() {
		if b == nil {
			return nil, column.TypeInteger, true
		}
		if *b {
			return 1, column.TypeInteger, true
		}
		return 0, column.TypeInteger, true
	}

	if b == nil {
		return nil, column.TypeChar, true
	}
	if *b {
		return "Y", column.TypeChar, true
	}
	return "N", column.TypeChar, true
}

// BoolFromStorage converts a value read from a boolean storage column back to
// *bool. nil means SQL NULL.
func BoolFromStorage(c *ColumnMap, v any) (*bool, error) {
	if v == nil {
		return nil, nil
	}
	name := "?"
	if c != nil {
		name = c.Name
	}
	var b bool
	switch val := v.(type) {
	case bool:
		b = val
	case int64:
		b = val != 0
	case int:
		b = val != 0
	case int32:
		b = val != 0
	case []byte:
		return BoolFromStorage(c, string(val))
	case string:
		switch strings.ToUpper(strings.TrimSpace(val)) {
		case "Y", "1", "TRUE":
			b = true
		case "N", "0", "FALSE":
			b = false
		default:
			return nil, fmt.Errorf("column %s: cannot read %q as boolean", name, val)
		}
	default:
		return nil, fmt.Errorf("column %s: cannot read %T as boolean", name, v)
	}
	return &b, nil
}
