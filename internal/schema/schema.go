// Package schema holds the table and column metadata the executor consumes:
// storage types (which drive boolean coercion), primary keys and the id
// generation method of each table.
package schema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/roach88/peerdb/internal/column"
)

// IDMethod names the primary-key generation strategy of a table.
type IDMethod string

const (
	// NoIDMethod means keys are always supplied by the caller.
	NoIDMethod IDMethod = "none"
	// Native resolves to the dialect adapter's preferred method.
	Native IDMethod = "native"
	// IDBroker reserves blocks of keys in an id table before insert.
	IDBroker IDMethod = "idbroker"
	// AutoIncrement reads the engine generated key after insert.
	AutoIncrement IDMethod = "autoincrement"
	// Sequence fetches the next value of a sequence object before insert.
	Sequence IDMethod = "sequence"
	// ReturnedKeys reads the generated key with INSERT ... RETURNING.
	ReturnedKeys IDMethod = "returnedkeys"
	// UUID generates a UUIDv7 string key before insert.
	UUID IDMethod = "uuid"
)

// ParseIDMethod converts a configuration string to an IDMethod.
func ParseIDMethod(s string) (IDMethod, error) {
	switch m := IDMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return NoIDMethod, nil
	case NoIDMethod, Native, IDBroker, AutoIncrement, Sequence, ReturnedKeys, UUID:
		return m, nil
	default:
		return "", fmt.Errorf("unknown id method %q", s)
	}
}

// Storage types with boolean semantics.
const (
	StorageBooleanInt  = "BOOLEANINT"
	StorageBooleanChar = "BOOLEANCHAR"
)

// ColumnMap describes one column.
type ColumnMap struct {
	Name        string
	StorageType string // e.g. "INTEGER", "VARCHAR", "BOOLEANINT"
	SQLType     column.SQLType
	PrimaryKey  bool
	Size        int

	table *TableMap
}

// Table returns the owning table.
func (c *ColumnMap) Table() *TableMap { return c.table }

// Column returns the column identity, qualified with the table name.
func (c *ColumnMap) Column() column.Column {
	return column.New(c.table.Schema, c.table.Name, c.Name)
}

// IsBooleanInt reports whether booleans are stored as 1/0.
func (c *ColumnMap) IsBooleanInt() bool {
	return strings.EqualFold(c.StorageType, StorageBooleanInt)
}

// IsBooleanChar reports whether booleans are stored as 'Y'/'N'.
func (c *ColumnMap) IsBooleanChar() bool {
	return strings.EqualFold(c.StorageType, StorageBooleanChar)
}

// TableMap describes one table. Columns keep declaration order.
type TableMap struct {
	Name     string
	Schema   string
	IDMethod IDMethod
	// SequenceName is the id method parameter: the sequence for Sequence,
	// the id table key for IDBroker. Defaults to the table name.
	SequenceName string

	columns []*ColumnMap
	db      *DatabaseMap
}

// NewTableMap creates a standalone table map.
func NewTableMap(name string) *TableMap {
	return &TableMap{Name: name, IDMethod: NoIDMethod}
}

// Database returns the owning database map, or nil.
func (t *TableMap) Database() *DatabaseMap { return t.db }

// FullName returns "schema.table", or the bare name without schema.
func (t *TableMap) FullName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// AddColumn appends a column definition and returns it.
func (t *TableMap) AddColumn(c *ColumnMap) *ColumnMap {
	c.table = t
	t.columns = append(t.columns, c)
	return c
}

// Columns returns the columns in declaration order.
func (t *TableMap) Columns() []*ColumnMap {
	out := make([]*ColumnMap, len(t.columns))
	copy(out, t.columns)
	return out
}

// ColumnByName finds a column case-insensitively.
func (t *TableMap) ColumnByName(name string) (*ColumnMap, bool) {
	for _, c := range t.columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return nil, false
}

// PrimaryKeys returns all primary-key columns.
func (t *TableMap) PrimaryKeys() []*ColumnMap {
	var pks []*ColumnMap
	for _, c := range t.columns {
		if c.PrimaryKey {
			pks = append(pks, c)
		}
	}
	return pks
}

// PrimaryKey returns the single primary-key column, or nil when the table is
// keyless or has a composite key.
func (t *TableMap) PrimaryKey() *ColumnMap {
	pks := t.PrimaryKeys()
	if len(pks) != 1 {
		return nil
	}
	return pks[0]
}

// IDParameter returns the sequence or id table key for this table.
func (t *TableMap) IDParameter() string {
	if t.SequenceName != "" {
		return t.SequenceName
	}
	return t.Name
}

// DatabaseMap is the table metadata of one database.
type DatabaseMap struct {
	Name string

	mu     sync.RWMutex
	tables map[string]*TableMap
	order  []string
}

// NewDatabaseMap creates an empty map.
func NewDatabaseMap(name string) *DatabaseMap {
	return &DatabaseMap{Name: name, tables: make(map[string]*TableMap)}
}

// AddTable registers t, replacing any table of the same (case-insensitive) name.
func (d *DatabaseMap) AddTable(t *TableMap) *TableMap {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := strings.ToLower(t.Name)
	if _, ok := d.tables[key]; !ok {
		d.order = append(d.order, key)
	}
	t.db = d
	d.tables[key] = t
	return t
}

// Table looks a table up case-insensitively.
func (d *DatabaseMap) Table(name string) (*TableMap, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tables[strings.ToLower(name)]
	return t, ok
}

// Tables returns all tables in registration order.
func (d *DatabaseMap) Tables() []*TableMap {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*TableMap, 0, len(d.order))
	for _, k := range d.order {
		out = append(out, d.tables[k])
	}
	return out
}

// ColumnFor resolves the metadata of a column identity, or nil when the table
// or column is unknown.
func (d *DatabaseMap) ColumnFor(c column.Column) *ColumnMap {
	if c.TableName() == "" {
		return nil
	}
	t, ok := d.Table(c.TableName())
	if !ok {
		return nil
	}
	cm, ok := t.ColumnByName(c.ColumnName())
	if !ok {
		return nil
	}
	return cm
}
