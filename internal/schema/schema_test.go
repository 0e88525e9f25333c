package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/peerdb/internal/column"
)

func bookTable() *TableMap {
	t := NewTableMap("book")
	t.IDMethod = IDBroker
	t.AddColumn(&ColumnMap{Name: "book_id", StorageType: "INTEGER", SQLType: column.TypeInteger, PrimaryKey: true})
	t.AddColumn(&ColumnMap{Name: "title", StorageType: "VARCHAR", SQLType: column.TypeVarchar})
	t.AddColumn(&ColumnMap{Name: "in_print", StorageType: StorageBooleanInt, SQLType: column.TypeInteger})
	t.AddColumn(&ColumnMap{Name: "hardcover", StorageType: StorageBooleanChar, SQLType: column.TypeChar})
	return t
}

func TestTableMap_PrimaryKey(t *testing.T) {
	tbl := bookTable()
	pk := tbl.PrimaryKey()
	require.NotNil(t, pk)
	assert.Equal(t, "book_id", pk.Name)
	assert.Equal(t, "book.book_id", pk.Column().SQLExpression())

	tbl.AddColumn(&ColumnMap{Name: "edition", PrimaryKey: true})
	assert.Nil(t, tbl.PrimaryKey(), "composite key has no single pk")
	assert.Len(t, tbl.PrimaryKeys(), 2)
}

func TestDatabaseMap_ColumnFor(t *testing.T) {
	db := NewDatabaseMap("bookstore")
	db.AddTable(bookTable())

	cm := db.ColumnFor(column.Parse("BOOK.IN_PRINT"))
	require.NotNil(t, cm)
	assert.True(t, cm.IsBooleanInt())

	assert.Nil(t, db.ColumnFor(column.Parse("author.name")))
	assert.Nil(t, db.ColumnFor(column.Parse("count(*)")))
}

func TestParseIDMethod(t *testing.T) {
	m, err := ParseIDMethod("IDBroker")
	require.NoError(t, err)
	assert.Equal(t, IDBroker, m)

	m, err = ParseIDMethod("")
	require.NoError(t, err)
	assert.Equal(t, NoIDMethod, m)

	_, err = ParseIDMethod("hilo")
	assert.Error(t, err)
}

func TestBoolToStorage(t *testing.T) {
	tbl := bookTable()
	intCol, _ := tbl.ColumnByName("in_print")
	charCol, _ := tbl.ColumnByName("hardcover")
	plain, _ := tbl.ColumnByName("title")
	yes := true

	tests := []struct {
		name string
		col  *ColumnMap
		in   any
		want any
	}{
		{"int true", intCol, true, 1},
		{"int false", intCol, false, 0},
		{"int nil", intCol, nil, nil},
		{"int *bool", intCol, &yes, 1},
		{"char true", charCol, true, "Y"},
		{"char false", charCol, false, "N"},
		{"char nil", charCol, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, ok := BoolToStorage(tt.col, tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, _, ok := BoolToStorage(plain, true)
	assert.False(t, ok, "non boolean storage is left alone")
	_, _, ok = BoolToStorage(intCol, "yes")
	assert.False(t, ok, "non boolean values are left alone")
}

func TestBoolFromStorage(t *testing.T) {
	tbl := bookTable()
	intCol, _ := tbl.ColumnByName("in_print")
	charCol, _ := tbl.ColumnByName("hardcover")

	b, err := BoolFromStorage(intCol, int64(1))
	require.NoError(t, err)
	assert.True(t, *b)

	b, err = BoolFromStorage(charCol, []byte("N"))
	require.NoError(t, err)
	assert.False(t, *b)

	b, err = BoolFromStorage(charCol, nil)
	require.NoError(t, err)
	assert.Nil(t, b)

	_, err = BoolFromStorage(charCol, "maybe")
	assert.Error(t, err)
}
