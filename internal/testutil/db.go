// Package testutil provides fixtures shared by package tests: a file-backed
// SQLite "bookstore" database registered the way config.Bootstrap would, and
// deterministic key generators.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/peerdb/internal/column"
	"github.com/roach88/peerdb/internal/dialect"
	"github.com/roach88/peerdb/internal/idgen"
	"github.com/roach88/peerdb/internal/registry"
	"github.com/roach88/peerdb/internal/schema"
	"github.com/roach88/peerdb/internal/store"
)

// DBName is the name the bookstore database is registered under.
const DBName = "main"

// BookstoreDDL creates the fixture tables.
const BookstoreDDL = `
CREATE TABLE author (
    author_id INTEGER PRIMARY KEY AUTOINCREMENT,
    name      TEXT NOT NULL
);
CREATE TABLE book (
    book_id   INTEGER PRIMARY KEY,
    title     TEXT NOT NULL,
    price     REAL,
    in_print  INTEGER,
    featured  CHAR(1),
    author_id INTEGER REFERENCES author(author_id)
);
CREATE TABLE tag (
    tag_id TEXT PRIMARY KEY,
    label  TEXT NOT NULL UNIQUE
);
CREATE TABLE note (
    note_id INTEGER PRIMARY KEY,
    body    TEXT
);
CREATE TABLE archive (
    book_id INTEGER,
    title   TEXT
);
`

// Column identities of the fixture tables.
var (
	AuthorID   = column.New("", "author", "author_id")
	AuthorName = column.New("", "author", "name")

	BookID       = column.New("", "book", "book_id")
	BookTitle    = column.New("", "book", "title")
	BookPrice    = column.New("", "book", "price")
	BookInPrint  = column.New("", "book", "in_print")
	BookFeatured = column.New("", "book", "featured")
	BookAuthorID = column.New("", "book", "author_id")

	TagID    = column.New("", "tag", "tag_id")
	TagLabel = column.New("", "tag", "label")

	NoteID   = column.New("", "note", "note_id")
	NoteBody = column.New("", "note", "body")

	ArchiveBookID = column.New("", "archive", "book_id")
	ArchiveTitle  = column.New("", "archive", "title")
)

// Bookstore opens a fresh SQLite bookstore in a temp directory and registers
// it as DBName using the named dialect adapter ("sqlite" when empty). The
// registry is closed by t.Cleanup.
func Bookstore(t testing.TB, adapterName string) *registry.Registry {
	t.Helper()
	ctx := context.Background()
	if adapterName == "" {
		adapterName = "sqlite"
	}

	a, err := dialect.Lookup(adapterName)
	if err != nil {
		t.Fatalf("Lookup(%q) failed: %v", adapterName, err)
	}

	db, err := store.Open(ctx, store.Options{
		Driver:       "sqlite3",
		DSN:          store.SQLiteDSN(filepath.Join(t.TempDir(), "bookstore.db")),
		MaxOpenConns: 8,
	})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := store.EnsureIDTable(ctx, db, "sqlite3", idgen.DefaultTable); err != nil {
		t.Fatalf("EnsureIDTable() failed: %v", err)
	}
	if _, err := db.ExecContext(ctx, BookstoreDDL); err != nil {
		t.Fatalf("create tables failed: %v", err)
	}

	reg := registry.New(DBName)
	t.Cleanup(func() { reg.Close() })

	d := reg.Database(DBName)
	d.Adapter = a
	d.DB = db
	addBookstoreTables(d.Map)

	for _, m := range []schema.IDMethod{schema.AutoIncrement, schema.IDBroker, schema.UUID, schema.ReturnedKeys} {
		g, err := idgen.New(m, a, db, idgen.DefaultTable)
		if err != nil {
			// not available on this adapter
			continue
		}
		d.SetIDGenerator(g)
	}
	return reg
}

func addBookstoreTables(m *schema.DatabaseMap) {
	author := m.AddTable(&schema.TableMap{Name: "author", IDMethod: schema.Native})
	author.AddColumn(&schema.ColumnMap{Name: "author_id", StorageType: "INTEGER", SQLType: column.TypeInteger, PrimaryKey: true})
	author.AddColumn(&schema.ColumnMap{Name: "name", StorageType: "VARCHAR", SQLType: column.TypeVarchar})

	book := m.AddTable(&schema.TableMap{Name: "book", IDMethod: schema.IDBroker})
	book.AddColumn(&schema.ColumnMap{Name: "book_id", StorageType: "INTEGER", SQLType: column.TypeInteger, PrimaryKey: true})
	book.AddColumn(&schema.ColumnMap{Name: "title", StorageType: "VARCHAR", SQLType: column.TypeVarchar})
	book.AddColumn(&schema.ColumnMap{Name: "price", StorageType: "DOUBLE", SQLType: column.TypeDouble})
	book.AddColumn(&schema.ColumnMap{Name: "in_print", StorageType: schema.StorageBooleanInt, SQLType: column.TypeInteger})
	book.AddColumn(&schema.ColumnMap{Name: "featured", StorageType: schema.StorageBooleanChar, SQLType: column.TypeChar, Size: 1})
	book.AddColumn(&schema.ColumnMap{Name: "author_id", StorageType: "INTEGER", SQLType: column.TypeInteger})

	tag := m.AddTable(&schema.TableMap{Name: "tag", IDMethod: schema.UUID})
	tag.AddColumn(&schema.ColumnMap{Name: "tag_id", StorageType: "VARCHAR", SQLType: column.TypeVarchar, PrimaryKey: true})
	tag.AddColumn(&schema.ColumnMap{Name: "label", StorageType: "VARCHAR", SQLType: column.TypeVarchar})

	note := m.AddTable(&schema.TableMap{Name: "note", IDMethod: schema.ReturnedKeys})
	note.AddColumn(&schema.ColumnMap{Name: "note_id", StorageType: "INTEGER", SQLType: column.TypeInteger, PrimaryKey: true})
	note.AddColumn(&schema.ColumnMap{Name: "body", StorageType: "VARCHAR", SQLType: column.TypeVarchar})

	archive := m.AddTable(&schema.TableMap{Name: "archive"})
	archive.AddColumn(&schema.ColumnMap{Name: "book_id", StorageType: "INTEGER", SQLType: column.TypeInteger})
	archive.AddColumn(&schema.ColumnMap{Name: "title", StorageType: "VARCHAR", SQLType: column.TypeVarchar})
}
