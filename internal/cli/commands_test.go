package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopConfig = `
databases:
  main:
    adapter: sqlite
    driver: sqlite3
    dsn: file:%s?_busy_timeout=5000&_journal_mode=WAL
    tables:
      - name: book
        id_method: idbroker
        columns:
          - {name: book_id, type: INTEGER, primary_key: true}
          - {name: title, type: VARCHAR}
          - {name: price, type: DOUBLE}
          - {name: in_print, type: INTEGER, storage: BOOLEANINT}
`

const bookDDL = "CREATE TABLE book (book_id INTEGER PRIMARY KEY, title TEXT NOT NULL, price REAL, in_print INTEGER)"

// shop writes a configuration for a fresh SQLite database with an empty
// book table and returns its path.
func shop(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "peerdb.yaml")
	cfg := fmt.Sprintf(shopConfig, filepath.Join(dir, "shop.db"))
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	_, err := run(t, path, "exec", bookDDL)
	require.NoError(t, err)
	return path
}

// run executes the CLI with args against the configuration at path and
// returns its standard output.
func run(t *testing.T, path string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", path}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func insertBooks(t *testing.T, path string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		inPrint := "true"
		if i%2 == 0 {
			inPrint = "false"
		}
		_, err := run(t, path, "insert", "book",
			"--set", fmt.Sprintf("title=book %02d", i),
			"--set", "in_print="+inPrint)
		require.NoError(t, err)
	}
}

func TestCheck(t *testing.T) {
	path := shop(t)

	out, err := run(t, path, "check", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string
		Data   CheckResult
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "default", resp.Data.TransactionManager)
	require.Len(t, resp.Data.Databases, 1)
	assert.Equal(t, DatabaseStatus{Name: "main", Adapter: "sqlite", Driver: "sqlite3", Tables: 1, Default: true}, resp.Data.Databases[0])
}

func TestCheck_MissingConfig(t *testing.T) {
	out, err := run(t, filepath.Join(t.TempDir(), "absent.yaml"), "check")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
}

func TestInsertAndSelect(t *testing.T) {
	path := shop(t)

	out, err := run(t, path, "insert", "book", "--set", "title=Dune", "--set", "price=9.5", "--set", "in_print=true")
	require.NoError(t, err)
	assert.Equal(t, "inserted into book, key 1\n", out)

	insertBooks(t, path, 4)

	out, err = run(t, path, "select", "book", "--where", "in_print=true", "--order=-book_id",
		"--columns", "book_id,title", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data struct {
			Columns []string
			Rows    []map[string]any
		}
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"book_id", "title"}, resp.Data.Columns)
	require.Len(t, resp.Data.Rows, 3)
	assert.Equal(t, "book 03", resp.Data.Rows[0]["title"])
	assert.Equal(t, "book 01", resp.Data.Rows[1]["title"])
	assert.Equal(t, "Dune", resp.Data.Rows[2]["title"])
}

func TestSelect_BooleanStorageReadAsBool(t *testing.T) {
	path := shop(t)
	insertBooks(t, path, 2)

	out, err := run(t, path, "select", "book", "--columns", "title,in_print", "--order", "book_id", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data struct {
			Rows []map[string]any
		}
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Rows, 2)
	assert.Equal(t, true, resp.Data.Rows[0]["in_print"])
	assert.Equal(t, false, resp.Data.Rows[1]["in_print"])
}

func TestSelect_SingleTooManyRows(t *testing.T) {
	path := shop(t)
	insertBooks(t, path, 2)

	out, err := run(t, path, "select", "book", "--single")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeTooManyRows+"]")
}

func TestSelect_UnknownTableOrColumn(t *testing.T) {
	path := shop(t)

	_, err := run(t, path, "select", "magazine")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = run(t, path, "select", "book", "--where", "isbn=1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = run(t, path, "insert", "book", "--set", "price=cheap")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInsert_ConstraintViolation(t *testing.T) {
	path := shop(t)

	out, err := run(t, path, "insert", "book", "--set", "title=NULL")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeConstraint+"]")
}

func TestExec_PositionalAndNamed(t *testing.T) {
	path := shop(t)
	insertBooks(t, path, 3)

	out, err := run(t, path, "exec", "UPDATE book SET price = ? WHERE title <= ?", "4.5", "book 02")
	require.NoError(t, err)
	assert.Equal(t, "2 rows affected\n", out)

	out, err = run(t, path, "exec", "DELETE FROM book WHERE title = :title", "--named", "title=book 03")
	require.NoError(t, err)
	assert.Equal(t, "1 rows affected\n", out)

	_, err = run(t, path, "exec", "DELETE FROM book WHERE title = :title", "--named", "name=x")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPage_AllPages(t *testing.T) {
	path := shop(t)
	insertBooks(t, path, 25)

	out, err := run(t, path, "page", "book", "--order", "book_id", "--page-size", "10",
		"--memory-pages", "2", "--count", "0", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data []struct {
			Page     int
			Rows     []map[string]any
			Records  string
			Pages    string
			LastPage bool `json:"last_page"`
		}
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 3)

	total := 0
	for i, p := range resp.Data {
		assert.Equal(t, i+1, p.Page)
		total += len(p.Rows)
	}
	assert.Equal(t, 25, total)
	last := resp.Data[2]
	assert.Equal(t, "21 - 25 of 25", last.Records)
	assert.Equal(t, "3 of 3", last.Pages)
	assert.True(t, last.LastPage)
	assert.Equal(t, "book 21", last.Rows[0]["title"])
}

func TestPage_TextSinglePage(t *testing.T) {
	path := shop(t)
	insertBooks(t, path, 12)

	out, err := run(t, path, "page", "book", "--order", "book_id", "--page-size", "5", "--page", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "page 3 of 3, records 11 - 12 of 12")
	assert.Contains(t, out, "book 12")
	assert.Contains(t, out, "(2 rows)")
}
