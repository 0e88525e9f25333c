package cursor

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestDB(t *testing.T, n int) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "cursor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("CREATE TABLE item (n INTEGER)")
	require.NoError(t, err)
	for i := range n {
		_, err = db.Exec("INSERT INTO item (n) VALUES (?)", i)
		require.NoError(t, err)
	}
	return db
}

func scanInt(rows *sql.Rows) (int, error) {
	var n int
	err := rows.Scan(&n)
	return n, err
}

func query(t *testing.T, db *sql.DB) *sql.Rows {
	t.Helper()
	rows, err := db.Query("SELECT n FROM item ORDER BY n")
	require.NoError(t, err)
	return rows
}

func TestWindow_YieldsExpectedSubRange(t *testing.T) {
	const n = 7
	db := createTestDB(t, n)

	for _, offset := range []int{0, 1, 3, 7, 9} {
		for _, limit := range []int{0, 1, 2, 5, 10} {
			t.Run(fmt.Sprintf("o=%d,l=%d", offset, limit), func(t *testing.T) {
				got, err := New(query(t, db), scanInt).Window(offset, limit).Collect()
				require.NoError(t, err)

				want := max(0, min(limit, n-offset))
				require.Len(t, got, want)
				for i, v := range got {
					assert.Equal(t, offset+i, v)
				}
			})
		}
	}
}

func TestNoWindow_YieldsAll(t *testing.T) {
	db := createTestDB(t, 4)
	got, err := New(query(t, db), scanInt).Collect()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, got)
}

func TestSkippedRowsAreNotMapped(t *testing.T) {
	db := createTestDB(t, 5)
	mapped := 0
	c := New(query(t, db), func(rows *sql.Rows) (int, error) {
		mapped++
		return scanInt(rows)
	}).Window(3, -1)

	got, err := c.Collect()
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, got)
	assert.Equal(t, 2, mapped)
}

func TestClose_RunsClosersOnceInReverseOrder(t *testing.T) {
	db := createTestDB(t, 3)
	var order []string
	c := New(query(t, db), scanInt).
		OnClose(func() error { order = append(order, "first"); return nil }).
		OnClose(func() error { order = append(order, "second"); return nil })

	require.True(t, c.Next())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Equal(t, []string{"second", "first"}, order)
	assert.False(t, c.Next())
}

func TestLimitReached_ClosesImmediately(t *testing.T) {
	db := createTestDB(t, 5)
	closed := false
	c := New(query(t, db), scanInt).Window(0, 2).OnClose(func() error { closed = true; return nil })

	require.True(t, c.Next())
	assert.False(t, closed)
	require.True(t, c.Next())
	assert.True(t, closed, "closed once the window is full")
	assert.Equal(t, 1, c.Record())
	assert.False(t, c.Next())
}

func TestAll_BreakCloses(t *testing.T) {
	db := createTestDB(t, 5)
	closed := false
	c := New(query(t, db), scanInt).OnClose(func() error { closed = true; return nil })

	var got []int
	for v, err := range c.All() {
		require.NoError(t, err)
		got = append(got, v)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []int{0, 1}, got)
	assert.True(t, closed)
}

func TestMapperError_StopsAndCloses(t *testing.T) {
	db := createTestDB(t, 3)
	boom := errors.New("boom")
	closed := false
	c := New(query(t, db), func(rows *sql.Rows) (int, error) {
		n, _ := scanInt(rows)
		if n == 1 {
			return 0, boom
		}
		return n, nil
	}).OnClose(func() error { closed = true; return nil })

	_, err := c.Collect()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, closed)
}

func TestAll_YieldsErrorLast(t *testing.T) {
	db := createTestDB(t, 3)
	boom := errors.New("boom")
	c := New(query(t, db), func(rows *sql.Rows) (int, error) {
		n, _ := scanInt(rows)
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})

	var got []int
	var gotErr error
	for v, err := range c.All() {
		if err != nil {
			gotErr = err
			continue
		}
		got = append(got, v)
	}
	assert.Equal(t, []int{0, 1}, got)
	assert.ErrorIs(t, gotErr, boom)
}

func TestCloserError_Reported(t *testing.T) {
	db := createTestDB(t, 1)
	boom := errors.New("release failed")
	c := New(query(t, db), scanInt).OnClose(func() error { return boom })

	_, err := c.Collect()
	assert.ErrorIs(t, err, boom)
}
