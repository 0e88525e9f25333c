package largeselect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/peerdb/internal/criteria"
	"github.com/roach88/peerdb/internal/executor"
	"github.com/roach88/peerdb/internal/registry"
	"github.com/roach88/peerdb/internal/sqlerr"
	"github.com/roach88/peerdb/internal/testutil"
	"github.com/roach88/peerdb/internal/txn"
)

// seedBooks inserts books with ids from..to inclusive.
func seedBooks(t *testing.T, reg *registry.Registry, from, to int) {
	t.Helper()
	d, err := reg.Lookup(testutil.DBName)
	require.NoError(t, err)

	tx, err := d.DB.Begin()
	require.NoError(t, err)
	for i := from; i <= to; i++ {
		_, err := tx.Exec("INSERT INTO book (book_id, title) VALUES (?, ?)", i, fmt.Sprintf("book %03d", i))
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())
}

func newRows(t *testing.T, n int, mapper func(*sql.Rows) (executor.Row, error)) (*executor.Executor[executor.Row], *registry.Registry) {
	t.Helper()
	reg := testutil.Bookstore(t, "")
	seedBooks(t, reg, 1, n)
	if mapper == nil {
		mapper = executor.MapRow
	}
	return executor.New(reg, txn.NewDefaultManager(reg), "", "book", mapper), reg
}

func byID() *criteria.Criteria {
	return criteria.New().AddAscendingOrderBy(testutil.BookID)
}

func open(t *testing.T, exec *executor.Executor[executor.Row], pageSize, pages int) *LargeSelect[executor.Row] {
	t.Helper()
	ls, err := New(context.Background(), exec, byID(), pageSize, pages,
		WithPollInterval(10*time.Millisecond), WithStopTimeout(2*time.Second))
	require.NoError(t, err)
	t.Cleanup(ls.Close)
	return ls
}

func ids(t *testing.T, rows []executor.Row) []int64 {
	t.Helper()
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		v, ok := r.Get("book_id")
		require.True(t, ok)
		out = append(out, v.(int64))
	}
	return out
}

func span(from, to int64) []int64 {
	out := make([]int64, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	exec, _ := newRows(t, 0, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		c        *criteria.Criteria
		pageSize int
		pages    int
	}{
		{"nil criteria", nil, 10, 2},
		{"offset set", byID().SetOffset(5), 10, 2},
		{"limit set", byID().SetLimit(5), 10, 2},
		{"zero page size", byID(), 0, 2},
		{"zero memory limit", byID(), 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ls, err := New(ctx, exec, tt.c, tt.pageSize, tt.pages)
			require.Error(t, err)
			assert.Nil(t, ls)
			assert.True(t, sqlerr.IsContract(err), "got %v", err)
		})
	}
}

func TestGetPage_FirstPageWaitsForProducer(t *testing.T) {
	slow := func(rows *sql.Rows) (executor.Row, error) {
		time.Sleep(5 * time.Millisecond)
		return executor.MapRow(rows)
	}
	exec, _ := newRows(t, 30, slow)
	ls := open(t, exec, 10, 2)

	page, err := ls.GetPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, span(1, 10), ids(t, page))
	assert.Equal(t, 1, ls.CurrentPageNumber())
}

func TestGetPage_SmallResult(t *testing.T) {
	exec, _ := newRows(t, 7, nil)
	ls := open(t, exec, 5, 2)
	ctx := context.Background()

	page, err := ls.GetPage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, span(1, 5), ids(t, page))

	page, err = ls.GetPage(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, span(6, 7), ids(t, page))

	assert.True(t, ls.TotalsFinalized())
	assert.Equal(t, 7, ls.TotalRecords())
	assert.Equal(t, 2, ls.TotalPages())
	assert.True(t, ls.PerhapsLastPage())
	assert.Equal(t, "6 - 7 of 7", ls.RecordProgress())
	assert.Equal(t, "2 of 2", ls.PageProgress())
}

func TestGetPage_BeyondDataIsEmpty(t *testing.T) {
	exec, _ := newRows(t, 7, nil)
	ls := open(t, exec, 5, 2)
	ctx := context.Background()

	_, err := ls.GetPage(ctx, 2)
	require.NoError(t, err)

	page, err := ls.GetPage(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, page)

	page, err = ls.GetPage(ctx, 50)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Equal(t, 0, ls.Restarts())
	assert.Equal(t, 2, ls.CurrentPageNumber())
}

func TestGetPage_BeyondDataBeforeTotalsKnown(t *testing.T) {
	exec, _ := newRows(t, 30, nil)
	ls := open(t, exec, 5, 2)

	page, err := ls.GetPage(context.Background(), 40)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.False(t, ls.TotalsFinalized())
	assert.Equal(t, 1, ls.Restarts())
}

func TestGetPage_EmptyResult(t *testing.T) {
	exec, _ := newRows(t, 0, nil)
	ls := open(t, exec, 5, 2)

	page, err := ls.GetPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.True(t, ls.TotalsFinalized())
	assert.Equal(t, 0, ls.TotalRecords())
	assert.Equal(t, 0, ls.TotalPages())
}

func TestNextResults_ForwardPagingRestartBound(t *testing.T) {
	const n, pageSize, pages = 53, 5, 3
	exec, _ := newRows(t, n, nil)
	ls := open(t, exec, pageSize, pages)
	ctx := context.Background()

	var all []int64
	for {
		page, err := ls.NextResults(ctx)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		all = append(all, ids(t, page)...)
	}

	assert.Equal(t, span(1, n), all)
	bound := (n + pageSize*pages - 1) / (pageSize * pages)
	assert.LessOrEqual(t, ls.Restarts(), bound)
	assert.True(t, ls.TotalsFinalized())
	assert.Equal(t, n, ls.TotalRecords())
	assert.Equal(t, 11, ls.TotalPages())
	assert.Equal(t, 11, ls.CurrentPageNumber())
	assert.Equal(t, "51 - 53 of 53", ls.RecordProgress())
	assert.Equal(t, "11 of 11", ls.PageProgress())
	assert.True(t, ls.PerhapsLastPage())
}

func TestGetPage_BackwardReseekTwoPagesEarlier(t *testing.T) {
	exec, _ := newRows(t, 100, nil)
	ls := open(t, exec, 5, 4)
	ctx := context.Background()

	page, err := ls.GetPage(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, span(46, 50), ids(t, page))
	assert.Equal(t, 1, ls.Restarts())

	page, err = ls.GetPage(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, span(41, 45), ids(t, page))
	assert.Equal(t, 2, ls.Restarts())

	// Window now starts two pages before page 9.
	page, err = ls.GetPage(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, span(31, 35), ids(t, page))
	assert.Equal(t, 2, ls.Restarts())
}

func TestGetPage_BackwardReseekSmallWindow(t *testing.T) {
	exec, _ := newRows(t, 100, nil)
	ls := open(t, exec, 5, 2)
	ctx := context.Background()

	_, err := ls.GetPage(ctx, 10)
	require.NoError(t, err)
	_, err = ls.GetPage(ctx, 9)
	require.NoError(t, err)
	page, err := ls.GetPage(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, span(36, 40), ids(t, page))
	assert.Equal(t, 3, ls.Restarts())
}

func TestPreviousResults(t *testing.T) {
	exec, _ := newRows(t, 20, nil)
	ls := open(t, exec, 5, 2)
	ctx := context.Background()

	page, err := ls.PreviousResults(ctx)
	require.NoError(t, err)
	assert.Empty(t, page)

	_, err = ls.GetPage(ctx, 3)
	require.NoError(t, err)
	page, err = ls.PreviousResults(ctx)
	require.NoError(t, err)
	assert.Equal(t, span(6, 10), ids(t, page))
	assert.Equal(t, 2, ls.CurrentPageNumber())

	page, err = ls.CurrentPageResults(ctx)
	require.NoError(t, err)
	assert.Equal(t, span(6, 10), ids(t, page))
}

func TestProgress_Provisional(t *testing.T) {
	exec, _ := newRows(t, 40, nil)
	ls := open(t, exec, 5, 2)

	_, err := ls.GetPage(context.Background(), 1)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return ls.TotalRecords() == 11 }, time.Second, 5*time.Millisecond)
	assert.False(t, ls.TotalsFinalized())
	assert.False(t, ls.PerhapsLastPage())
	assert.Equal(t, "1 - 5 of more than 11", ls.RecordProgress())
	assert.Equal(t, "1 of more than 3", ls.PageProgress())
}

func TestInvalidate(t *testing.T) {
	exec, reg := newRows(t, 12, nil)
	ls := open(t, exec, 5, 2)
	ctx := context.Background()

	_, err := ls.GetPage(ctx, 3)
	require.NoError(t, err)
	require.True(t, ls.TotalsFinalized())

	ls.Invalidate()
	assert.Equal(t, 0, ls.CurrentPageNumber())
	assert.Equal(t, 0, ls.TotalRecords())
	assert.False(t, ls.TotalsFinalized())

	seedBooks(t, reg, 13, 18)

	page, err := ls.GetPage(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, span(11, 15), ids(t, page))
	page, err = ls.GetPage(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, span(16, 18), ids(t, page))
	assert.True(t, ls.TotalsFinalized())
	assert.Equal(t, 18, ls.TotalRecords())
}

func TestGetPage_ProducerError(t *testing.T) {
	boom := errors.New("boom")
	failing := func(rows *sql.Rows) (executor.Row, error) {
		r, err := executor.MapRow(rows)
		if err != nil {
			return r, err
		}
		if v, _ := r.Get("book_id"); v == int64(3) {
			return executor.Row{}, boom
		}
		return r, nil
	}
	exec, _ := newRows(t, 10, failing)
	ls := open(t, exec, 5, 2)

	_, err := ls.GetPage(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestGetPage_Contract(t *testing.T) {
	exec, _ := newRows(t, 3, nil)
	ls := open(t, exec, 5, 2)
	ctx := context.Background()

	_, err := ls.GetPage(ctx, 0)
	assert.True(t, sqlerr.IsContract(err), "got %v", err)

	ls.Close()
	ls.Close()
	_, err = ls.GetPage(ctx, 1)
	assert.True(t, sqlerr.IsContract(err), "got %v", err)
}

func TestGetPage_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	stuck := func(rows *sql.Rows) (executor.Row, error) {
		<-block
		return executor.MapRow(rows)
	}
	exec, _ := newRows(t, 3, stuck)
	ls, err := New(context.Background(), exec, byID(), 5, 2,
		WithPollInterval(10*time.Millisecond), WithStopTimeout(50*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() {
		close(block)
		ls.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = ls.GetPage(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
