package largeselect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/peerdb/internal/sqlerr"
)

// GetPage returns page n, counted from 1. A page inside the window waits
// until the producer has filled it or finished; a page outside moves the
// window. A page beyond the data is empty.
func (ls *LargeSelect[T]) GetPage(ctx context.Context, n int) ([]T, error) {
	if n < 1 {
		return nil, sqlerr.New(sqlerr.KindContract, "largeselect: invalid page number %d", n)
	}
	ls.pageMu.Lock()
	defer ls.pageMu.Unlock()
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.pageLocked(ctx, n)
}

// NextResults returns the page after the current one.
func (ls *LargeSelect[T]) NextResults(ctx context.Context) ([]T, error) {
	ls.pageMu.Lock()
	defer ls.pageMu.Unlock()
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.pageLocked(ctx, ls.currentPage+1)
}

// PreviousResults returns the page before the current one, or an empty
// page when there is none.
func (ls *LargeSelect[T]) PreviousResults(ctx context.Context) ([]T, error) {
	ls.pageMu.Lock()
	defer ls.pageMu.Unlock()
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.currentPage <= 1 {
		return []T{}, nil
	}
	return ls.pageLocked(ctx, ls.currentPage-1)
}

// CurrentPageResults returns the current page again, or page 1 before the
// first request.
func (ls *LargeSelect[T]) CurrentPageResults(ctx context.Context) ([]T, error) {
	ls.pageMu.Lock()
	defer ls.pageMu.Unlock()
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.pageLocked(ctx, max(ls.currentPage, 1))
}

// pageLocked serves page n. ls.pageMu and ls.mu must be held.
func (ls *LargeSelect[T]) pageLocked(ctx context.Context, n int) ([]T, error) {
	start := (n - 1) * ls.pageSize
	end := start + ls.pageSize - 1

	for {
		if ls.closed {
			return nil, sqlerr.New(sqlerr.KindContract, "largeselect: closed")
		}
		if ls.totalsFinalized && start >= ls.totalRecords {
			return []T{}, nil
		}
		if ls.needsStart {
			ls.startLocked(ls.initialBegin(start))
			continue
		}

		switch {
		case start >= ls.blockBegin && end <= ls.blockEnd:
			if ls.prodErr != nil {
				err := ls.prodErr
				ls.prodErr = nil
				ls.needsStart = true
				return nil, err
			}
			if ls.currentlyFilledTo >= end || ls.queryCompleted {
				ls.currentPage = n
				return ls.sliceLocked(start, end), nil
			}
			if err := ls.waitLocked(ctx); err != nil {
				return nil, fmt.Errorf("largeselect: wait for page %d: %w", n, err)
			}

		case start < ls.blockBegin:
			begin := start
			if ls.blockSize >= 3*ls.pageSize {
				begin = max(0, start-2*ls.pageSize)
			}
			slog.Debug("largeselect moving window backward",
				"table", ls.exec.TableName(), "page", n, "from", ls.blockBegin, "to", begin)
			ls.stopLocked()
			ls.startLocked(begin)

		case end > ls.blockEnd:
			slog.Debug("largeselect moving window forward",
				"table", ls.exec.TableName(), "page", n, "from", ls.blockBegin, "to", start)
			ls.stopLocked()
			ls.startLocked(start)

		default:
			return nil, sqlerr.New(sqlerr.KindContract,
				"largeselect: page %d [%d, %d] does not fit window [%d, %d]",
				n, start, end, ls.blockBegin, ls.blockEnd)
		}
	}
}

// initialBegin picks the window start for the first pass after Invalidate.
func (ls *LargeSelect[T]) initialBegin(start int) int {
	if start < ls.blockSize {
		return 0
	}
	return start
}

// sliceLocked copies the produced rows of [start, end].
func (ls *LargeSelect[T]) sliceLocked(start, end int) []T {
	lo := start - ls.blockBegin
	hi := min(end, ls.currentlyFilledTo) - ls.blockBegin + 1
	if hi <= lo {
		return []T{}
	}
	page := make([]T, hi-lo)
	copy(page, ls.results[lo:hi])
	return page
}

// waitLocked releases ls.mu until the producer signals, the poll interval
// elapses or ctx is done.
func (ls *LargeSelect[T]) waitLocked(ctx context.Context) error {
	ls.mu.Unlock()
	defer ls.mu.Lock()

	timer := time.NewTimer(ls.opts.pollInterval)
	defer timer.Stop()
	select {
	case <-ls.signal:
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// RecordProgress describes the records of the current page, for example
// "11 - 20 of 95" or "11 - 20 of more than 40" while totals are provisional.
func (ls *LargeSelect[T]) RecordProgress() string {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	first, last := 0, 0
	if ls.currentPage > 0 {
		first = (ls.currentPage-1)*ls.pageSize + 1
		last = min(ls.currentPage*ls.pageSize, ls.totalRecords)
		if last < first {
			first, last = 0, 0
		}
	}
	if ls.totalsFinalized {
		return fmt.Sprintf("%d - %d of %d", first, last, ls.totalRecords)
	}
	return fmt.Sprintf("%d - %d of more than %d", first, last, ls.totalRecords)
}

// PageProgress describes the current page, for example "2 of 10" or
// "2 of more than 4" while totals are provisional.
func (ls *LargeSelect[T]) PageProgress() string {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.totalsFinalized {
		return fmt.Sprintf("%d of %d", ls.currentPage, ls.totalPagesLocked())
	}
	return fmt.Sprintf("%d of more than %d", ls.currentPage, ls.totalPagesLocked())
}
