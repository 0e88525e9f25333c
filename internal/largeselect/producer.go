package largeselect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var errStopped = errors.New("producer stopped")

// startLocked starts a producer for the window beginning at begin.
// ls.mu must be held and no producer may be running.
func (ls *LargeSelect[T]) startLocked(begin int) {
	ls.generation++
	gen := ls.generation

	ls.blockBegin = begin
	ls.blockEnd = begin + ls.blockSize - 1
	ls.results = make([]T, 0, ls.blockSize)
	ls.currentlyFilledTo = begin - 1
	ls.queryCompleted = false
	ls.prodErr = nil
	ls.needsStart = false

	if ls.started {
		ls.restarts++
	}
	ls.started = true

	stop := make(chan struct{})
	done := make(chan struct{})
	ls.stop, ls.done = stop, done

	slog.Debug("largeselect producer start",
		"table", ls.exec.TableName(), "begin", ls.blockBegin, "end", ls.blockEnd, "generation", gen)
	go ls.produce(ls.ctx, gen, begin, stop, done)
}

// stopLocked stops the running producer, if any, and waits up to the stop
// timeout for it to exit. ls.mu must be held; it is released while waiting.
func (ls *LargeSelect[T]) stopLocked() {
	if ls.stop == nil {
		return
	}
	// CRITICAL: bump the generation before releasing the lock so the old
	// producer cannot write into the window that replaces it.
	ls.generation++
	close(ls.stop)
	done := ls.done
	ls.stop, ls.done = nil, nil

	ls.mu.Unlock()
	timer := time.NewTimer(ls.opts.stopTimeout)
	select {
	case <-done:
	case <-timer.C:
		slog.Warn("largeselect producer did not stop in time, abandoning it",
			"table", ls.exec.TableName(), "timeout", ls.opts.stopTimeout)
	}
	timer.Stop()
	ls.mu.Lock()
}

// notify wakes a waiting page request.
// Non-blocking - the buffer of 1 coalesces multiple signals.
func (ls *LargeSelect[T]) notify() {
	select {
	case ls.signal <- struct{}{}:
	default:
	}
}

// produce is one production pass: it fetches blockSize+1 rows at begin. The
// extra row tells a window that ends exactly at the last record apart from
// one with more records behind it.
func (ls *LargeSelect[T]) produce(ctx context.Context, gen uint64, begin int, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ls.notify()

	n, err := ls.fetch(ctx, gen, begin, stop)

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.generation != gen {
		return
	}
	if errors.Is(err, errStopped) {
		return
	}

	ls.queryCompleted = true
	ls.stop, ls.done = nil, nil
	if err != nil {
		ls.prodErr = err
		slog.Debug("largeselect producer failed", "table", ls.exec.TableName(), "generation", gen, "error", err)
		return
	}

	switch {
	case n > ls.blockSize:
		ls.totalRecords = max(ls.totalRecords, begin+ls.blockSize+1)
	case n > 0 || begin == 0:
		ls.endOfData = true
		ls.totalRecords = begin + n
		ls.totalsFinalized = true
	default:
		// Nothing at begin: the data ends at or before it.
		ls.endOfData = true
		ls.totalRecords = min(ls.totalRecords, begin)
	}
	slog.Debug("largeselect producer done",
		"table", ls.exec.TableName(), "generation", gen, "rows", n,
		"total", ls.totalRecords, "finalized", ls.totalsFinalized)
}

// fetch reads the window into the buffer and returns the number of rows
// the query returned, including the extra row.
func (ls *LargeSelect[T]) fetch(ctx context.Context, gen uint64, begin int, stop <-chan struct{}) (int, error) {
	c := ls.criteria.Clone().SetOffset(begin).SetLimit(ls.blockSize + 1)
	mgr := ls.exec.Manager()

	h, err := mgr.Begin(ctx, ls.exec.DBFor(c))
	if err != nil {
		return 0, fmt.Errorf("largeselect: %w", err)
	}
	defer mgr.Close(h)

	cur, err := ls.exec.SelectCursorWith(ctx, h, c)
	if err != nil {
		return 0, fmt.Errorf("largeselect: %w", err)
	}
	defer cur.Close()

	n := 0
	for cur.Next() {
		select {
		case <-stop:
			return n, errStopped
		default:
		}

		ls.mu.Lock()
		if ls.generation != gen {
			ls.mu.Unlock()
			return n, errStopped
		}
		if n < ls.blockSize {
			ls.results = append(ls.results, cur.Record())
			ls.currentlyFilledTo = begin + len(ls.results) - 1
			ls.totalRecords = max(ls.totalRecords, ls.currentlyFilledTo+1)
		}
		n++
		ls.mu.Unlock()
		ls.notify()
	}
	if err := cur.Err(); err != nil {
		return n, fmt.Errorf("largeselect: %w", err)
	}
	// CRITICAL: rows hold the connection; close them before committing.
	if err := cur.Close(); err != nil {
		return n, fmt.Errorf("largeselect: %w", err)
	}
	if err := mgr.Commit(ctx, h); err != nil {
		return n, fmt.Errorf("largeselect: %w", err)
	}
	return n, nil
}
