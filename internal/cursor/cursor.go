// Package cursor adapts *sql.Rows into a lazy, closeable sequence of mapped
// records, emulating offset and limit in software for engines that cannot
// push them into SQL.
//
// Closing is the only release path for the rows and everything registered
// with OnClose. Every consumer must close the cursor: All and Collect do it
// themselves, Next closes once the rows are exhausted, and Close is
// idempotent so a deferred Close is always safe.
package cursor

import (
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"github.com/roach88/peerdb/internal/sqlerr"
)

// Mapper converts the current row into a record. It must only Scan.
type Mapper[T any] func(rows *sql.Rows) (T, error)

// Cursor is a forward-only, non-restartable sequence of records.
type Cursor[T any] struct {
	rows    *sql.Rows
	mapper  Mapper[T]
	offset  int
	limit   int
	closers []func() error

	index   int // raw rows consumed
	yielded int
	rec     T
	err     error
	closed  bool
}

// New wraps rows. Without Window every row is yielded.
func New[T any](rows *sql.Rows, mapper Mapper[T]) *Cursor[T] {
	return &Cursor[T]{rows: rows, mapper: mapper, limit: -1}
}

// Window sets the emulated offset and limit: rows before offset are skipped
// without being mapped, and at most limit rows are yielded (limit < 0 means
// no limit). It must be called before the first Next.
func (c *Cursor[T]) Window(offset, limit int) *Cursor[T] {
	c.offset = max(offset, 0)
	c.limit = limit
	return c
}

// OnClose registers fn to run when the cursor closes, after the rows are
// closed. Closers run in reverse registration order.
func (c *Cursor[T]) OnClose(fn func() error) *Cursor[T] {
	c.closers = append(c.closers, fn)
	return c
}

// Next advances to the next record. It returns false at the end of the
// window or on error; the cursor is closed by then.
func (c *Cursor[T]) Next() bool {
	if c.closed || c.err != nil {
		return false
	}
	if c.limit >= 0 && c.yielded >= c.limit {
		c.finish()
		return false
	}

	for c.rows.Next() {
		idx := c.index
		c.index++
		if idx < c.offset {
			continue
		}

		rec, err := c.mapper(c.rows)
		if err != nil {
			c.err = fmt.Errorf("map row %d: %w", idx, sqlerr.Classify(err))
			c.finish()
			return false
		}
		c.rec = rec
		c.yielded++

		// CRITICAL: release as soon as the window is full, not when the
		// caller gets around to asking for one more row.
		if c.limit >= 0 && c.yielded >= c.limit {
			c.finish()
		}
		return true
	}

	if err := c.rows.Err(); err != nil {
		c.err = fmt.Errorf("read rows: %w", sqlerr.Classify(err))
	}
	c.finish()
	return false
}

// Record returns the record produced by the last successful Next.
func (c *Cursor[T]) Record() T { return c.rec }

// Err returns the first error seen while reading, mapping or closing.
func (c *Cursor[T]) Err() error { return c.err }

// Yielded returns the number of records produced so far.
func (c *Cursor[T]) Yielded() int { return c.yielded }

// Close releases the rows and runs the registered closers. It is
// idempotent; only the first call does any work.
func (c *Cursor[T]) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if err := c.rows.Close(); err != nil {
		errs = append(errs, sqlerr.Classify(err))
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Cursor[T]) finish() {
	if err := c.Close(); err != nil && c.err == nil {
		c.err = err
	}
}

// All returns an iterator over the remaining records. The cursor is closed
// when the loop ends, including on break. A read error is yielded once as
// the final element.
func (c *Cursor[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer c.finish()
		for c.Next() {
			if !yield(c.rec, nil) {
				return
			}
		}
		if c.err != nil {
			var zero T
			yield(zero, c.err)
		}
	}
}

// Collect reads all remaining records and closes the cursor.
func (c *Cursor[T]) Collect() ([]T, error) {
	var out []T
	for c.Next() {
		out = append(out, c.rec)
	}
	c.finish()
	if c.err != nil {
		return nil, c.err
	}
	return out, nil
}
