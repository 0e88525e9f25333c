// Package largeselect browses result sets of unbounded size page by page
// while holding at most a fixed number of pages in memory.
//
// A LargeSelect buffers a contiguous window of rows, [blockBegin, blockEnd],
// filled by one background producer goroutine at a time. Pages inside the
// window are served as soon as the producer has reached them; pages outside
// it stop the producer and restart production for a window around the
// requested page.
//
// The total record and page counts are best effort until the producer has
// seen the end of the data; TotalsFinalized reports when they are exact.
//
// # Concurrency
//
//   - Page requests are serialized on the instance.
//   - The producer appends rows and updates progress under the instance
//     mutex and wakes waiters through a single-slot signal channel.
//   - Waiters also wake on a bounded poll interval.
//   - Stopping a producer is cooperative: it checks its stop channel
//     between rows, and the stopper waits a bounded time for it to exit.
//     Every pass carries a generation number, so a producer that outlives
//     its stop never touches the window of its successor.
//   - The producer runs in a transaction of its own, independent of any
//     transaction of the caller.
package largeselect

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/peerdb/internal/criteria"
	"github.com/roach88/peerdb/internal/executor"
	"github.com/roach88/peerdb/internal/sqlerr"
)

// Defaults for the wait intervals.
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultStopTimeout  = 10 * time.Second
)

// Option configures a LargeSelect.
type Option func(*options)

type options struct {
	pollInterval time.Duration
	stopTimeout  time.Duration
}

// WithPollInterval sets how long a waiting page request sleeps before it
// re-checks producer progress without a signal.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithStopTimeout sets how long a restart waits for the previous producer
// to exit before abandoning it.
func WithStopTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.stopTimeout = d
		}
	}
}

// LargeSelect pages through the result of one criteria.
type LargeSelect[T any] struct {
	exec            *executor.Executor[T]
	criteria        *criteria.Criteria
	pageSize        int
	memoryPageLimit int
	blockSize       int
	opts            options

	ctx    context.Context
	cancel context.CancelFunc

	// pageMu serializes page requests, restarts and Invalidate.
	pageMu sync.Mutex

	// mu guards everything below; the producer takes it per row.
	mu                sync.Mutex
	blockBegin        int
	blockEnd          int
	results           []T
	currentlyFilledTo int
	queryCompleted    bool
	endOfData         bool
	prodErr           error
	totalRecords      int
	totalsFinalized   bool
	currentPage       int
	generation        uint64
	stop              chan struct{}
	done              chan struct{}
	started           bool
	needsStart        bool
	restarts          int
	closed            bool

	// signal wakes a waiting page request (buffered, size 1).
	signal chan struct{}
}

// New validates its arguments and starts producing the first window,
// [0, pageSize*memoryPageLimit-1]. c must not carry an offset or limit. The
// producers stop when ctx is cancelled or Close is called.
func New[T any](ctx context.Context, exec *executor.Executor[T], c *criteria.Criteria, pageSize, memoryPageLimit int, opts ...Option) (*LargeSelect[T], error) {
	switch {
	case c == nil:
		return nil, sqlerr.New(sqlerr.KindContract, "largeselect: nil criteria")
	case c.Offset != 0 || c.Limit != criteria.NoLimit:
		return nil, sqlerr.New(sqlerr.KindContract,
			"largeselect: criteria must not set offset or limit (offset=%d limit=%d)", c.Offset, c.Limit)
	case pageSize < 1:
		return nil, sqlerr.New(sqlerr.KindContract, "largeselect: page size must be at least 1, got %d", pageSize)
	case memoryPageLimit < 1:
		return nil, sqlerr.New(sqlerr.KindContract, "largeselect: memory page limit must be at least 1, got %d", memoryPageLimit)
	}

	o := options{pollInterval: DefaultPollInterval, stopTimeout: DefaultStopTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	ls := &LargeSelect[T]{
		exec:            exec,
		criteria:        c.Clone(),
		pageSize:        pageSize,
		memoryPageLimit: memoryPageLimit,
		blockSize:       pageSize * memoryPageLimit,
		opts:            o,
		ctx:             ctx,
		cancel:          cancel,
		signal:          make(chan struct{}, 1),
	}

	ls.mu.Lock()
	ls.startLocked(0)
	ls.mu.Unlock()
	return ls, nil
}

// PageSize returns the number of records per page.
func (ls *LargeSelect[T]) PageSize() int { return ls.pageSize }

// MemoryPageLimit returns the window size in pages.
func (ls *LargeSelect[T]) MemoryPageLimit() int { return ls.memoryPageLimit }

// CurrentPageNumber returns the page last returned, or 0 before the first
// request.
func (ls *LargeSelect[T]) CurrentPageNumber() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.currentPage
}

// TotalRecords returns the number of records known so far. It is exact once
// TotalsFinalized reports true.
func (ls *LargeSelect[T]) TotalRecords() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.totalRecords
}

// TotalPages returns the number of pages known so far.
func (ls *LargeSelect[T]) TotalPages() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.totalPagesLocked()
}

func (ls *LargeSelect[T]) totalPagesLocked() int {
	return (ls.totalRecords + ls.pageSize - 1) / ls.pageSize
}

// TotalsFinalized reports whether TotalRecords and TotalPages are exact.
func (ls *LargeSelect[T]) TotalsFinalized() bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.totalsFinalized
}

// PerhapsLastPage reports whether no records beyond the current page are
// known to exist.
func (ls *LargeSelect[T]) PerhapsLastPage() bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.totalsFinalized {
		return ls.currentPage >= ls.totalPagesLocked()
	}
	return ls.endOfData && ls.totalRecords <= ls.currentPage*ls.pageSize
}

// Restarts returns how often production was restarted for a new window.
// The initial production is not counted.
func (ls *LargeSelect[T]) Restarts() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.restarts
}

// Invalidate discards the window, totals and position. The next page
// request starts production from the first record again.
func (ls *LargeSelect[T]) Invalidate() {
	ls.pageMu.Lock()
	defer ls.pageMu.Unlock()
	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.stopLocked()
	ls.blockBegin, ls.blockEnd = 0, -1
	ls.results = nil
	ls.currentlyFilledTo = -1
	ls.queryCompleted = false
	ls.endOfData = false
	ls.prodErr = nil
	ls.totalRecords = 0
	ls.totalsFinalized = false
	ls.currentPage = 0
	ls.needsStart = true
	slog.Debug("largeselect invalidated", "table", ls.exec.TableName())
}

// Close stops the producer. Further page requests fail.
func (ls *LargeSelect[T]) Close() {
	ls.pageMu.Lock()
	defer ls.pageMu.Unlock()
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.closed {
		return
	}
	ls.closed = true
	// Cancel first so a producer blocked in the driver returns promptly.
	ls.cancel()
	ls.stopLocked()
	ls.results = nil
}
