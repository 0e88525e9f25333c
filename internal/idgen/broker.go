package idgen

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/peerdb/internal/schema"
	"github.com/roach88/peerdb/internal/sqlerr"
)

// DefaultQuantity is the number of keys reserved per id table round trip.
const DefaultQuantity = 10

// DefaultTable is the id table used when none is configured.
const DefaultTable = "ID_TABLE"

type block struct {
	next int64
	end  int64 // exclusive
}

// IDBroker hands out keys reserved in an id table:
//
//	CREATE TABLE ID_TABLE (table_name VARCHAR PRIMARY KEY, next_id BIGINT, quantity INTEGER)
//
// A broker created with NewIDBroker reserves blocks of keys in transactions
// of its own on db, never on the caller's connection, so a rolled back
// insert does not return its block. Gaps are possible; duplicates are not.
//
// A broker created with NewJoinedIDBroker advances next_id by one on the
// connection of the inserting statement instead. The reservation commits or
// rolls back with the insert, and nothing is cached between calls. It
// serves engines where a second connection cannot write while the caller's
// transaction holds a write lock.
type IDBroker struct {
	db       *sql.DB
	table    string
	quantity int64
	joined   bool

	mu     sync.Mutex
	blocks map[string]*block
	group  singleflight.Group
}

// NewIDBroker creates a broker reserving blocks of quantity keys on db.
func NewIDBroker(db *sql.DB, table string, quantity int) *IDBroker {
	if table == "" {
		table = DefaultTable
	}
	if quantity < 1 {
		quantity = DefaultQuantity
	}
	return &IDBroker{
		db:       db,
		table:    table,
		quantity: int64(quantity),
		blocks:   make(map[string]*block),
	}
}

// NewJoinedIDBroker creates a broker reserving one key at a time on the
// caller's connection.
func NewJoinedIDBroker(table string) *IDBroker {
	b := NewIDBroker(nil, table, DefaultQuantity)
	b.joined = true
	return b
}

func (*IDBroker) Method() schema.IDMethod { return schema.IDBroker }
func (*IDBroker) IsPriorToInsert() bool   { return true }
func (*IDBroker) IsPostInsert() bool      { return false }

// Table returns the id table name.
func (b *IDBroker) Table() string { return b.table }

// Joined reports whether reservations run on the caller's connection.
func (b *IDBroker) Joined() bool { return b.joined }

// ID returns the next key for key (the table name). conn is only used by a
// joined broker.
func (b *IDBroker) ID(ctx context.Context, conn Conn, key string) (any, error) {
	if key == "" {
		return nil, sqlerr.New(sqlerr.KindContract, "idbroker: empty table key")
	}
	if b.joined {
		if conn == nil {
			return nil, sqlerr.New(sqlerr.KindContract, "idbroker: reserve %s: no connection", key)
		}
		id, err := b.reserveOne(ctx, conn, key)
		if err != nil {
			return nil, fmt.Errorf("idbroker: reserve %s: %w", key, err)
		}
		return id, nil
	}
	for {
		if id, ok := b.take(key); ok {
			return id, nil
		}
		// Concurrent callers for the same key share one reservation.
		_, err, _ := b.group.Do(key, func() (any, error) {
			return nil, b.refill(ctx, key)
		})
		if err != nil {
			return nil, err
		}
	}
}

func (b *IDBroker) take(key string) (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	blk := b.blocks[key]
	if blk == nil || blk.next >= blk.end {
		return 0, false
	}
	id := blk.next
	blk.next++
	return id, true
}

func (b *IDBroker) refill(ctx context.Context, key string) error {
	b.mu.Lock()
	if blk := b.blocks[key]; blk != nil && blk.next < blk.end {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	start, end, err := b.reserve(ctx, key)
	if err != nil {
		return fmt.Errorf("idbroker: reserve %s: %w", key, err)
	}
	slog.Debug("idbroker reserved block", "table", key, "from", start, "to", end-1)

	b.mu.Lock()
	b.blocks[key] = &block{next: start, end: end}
	b.mu.Unlock()
	return nil
}

// reserve advances next_id by quantity and returns the reserved range.
// The UPDATE runs first so the row is write-locked before it is read.
func (b *IDBroker) reserve(ctx context.Context, key string) (int64, int64, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, sqlerr.Classify(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET next_id = next_id + quantity WHERE table_name = ?", b.table), key)
	if err != nil {
		return 0, 0, sqlerr.Classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, 0, sqlerr.Classify(err)
	}

	var start, end int64
	if n == 0 {
		start, end = 1, 1+b.quantity
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (table_name, next_id, quantity) VALUES (?, ?, ?)", b.table),
			key, end, b.quantity); err != nil {
			return 0, 0, sqlerr.Classify(err)
		}
	} else {
		var qty int64
		if err := tx.QueryRowContext(ctx,
			fmt.Sprintf("SELECT next_id, quantity FROM %s WHERE table_name = ?", b.table), key,
		).Scan(&end, &qty); err != nil {
			return 0, 0, sqlerr.Classify(err)
		}
		if qty < 1 {
			return 0, 0, sqlerr.New(sqlerr.KindConfiguration, "quantity for %s must be positive, got %d", key, qty)
		}
		start = end - qty
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, sqlerr.Classify(err)
	}
	return start, end, nil
}


// reserveOne advances next_id by one on conn and returns the reserved key.
func (b *IDBroker) reserveOne(ctx context.Context, conn Conn, key string) (int64, error) {
	res, err := conn.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET next_id = next_id + 1 WHERE table_name = ?", b.table), key)
	if err != nil {
		return 0, sqlerr.Classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, sqlerr.Classify(err)
	}
	if n == 0 {
		if _, err := conn.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (table_name, next_id, quantity) VALUES (?, ?, ?)", b.table),
			key, 2, b.quantity); err != nil {
			return 0, sqlerr.Classify(err)
		}
		return 1, nil
	}
	var next int64
	if err := conn.QueryRowContext(ctx,
		fmt.Sprintf("SELECT next_id FROM %s WHERE table_name = ?", b.table), key,
	).Scan(&next); err != nil {
		return 0, sqlerr.Classify(err)
	}
	return next - 1, nil
}
