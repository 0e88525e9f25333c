// Package idgen implements the primary-key generation strategies.
//
// Generators are either prior-to-insert (the key is produced before the
// INSERT is built and injected into the column values) or post-insert (the
// key is read back on the same connection after the INSERT ran).
//
// Strategies:
//   - IDBroker: reserves keys in an id table (pre-insert)
//   - Sequence: next value of a sequence object (pre-insert)
//   - UUID: UUIDv7 string keys (pre-insert)
//   - AutoIncrement: engine identity read after insert (post-insert)
//   - ReturnedKeys: INSERT ... RETURNING (post-insert, read by the executor)
package idgen

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/peerdb/internal/dialect"
	"github.com/roach88/peerdb/internal/schema"
	"github.com/roach88/peerdb/internal/sqlerr"
)

// Conn is the part of *sql.DB, *sql.Conn and *sql.Tx a generator needs.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Generator produces primary keys for one id method.
type Generator interface {
	// Method returns the id method implemented by the generator.
	Method() schema.IDMethod

	// IsPriorToInsert reports whether ID must be called before the INSERT.
	IsPriorToInsert() bool

	// IsPostInsert reports whether ID must be called after the INSERT, on
	// the connection that ran it.
	IsPostInsert() bool

	// ID returns a key. key is the sequence name or id table key of the
	// target table; it is ignored by generators that do not need one.
	ID(ctx context.Context, conn Conn, key string) (any, error)
}

// New returns the generator for method m. Native is resolved through the
// adapter. db and brokerTable are only used by IDBroker; db is not needed
// when the adapter cannot run concurrent writers and the broker joins the
// inserting connection.
func New(m schema.IDMethod, a dialect.Adapter, db *sql.DB, brokerTable string) (Generator, error) {
	if m == schema.Native {
		m = a.NativeIDMethod()
	}
	switch m {
	case schema.AutoIncrement:
		return &AutoIncrementGenerator{adapter: a}, nil
	case schema.Sequence:
		return &SequenceGenerator{adapter: a}, nil
	case schema.ReturnedKeys:
		if !a.SupportsReturning() {
			return nil, sqlerr.New(sqlerr.KindConfiguration, "adapter %s does not support returned keys", a.Name())
		}
		return ReturnedKeysGenerator{}, nil
	case schema.UUID:
		return UUIDGenerator{}, nil
	case schema.IDBroker:
		if !a.SupportsConcurrentWriters() {
			return NewJoinedIDBroker(brokerTable), nil
		}
		if db == nil {
			return nil, sqlerr.New(sqlerr.KindConfiguration, "idbroker needs a connection source")
		}
		return NewIDBroker(db, brokerTable, DefaultQuantity), nil
	default:
		return nil, sqlerr.New(sqlerr.KindConfiguration, "no generator for id method %q", m)
	}
}

// AutoIncrementGenerator reads the identity generated by the last INSERT.
// The executor prefers sql.Result.LastInsertId and falls back to ID.
type AutoIncrementGenerator struct {
	adapter dialect.Adapter
}

func (*AutoIncrementGenerator) Method() schema.IDMethod { return schema.AutoIncrement }
func (*AutoIncrementGenerator) IsPriorToInsert() bool   { return false }
func (*AutoIncrementGenerator) IsPostInsert() bool      { return true }

// ID runs the adapter's identity query on conn.
func (g *AutoIncrementGenerator) ID(ctx context.Context, conn Conn, _ string) (any, error) {
	q := g.adapter.IDQuery("")
	if q == "" {
		return nil, sqlerr.New(sqlerr.KindConfiguration, "adapter %s has no identity query", g.adapter.Name())
	}
	var id int64
	if err := conn.QueryRowContext(ctx, q).Scan(&id); err != nil {
		return nil, fmt.Errorf("read identity: %w", sqlerr.Classify(err))
	}
	return id, nil
}

// SequenceGenerator fetches the next value of a named sequence.
type SequenceGenerator struct {
	adapter dialect.Adapter
}

func (*SequenceGenerator) Method() schema.IDMethod { return schema.Sequence }
func (*SequenceGenerator) IsPriorToInsert() bool   { return true }
func (*SequenceGenerator) IsPostInsert() bool      { return false }

// ID returns the next value of sequence key.
func (g *SequenceGenerator) ID(ctx context.Context, conn Conn, key string) (any, error) {
	q := g.adapter.IDQuery(key)
	if q == "" || key == "" {
		return nil, sqlerr.New(sqlerr.KindConfiguration, "adapter %s cannot query sequence %q", g.adapter.Name(), key)
	}
	var id int64
	if err := conn.QueryRowContext(ctx, q).Scan(&id); err != nil {
		return nil, fmt.Errorf("next value of %s: %w", key, sqlerr.Classify(err))
	}
	return id, nil
}

// ReturnedKeysGenerator marks tables whose key the executor reads with
// INSERT ... RETURNING. ID is never called for it.
type ReturnedKeysGenerator struct{}

func (ReturnedKeysGenerator) Method() schema.IDMethod { return schema.ReturnedKeys }
func (ReturnedKeysGenerator) IsPriorToInsert() bool   { return false }
func (ReturnedKeysGenerator) IsPostInsert() bool      { return true }

func (ReturnedKeysGenerator) ID(context.Context, Conn, string) (any, error) {
	return nil, sqlerr.New(sqlerr.KindContract, "returned keys are read from the insert statement")
}

// UUIDGenerator produces time-ordered UUIDv7 strings.
type UUIDGenerator struct{}

func (UUIDGenerator) Method() schema.IDMethod { return schema.UUID }
func (UUIDGenerator) IsPriorToInsert() bool   { return true }
func (UUIDGenerator) IsPostInsert() bool      { return false }

// ID returns a new UUIDv7.
func (UUIDGenerator) ID(context.Context, Conn, string) (any, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate uuid: %w", err)
	}
	return id.String(), nil
}
