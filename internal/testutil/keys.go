package testutil

import (
	"context"
	"sync"

	"github.com/roach88/peerdb/internal/idgen"
	"github.com/roach88/peerdb/internal/schema"
)

// SequentialKeys is a deterministic pre-insert key generator for tests.
//
// It registers under the configured id method and hands out start, start+1,
// ... regardless of the table key, so expected keys can be hard-coded.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialKeys struct {
	method schema.IDMethod

	mu    sync.Mutex
	next  int64
	start int64
	calls []string
}

var _ idgen.Generator = (*SequentialKeys)(nil)

// NewSequentialKeys creates a generator for method whose first key is start.
func NewSequentialKeys(method schema.IDMethod, start int64) *SequentialKeys {
	return &SequentialKeys{method: method, next: start, start: start}
}

func (g *SequentialKeys) Method() schema.IDMethod { return g.method }
func (g *SequentialKeys) IsPriorToInsert() bool   { return true }
func (g *SequentialKeys) IsPostInsert() bool      { return false }

// ID returns the next key and records the table key it was asked for.
func (g *SequentialKeys) ID(_ context.Context, _ idgen.Conn, key string) (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, key)
	id := g.next
	g.next++
	return id, nil
}

// Calls returns the table keys ID was called with, in order.
func (g *SequentialKeys) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.calls))
	copy(out, g.calls)
	return out
}

// Reset restarts the sequence at its first key.
//
// Used for test reuse. After Reset(), the next call to ID() returns start.
func (g *SequentialKeys) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next = g.start
	g.calls = nil
}
