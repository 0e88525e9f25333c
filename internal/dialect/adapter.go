// Package dialect describes the capabilities and quirks of each database engine:
// native offset/limit support, primary-key generation style, identity and
// sequence queries, and how to read vendor error state out of driver errors.
//
// Adapters are registered at compile time under a string tag. There is no
// reflection or name-driven loading: an unknown tag is a configuration error,
// and DefaultName is used when none is configured.
package dialect

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/peerdb/internal/schema"
	"github.com/roach88/peerdb/internal/sqlerr"
)

// Adapter describes one database engine.
type Adapter interface {
	// Name returns the registry tag of the adapter.
	Name() string

	// SupportsNativeLimit reports whether LIMIT can be pushed into SQL.
	SupportsNativeLimit() bool

	// SupportsNativeOffset reports whether OFFSET can be pushed into SQL.
	SupportsNativeOffset() bool

	// LimitClause renders the limit/offset suffix of a SELECT, with a leading
	// space, or "" when there is nothing to render. limit < 0 means no limit.
	LimitClause(offset, limit int) string

	// NativeIDMethod is what schema.Native resolves to on this engine.
	NativeIDMethod() schema.IDMethod

	// IDQuery returns a single-row query yielding a generated key: the next
	// value of the named sequence, or the last identity when name is "".
	IDQuery(name string) string

	// SequenceNextValueExpression returns the SQL expression producing the
	// next value of the named sequence inside another statement.
	SequenceNextValueExpression(name string) string

	// SupportsReturning reports whether INSERT ... RETURNING is available.
	SupportsReturning() bool

	// SupportsTransactions reports whether explicit transactions are honored.
	SupportsTransactions() bool

	// SupportsConcurrentWriters reports whether a second connection can write
	// while a transaction on another connection holds uncommitted writes.
	// When it cannot, key reservations run on the inserting connection.
	SupportsConcurrentWriters() bool

	// IgnoreCase wraps expr for a case-insensitive comparison.
	IgnoreCase(expr string) string

	// ExtractState reads SQLSTATE and vendor code from a driver error.
	ExtractState(err error) (sqlerr.State, bool)
}

// DefaultName is the adapter used when none is configured.
const DefaultName = "generic"

var (
	mu        sync.RWMutex
	factories = map[string]func() Adapter{}
)

// Register makes an adapter available under name. It panics on duplicates,
// which can only happen through a programming error at init time.
func Register(name string, factory func() Adapter) {
	mu.Lock()
	defer mu.Unlock()
	key := strings.ToLower(name)
	if _, dup := factories[key]; dup {
		panic(fmt.Sprintf("dialect: adapter %q registered twice", name))
	}
	factories[key] = factory
}

// Lookup returns a new adapter for name. An empty name selects DefaultName.
func Lookup(name string) (Adapter, error) {
	if name == "" {
		name = DefaultName
	}
	mu.RLock()
	factory, ok := factories[strings.ToLower(name)]
	mu.RUnlock()
	if !ok {
		return nil, sqlerr.New(sqlerr.KindConfiguration, "unknown dialect adapter %q (known: %s)",
			name, strings.Join(Names(), ", "))
	}
	return factory(), nil
}

// Names returns the registered adapter tags, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Extractors returns the error state extractors of all registered adapters,
// for building a sqlerr.DefaultClassifier.
func Extractors() []sqlerr.StateExtractor {
	var out []sqlerr.StateExtractor
	for _, name := range Names() {
		a, err := Lookup(name)
		if err != nil {
			continue
		}
		out = append(out, a.ExtractState)
	}
	return out
}

func init() {
	Register(DefaultName, func() Adapter { return generic{} })
	Register("sqlite", func() Adapter { return sqlite{} })
	Register("duckdb", func() Adapter { return duckdb{} })
	Register("postgresql", func() Adapter { return postgres{} })
	Register("mysql", func() Adapter { return mysql{} })
	Register("oracle", func() Adapter { return oracle{} })
	InstallClassifier()
}

// InstallClassifier makes the process-wide classifier consult every
// registered adapter. Call it again after registering further adapters.
func InstallClassifier() {
	sqlerr.SetClassifier(sqlerr.NewDefaultClassifier(Extractors()...))
}

// generic is an adapter for engines with no known capabilities. Offset and
// limit are emulated in software and keys must be supplied or brokered.
type generic struct{}

func (generic) Name() string                                   { return DefaultName }
func (generic) SupportsNativeLimit() bool                      { return false }
func (generic) SupportsNativeOffset() bool                     { return false }
func (generic) LimitClause(offset, limit int) string           { return "" }
func (generic) NativeIDMethod() schema.IDMethod                { return schema.IDBroker }
func (generic) IDQuery(name string) string                     { return "" }
func (generic) SequenceNextValueExpression(name string) string { return "" }
func (generic) SupportsReturning() bool                        { return false }
func (generic) SupportsTransactions() bool                     { return true }
func (generic) SupportsConcurrentWriters() bool                { return false }
func (generic) IgnoreCase(expr string) string                  { return "UPPER(" + expr + ")" }
func (generic) ExtractState(err error) (sqlerr.State, bool)    { return sqlerr.State{}, false }

// limitOffset renders the common "LIMIT n OFFSET m" form.
func limitOffset(offset, limit int) string {
	var b strings.Builder
	if limit >= 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	if offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", offset)
	}
	return b.String()
}
