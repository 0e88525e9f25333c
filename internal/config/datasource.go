package config

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/roach88/peerdb/internal/sqlerr"
	"github.com/roach88/peerdb/internal/store"
)

// DefaultDatasource is the datasource factory tag used when a database
// names none.
const DefaultDatasource = "driver"

// DatasourceFactory opens the connection source of one database.
type DatasourceFactory func(ctx context.Context, name string, d Database) (*sql.DB, error)

var (
	datasourceMu        sync.RWMutex
	datasourceFactories = make(map[string]DatasourceFactory)
)

// RegisterDatasource makes a datasource factory available under tag.
// It panics if tag is registered twice.
func RegisterDatasource(tag string, f DatasourceFactory) {
	datasourceMu.Lock()
	defer datasourceMu.Unlock()
	if _, dup := datasourceFactories[tag]; dup {
		panic("config: datasource factory registered twice: " + tag)
	}
	datasourceFactories[tag] = f
}

// LookupDatasource returns the factory registered under tag, or the
// default factory when tag is empty.
func LookupDatasource(tag string) (DatasourceFactory, error) {
	if tag == "" {
		tag = DefaultDatasource
	}
	datasourceMu.RLock()
	defer datasourceMu.RUnlock()
	f, ok := datasourceFactories[tag]
	if !ok {
		return nil, sqlerr.New(sqlerr.KindConfiguration, "unknown datasource factory %q", tag)
	}
	return f, nil
}

// DatasourceNames returns the registered factory tags, sorted.
func DatasourceNames() []string {
	datasourceMu.RLock()
	defer datasourceMu.RUnlock()
	names := make([]string, 0, len(datasourceFactories))
	for tag := range datasourceFactories {
		names = append(names, tag)
	}
	sort.Strings(names)
	return names
}

func init() {
	RegisterDatasource(DefaultDatasource, openPooled)
	RegisterDatasource("single", openSingle)
}

// openPooled opens a pool sized by the database settings.
func openPooled(ctx context.Context, name string, d Database) (*sql.DB, error) {
	opts, err := storeOptions(d)
	if err != nil {
		return nil, fmt.Errorf("database %s: %w", name, err)
	}
	return store.Open(ctx, opts)
}

// openSingle opens a source limited to one connection, for engines such as
// in-memory SQLite where every connection sees a database of its own. An
// IDBroker on it must join the inserting connection, which the sqlite
// adapter does.
func openSingle(ctx context.Context, name string, d Database) (*sql.DB, error) {
	opts, err := storeOptions(d)
	if err != nil {
		return nil, fmt.Errorf("database %s: %w", name, err)
	}
	opts.MaxOpenConns, opts.MaxIdleConns = 1, 1
	opts.ConnMaxLifetime = 0
	return store.Open(ctx, opts)
}

func storeOptions(d Database) (store.Options, error) {
	opts := store.Options{
		Driver:       d.Driver,
		DSN:          d.ExpandedDSN(),
		MaxOpenConns: d.MaxOpenConns,
		MaxIdleConns: d.MaxIdleConns,
	}
	if d.ConnMaxLifetime != "" {
		lt, err := time.ParseDuration(d.ConnMaxLifetime)
		if err != nil {
			return opts, sqlerr.Wrap(sqlerr.KindConfiguration, err, "conn_max_lifetime %q", d.ConnMaxLifetime)
		}
		opts.ConnMaxLifetime = lt
	}
	return opts, nil
}
