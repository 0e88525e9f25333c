// Package registry holds the database registrations of a process.
//
// A Registry is built once at startup (see config.Bootstrap) and passed to
// every component that needs it. There is no package-level instance.
package registry

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/peerdb/internal/dialect"
	"github.com/roach88/peerdb/internal/idgen"
	"github.com/roach88/peerdb/internal/schema"
	"github.com/roach88/peerdb/internal/sqlerr"
)

// Database is the registration of one named database.
type Database struct {
	Name    string
	Adapter dialect.Adapter
	Map     *schema.DatabaseMap
	DB      *sql.DB
	// Schema is the default schema name, if any.
	Schema string
	// Autocommit disables explicit transactions for this database.
	Autocommit bool

	mu     sync.RWMutex
	idGens map[schema.IDMethod]idgen.Generator
}

// SetIDGenerator registers g under its id method.
func (d *Database) SetIDGenerator(g idgen.Generator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.idGens[g.Method()] = g
}

// IDGenerator returns the generator for m. Native resolves through the
// adapter.
func (d *Database) IDGenerator(m schema.IDMethod) (idgen.Generator, bool) {
	if m == schema.Native && d.Adapter != nil {
		m = d.Adapter.NativeIDMethod()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.idGens[m]
	return g, ok
}

// Table returns the metadata of a table of this database.
func (d *Database) Table(name string) (*schema.TableMap, error) {
	if t, ok := d.Map.Table(name); ok {
		return t, nil
	}
	return nil, sqlerr.New(sqlerr.KindConfiguration, "database %s has no table %s", d.Name, name)
}

// Registry maps database names to registrations.
type Registry struct {
	defaultName string

	mu  sync.RWMutex
	dbs map[string]*Database
}

// New creates an empty registry whose default database is defaultName.
func New(defaultName string) *Registry {
	return &Registry{defaultName: defaultName, dbs: make(map[string]*Database)}
}

// DefaultName returns the name of the default database.
func (r *Registry) DefaultName() string { return r.defaultName }

// Database returns the registration for name, creating an empty one on first
// reference. An empty name selects the default database.
func (r *Registry) Database(name string) *Database {
	if name == "" {
		name = r.defaultName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.dbs[name]; ok {
		return d
	}
	d := &Database{
		Name:   name,
		Map:    schema.NewDatabaseMap(name),
		idGens: make(map[schema.IDMethod]idgen.Generator),
	}
	r.dbs[name] = d
	return d
}

// Lookup returns a fully configured registration, or a configuration error
// when the database is unknown or has no adapter or connection source.
func (r *Registry) Lookup(name string) (*Database, error) {
	if name == "" {
		name = r.defaultName
	}
	r.mu.RLock()
	d, ok := r.dbs[name]
	r.mu.RUnlock()
	switch {
	case !ok:
		return nil, sqlerr.New(sqlerr.KindConfiguration, "database %q is not registered", name)
	case d.Adapter == nil:
		return nil, sqlerr.New(sqlerr.KindConfiguration, "database %q has no adapter", name)
	case d.DB == nil:
		return nil, sqlerr.New(sqlerr.KindConfiguration, "database %q has no connection source", name)
	}
	return d, nil
}

// Names returns the registered database names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.dbs))
	for n := range r.dbs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close closes every connection source. It is called once at shutdown.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for name, d := range r.dbs {
		if d.DB == nil {
			continue
		}
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			continue
		}
		slog.Debug("closed database", "db", name)
		d.DB = nil
	}
	return errors.Join(errs...)
}
