package config

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/peerdb/internal/column"
	"github.com/roach88/peerdb/internal/dialect"
	"github.com/roach88/peerdb/internal/idgen"
	"github.com/roach88/peerdb/internal/registry"
	"github.com/roach88/peerdb/internal/schema"
	"github.com/roach88/peerdb/internal/sqlerr"
	"github.com/roach88/peerdb/internal/store"
	"github.com/roach88/peerdb/internal/txn"
)

// Bootstrap opens every configured database and returns the registry and
// the configured transaction manager. On error, sources opened so far are
// closed again.
func Bootstrap(ctx context.Context, cfg *Config) (*registry.Registry, txn.Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	def, _ := cfg.DefaultDatabase()
	reg := registry.New(def)

	names := make([]string, 0, len(cfg.Databases))
	for name := range cfg.Databases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := register(ctx, reg, name, cfg.Databases[name]); err != nil {
			if cerr := reg.Close(); cerr != nil {
				slog.Warn("close after failed bootstrap", "error", cerr)
			}
			return nil, nil, err
		}
	}

	mgr, err := txn.NewManager(cfg.TransactionManager, reg)
	if err != nil {
		reg.Close()
		return nil, nil, err
	}
	slog.Debug("bootstrap complete", "databases", names, "default", def)
	return reg, mgr, nil
}

func register(ctx context.Context, reg *registry.Registry, name string, dc Database) error {
	a, err := dialect.Lookup(dc.Adapter)
	if err != nil {
		return fmt.Errorf("database %s: %w", name, err)
	}
	open, err := LookupDatasource(dc.Datasource)
	if err != nil {
		return fmt.Errorf("database %s: %w", name, err)
	}

	d := reg.Database(name)
	d.Adapter = a
	d.Schema = dc.Schema
	d.Autocommit = dc.Autocommit
	if err := addTables(d.Map, dc); err != nil {
		return fmt.Errorf("database %s: %w", name, err)
	}

	db, err := open(ctx, name, dc)
	if err != nil {
		return sqlerr.Wrap(sqlerr.KindConfiguration, err, "database %s: %v", name, err)
	}
	d.DB = db

	idTable := dc.IDTable
	if idTable == "" {
		idTable = idgen.DefaultTable
	}
	methods := idMethods(d.Map, a)
	for _, m := range methods {
		if m == schema.IDBroker {
			if err := store.EnsureIDTable(ctx, db, dc.Driver, idTable); err != nil {
				return sqlerr.Wrap(sqlerr.KindConfiguration, err, "database %s: %v", name, err)
			}
		}
		g, err := idgen.New(m, a, db, idTable)
		if err != nil {
			return fmt.Errorf("database %s: %w", name, err)
		}
		d.SetIDGenerator(g)
	}

	slog.Debug("registered database",
		"db", name, "adapter", a.Name(), "driver", dc.Driver,
		"tables", len(dc.Tables), "id_methods", methods)
	return nil
}

// addTables copies the table metadata into m.
func addTables(m *schema.DatabaseMap, dc Database) error {
	for _, tc := range dc.Tables {
		method, err := schema.ParseIDMethod(tc.IDMethod)
		if err != nil {
			return sqlerr.Wrap(sqlerr.KindConfiguration, err, "table %s: %v", tc.Name, err)
		}
		t := m.AddTable(&schema.TableMap{
			Name:         tc.Name,
			Schema:       dc.Schema,
			IDMethod:     method,
			SequenceName: tc.Sequence,
		})
		for _, cc := range tc.Columns {
			sqlType := column.TypeOther
			if cc.Type != "" {
				sqlType, err = column.ParseSQLType(cc.Type)
				if err != nil {
					return sqlerr.Wrap(sqlerr.KindConfiguration, err, "column %s.%s: %v", tc.Name, cc.Name, err)
				}
			}
			storage := cc.Storage
			if storage == "" {
				storage = sqlType.String()
			}
			t.AddColumn(&schema.ColumnMap{
				Name:        cc.Name,
				StorageType: storage,
				SQLType:     sqlType,
				PrimaryKey:  cc.PrimaryKey,
				Size:        cc.Size,
			})
		}
	}
	return nil
}

// idMethods returns the distinct generated-key methods the tables use, with
// Native resolved through the adapter, in first-use order.
func idMethods(m *schema.DatabaseMap, a dialect.Adapter) []schema.IDMethod {
	var out []schema.IDMethod
	seen := make(map[schema.IDMethod]bool)
	for _, t := range m.Tables() {
		method := t.IDMethod
		if method == schema.Native {
			method = a.NativeIDMethod()
		}
		if method == "" || method == schema.NoIDMethod || seen[method] {
			continue
		}
		seen[method] = true
		out = append(out, method)
	}
	return out
}
