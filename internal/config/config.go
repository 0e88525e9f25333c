// Package config loads the database configuration and bootstraps the
// registry from it.
//
// A configuration is a YAML or CUE document:
//
//	default: main
//	transaction_manager: default
//	databases:
//	  main:
//	    adapter: sqlite
//	    driver: sqlite3
//	    dsn: file:shop.db?_busy_timeout=5000
//	    tables:
//	      - name: book
//	        id_method: idbroker
//	        columns:
//	          - {name: book_id, type: INTEGER, primary_key: true}
//	          - {name: title, type: VARCHAR}
//
// Environment variables in DSNs are expanded ($VAR or ${VAR}).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/peerdb/internal/sqlerr"
)

// Config is the root of a configuration document.
type Config struct {
	// Default names the database used when an operation names none.
	// It may be omitted when exactly one database is configured.
	Default string `yaml:"default" json:"default,omitempty"`

	// TransactionManager is the txn manager tag; "default" when empty.
	TransactionManager string `yaml:"transaction_manager" json:"transaction_manager,omitempty"`

	Databases map[string]Database `yaml:"databases" json:"databases"`
}

// Database configures one named database.
type Database struct {
	Adapter string `yaml:"adapter" json:"adapter"`
	Driver  string `yaml:"driver" json:"driver"`
	DSN     string `yaml:"dsn" json:"dsn"`

	// Datasource is the datasource factory tag; "driver" when empty.
	Datasource string `yaml:"datasource" json:"datasource,omitempty"`

	MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns,omitempty"`
	MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns,omitempty"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime" json:"conn_max_lifetime,omitempty"`

	Autocommit bool   `yaml:"autocommit" json:"autocommit,omitempty"`
	Schema     string `yaml:"schema" json:"schema,omitempty"`

	// IDTable is the IDBroker table; idgen.DefaultTable when empty.
	IDTable string `yaml:"id_table" json:"id_table,omitempty"`

	Tables []Table `yaml:"tables" json:"tables,omitempty"`
}

// Table is the metadata of one table.
type Table struct {
	Name     string `yaml:"name" json:"name"`
	IDMethod string `yaml:"id_method" json:"id_method,omitempty"`
	// Sequence is the id method parameter (sequence name or id table key).
	Sequence string   `yaml:"sequence" json:"sequence,omitempty"`
	Columns  []Column `yaml:"columns" json:"columns"`
}

// Column is the metadata of one column.
type Column struct {
	Name string `yaml:"name" json:"name"`
	// Type is an SQL type name such as INTEGER or VARCHAR.
	Type string `yaml:"type" json:"type,omitempty"`
	// Storage overrides the storage type, e.g. BOOLEANINT or BOOLEANCHAR.
	Storage    string `yaml:"storage" json:"storage,omitempty"`
	PrimaryKey bool   `yaml:"primary_key" json:"primary_key,omitempty"`
	Size       int    `yaml:"size" json:"size,omitempty"`
}

// Format is a configuration syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// FormatOf picks the format from a file extension. JSON is read as CUE.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue", ".json":
		return FormatCUE, nil
	default:
		return "", sqlerr.New(sqlerr.KindConfiguration, "config %s: unsupported extension", path)
	}
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sqlerr.Wrap(sqlerr.KindConfiguration, err, "read config %s", path)
	}
	return Parse(data, format, path)
}

// Parse decodes data in the given format. name is used in error messages.
func Parse(data []byte, format Format, name string) (*Config, error) {
	var cfg Config
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, sqlerr.Wrap(sqlerr.KindConfiguration, err, "parse %s: %v", name, err)
		}
	case FormatCUE:
		ctx := cuecontext.New()
		v := ctx.CompileBytes(data, cue.Filename(name))
		if err := v.Err(); err != nil {
			return nil, sqlerr.Wrap(sqlerr.KindConfiguration, err, "compile %s: %s", name, cueDetails(err))
		}
		if err := v.Validate(cue.Concrete(true)); err != nil {
			return nil, sqlerr.Wrap(sqlerr.KindConfiguration, err, "validate %s: %s", name, cueDetails(err))
		}
		if err := v.Decode(&cfg); err != nil {
			return nil, sqlerr.Wrap(sqlerr.KindConfiguration, err, "decode %s: %s", name, cueDetails(err))
		}
	default:
		return nil, sqlerr.New(sqlerr.KindConfiguration, "unknown config format %q", format)
	}
	return &cfg, nil
}

// cueDetails flattens a CUE error list, positions included.
func cueDetails(err error) string {
	return strings.TrimSpace(cueerrors.Details(err, nil))
}

// DefaultDatabase returns the name of the default database.
func (c *Config) DefaultDatabase() (string, error) {
	if c.Default != "" {
		if _, ok := c.Databases[c.Default]; !ok {
			return "", sqlerr.New(sqlerr.KindConfiguration, "default database %q is not configured", c.Default)
		}
		return c.Default, nil
	}
	if len(c.Databases) == 1 {
		for name := range c.Databases {
			return name, nil
		}
	}
	return "", sqlerr.New(sqlerr.KindConfiguration,
		"no default database among %d configured databases", len(c.Databases))
}

// Validate checks the settings Bootstrap cannot default.
func (c *Config) Validate() error {
	if len(c.Databases) == 0 {
		return sqlerr.New(sqlerr.KindConfiguration, "no databases configured")
	}
	if _, err := c.DefaultDatabase(); err != nil {
		return err
	}
	for name, d := range c.Databases {
		if d.Adapter == "" {
			return sqlerr.New(sqlerr.KindConfiguration, "database %s: no adapter", name)
		}
		if d.Driver == "" {
			return sqlerr.New(sqlerr.KindConfiguration, "database %s: no driver", name)
		}
		for i, t := range d.Tables {
			if t.Name == "" {
				return sqlerr.New(sqlerr.KindConfiguration, "database %s: table %d has no name", name, i)
			}
		}
	}
	return nil
}

// ExpandedDSN returns the DSN with environment variables expanded.
func (d Database) ExpandedDSN() string {
	return os.ExpandEnv(d.DSN)
}

// String renders the configuration as YAML.
func (c *Config) String() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(out)
}
