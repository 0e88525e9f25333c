package cli

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/peerdb/internal/column"
	"github.com/roach88/peerdb/internal/config"
	"github.com/roach88/peerdb/internal/criteria"
	"github.com/roach88/peerdb/internal/executor"
	"github.com/roach88/peerdb/internal/registry"
	"github.com/roach88/peerdb/internal/schema"
	"github.com/roach88/peerdb/internal/sqlerr"
	"github.com/roach88/peerdb/internal/txn"
)

// session is the bootstrapped configuration behind one command run.
type session struct {
	cfg    *config.Config
	reg    *registry.Registry
	mgr    txn.Manager
	dbName string
}

func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	reg, mgr, err := config.Bootstrap(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, reg: reg, mgr: mgr, dbName: opts.Database}, nil
}

func (s *session) Close() {
	if err := s.reg.Close(); err != nil {
		slog.Warn("close databases", "error", err)
	}
}

// table returns the metadata of the named table.
func (s *session) table(name string) (*schema.TableMap, error) {
	d, err := s.reg.Lookup(s.dbName)
	if err != nil {
		return nil, err
	}
	return d.Table(name)
}

// rows returns a Row executor for tm, or for plain statements when tm is
// nil. Boolean storage columns of tm are read back as booleans.
func (s *session) rows(tm *schema.TableMap) *executor.Executor[executor.Row] {
	table := ""
	if tm != nil {
		table = tm.Name
	}
	return executor.New(s.reg, s.mgr, s.dbName, table, executor.MapRowFor(tm))
}

// assignment is one "column=value" argument.
type assignment struct {
	Column string
	Value  string
}

func parseAssignments(args []string) ([]assignment, error) {
	out := make([]assignment, 0, len(args))
	for _, a := range args {
		col, val, ok := strings.Cut(a, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, sqlerr.New(sqlerr.KindContract, "expected column=value, got %q", a)
		}
		out = append(out, assignment{Column: col, Value: val})
	}
	return out, nil
}

// columnOf resolves a column name of tm.
func columnOf(tm *schema.TableMap, name string) (*schema.ColumnMap, error) {
	cm, ok := tm.ColumnByName(name)
	if !ok {
		return nil, sqlerr.New(sqlerr.KindContract, "table %s has no column %s", tm.Name, name)
	}
	return cm, nil
}

// convertValue turns command line text into a value of the column's type.
// The text NULL is the null value.
func convertValue(cm *schema.ColumnMap, s string) (any, error) {
	if s == "NULL" {
		return nil, nil
	}
	var (
		v   any
		err error
	)
	switch {
	case cm.IsBooleanInt() || cm.IsBooleanChar() || cm.SQLType == column.TypeBoolean:
		v, err = strconv.ParseBool(s)
	case cm.SQLType == column.TypeTinyInt || cm.SQLType == column.TypeInteger || cm.SQLType == column.TypeBigInt:
		v, err = strconv.ParseInt(s, 10, 64)
	case cm.SQLType == column.TypeNumeric || cm.SQLType == column.TypeDouble:
		v, err = strconv.ParseFloat(s, 64)
	default:
		v = s
	}
	if err != nil {
		return nil, sqlerr.Wrap(sqlerr.KindContract, err, "column %s: %q is not a %s", cm.Name, s, cm.SQLType)
	}
	return v, nil
}

// queryFlags are the criteria flags shared by select and page.
type queryFlags struct {
	Where    []string
	Columns  []string
	Order    []string
	Distinct bool
}

// build turns the flags into criteria on tm. Order entries prefixed with
// "-" sort descending.
func (q *queryFlags) build(dbName string, tm *schema.TableMap) (*criteria.Criteria, error) {
	c := criteria.New().SetDistinct(q.Distinct)
	c.DBName = dbName

	for _, name := range q.Columns {
		cm, err := columnOf(tm, strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		c.AddSelectColumn(cm.Column())
	}

	where, err := parseAssignments(q.Where)
	if err != nil {
		return nil, err
	}
	for _, a := range where {
		cm, err := columnOf(tm, a.Column)
		if err != nil {
			return nil, err
		}
		v, err := convertValue(cm, a.Value)
		if err != nil {
			return nil, err
		}
		c.WhereEq(cm.Column(), v)
	}

	for _, o := range q.Order {
		name, desc := strings.CutPrefix(strings.TrimSpace(o), "-")
		cm, err := columnOf(tm, name)
		if err != nil {
			return nil, err
		}
		if desc {
			c.AddDescendingOrderBy(cm.Column())
		} else {
			c.AddAscendingOrderBy(cm.Column())
		}
	}
	return c, nil
}

func columnNames(cols []*schema.ColumnMap) []string {
	names := make([]string, len(cols))
	for i, cm := range cols {
		names[i] = cm.Name
	}
	return names
}
