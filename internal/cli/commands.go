package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/peerdb/internal/column"
	"github.com/roach88/peerdb/internal/largeselect"
	"github.com/roach88/peerdb/internal/txn"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and connect to every database",
		Long: `Load the configuration, open every configured database, create the
id broker table where a table needs it, and report what was registered.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, cmd)
		},
	}
}

func runCheck(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	ctx := cmd.Context()

	s, err := openSession(ctx, opts)
	if err != nil {
		return f.Fail("load configuration", err)
	}
	defer s.Close()

	tag := s.cfg.TransactionManager
	if tag == "" {
		tag = txn.DefaultManagerName
	}
	res := CheckResult{TransactionManager: tag}
	for _, name := range s.reg.Names() {
		d, err := s.reg.Lookup(name)
		if err != nil {
			return f.Fail("check "+name, err)
		}
		if err := d.DB.PingContext(ctx); err != nil {
			return f.Fail("ping "+name, err)
		}
		f.VerboseLog("connected to %s", name)
		res.Databases = append(res.Databases, DatabaseStatus{
			Name:    name,
			Adapter: d.Adapter.Name(),
			Driver:  s.cfg.Databases[name].Driver,
			Tables:  len(d.Map.Tables()),
			Default: name == s.reg.DefaultName(),
		})
	}
	return f.Success(res)
}

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Named map[string]string
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <sql> [args...]",
		Short: "Execute a statement",
		Long: `Execute one SQL statement in its own transaction and report the number
of affected rows. Positional "?" placeholders take the remaining arguments;
":name" placeholders take --named values.

Example:
  peerdb exec "UPDATE book SET price = ? WHERE book_id = ?" 9.5 12
  peerdb exec "DELETE FROM book WHERE title = :title" --named title=Dune`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args, cmd)
		},
	}

	cmd.Flags().StringToStringVar(&opts.Named, "named", nil, "named placeholder values (name=value)")

	return cmd
}

func runExec(opts *ExecOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return f.Fail("load configuration", err)
	}
	defer s.Close()

	exec := s.rows(nil)
	var n int64
	if len(opts.Named) > 0 {
		named := make(map[string]any, len(opts.Named))
		for k, v := range opts.Named {
			named[k] = v
		}
		n, err = exec.ExecuteNamed(ctx, args[0], named)
	} else {
		positional := make([]any, 0, len(args)-1)
		for _, a := range args[1:] {
			positional = append(positional, a)
		}
		n, err = exec.ExecuteStatement(ctx, args[0], positional...)
	}
	if err != nil {
		return f.Fail("execute statement", err)
	}
	return f.Success(Affected{Rows: n})
}

// SelectOptions holds flags for the select command.
type SelectOptions struct {
	*RootOptions
	queryFlags
	Limit  int
	Offset int
	Single bool
}

// NewSelectCommand creates the select command.
func NewSelectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SelectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "select <table>",
		Short: "Select rows of a configured table",
		Long: `Select rows of a table described in the configuration.

Example:
  peerdb select book --where author_id=3 --order -price --limit 10
  peerdb select book --columns book_id,title --single --where book_id=12`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelect(opts, args[0], cmd)
		},
	}

	addQueryFlags(cmd, &opts.queryFlags)
	cmd.Flags().IntVar(&opts.Limit, "limit", -1, "maximum number of rows (-1 for all)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "rows to skip")
	cmd.Flags().BoolVar(&opts.Single, "single", false, "expect at most one row")

	return cmd
}

func addQueryFlags(cmd *cobra.Command, q *queryFlags) {
	cmd.Flags().StringArrayVarP(&q.Where, "where", "w", nil, "equality condition column=value (repeatable, NULL for null)")
	cmd.Flags().StringSliceVar(&q.Columns, "columns", nil, "columns to select (default: all)")
	cmd.Flags().StringSliceVar(&q.Order, "order", nil, "order by columns; prefix with - for descending")
	cmd.Flags().BoolVar(&q.Distinct, "distinct", false, "select distinct rows")
}

func runSelect(opts *SelectOptions, table string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return f.Fail("load configuration", err)
	}
	defer s.Close()

	tm, err := s.table(table)
	if err != nil {
		return f.Fail("select", err)
	}
	c, err := opts.build(opts.Database, tm)
	if err != nil {
		return f.Fail("select", err)
	}
	c.SetLimit(opts.Limit).SetOffset(opts.Offset).SetSingleRecord(opts.Single)

	rows, err := s.rows(tm).Select(ctx, c)
	if err != nil {
		return f.Fail("select from "+tm.Name, err)
	}
	return f.Success(newRowSet(rows, columnNames(tm.Columns())))
}

// InsertOptions holds flags for the insert command.
type InsertOptions struct {
	*RootOptions
	Set []string
}

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InsertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "insert <table>",
		Short: "Insert one row into a configured table",
		Long: `Insert one row and report the generated key, if the table has an id
method. Values are converted to the configured column types.

Example:
  peerdb insert book --set title=Dune --set in_print=true`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInsert(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Set, "set", "s", nil, "column value column=value (repeatable, NULL for null)")

	return cmd
}

func runInsert(opts *InsertOptions, table string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return f.Fail("load configuration", err)
	}
	defer s.Close()

	tm, err := s.table(table)
	if err != nil {
		return f.Fail("insert", err)
	}
	set, err := parseAssignments(opts.Set)
	if err != nil {
		return f.Fail("insert", err)
	}

	vs := column.NewValues(opts.Database)
	for _, a := range set {
		cm, err := columnOf(tm, a.Column)
		if err != nil {
			return f.Fail("insert", err)
		}
		v, err := convertValue(cm, a.Value)
		if err != nil {
			return f.Fail("insert", err)
		}
		vs.Put(cm.Column(), column.NewValue(v, cm.SQLType))
	}

	key, err := s.rows(tm).Insert(ctx, vs)
	if err != nil {
		return f.Fail("insert into "+tm.Name, err)
	}
	return f.Success(Inserted{Table: tm.Name, Key: key})
}

// PageOptions holds flags for the page command.
type PageOptions struct {
	*RootOptions
	queryFlags
	PageSize    int
	MemoryPages int
	Page        int
	Count       int
}

// NewPageCommand creates the page command.
func NewPageCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PageOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "page <table>",
		Short: "Browse a table page by page",
		Long: `Browse the rows of a table page by page while holding at most
--memory-pages pages in memory. Prints --count pages starting at --page; a
count of 0 prints every remaining page.

Example:
  peerdb page book --order book_id --page-size 20 --page 3
  peerdb page book --order title --count 0 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPage(opts, args[0], cmd)
		},
	}

	addQueryFlags(cmd, &opts.queryFlags)
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 20, "rows per page")
	cmd.Flags().IntVar(&opts.MemoryPages, "memory-pages", 5, "pages held in memory")
	cmd.Flags().IntVarP(&opts.Page, "page", "p", 1, "first page to print")
	cmd.Flags().IntVar(&opts.Count, "count", 1, "pages to print (0 for all remaining)")

	return cmd
}

func runPage(opts *PageOptions, table string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return f.Fail("load configuration", err)
	}
	defer s.Close()

	tm, err := s.table(table)
	if err != nil {
		return f.Fail("page", err)
	}
	c, err := opts.build(opts.Database, tm)
	if err != nil {
		return f.Fail("page", err)
	}

	ls, err := largeselect.New(ctx, s.rows(tm), c, opts.PageSize, opts.MemoryPages)
	if err != nil {
		return f.Fail("page", err)
	}
	defer ls.Close()

	fallback := columnNames(tm.Columns())
	var pages PageList
	for n := opts.Page; opts.Count == 0 || n < opts.Page+opts.Count; n++ {
		rows, err := ls.GetPage(ctx, n)
		if err != nil {
			return f.Fail("page "+tm.Name, err)
		}
		if len(rows) == 0 && n > opts.Page {
			break
		}
		rs := newRowSet(rows, fallback)
		rs.Page = n
		rs.Records = ls.RecordProgress()
		rs.Pages = ls.PageProgress()
		rs.LastPage = ls.PerhapsLastPage()
		pages = append(pages, rs)
		f.VerboseLog("page %d: %d rows, %d restarts", n, len(rows), ls.Restarts())
		if rs.LastPage && opts.Count == 0 {
			break
		}
	}
	return f.Success(pages)
}
