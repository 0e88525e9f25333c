package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/roach88/peerdb/internal/executor"
)

// RowSet is the output of select and of one page.
type RowSet struct {
	Page     int            `json:"page,omitempty"`
	Columns  []string       `json:"columns"`
	Rows     []executor.Row `json:"rows"`
	Records  string         `json:"records,omitempty"`
	Pages    string         `json:"pages,omitempty"`
	LastPage bool           `json:"last_page,omitempty"`
}

func newRowSet(rows []executor.Row, fallback []string) RowSet {
	cols := fallback
	if len(rows) > 0 {
		cols = rows[0].Columns
	}
	if rows == nil {
		rows = []executor.Row{}
	}
	return RowSet{Columns: cols, Rows: rows}
}

// WriteText renders the rows as an aligned table.
func (rs RowSet) WriteText(w io.Writer) error {
	if rs.Page > 0 {
		fmt.Fprintf(w, "page %s, records %s\n", rs.Pages, rs.Records)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(rs.Columns, "\t"))
	for _, r := range rs.Rows {
		cells := make([]string, len(r.Values))
		for i, v := range r.Values {
			cells[i] = formatCell(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "(%d rows)\n", len(rs.Rows))
	return err
}

func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}

// PageList is the output of the page command.
type PageList []RowSet

// WriteText renders each page in turn.
func (pl PageList) WriteText(w io.Writer) error {
	for i, rs := range pl {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := rs.WriteText(w); err != nil {
			return err
		}
	}
	return nil
}

// Affected is the output of exec.
type Affected struct {
	Rows int64 `json:"rows_affected"`
}

func (a Affected) String() string { return fmt.Sprintf("%d rows affected", a.Rows) }

// Inserted is the output of insert.
type Inserted struct {
	Table string `json:"table"`
	Key   any    `json:"key"`
}

func (i Inserted) String() string {
	if i.Key == nil {
		return fmt.Sprintf("inserted into %s", i.Table)
	}
	return fmt.Sprintf("inserted into %s, key %v", i.Table, i.Key)
}

// DatabaseStatus describes one database in the check output.
type DatabaseStatus struct {
	Name    string `json:"name"`
	Adapter string `json:"adapter"`
	Driver  string `json:"driver"`
	Tables  int    `json:"tables"`
	Default bool   `json:"default,omitempty"`
}

// CheckResult is the output of check.
type CheckResult struct {
	TransactionManager string           `json:"transaction_manager"`
	Databases          []DatabaseStatus `json:"databases"`
}

// WriteText renders one line per database.
func (c CheckResult) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATABASE\tADAPTER\tDRIVER\tTABLES\t")
	for _, d := range c.Databases {
		name := d.Name
		if d.Default {
			name += " (default)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t\n", name, d.Adapter, d.Driver, d.Tables)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "transaction manager: %s\n", c.TransactionManager)
	return err
}
