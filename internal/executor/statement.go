package executor

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/roach88/peerdb/internal/sqlerr"
	"github.com/roach88/peerdb/internal/txn"
)

// namedParam matches ":identifier" followed by whitespace or end of text at
// the start of the remaining statement text.
var namedParam = regexp.MustCompile(`^:(\w+)(\s|$)`)

// ExecuteStatement runs an arbitrary statement with positional "?"
// placeholders on the default database in a handle of its own and returns
// the number of affected rows.
func (e *Executor[T]) ExecuteStatement(ctx context.Context, sqlText string, args ...any) (int64, error) {
	return e.ExecuteStatementOn(ctx, e.dbName, sqlText, args...)
}

// ExecuteStatementOn is ExecuteStatement on the named database.
func (e *Executor[T]) ExecuteStatementOn(ctx context.Context, dbName, sqlText string, args ...any) (int64, error) {
	var n int64
	err := txn.Run(ctx, e.mgr, dbName, func(h *txn.Handle) error {
		var err error
		n, err = e.ExecuteStatementWith(ctx, h, sqlText, args...)
		return err
	})
	return n, err
}

// ExecuteStatementWith is ExecuteStatement on h.
func (e *Executor[T]) ExecuteStatementWith(ctx context.Context, h *txn.Handle, sqlText string, args ...any) (int64, error) {
	return e.exec(ctx, h, "execute statement", sqlText, args)
}

// ExecuteNamed runs a statement with ":name" placeholders on the default
// database in a handle of its own. Placeholders are rewritten to "?" and
// their values passed in order of occurrence.
func (e *Executor[T]) ExecuteNamed(ctx context.Context, sqlText string, named map[string]any) (int64, error) {
	positional, args, err := RewriteNamed(sqlText, named)
	if err != nil {
		return 0, err
	}
	return e.ExecuteStatement(ctx, positional, args...)
}

// ExecuteNamedWith is ExecuteNamed on h.
func (e *Executor[T]) ExecuteNamedWith(ctx context.Context, h *txn.Handle, sqlText string, named map[string]any) (int64, error) {
	positional, args, err := RewriteNamed(sqlText, named)
	if err != nil {
		return 0, err
	}
	return e.ExecuteStatementWith(ctx, h, positional, args...)
}

// RewriteNamed replaces every ":name" placeholder that is followed by
// whitespace or the end of the text with "?" and returns the values in
// placeholder order. A name may occur more than once. Text inside single or
// double quotes and "::" casts are left alone. A placeholder without a value
// is a contract error.
func RewriteNamed(sqlText string, named map[string]any) (string, []any, error) {
	var (
		b     strings.Builder
		args  []any
		quote byte
	)
	b.Grow(len(sqlText))
	for i := 0; i < len(sqlText); i++ {
		ch := sqlText[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == ':' && i+1 < len(sqlText) && sqlText[i+1] == ':':
			b.WriteString("::")
			i++
			continue
		case ch == ':':
			m := namedParam.FindStringSubmatchIndex(sqlText[i:])
			if m == nil {
				break
			}
			name := sqlText[i+m[2] : i+m[3]]
			v, ok := named[name]
			if !ok {
				return "", nil, sqlerr.New(sqlerr.KindContract, "no value for placeholder :%s", name)
			}
			args = append(args, v)
			b.WriteByte('?')
			// the terminating whitespace is copied by the next iteration
			i += m[3] - 1
			continue
		}
		b.WriteByte(ch)
	}
	return b.String(), args, nil
}

// exec runs a statement on h and returns the affected row count.
func (e *Executor[T]) exec(ctx context.Context, h *txn.Handle, op, sqlText string, args []any) (int64, error) {
	slog.Debug("execute", "db", h.DBName(), "tx", h.ID(), "sql", sqlText)
	res, err := h.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, sqlerr.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, sqlerr.Classify(err))
	}
	return n, nil
}
