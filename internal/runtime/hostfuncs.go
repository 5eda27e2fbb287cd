package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/symsql/internal/dispatch"
)

// readOnly reports whether a statement only reads.
func readOnly(sql string) bool {
	s := strings.ToUpper(strings.TrimSpace(sql))
	for _, kw := range []string{"SELECT", "WITH", "VALUES", "EXPLAIN"} {
		if strings.HasPrefix(s, kw) {
			return true
		}
	}
	return false
}

func runQuery(ctx context.Context, q Querier, name string, args []object.Object) (*dispatch.Result, *object.Error) {
	if len(args) != 1 {
		return nil, object.NewArgsError(name, 1, len(args))
	}
	sql, err := toString(args[0])
	if err != nil {
		return nil, object.Errorf("%s: %v", name, err)
	}
	if !readOnly(sql) {
		return nil, object.Errorf("%s: only read-only statements are allowed", name)
	}
	res, err := q.Query(ctx, sql)
	if err != nil {
		return nil, object.Errorf("%s: %v", name, err)
	}
	return res, nil
}

// makeQueryFn creates the "query" host function.
//
// query(sql) → list of maps (column name → value)
func makeQueryFn(q Querier) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		res, errObj := runQuery(ctx, q, "query", args)
		if errObj != nil {
			return errObj
		}
		rows := make([]object.Object, 0, len(res.Rows))
		for _, vals := range res.Rows {
			row := make(map[string]object.Object, len(res.Columns))
			for i, col := range res.Columns {
				row[col] = sqlValueToObject(vals[i])
			}
			rows = append(rows, object.NewMap(row))
		}
		return object.NewList(rows)
	})
}

// makeQueryRowsFn creates "query_rows", which keeps column order.
//
// query_rows(sql) → {"columns": [...], "rows": [[...], ...]}
func makeQueryRowsFn(q Querier) *object.Builtin {
	return object.NewBuiltin("query_rows", func(ctx context.Context, args ...object.Object) object.Object {
		res, errObj := runQuery(ctx, q, "query_rows", args)
		if errObj != nil {
			return errObj
		}
		cols := make([]object.Object, len(res.Columns))
		for i, c := range res.Columns {
			cols[i] = object.NewString(c)
		}
		rows := make([]object.Object, 0, len(res.Rows))
		for _, vals := range res.Rows {
			row := make([]object.Object, len(vals))
			for i, v := range vals {
				row[i] = sqlValueToObject(v)
			}
			rows = append(rows, object.NewList(row))
		}
		return object.NewMap(map[string]object.Object{
			"columns": object.NewList(cols),
			"rows":    object.NewList(rows),
		})
	})
}

// makeTablesFn creates "tables".
//
// tables() → list of table names
func makeTablesFn(q Querier) *object.Builtin {
	return object.NewBuiltin("tables", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("tables", 0, len(args))
		}
		names := q.TableNames()
		out := make([]object.Object, len(names))
		for i, n := range names {
			out[i] = object.NewString(n)
		}
		return object.NewList(out)
	})
}

// sqlValueToObject converts a database value to a Risor object.
func sqlValueToObject(v any) object.Object {
	if v == nil {
		return object.Nil
	}
	switch val := v.(type) {
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case []byte:
		return object.NewString(string(val))
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

// logObject provides log.Info/Warn/Error for scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string)  { l.logger.Info(msg, "source", "script") }
func (l *logObject) Warn(msg string)  { l.logger.Warn(msg, "source", "script") }
func (l *logObject) Error(msg string) { l.logger.Error(msg, "source", "script") }
