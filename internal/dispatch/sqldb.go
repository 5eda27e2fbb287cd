package dispatch

import (
	"context"
	"database/sql"
	"fmt"
)

// QueryDB returns an Executor that runs statements on db and collects
// every row. BLOB values are returned as strings.
func QueryDB(db *sql.DB) Executor {
	return ExecutorFunc(func(ctx context.Context, query string) (*Result, error) {
		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("dispatch: query: %w", err)
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("dispatch: columns: %w", err)
		}
		res := &Result{Columns: cols, Rows: [][]any{}}
		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return nil, fmt.Errorf("dispatch: scan: %w", err)
			}
			for i, v := range vals {
				if b, ok := v.([]byte); ok {
					vals[i] = string(b)
				}
			}
			res.Rows = append(res.Rows, vals)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("dispatch: rows: %w", err)
		}
		return res, nil
	})
}
