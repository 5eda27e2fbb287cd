//go:build sqlite_vtable

package vtab

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"unsafe"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// Available reports whether SQLite virtual table support is compiled in.
const Available = true

// OpenDB opens a private in-memory SQLite database on which every table is
// an eponymous virtual table. The pool holds a single connection so every
// statement runs on the same SQLite handle. The connection is query-only
// and cannot attach other databases.
func OpenDB(tables []Table) (*sql.DB, error) {
	drv := &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			conn.SetLimit(sqlite3.SQLITE_LIMIT_ATTACHED, 0)
			if _, err := conn.Exec("PRAGMA query_only = ON", nil); err != nil {
				return fmt.Errorf("vtab: query_only: %w", err)
			}
			for _, t := range tables {
				if err := conn.CreateModule(t.Name(), &module{t: t}); err != nil {
					return fmt.Errorf("vtab: register %s: %w", t.Name(), err)
				}
			}
			return nil
		},
	}
	db := sql.OpenDB(&connector{drv: drv, dsn: ":memory:"})
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

type connector struct {
	drv *sqlite3.SQLiteDriver
	dsn string
}

func (c *connector) Connect(context.Context) (driver.Conn, error) { return c.drv.Open(c.dsn) }
func (c *connector) Driver() driver.Driver                        { return c.drv }

// module registers one Table. Being eponymous-only, the table exists under
// its own name without CREATE VIRTUAL TABLE.
type module struct {
	t Table
}

func (m *module) EponymousOnlyModule() {}

func (m *module) Create(c *sqlite3.SQLiteConn, args []string) (sqlite3.VTab, error) {
	return m.Connect(c, args)
}

func (m *module) Connect(c *sqlite3.SQLiteConn, args []string) (sqlite3.VTab, error) {
	if err := c.DeclareVTab(m.t.Schema()); err != nil {
		return nil, fmt.Errorf("vtab: declare %s: %w", m.t.Name(), err)
	}
	return &table{t: m.t}, nil
}

func (m *module) DestroyModule() {}

type table struct {
	t Table
}

// BestIndex hands at most one equality constraint to Filter. idxNum is the
// chosen filter plan plus one, zero meaning a full scan.
func (v *table) BestIndex(cons []sqlite3.InfoConstraint, _ []sqlite3.InfoOrderBy) (*sqlite3.IndexResult, error) {
	in := make([]Constraint, len(cons))
	for i, c := range cons {
		op := OpOther
		if c.Op == sqlite3.OpEQ {
			op = OpEQ
		}
		in[i] = Constraint{Column: c.Column, Op: op, Usable: c.Usable}
	}
	plan := v.t.BestPlan(in)

	used := make([]bool, len(cons))
	if plan.Constraint >= 0 {
		used[plan.Constraint] = true
	}
	return &sqlite3.IndexResult{
		Used:          used,
		IdxNum:        plan.Filter + 1,
		EstimatedCost: plan.Cost,
		EstimatedRows: plan.Rows,
	}, nil
}

func (v *table) Open() (sqlite3.VTabCursor, error) {
	return &vcursor{t: v.t}, nil
}

func (v *table) Disconnect() error { return nil }
func (v *table) Destroy() error    { return nil }

var nul byte

// emptyText is a zero-length string with a non-nil data pointer.
var emptyText = unsafe.String(&nul, 0)

type vcursor struct {
	t   Table
	cur Cursor
	eof bool
}

func (c *vcursor) Filter(idxNum int, _ string, vals []any) error {
	plan := Plan{Filter: idxNum - 1, Constraint: -1}
	var arg any
	if len(vals) > 0 {
		arg = vals[0]
	}
	cur, err := c.t.Open(plan, arg)
	if err != nil {
		c.cur, c.eof = nil, true
		return fmt.Errorf("%s: %w", c.t.Name(), err)
	}
	c.cur = cur
	c.eof = !cur.Next()
	return nil
}

func (c *vcursor) Next() error {
	if c.cur == nil {
		c.eof = true
		return nil
	}
	c.eof = !c.cur.Next()
	return nil
}

func (c *vcursor) EOF() bool { return c.eof }

func (c *vcursor) Column(ctx *sqlite3.SQLiteContext, col int) error {
	if c.cur == nil {
		ctx.ResultNull()
		return nil
	}
	switch v := c.cur.Column(col).(type) {
	case int64:
		ctx.ResultInt64(v)
	case string:
		if v == "" {
			// ResultText turns a nil data pointer into NULL.
			v = emptyText
		}
		ctx.ResultText(v)
	default:
		ctx.ResultNull()
	}
	return nil
}

func (c *vcursor) Rowid() (int64, error) {
	if c.cur == nil {
		return 0, nil
	}
	return c.cur.Position(), nil
}

func (c *vcursor) Close() error {
	c.cur = nil
	return nil
}
