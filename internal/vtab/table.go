package vtab

import (
	"fmt"
	"strings"
)

// ColumnType is the declared SQL type of a column.
type ColumnType int

const (
	Int ColumnType = iota
	Int64
	Text
)

// SQL returns the type name used in the table's declaration.
func (t ColumnType) SQL() string {
	if t == Text {
		return "TEXT"
	}
	return "INTEGER"
}

// Column extracts one value from a row. Values are int64 for integer
// columns and string for text columns.
type Column[T any] struct {
	Name  string
	Type  ColumnType
	Value func(T) any
}

// ColumnInfo describes a column independent of the row type.
type ColumnInfo struct {
	Name string
	Type ColumnType
}

// FilterInfo describes a pushdown plan for documentation.
type FilterInfo struct {
	Column string
	Cost   float64
	Rows   float64
}

// Cursor is the row-type-erased view of a Generator used by the SQL glue.
type Cursor interface {
	Next() bool
	Column(i int) any
	Position() int64
}

// Table is the row-type-erased view of a Def.
type Table interface {
	Name() string
	Columns() []ColumnInfo
	Filters() []FilterInfo
	Schema() string
	EstimateRows() float64
	BestPlan(cons []Constraint) Plan
	Open(plan Plan, arg any) (Cursor, error)
}

type filter[T any] struct {
	col        int
	cost, rows float64
	open       func(any) (Generator[T], error)
}

// Def is a declarative table definition over rows of type T.
type Def[T any] struct {
	name     string
	cols     []Column[T]
	index    map[string]int
	scan     func() (Generator[T], error)
	estimate func() float64
	filters  []filter[T]
}

// Compile-time check: *Def satisfies Table.
var _ Table = (*Def[struct{}])(nil)

// Define starts a table definition. Columns, a scan and optional filters
// are added with the builder methods.
func Define[T any](name string) *Def[T] {
	return &Def[T]{name: name, index: make(map[string]int)}
}

func (d *Def[T]) add(name string, typ ColumnType, get func(T) any) *Def[T] {
	if _, dup := d.index[name]; dup {
		panic(fmt.Sprintf("vtab: %s: duplicate column %q", d.name, name))
	}
	d.index[name] = len(d.cols)
	d.cols = append(d.cols, Column[T]{Name: name, Type: typ, Value: get})
	return d
}

// Int adds a 32-bit integer column.
func (d *Def[T]) Int(name string, get func(T) int) *Def[T] {
	return d.add(name, Int, func(row T) any { return int64(get(row)) })
}

// Int64 adds a wide integer column.
func (d *Def[T]) Int64(name string, get func(T) int64) *Def[T] {
	return d.add(name, Int64, func(row T) any { return get(row) })
}

// Text adds a text column.
func (d *Def[T]) Text(name string, get func(T) string) *Def[T] {
	return d.add(name, Text, func(row T) any { return get(row) })
}

// Bool adds an integer column holding 0 or 1.
func (d *Def[T]) Bool(name string, get func(T) bool) *Def[T] {
	return d.add(name, Int, func(row T) any {
		if get(row) {
			return int64(1)
		}
		return int64(0)
	})
}

// Scan sets the full-scan generator factory.
func (d *Def[T]) Scan(open func() (Generator[T], error)) *Def[T] {
	d.scan = open
	return d
}

// Estimate sets the row-count estimator used for full scans.
func (d *Def[T]) Estimate(fn func() float64) *Def[T] {
	d.estimate = fn
	return d
}

// FilterInt registers an equality plan on an integer column. Literals that
// do not coerce to an integer produce no rows.
func (d *Def[T]) FilterInt(column string, cost, rows float64, open func(int64) (Generator[T], error)) *Def[T] {
	return d.addFilter(column, cost, rows, func(v any) (Generator[T], error) {
		n, ok := AsInt(v)
		if !ok {
			return Empty[T](), nil
		}
		return open(n)
	})
}

// FilterText registers an equality plan on a text column.
func (d *Def[T]) FilterText(column string, cost, rows float64, open func(string) (Generator[T], error)) *Def[T] {
	return d.addFilter(column, cost, rows, func(v any) (Generator[T], error) {
		s, ok := AsText(v)
		if !ok {
			return Empty[T](), nil
		}
		return open(s)
	})
}

func (d *Def[T]) addFilter(column string, cost, rows float64, open func(any) (Generator[T], error)) *Def[T] {
	i, ok := d.index[column]
	if !ok {
		panic(fmt.Sprintf("vtab: %s: filter on unknown column %q", d.name, column))
	}
	d.filters = append(d.filters, filter[T]{col: i, cost: cost, rows: rows, open: open})
	return d
}

func (d *Def[T]) Name() string { return d.name }

func (d *Def[T]) Columns() []ColumnInfo {
	out := make([]ColumnInfo, len(d.cols))
	for i, c := range d.cols {
		out[i] = ColumnInfo{Name: c.Name, Type: c.Type}
	}
	return out
}

func (d *Def[T]) Filters() []FilterInfo {
	out := make([]FilterInfo, len(d.filters))
	for i, f := range d.filters {
		out[i] = FilterInfo{Column: d.cols[f.col].Name, Cost: f.cost, Rows: f.rows}
	}
	return out
}

// Schema returns the CREATE TABLE statement declared to SQLite.
func (d *Def[T]) Schema() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE %q(", d.name)
	for i, c := range d.cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q %s", c.Name, c.Type.SQL())
	}
	sb.WriteString(")")
	return sb.String()
}

func (d *Def[T]) EstimateRows() float64 {
	if d.estimate == nil {
		return 1000
	}
	return d.estimate()
}

// Generator returns a typed generator for plan. Tests and Go callers use
// it directly; the SQL glue goes through Open.
func (d *Def[T]) Generator(plan Plan, arg any) (Generator[T], error) {
	if plan.Filter < 0 {
		if d.scan == nil {
			return Empty[T](), nil
		}
		return d.scan()
	}
	if plan.Filter >= len(d.filters) {
		return nil, fmt.Errorf("vtab: %s: no filter plan %d", d.name, plan.Filter)
	}
	return d.filters[plan.Filter].open(arg)
}

// Lookup builds the generator for an equality predicate on column, or the
// full scan when the column has no plan.
func (d *Def[T]) Lookup(column string, arg any) (Generator[T], error) {
	i, ok := d.index[column]
	if !ok {
		return nil, fmt.Errorf("vtab: %s: no column %q", d.name, column)
	}
	plan := d.BestPlan([]Constraint{{Column: i, Op: OpEQ, Usable: true}})
	return d.Generator(plan, arg)
}

func (d *Def[T]) Open(plan Plan, arg any) (Cursor, error) {
	g, err := d.Generator(plan, arg)
	if err != nil {
		return nil, err
	}
	return &cursor[T]{gen: g, cols: d.cols}, nil
}

// Value reads column i of row.
func (d *Def[T]) Value(row T, i int) any {
	return d.cols[i].Value(row)
}

type cursor[T any] struct {
	gen  Generator[T]
	cols []Column[T]
}

func (c *cursor[T]) Next() bool      { return c.gen.Next() }
func (c *cursor[T]) Position() int64 { return c.gen.Position() }

func (c *cursor[T]) Column(i int) any {
	if i < 0 || i >= len(c.cols) {
		return nil
	}
	return c.cols[i].Value(c.gen.Current())
}
