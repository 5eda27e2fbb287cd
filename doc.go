// Package symsql exposes the debug symbols of a compiled binary as SQL
// tables. Functions, public symbols, global data, user-defined types,
// enums, typedefs, labels, compilands, source files, line numbers and
// sections each appear as a read-only SQLite virtual table, and the
// parent/child relationships between them (UDT members, enum values, base
// classes, locals, parameters) appear as tables of their own.
//
// # Loading
//
// [Open] reads DWARF from an ELF, Mach-O or PE binary, or a YAML/JSON
// snapshot previously written by `symsql dump`:
//
//	e, err := symsql.Open("a.out")
//	if err != nil { ... }
//	defer e.Close()
//
//	res, err := e.Query(ctx, "SELECT name, rva FROM functions WHERE name = 'main'")
//
// [New] builds an Engine over any [Repository], which is how tests supply
// in-memory fixtures.
//
// # Pushdown
//
// Each table declares the columns it can answer without a full scan.
// Equality predicates on those columns (id, name, and the parent key of
// child tables) are handed to the repository as targeted lookups; every
// other predicate is evaluated by SQLite over a streaming scan. Rows are
// produced lazily, so LIMIT stops enumeration early.
//
// # Concurrency
//
// The symbol repository may only be used by one thread. Every statement
// is queued on a single dispatcher worker that runs jobs in submission
// order, so [Engine.Query] and [Engine.Submit] are safe to call from any
// number of goroutines.
//
// # Build tags
//
// Virtual tables require building with the sqlite_vtable tag:
//
//	go build -tags sqlite_vtable ./cmd/symsql
//
// Without it, [New] returns an error wrapping vtab.ErrNoVTable.
package symsql
