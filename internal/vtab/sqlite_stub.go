//go:build !sqlite_vtable

package vtab

import "database/sql"

// Available reports whether SQLite virtual table support is compiled in.
const Available = false

// OpenDB fails: go-sqlite3 only builds its virtual table API with the
// sqlite_vtable tag.
func OpenDB(tables []Table) (*sql.DB, error) {
	return nil, ErrNoVTable
}
