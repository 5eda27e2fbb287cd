package vtab

import "errors"

// ErrNoVTable is returned by OpenDB when the binary was built without the
// sqlite_vtable tag.
var ErrNoVTable = errors.New("vtab: SQLite virtual tables not compiled in (build with -tags sqlite_vtable)")
