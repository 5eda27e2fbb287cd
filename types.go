package symsql

import (
	"github.com/jward/symsql/internal/dispatch"
	"github.com/jward/symsql/internal/repo"
)

// Public aliases for internal types that appear in the Engine API.

type Result = dispatch.Result
type Job = dispatch.Job
type Tag = repo.Tag
type Repository = repo.Repository

var (
	ErrStopped     = dispatch.ErrStopped
	ErrClosed      = repo.ErrClosed
	ErrNoDebugInfo = repo.ErrNoDebugInfo
)

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableInfo describes a table: its columns, its declaration and the
// columns whose equality predicates are answered by targeted lookups.
type TableInfo struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
	Indexed []string     `json:"indexed,omitempty"`
	Schema  string       `json:"schema"`
}

// Status is the health summary of an Engine.
type Status struct {
	Path      string `json:"path"`
	Functions int    `json:"functions"`
}
