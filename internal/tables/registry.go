package tables

import (
	"github.com/jward/symsql/internal/repo"
	"github.com/jward/symsql/internal/vtab"
)

// Registry holds the table definitions bound to one repository handle.
type Registry struct {
	tables []vtab.Table
	byName map[string]vtab.Table
}

// New defines every table over r.
func New(r repo.Repository) *Registry {
	g := &Registry{byName: make(map[string]vtab.Table)}
	for _, t := range []vtab.Table{
		Functions(r),
		Publics(r),
		Data(r),
		UDTs(r),
		Enums(r),
		Typedefs(r),
		Thunks(r),
		Labels(r),
		Compilands(r),
		SourceFiles(r),
		LineNumbers(r),
		Sections(r),
		UDTMembers(r),
		EnumValues(r),
		BaseClasses(r),
		Locals(r),
		Parameters(r),
	} {
		g.tables = append(g.tables, t)
		g.byName[t.Name()] = t
	}
	return g
}

// Tables returns the definitions in declaration order.
func (g *Registry) Tables() []vtab.Table {
	return g.tables
}

// Table looks a definition up by name.
func (g *Registry) Table(name string) (vtab.Table, bool) {
	t, ok := g.byName[name]
	return t, ok
}

// Names returns the table names in declaration order.
func (g *Registry) Names() []string {
	names := make([]string, len(g.tables))
	for i, t := range g.tables {
		names[i] = t.Name()
	}
	return names
}
