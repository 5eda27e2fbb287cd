package tables

import (
	"github.com/jward/symsql/internal/repo"
	"github.com/jward/symsql/internal/vtab"
)

// Pushdown costs. Lower is preferred when several predicates apply.
const (
	costByID        = 1.0
	rowsByID        = 1.0
	costByName      = 5.0
	rowsByName      = 10.0
	costByParent    = 10.0
	rowsByParent    = 100.0
	costByCompiland = 50.0
	rowsByCompiland = 1000.0
)

type symbolDef = vtab.Def[repo.Symbol]

func colID(s repo.Symbol) int64            { return int64(s.ID) }
func colName(s repo.Symbol) string         { return s.Name }
func colUndecorated(s repo.Symbol) string  { return s.Undecorated }
func colRVA(s repo.Symbol) int64           { return int64(s.RVA) }
func colLength(s repo.Symbol) int64        { return int64(s.Length) }
func colSection(s repo.Symbol) int         { return int(s.Section) }
func colAddressOffset(s repo.Symbol) int64 { return int64(s.AddressOffset) }

// symbolTable starts a table over every entry with tag.
func symbolTable(src source, tableName string, tag repo.Tag) *symbolDef {
	return vtab.Define[repo.Symbol](tableName).
		Estimate(src.count(tag, 1000)).
		Scan(func() (vtab.Generator[repo.Symbol], error) {
			return src.scan(tag)
		})
}

// withLookups adds id and name plans. accept narrows which entries an id
// lookup may return so that it agrees with the full scan.
func withLookups(d *symbolDef, src source, tag repo.Tag, accept func(*repo.Symbol) bool) *symbolDef {
	return d.
		FilterInt("id", costByID, rowsByID, func(v int64) (vtab.Generator[repo.Symbol], error) {
			return src.byID(tag, accept, v)
		}).
		FilterText("name", costByName, rowsByName, func(v string) (vtab.Generator[repo.Symbol], error) {
			return src.byName(tag, v)
		})
}

// Functions lists function entries.
func Functions(r repo.Repository) *symbolDef {
	src := source{r}
	d := symbolTable(src, "functions", repo.TagFunction).
		Int64("id", colID).
		Text("name", colName).
		Text("undecorated", colUndecorated).
		Int64("rva", colRVA).
		Int64("length", colLength).
		Int("section", colSection).
		Int64("offset", colAddressOffset)
	return withLookups(d, src, repo.TagFunction, nil)
}

// Publics lists linker-visible public symbols.
func Publics(r repo.Repository) *symbolDef {
	src := source{r}
	d := symbolTable(src, "publics", repo.TagPublicSymbol).
		Int64("id", colID).
		Text("name", colName).
		Text("undecorated", colUndecorated).
		Int64("rva", colRVA).
		Int64("length", colLength).
		Int("section", colSection).
		Int64("offset", colAddressOffset)
	return withLookups(d, src, repo.TagPublicSymbol, nil)
}

// isGlobal accepts data at global scope, matching what Enumerate yields.
func isGlobal(s *repo.Symbol) bool { return s.ParentID == 0 }

// Data lists global data.
func Data(r repo.Repository) *symbolDef {
	src := source{r}
	d := symbolTable(src, "data", repo.TagData).
		Int64("id", colID).
		Text("name", colName).
		Int64("rva", colRVA).
		Int64("length", colLength).
		Int("section", colSection).
		Int64("offset", colAddressOffset)
	return withLookups(d, src, repo.TagData, isGlobal)
}

// UDTs lists structs, classes, unions and interfaces.
func UDTs(r repo.Repository) *symbolDef {
	src := source{r}
	d := symbolTable(src, "udts", repo.TagUDT).
		Int64("id", colID).
		Text("name", colName).
		Text("kind", func(s repo.Symbol) string { return s.UDTKind.String() }).
		Int64("length", colLength)
	return withLookups(d, src, repo.TagUDT, nil)
}

// Enums lists enumeration types.
func Enums(r repo.Repository) *symbolDef {
	src := source{r}
	d := symbolTable(src, "enums", repo.TagEnum).
		Int64("id", colID).
		Text("name", colName).
		Int64("length", colLength)
	return withLookups(d, src, repo.TagEnum, nil)
}

// Typedefs lists type aliases.
func Typedefs(r repo.Repository) *symbolDef {
	src := source{r}
	d := symbolTable(src, "typedefs", repo.TagTypedef).
		Int64("id", colID).
		Text("name", colName).
		Int64("length", colLength)
	return withLookups(d, src, repo.TagTypedef, nil)
}

// Thunks lists thunk entries.
func Thunks(r repo.Repository) *symbolDef {
	src := source{r}
	d := symbolTable(src, "thunks", repo.TagThunk).
		Int64("id", colID).
		Text("name", colName).
		Int64("rva", colRVA).
		Int64("length", colLength).
		Int("section", colSection)
	return withLookups(d, src, repo.TagThunk, nil)
}

// Labels lists code labels.
func Labels(r repo.Repository) *symbolDef {
	src := source{r}
	d := symbolTable(src, "labels", repo.TagLabel).
		Int64("id", colID).
		Text("name", colName).
		Int64("rva", colRVA).
		Int("section", colSection).
		Int64("offset", colAddressOffset)
	return withLookups(d, src, repo.TagLabel, nil)
}
