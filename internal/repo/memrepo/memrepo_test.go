package memrepo

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/symsql/internal/repo"
)

// newTestRepo builds a small repository covering every entry kind.
func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	b := NewBuilder("test.exe")

	cu := b.AddSymbol(repo.Symbol{Tag: repo.TagCompiland, Name: "main.obj", Library: "app.lib", Language: 1})
	intType := b.AddSymbol(repo.Symbol{Tag: repo.TagBaseType, Name: "int", Length: 4})
	fn := b.AddSymbol(repo.Symbol{Tag: repo.TagFunction, ParentID: cu, Name: "main", RVA: 0x1000, Length: 0x40, Section: 1})
	b.AddSymbol(repo.Symbol{Tag: repo.TagData, ParentID: fn, Name: "argc", DataKind: repo.DataParam, TypeID: intType, Location: repo.LocRegRel, Offset: 8})
	b.AddSymbol(repo.Symbol{Tag: repo.TagData, ParentID: fn, Name: "i", DataKind: repo.DataLocal, TypeID: intType, Location: repo.LocRegRel, Offset: -4})
	b.AddSymbol(repo.Symbol{Tag: repo.TagData, Name: "g_count", DataKind: repo.DataGlobal, RVA: 0x3000, Length: 4})
	udt := b.AddSymbol(repo.Symbol{Tag: repo.TagUDT, Name: "Point", Length: 8})
	b.AddSymbol(repo.Symbol{Tag: repo.TagData, ParentID: udt, Name: "x", DataKind: repo.DataMember, TypeID: intType, Location: repo.LocThisRel})
	b.AddSymbol(repo.Symbol{Tag: repo.TagData, ParentID: udt, Name: "y", DataKind: repo.DataMember, TypeID: intType, Location: repo.LocThisRel, Offset: 4})

	file := b.AddSourceFile(repo.SourceFile{Name: "main.c"})
	b.AddLine(repo.LineNumber{FileID: file, CompilandID: cu, Line: 3, RVA: 0x1000, Length: 8})
	b.AddLine(repo.LineNumber{FileID: file, CompilandID: cu, Line: 4, RVA: 0x1008, Length: 4})
	b.AddSectionContrib(repo.SectionContrib{Section: 1, RVA: 0x1000, Length: 0x100, Execute: true, Code: true})

	r := b.Build()
	t.Cleanup(func() { r.Close() })
	return r
}

func TestEnumerate_DataIsGlobalOnly(t *testing.T) {
	t.Parallel()
	r := newTestRepo(t)

	e, err := r.Enumerate(repo.TagData)
	require.NoError(t, err)
	got, err := repo.Collect(e)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "g_count", got[0].Name)

	n, err := r.Count(repo.TagData)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFindByName(t *testing.T) {
	t.Parallel()
	r := newTestRepo(t)

	e, err := r.FindByName("main", repo.TagFunction)
	require.NoError(t, err)
	got, err := repo.Collect(e)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(0x1000), got[0].RVA)

	e, err = r.FindByName("main", repo.TagUDT)
	require.NoError(t, err)
	got, err = repo.Collect(e)
	require.NoError(t, err)
	assert.Empty(t, got, "tag is part of the key")

	e, err = r.FindByName("MAIN", repo.TagFunction)
	require.NoError(t, err)
	got, err = repo.Collect(e)
	require.NoError(t, err)
	assert.Empty(t, got, "lookups are case-sensitive")
}

func TestFindByName_EmptyName(t *testing.T) {
	t.Parallel()
	b := NewBuilder("anon.exe")
	b.AddSymbol(repo.Symbol{Tag: repo.TagUDT, Name: "", Length: 4})
	b.AddSymbol(repo.Symbol{Tag: repo.TagUDT, Name: "Named", Length: 8})
	r := b.Build()

	e, err := r.FindByName("", repo.TagUDT)
	require.NoError(t, err)
	got, err := repo.Collect(e)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(4), got[0].Length)
}

func TestChildren_FiltersByTagAndKeepsOrder(t *testing.T) {
	t.Parallel()
	r := newTestRepo(t)

	e, err := r.FindByName("Point", repo.TagUDT)
	require.NoError(t, err)
	udt, err := e.Next()
	require.NoError(t, err)

	ce, err := r.Children(udt, repo.TagData)
	require.NoError(t, err)
	members, err := repo.Collect(ce)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "x", members[0].Name)
	assert.Equal(t, "y", members[1].Name)
	assert.Equal(t, "int", members[1].TypeName, "type names resolved at build")

	ce, err = r.Children(udt, repo.TagBaseClass)
	require.NoError(t, err)
	bases, err := repo.Collect(ce)
	require.NoError(t, err)
	assert.Empty(t, bases)
}

func TestSymbolByID_Missing(t *testing.T) {
	t.Parallel()
	r := newTestRepo(t)

	sym, err := r.SymbolByID(9999)
	require.NoError(t, err)
	assert.Nil(t, sym)
}

func TestSourceFilesAndLines(t *testing.T) {
	t.Parallel()
	r := newTestRepo(t)

	e, err := r.Enumerate(repo.TagCompiland)
	require.NoError(t, err)
	cu, err := e.Next()
	require.NoError(t, err)

	fe, err := r.SourceFiles(cu)
	require.NoError(t, err)
	files, err := repo.Collect(fe)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "main.c", files[0].Name)

	le, err := r.Lines(cu, files[0])
	require.NoError(t, err)
	lines, err := repo.Collect(le)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, uint32(3), lines[0].Line)
	assert.Equal(t, uint32(4), lines[1].Line)

	f, err := r.SourceFileByID(files[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "main.c", f.Name)
}

func TestBuilder_DeduplicatesFilesByName(t *testing.T) {
	t.Parallel()
	b := NewBuilder("x")
	a := b.AddSourceFile(repo.SourceFile{Name: "a.c"})
	again := b.AddSourceFile(repo.SourceFile{Name: "a.c"})
	other := b.AddSourceFile(repo.SourceFile{Name: "b.c"})
	assert.Equal(t, a, again)
	assert.NotEqual(t, a, other)
}

func TestBuilder_ExplicitIDsAdvanceCounter(t *testing.T) {
	t.Parallel()
	b := NewBuilder("x")
	b.AddSymbol(repo.Symbol{ID: 10, Tag: repo.TagFunction, Name: "f"})
	next := b.AddSymbol(repo.Symbol{Tag: repo.TagFunction, Name: "g"})
	assert.Equal(t, uint32(11), next)
}

func TestClose_InvalidatesHandleAndEnumerators(t *testing.T) {
	t.Parallel()
	r := newTestRepo(t)

	e, err := r.Enumerate(repo.TagFunction)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.False(t, r.IsOpen())

	_, err = e.Next()
	assert.ErrorIs(t, err, repo.ErrClosed)

	_, err = r.Enumerate(repo.TagFunction)
	assert.ErrorIs(t, err, repo.ErrClosed)
	_, err = r.SymbolByID(1)
	assert.ErrorIs(t, err, repo.ErrClosed)
	_, err = r.Count(repo.TagFunction)
	assert.ErrorIs(t, err, repo.ErrClosed)
}

// =============================================================================
// Snapshots
// =============================================================================

func TestSnapshot_RoundTrip(t *testing.T) {
	t.Parallel()
	r := newTestRepo(t)

	path := filepath.Join(t.TempDir(), "snap.yaml")
	require.NoError(t, r.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	t.Cleanup(func() { loaded.Close() })

	assert.Equal(t, "test.exe", loaded.Path())
	assert.Equal(t, r.Stats(), loaded.Stats())

	e, err := loaded.FindByName("argc", repo.TagData)
	require.NoError(t, err)
	got, err := repo.Collect(e)
	require.NoError(t, err)
	assert.Empty(t, got, "parameters are not global data")

	fe, err := loaded.FindByName("main", repo.TagFunction)
	require.NoError(t, err)
	fn, err := fe.Next()
	require.NoError(t, err)
	ce, err := loaded.Children(fn, repo.TagData)
	require.NoError(t, err)
	params, err := repo.Collect(ce)
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, repo.DataParam, params[0].DataKind)
	assert.Equal(t, repo.LocRegRel, params[0].Location)
}

func TestDecode_NamedTags(t *testing.T) {
	t.Parallel()
	src := `
path: sample.pdb
symbols:
  - {id: 1, tag: function, name: Foo, rva: 0x100}
  - {id: 2, tag: function, name: Foo, rva: 0x200}
  - {id: 3, tag: enum, name: Color}
  - {id: 4, tag: data, parent: 3, name: Red, data_kind: constant, value: 0}
`
	r, err := Decode(strings.NewReader(src), "fallback")
	require.NoError(t, err)
	assert.Equal(t, "sample.pdb", r.Path())

	n, err := r.Count(repo.TagFunction)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	sym, err := r.SymbolByID(2)
	require.NoError(t, err)
	require.NotNil(t, sym)
	assert.Equal(t, uint32(0x200), sym.RVA)

	red, err := r.SymbolByID(4)
	require.NoError(t, err)
	assert.Equal(t, repo.DataConstant, red.DataKind)
}

func TestDecode_AcceptsJSON(t *testing.T) {
	t.Parallel()
	src := `{"symbols": [{"id": 7, "tag": "udt", "name": "S", "length": 16}]}`
	r, err := Decode(strings.NewReader(src), "s.json")
	require.NoError(t, err)
	assert.Equal(t, "s.json", r.Path())

	sym, err := r.SymbolByID(7)
	require.NoError(t, err)
	require.NotNil(t, sym)
	assert.Equal(t, repo.TagUDT, sym.Tag)
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	t.Parallel()
	_, err := Decode(strings.NewReader("symbols: []\nbogus: 1\n"), "x")
	assert.Error(t, err)
}

func TestWriteSnapshot_TagsAsNames(t *testing.T) {
	t.Parallel()
	r := newTestRepo(t)
	var buf bytes.Buffer
	require.NoError(t, r.WriteSnapshot(&buf))
	assert.Contains(t, buf.String(), "tag: function")
	assert.Contains(t, buf.String(), "data_kind: param")
}
