package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/symsql"
)

// =============================================================================
// Flags and formatting
// =============================================================================

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	for _, f := range []string{"json", "text", "table"} {
		assert.NoError(t, validateFormat(f), f)
	}
	err := validateFormat("xml")
	require.Error(t, err)
	assert.Equal(t, `invalid format "xml": must be json, text, table`, err.Error())
}

func TestWriteResult_JSON(t *testing.T) {
	t.Parallel()
	res := &symsql.Result{Columns: []string{"id", "name"}, Rows: [][]any{{int64(1), "Foo"}}}

	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "json", queryResult("query", res)))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "query", got["command"])
	assert.Equal(t, []any{"id", "name"}, got["columns"])
	assert.Equal(t, []any{[]any{1.0, "Foo"}}, got["rows"])
	assert.Equal(t, 1.0, got["row_count"])
	assert.NotContains(t, got, "error")
}

func TestWriteResult_JSONEmptyKeepsRowCount(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "json", queryResult("query", &symsql.Result{Columns: []string{"id"}})))
	assert.Contains(t, buf.String(), `"row_count": 0`)
}

func TestWriteResult_Text(t *testing.T) {
	t.Parallel()
	res := &symsql.Result{
		Columns: []string{"id", "name"},
		Rows:    [][]any{{int64(1), "Foo"}, {int64(22), nil}},
	}

	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "text", queryResult("query", res)))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"ID  NAME",
		"1   Foo",
		"22  NULL",
	}, lines)
}

func TestWriteResult_Table(t *testing.T) {
	t.Parallel()
	res := &symsql.Result{Columns: []string{"name"}, Rows: [][]any{{"Point"}}}

	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "table", queryResult("query", res)))
	out := buf.String()
	assert.Contains(t, out, "name")
	assert.Contains(t, out, "Point")
	assert.Contains(t, out, "─", "light box drawing")
}

func TestWriteResult_Tables(t *testing.T) {
	t.Parallel()
	tables := []CLITable{
		tableToCLI(symsql.TableInfo{
			Name:    "functions",
			Columns: []symsql.ColumnInfo{{Name: "id", Type: "INTEGER"}, {Name: "name", Type: "TEXT"}},
			Indexed: []string{"id", "name"},
		}),
		tableToCLI(symsql.TableInfo{Name: "sections", Columns: []symsql.ColumnInfo{{Name: "number", Type: "INTEGER"}}}),
	}
	assert.Equal(t, []string{"id INTEGER", "name TEXT"}, tables[0].Columns)

	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "text", CLIResult{Command: "tables", Results: tables}))
	out := buf.String()
	assert.Contains(t, out, "functions  id,name  id INTEGER, name TEXT")
	assert.Contains(t, out, "sections   -        number INTEGER")
}

func TestWriteResult_Dump(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "text", CLIResult{Command: "dump", Results: CLIDump{Binary: "a.out", Symbols: 3}}))
	assert.Contains(t, buf.String(), "Binary: a.out\n")
	assert.Contains(t, buf.String(), "Symbols: 3\n")
}

func TestWriteResult_UnsupportedType(t *testing.T) {
	t.Parallel()
	err := writeResult(&bytes.Buffer{}, "text", CLIResult{Results: 42})
	assert.Error(t, err)
}

func TestParseVars(t *testing.T) {
	t.Parallel()
	got, err := parseVars([]string{"target=Foo", "limit=10", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"target": "Foo", "limit": int64(10), "empty": ""}, got)

	_, err = parseVars([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseVars([]string{"=x"})
	assert.Error(t, err)
}

func TestIsLoopback(t *testing.T) {
	t.Parallel()
	assert.True(t, isLoopback("127.0.0.1"))
	assert.True(t, isLoopback("::1"))
	assert.True(t, isLoopback("localhost"))
	assert.False(t, isLoopback("0.0.0.0"))
	assert.False(t, isLoopback("192.168.1.10"))
}

// =============================================================================
// Shell
// =============================================================================

type fakeShellEngine struct {
	seen []string
}

func (f *fakeShellEngine) Query(_ context.Context, q string) (*symsql.Result, error) {
	f.seen = append(f.seen, q)
	if strings.Contains(q, "nope") {
		return nil, errors.New("no such table: nope")
	}
	return &symsql.Result{Columns: []string{"n"}, Rows: [][]any{{int64(1)}}}, nil
}

func (f *fakeShellEngine) TableNames() []string { return []string{"functions", "udts"} }

func (f *fakeShellEngine) Table(name string) (symsql.TableInfo, bool) {
	if name != "functions" {
		return symsql.TableInfo{}, false
	}
	return symsql.TableInfo{Name: name, Schema: `CREATE TABLE "functions"("id" INTEGER)`}, true
}

func newTestShell() (*shell, *fakeShellEngine, *bytes.Buffer, *bytes.Buffer) {
	e := &fakeShellEngine{}
	var out, errOut bytes.Buffer
	return newShell(e, &out, &errOut, "text"), e, &out, &errOut
}

func TestShell_StatementSpansLines(t *testing.T) {
	t.Parallel()
	sh, e, out, _ := newTestShell()
	ctx := context.Background()

	assert.False(t, sh.handle(ctx, "SELECT COUNT(*)"))
	assert.True(t, sh.pending())
	assert.Empty(t, e.seen)

	assert.False(t, sh.handle(ctx, "  FROM functions;"))
	assert.False(t, sh.pending())
	assert.Equal(t, []string{"SELECT COUNT(*)\n  FROM functions;"}, e.seen)
	assert.Equal(t, "N\n1\n", out.String())
}

func TestShell_ErrorsGoToErrOut(t *testing.T) {
	t.Parallel()
	sh, _, out, errOut := newTestShell()

	sh.handle(context.Background(), "SELECT * FROM nope;")
	assert.Empty(t, out.String())
	assert.Equal(t, "Error: no such table: nope\n", errOut.String())
}

func TestShell_DotCommands(t *testing.T) {
	t.Parallel()
	sh, e, out, errOut := newTestShell()
	ctx := context.Background()

	assert.False(t, sh.handle(ctx, ".tables"))
	assert.Equal(t, "functions\nudts\n", out.String())

	out.Reset()
	sh.handle(ctx, ".schema functions")
	assert.Equal(t, "CREATE TABLE \"functions\"(\"id\" INTEGER);\n", out.String())

	sh.handle(ctx, ".schema nope")
	assert.Contains(t, errOut.String(), "no such table: nope")

	sh.handle(ctx, ".bogus")
	assert.Contains(t, errOut.String(), "unknown command .bogus")

	assert.True(t, sh.handle(ctx, ".quit"))
	assert.Empty(t, e.seen)
}

func TestShell_DotInsideStatementIsSQL(t *testing.T) {
	t.Parallel()
	sh, e, _, _ := newTestShell()
	ctx := context.Background()

	sh.handle(ctx, "SELECT name FROM functions WHERE name =")
	assert.False(t, sh.handle(ctx, ".quit';"))
	require.Len(t, e.seen, 1)
	assert.Contains(t, e.seen[0], ".quit'")
}

func TestShell_BlankLinesIgnored(t *testing.T) {
	t.Parallel()
	sh, e, _, _ := newTestShell()
	assert.False(t, sh.handle(context.Background(), "   "))
	assert.False(t, sh.pending())
	assert.Empty(t, e.seen)
}
