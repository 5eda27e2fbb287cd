package runtime

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/risor-io/risor/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/symsql/internal/dispatch"
)

// fakeQuerier answers from a fixed map of statements.
type fakeQuerier struct {
	mu      sync.Mutex
	results map[string]*dispatch.Result
	seen    []string
}

func (f *fakeQuerier) Query(_ context.Context, q string) (*dispatch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, q)
	res, ok := f.results[q]
	if !ok {
		return nil, errors.New("no such table")
	}
	return res, nil
}

func (f *fakeQuerier) TableNames() []string {
	return []string{"functions", "udts"}
}

func newFake() *fakeQuerier {
	return &fakeQuerier{results: map[string]*dispatch.Result{
		"SELECT id, name FROM functions WHERE name = 'Foo'": {
			Columns: []string{"id", "name"},
			Rows:    [][]any{{int64(1), "Foo"}, {int64(2), "Foo"}},
		},
		"SELECT name, length FROM udts": {
			Columns: []string{"name", "length"},
			Rows:    [][]any{{"Point", int64(8)}, {"Empty", nil}},
		},
	}}
}

// --- Host functions ---

func TestRunSource_Query(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(newFake(), "")

	script := `
rows := query("SELECT id, name FROM functions WHERE name = 'Foo'")
assert(len(rows) == 2, 'expected 2 rows, got {len(rows)}')
assert(rows[0]["id"] == 1, 'expected id 1')
assert(rows[1]["id"] == 2, 'expected id 2')
assert(rows[1]["name"] == "Foo", 'expected Foo')
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunSource_QueryRowsKeepsColumnOrder(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(newFake(), "")

	script := `
res := query_rows("SELECT name, length FROM udts")
assert(res["columns"][0] == "name", 'first column')
assert(res["columns"][1] == "length", 'second column')
assert(len(res["rows"]) == 2, 'two rows')
assert(res["rows"][0][1] == 8, 'Point length')
assert(res["rows"][1][1] == nil, 'NULL becomes nil')
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunSource_QueryErrorFailsScript(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(newFake(), "")

	err := rt.RunSource(context.Background(), `query("SELECT * FROM nope")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such table")
}

func TestRunSource_QueryRejectsWrites(t *testing.T) {
	t.Parallel()
	fake := newFake()
	rt := NewRuntime(fake, "")

	err := rt.RunSource(context.Background(), `query("DROP TABLE functions")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only")
	assert.Empty(t, fake.seen, "rejected before reaching the engine")
}

func TestRunSource_QueryArgCount(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(newFake(), "")

	err := rt.RunSource(context.Background(), `query()`, nil)
	require.Error(t, err)
}

func TestRunSource_Tables(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(newFake(), "")

	script := `
names := tables()
assert(len(names) == 2, 'two tables')
assert(names[0] == "functions", 'functions first')
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunSource_NoQuerierHasNoQueryGlobal(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	err := rt.RunSource(context.Background(), `query("SELECT 1")`, nil)
	require.Error(t, err)
}

func TestRunSource_ExtraGlobals(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	err := rt.RunSource(context.Background(), `assert(target == "Foo", 'extra global')`, map[string]any{
		"target": "Foo",
	})
	require.NoError(t, err)
}

func TestRunSource_LogUsesLogger(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	rt := NewRuntime(nil, "", WithLogger(logger))

	require.NoError(t, rt.RunSource(context.Background(), `log.Warn("two overloads")`, nil))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), `msg="two overloads"`)
	assert.Contains(t, buf.String(), "source=script")
}

func TestReadOnly(t *testing.T) {
	t.Parallel()
	tests := []struct {
		sql  string
		want bool
	}{
		{"SELECT 1", true},
		{"  select * from functions", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"VALUES (1)", true},
		{"EXPLAIN QUERY PLAN SELECT * FROM functions", true},
		{"INSERT INTO functions VALUES (1)", false},
		{"ATTACH DATABASE 'x' AS y", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, readOnly(tt.sql), tt.sql)
	}
}

func TestSQLValueToObject(t *testing.T) {
	t.Parallel()
	assert.Equal(t, object.NewInt(1), sqlValueToObject(int64(1)))
	assert.Equal(t, object.NewString("Foo"), sqlValueToObject("Foo"))
	assert.Equal(t, object.NewString("raw"), sqlValueToObject([]byte("raw")))
	assert.Equal(t, object.Nil, sqlValueToObject(nil))
}

// --- Script loading ---

func TestLoadScript_FromDisk(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "report.risor")
	content := `x := 42`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rt := NewRuntime(nil, dir)
	got, err := rt.LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	got, err = rt.LoadScript("report.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLoadScript_NoScriptsDirUsesPathAsGiven(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "report.risor")
	require.NoError(t, os.WriteFile(path, []byte(`y := 1`), 0o644))

	rt := NewRuntime(nil, "")
	_, err := rt.LoadScript(path)
	require.NoError(t, err)
}

func TestLoadScript_FromFSFS(t *testing.T) {
	t.Parallel()
	content := `x := 42`
	mapFS := fstest.MapFS{
		"reports/sizes.risor": &fstest.MapFile{Data: []byte(content)},
	}

	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))
	got, err := rt.LoadScript("/reports/sizes.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = rt.LoadScript("missing.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

func TestRunScript_FromFSFS(t *testing.T) {
	t.Parallel()
	mapFS := fstest.MapFS{
		"test.risor": &fstest.MapFile{Data: []byte(`result := 1 + 1`)},
	}

	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))
	require.NoError(t, rt.RunScript(context.Background(), "test.risor", nil))
}

// --- Importer wiring ---

func TestImport_GlobalsAvailableInImportedModules(t *testing.T) {
	t.Parallel()
	mapFS := fstest.MapFS{
		"helpers.risor": &fstest.MapFile{Data: []byte(`
func count(sql) {
	return len(query(sql))
}
`)},
	}
	rt := NewRuntime(newFake(), "", WithRuntimeFS(mapFS))

	script := `
import helpers
n := helpers.count("SELECT id, name FROM functions WHERE name = 'Foo'")
assert(n == 2, 'expected 2, got {n}')
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestImport_LocalImporter(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "math_utils.risor"), []byte(`
func double(x) {
	return x * 2
}
`), 0o644))

	rt := NewRuntime(nil, dir)
	script := `
import math_utils
result := math_utils.double(21)
assert(result == 42, 'expected 42, got {result}')
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}
