//go:build sqlite_vtable

package symsql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jward/symsql/internal/runtime"
	"github.com/jward/symsql/scripts"
)

func TestBundledScriptsRunAgainstEngine(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	rt := runtime.NewRuntime(e, "", runtime.WithRuntimeFS(scripts.FS))

	for _, name := range scripts.Names() {
		t.Run(name, func(t *testing.T) {
			file, ok := scripts.Lookup(name)
			require.True(t, ok)
			err := rt.RunScript(context.Background(), file, map[string]any{"target": "Point"})
			require.NoError(t, err)
		})
	}
}

func TestScript_QueriesThroughEngine(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	rt := runtime.NewRuntime(e, "")

	script := `
rows := query("SELECT p.name FROM functions f JOIN parameters p ON p.func_id = f.id WHERE f.id = 2 ORDER BY p.name")
assert(len(rows) == 2, 'expected 2 parameters, got {len(rows)}')
assert(rows[0]["name"] == "b", 'first parameter')
assert(len(tables()) == 17, 'seventeen tables')
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}
