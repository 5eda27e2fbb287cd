package scripts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNames(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"largest_functions", "overloads", "summary", "udt_layout"}, Names())
}

func TestLookup(t *testing.T) {
	t.Parallel()
	file, ok := Lookup("overloads")
	assert.True(t, ok)
	assert.Equal(t, "overloads.risor", file)

	file, ok = Lookup("summary.risor")
	assert.True(t, ok)
	assert.Equal(t, "summary.risor", file)

	_, ok = Lookup("missing")
	assert.False(t, ok)
}
