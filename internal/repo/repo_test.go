package repo

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Tag
	}{
		{"function", TagFunction},
		{"UDT", TagUDT},
		{" public ", TagPublicSymbol},
		{"27", TagThunk},
		{"base_class", TagBaseClass},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTag(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseTag("nonsense")
	assert.Error(t, err)
}

func TestTag_TextRoundTrip(t *testing.T) {
	t.Parallel()
	for tag := range tagNames {
		b, err := tag.MarshalText()
		require.NoError(t, err)
		var got Tag
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, tag, got)
	}
	assert.Equal(t, "tag(99)", Tag(99).String())
}

func TestDataKind_UnmarshalText(t *testing.T) {
	t.Parallel()
	var k DataKind
	require.NoError(t, k.UnmarshalText([]byte("param")))
	assert.Equal(t, DataParam, k)
	require.NoError(t, k.UnmarshalText([]byte("1")))
	assert.Equal(t, DataLocal, k)
	assert.Error(t, k.UnmarshalText([]byte("bogus")))
}

func TestLocationType_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "reg_rel", LocRegRel.String())
	assert.Equal(t, "location(42)", LocationType(42).String())
}

func TestFromSlice(t *testing.T) {
	t.Parallel()
	e := FromSlice([]int{1, 2, 3})

	for _, want := range []int{1, 2, 3} {
		v, err := e.Next()
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
	_, err := e.Next()
	assert.True(t, errors.Is(err, io.EOF))
	_, err = e.Next()
	assert.True(t, errors.Is(err, io.EOF), "stays exhausted")
}

func TestCollect(t *testing.T) {
	t.Parallel()
	got, err := Collect(FromSlice([]string{"a", "b"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	empty, err := Collect(FromSlice[string](nil))
	require.NoError(t, err)
	assert.Empty(t, empty)
}
