package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	r := New[string, int]()
	r.Register("a", 1)

	v, ok := r.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	_, ok = r.Get("missing")
	require.False(t, ok)
}

func TestRegisterOverwritesExistingKey(t *testing.T) {
	r := New[string, int]()
	r.Register("a", 1)
	r.Register("a", 2)

	v, _ := r.Get("a")
	require.Equal(t, 2, v)
}

func TestKeysAndValuesReflectContents(t *testing.T) {
	r := New[string, int]()
	r.Register("a", 1)
	r.Register("b", 2)

	require.ElementsMatch(t, []string{"a", "b"}, r.Keys())
	require.ElementsMatch(t, []int{1, 2}, r.Values())
	require.True(t, r.Has("a"))
	require.False(t, r.Has("z"))
}
