package cache

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	Source  string   `msgpack:"source"`
	Symbols []string `msgpack:"symbols"`
}

func TestLRU_PutGet(t *testing.T) {
	c := New(Options{MaxEntries: 3})
	require.NoError(t, c.Put("a", result{Source: "def f(): pass", Symbols: []string{"x"}}))

	var got result
	require.NoError(t, c.Get("a", &got))
	assert.Equal(t, "def f(): pass", got.Source)
	assert.Equal(t, []string{"x"}, got.Symbols)

	assert.ErrorIs(t, c.Get("missing", &got), ErrKeyNotFound)
	s := c.Stats()
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.InDelta(t, 0.5, s.HitRate(), 1e-9)
}

func TestLRU_Eviction(t *testing.T) {
	var evicted []string
	c := New(Options{MaxEntries: 3, OnEvict: func(k string) { evicted = append(evicted, k) }})
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Put(k, k))
	}

	var v string
	require.NoError(t, c.Get("a", &v))
	require.NoError(t, c.Put("d", "d"))

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"b"}, evicted)
	assert.ErrorIs(t, c.Get("b", &v), ErrKeyNotFound)
	for _, k := range []string{"a", "c", "d"} {
		assert.NoError(t, c.Get(k, &v), k)
	}
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestLRU_MaxBytes(t *testing.T) {
	c := New(Options{MaxBytes: 64})
	require.NoError(t, c.Put("a", strings.Repeat("x", 40)))
	require.NoError(t, c.Put("b", strings.Repeat("y", 40)))

	assert.Equal(t, 1, c.Len())
	var v string
	assert.ErrorIs(t, c.Get("a", &v), ErrKeyNotFound)
}

func TestLRU_UpdateAndDelete(t *testing.T) {
	c := New(Options{})
	require.NoError(t, c.Put("a", "one"))
	require.NoError(t, c.Put("a", "two"))
	assert.Equal(t, 1, c.Len())

	var v string
	require.NoError(t, c.Get("a", &v))
	assert.Equal(t, "two", v)

	c.Delete("a")
	assert.Equal(t, 0, c.Len())
	assert.Zero(t, c.Stats().Bytes)
}

func TestLRU_SaveLoadKeepsRecency(t *testing.T) {
	c := New(Options{})
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Put(k, k))
	}
	var v string
	require.NoError(t, c.Get("a", &v))

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))

	restored := New(Options{MaxEntries: 2})
	require.NoError(t, restored.Load(&buf))
	assert.Equal(t, 2, restored.Len())
	assert.ErrorIs(t, restored.Get("b", &v), ErrKeyNotFound)
	require.NoError(t, restored.Get("a", &v))
	assert.Equal(t, "a", v)
}

func TestKey(t *testing.T) {
	k1, err := Key([]byte("def f(): pass"), "recursive=false")
	require.NoError(t, err)
	k2, err := Key([]byte("def f(): pass"), "recursive=false")
	require.NoError(t, err)
	k3, err := Key([]byte("def f(): pass"), "recursive=true")
	require.NoError(t, err)
	k4, err := Key([]byte("def f(): pass"), "recursive", "=false")
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.NotEqual(t, k1, k4)
	assert.Len(t, k1, 64)
}

func TestStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.msgpack")

	s, err := Open(path, Options{})
	require.NoError(t, err)
	assert.Zero(t, s.FileSize())
	require.NoError(t, s.Put("k", result{Source: "x = 1"}))
	require.NoError(t, s.Flush())
	assert.Positive(t, s.FileSize())

	reopened, err := Open(path, Options{})
	require.NoError(t, err)
	var got result
	require.NoError(t, reopened.Get("k", &got))
	assert.Equal(t, "x = 1", got.Source)

	require.NoError(t, reopened.Remove())
	assert.Zero(t, reopened.FileSize())
	assert.Equal(t, 0, reopened.Len())
}

func TestStore_InMemory(t *testing.T) {
	s, err := Open("", Options{})
	require.NoError(t, err)
	require.NoError(t, s.Put("k", 1))
	assert.NoError(t, s.Flush())
	assert.Empty(t, s.Path())
}
