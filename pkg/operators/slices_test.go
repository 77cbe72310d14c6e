package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceIndices(t *testing.T) {
	tests := []struct {
		name              string
		key               SliceKey
		start, stop, step int
	}{
		{"lower only", NewSlice(int64(5), Unset, Unset), 5, 10, 1},
		{"upper only", NewSlice(Unset, int64(3), Unset), 0, 3, 1},
		{"step only", NewSlice(Unset, Unset, int64(2)), 0, 10, 2},
		{"all unset", NewSlice(Unset, Unset, Unset), 0, 10, 1},
		{"negative bounds", NewSlice(int64(-3), int64(-1), Unset), 7, 9, 1},
		{"reverse", NewSlice(Unset, Unset, int64(-1)), 9, -1, -1},
		{"clamped", NewSlice(int64(-20), int64(20), Unset), 0, 10, 1},
		{"none means default", NewSlice(nil, int64(4), nil), 0, 4, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, stop, step, err := tt.key.Indices(10)
			require.NoError(t, err)
			assert.Equal(t, []int{tt.start, tt.stop, tt.step}, []int{start, stop, step})
		})
	}

	_, _, _, err := NewSlice(Unset, Unset, int64(0)).Indices(3)
	assert.Error(t, err)
}

func TestSliceKeyKeepsUnset(t *testing.T) {
	k := NewSlice(int64(5), Unset, Unset)
	assert.True(t, IsUnset(k.Upper))
	assert.False(t, IsUnset(NewSlice(nil, nil, nil).Upper))
	assert.Equal(t, "slice(5, Unset, Unset)", k.Repr())
}

func TestGetItem(t *testing.T) {
	d := NewDispatcher(nil)
	dict := NewDict()
	require.NoError(t, dict.Set("k", int64(1)))

	tests := []struct {
		name   string
		target any
		key    any
		want   any
	}{
		{"list index", NewListOf("a", "b"), int64(1), "b"},
		{"negative index", Tuple{"a", "b"}, int64(-1), "b"},
		{"list slice", NewListOf(int64(1), int64(2), int64(3)), NewSlice(Unset, Unset, int64(-1)), NewListOf(int64(3), int64(2), int64(1))},
		{"string slice", "hello", NewSlice(int64(1), int64(3), Unset), "el"},
		{"dict", dict, "k", int64(1)},
		{"range", Range{0, 10, 2}, int64(2), int64(4)},
		{"go slice", []string{"x", "y"}, int64(0), "x"},
		{"go slice slice", []int{1, 2, 3}, NewSlice(int64(1), Unset, Unset), []int{2, 3}},
		{"go map", map[string]int{"a": 1}, "a", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.GetItem(tt.target, tt.key, GetItemOpts{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetItemErrors(t *testing.T) {
	d := NewDispatcher(nil)
	tests := []struct {
		name    string
		target  any
		key     any
		excType string
	}{
		{"out of range", NewListOf(), int64(0), "IndexError"},
		{"missing key", NewDict(), "k", "KeyError"},
		{"bad index type", Tuple{1}, "0", "TypeError"},
		{"not subscriptable", int64(3), int64(0), "TypeError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.GetItem(tt.target, tt.key, GetItemOpts{})
			var exc *Exception
			require.ErrorAs(t, err, &exc)
			assert.Equal(t, tt.excType, exc.Type)
		})
	}
}

func TestSetItem(t *testing.T) {
	d := NewDispatcher(nil)

	l := NewListOf(int64(1), int64(2), int64(3))
	got, err := d.SetItem(l, int64(-1), "z")
	require.NoError(t, err)
	assert.Same(t, l, got)
	assert.Equal(t, []any{int64(1), int64(2), "z"}, l.Items)

	got, err = d.SetItem(l, NewSlice(int64(1), Unset, Unset), Tuple{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), "a", "b", "c"}, got.(*List).Items)

	_, err = d.SetItem(l, NewSlice(Unset, Unset, int64(2)), Tuple{"only one"})
	assert.Error(t, err)

	s := []int{1, 2, 3}
	got, err = d.SetItem(s, NewSlice(Unset, int64(2), Unset), Tuple{int64(9)})
	require.NoError(t, err)
	assert.Equal(t, []int{9, 3}, got)

	m := map[string]int{}
	_, err = d.SetItem(m, "a", int64(4))
	require.NoError(t, err)
	assert.Equal(t, 4, m["a"])

	_, err = d.SetItem(Tuple{1}, int64(0), 2)
	var exc *Exception
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, "TypeError", exc.Type)
}
