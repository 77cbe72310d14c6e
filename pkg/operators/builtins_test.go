package operators

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange(t *testing.T) {
	tests := []struct {
		name string
		args []any
		want []any
	}{
		{"stop", []any{int64(3)}, []any{int64(0), int64(1), int64(2)}},
		{"start stop", []any{int64(2), int64(4)}, []any{int64(2), int64(3)}},
		{"negative step", []any{int64(5), int64(0), int64(-2)}, []any{int64(5), int64(3), int64(1)}},
		{"empty", []any{int64(3), int64(1)}, nil},
		{"go ints", []any{2}, []any{int64(0), int64(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRange(tt.args...)
			require.NoError(t, err)
			got, err := Collect(r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want), r.Len())
		})
	}

	_, err := NewRange(int64(0), int64(1), int64(0))
	assert.Error(t, err)
	_, err = NewRange(1.5)
	assert.Error(t, err)
}

func TestConversions(t *testing.T) {
	tests := []struct {
		name string
		fn   func(any) (any, error)
		in   any
		want any
	}{
		{"int of float", Int, 3.9, int64(3)},
		{"int of negative float", Int, -3.9, int64(-3)},
		{"int of string", Int, " 42 ", int64(42)},
		{"int of bool", Int, true, int64(1)},
		{"float of int", Float, int64(2), 2.0},
		{"float of string", Float, "1.5", 1.5},
		{"abs int", Abs, int64(-4), int64(4)},
		{"abs float", Abs, -2.5, 2.5},
		{"len list", Len, NewListOf(1, 2), int64(2)},
		{"len string", Len, "héllo", int64(5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	inf, err := Float("-inf")
	require.NoError(t, err)
	assert.True(t, math.IsInf(inf.(float64), -1))

	_, err = Int("x")
	assert.Error(t, err)
	_, err = Len(int64(1))
	assert.Error(t, err)
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, "a", int64(1), 2.0, nil, true, NewListOf("x", Tuple{int64(1)})))
	assert.Equal(t, "a 1 2.0 None True ['x', (1,)]\n", buf.String())
}

func TestEnumerate(t *testing.T) {
	e, err := Enumerate(NewListOf("a", "b"), int64(1))
	require.NoError(t, err)
	got, err := Collect(e)
	require.NoError(t, err)
	assert.Equal(t, []any{Tuple{int64(1), "a"}, Tuple{int64(2), "b"}}, got)

	_, err = Enumerate(int64(1), Unset)
	assert.Error(t, err)
}

func TestListOperators(t *testing.T) {
	l := NewListOf(int64(1))
	got, err := ListAppend(l, int64(2))
	require.NoError(t, err)
	assert.Same(t, l, got)

	got, v, err := ListPop(l, Unset)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
	assert.Equal(t, []any{int64(1)}, got.(*List).Items)

	s, err := ListAppend([]string{"a"}, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s)

	s, v, err = ListPop(s, int64(0))
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	assert.Equal(t, []string{"b"}, s)

	_, _, err = ListPop(NewListOf(), Unset)
	assert.Error(t, err)

	nl, err := NewList(Range{0, 2, 1})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(0), int64(1)}, nl.Items)
}

func TestValues(t *testing.T) {
	assert.Nil(t, Retval(UndefinedReturnValue))
	assert.Equal(t, int64(3), Retval(int64(3)))

	v, err := Ldu(func() (any, error) { return nil, Raise("NameError", "name 'x' is not defined") }, "x")
	require.NoError(t, err)
	assert.Equal(t, Undefined{Name: "x"}, v)

	_, err = Ldu(func() (any, error) { return nil, Raise("ValueError", "bad") }, "x")
	assert.Error(t, err)

	_, err = Truth(Undefined{Name: "x"})
	assert.EqualError(t, err, "UnboundLocalError: local variable 'x' referenced before assignment")

	d := NewDict()
	require.NoError(t, d.Set("b", int64(1)))
	require.NoError(t, d.Set("a", int64(2)))
	require.NoError(t, d.Set("b", int64(3)))
	assert.Equal(t, "{'b': 3, 'a': 2}", Repr(d))
	assert.Error(t, d.Set(NewListOf(), 1))
}

func TestAssertStmt(t *testing.T) {
	require.NoError(t, AssertStmt(true, func() (any, error) {
		t.Fatal("message evaluated")
		return nil, nil
	}))

	err := AssertStmt(int64(0), func() (any, error) { return "x must be positive", nil })
	assert.EqualError(t, err, "AssertionError: x must be positive")

	assert.EqualError(t, AssertStmt(false, nil), "AssertionError")
}
