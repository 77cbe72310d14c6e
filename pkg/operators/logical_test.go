package operators

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortCircuit(t *testing.T) {
	d := NewDispatcher(nil)
	tests := []struct {
		name      string
		op        func(a any, b Thunk) (any, error)
		a         any
		want      any
		wantCalls int
	}{
		{"and falsy", d.And, int64(0), int64(0), 0},
		{"and truthy", d.And, int64(1), "b", 1},
		{"or truthy", d.Or, "a", "a", 0},
		{"or falsy", d.Or, nil, "b", 1},
		{"and empty list", d.And, NewListOf(), NewListOf(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			got, err := tt.op(tt.a, func() (any, error) {
				calls++
				return "b", nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestNotAndEquality(t *testing.T) {
	d := NewDispatcher(nil)
	tests := []struct {
		name string
		a, b any
		eq   bool
	}{
		{"ints", int64(2), int64(2), true},
		{"int and float", int64(1), 1.0, true},
		{"bool and int", true, int64(1), true},
		{"strings", "a", "b", false},
		{"none", nil, nil, true},
		{"none and zero", nil, int64(0), false},
		{"tuples", Tuple{int64(1), "x"}, Tuple{int64(1), "x"}, true},
		{"lists", NewListOf(int64(1)), NewListOf(int64(2)), false},
		{"list and tuple", NewListOf(int64(1)), Tuple{int64(1)}, false},
		{"ranges", Range{0, 3, 1}, Range{0, 3, 1}, true},
		{"go slices", []int{1}, []int{1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eq, err := d.Eq(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.eq, eq)

			ne, err := d.NotEq(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, !tt.eq, ne)
		})
	}

	v, err := d.Not("")
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

type symbolic struct{ expr string }

func TestLogicalDispatch(t *testing.T) {
	reg := NewRegistryBuilder().
		And(reflect.TypeFor[symbolic](), func(d *Dispatcher, a any, b Thunk) (any, error) {
			rhs, err := b()
			if err != nil {
				return nil, err
			}
			return symbolic{a.(symbolic).expr + " & " + Str(rhs)}, nil
		}).
		Eq(reflect.TypeFor[symbolic](), func(d *Dispatcher, a, b any) (any, error) {
			return symbolic{a.(symbolic).expr + " == " + Str(b)}, nil
		}).
		Not(reflect.TypeFor[symbolic](), func(d *Dispatcher, a any) (any, error) {
			return symbolic{"~(" + a.(symbolic).expr + ")"}, nil
		}).
		Build()
	d := NewDispatcher(reg)

	v, err := d.And(symbolic{"x"}, func() (any, error) { return "y", nil })
	require.NoError(t, err)
	assert.Equal(t, symbolic{"x & y"}, v)

	v, err = d.NotEq(symbolic{"x"}, int64(1))
	require.NoError(t, err)
	assert.Equal(t, symbolic{"~(x == 1)"}, v)
}
