package operators

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noState() State { return State{} }

func TestIfStmtDefault(t *testing.T) {
	d := NewDispatcher(nil)
	tests := []struct {
		name string
		cond any
		want string
	}{
		{"true", true, "body"},
		{"false", false, "orelse"},
		{"zero", int64(0), "orelse"},
		{"non-empty list", NewListOf(1), "body"},
		{"empty string", "", "orelse"},
		{"none", nil, "orelse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			err := d.IfStmt(tt.cond,
				func() error { got = "body"; return nil },
				func() error { got = "orelse"; return nil },
				noState(), 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIfStmtDoesNotTouchState(t *testing.T) {
	d := NewDispatcher(nil)
	st := State{
		Get: func() ([]any, error) { t.Fatal("get_state called"); return nil, nil },
		Set: func([]any) error { t.Fatal("set_state called"); return nil },
	}
	require.NoError(t, d.IfStmt(true, func() error { return nil }, func() error { return nil }, st, 1))
}

func TestIfStmtUndefinedCondition(t *testing.T) {
	err := NewDispatcher(nil).IfStmt(Undefined{Name: "c"}, nil, nil, noState(), 0)
	var exc *Exception
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, "UnboundLocalError", exc.Type)
}

func TestWhileStmtDefault(t *testing.T) {
	d := NewDispatcher(nil)
	i, tests := int64(0), 0
	err := d.WhileStmt(
		func() (any, error) { tests++; return i < 3, nil },
		func() error { i++; return nil },
		noState(), LoopOpts{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), i)
	assert.Equal(t, 4, tests)
}

func TestWhileStmtZeroIterations(t *testing.T) {
	calls := 0
	err := NewDispatcher(nil).WhileStmt(
		func() (any, error) { return false, nil },
		func() error { calls++; return nil },
		noState(), LoopOpts{})
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestWhileStmtPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	err := NewDispatcher(nil).WhileStmt(
		func() (any, error) { return true, nil },
		func() error { return boom },
		noState(), LoopOpts{})
	assert.ErrorIs(t, err, boom)
}

func TestForStmtDefault(t *testing.T) {
	d := NewDispatcher(nil)
	tests := []struct {
		name string
		iter any
		want []any
	}{
		{"list", NewListOf(int64(1), int64(2)), []any{int64(1), int64(2)}},
		{"tuple", Tuple{"a", "b"}, []any{"a", "b"}},
		{"range", Range{Start: 0, Stop: 6, Step: 2}, []any{int64(0), int64(2), int64(4)}},
		{"string", "hé", []any{"h", "é"}},
		{"go slice", []int{7, 8}, []any{7, 8}},
		{"go map", map[string]int{"b": 1, "a": 2}, []any{"a", "b"}},
		{"empty", Tuple{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []any
			err := d.ForStmt(tt.iter, nil, func(v any) error {
				got = append(got, v)
				return nil
			}, noState(), LoopOpts{IterateNames: "v"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestForStmtExtraTest(t *testing.T) {
	d := NewDispatcher(nil)

	t.Run("checked before the first iteration", func(t *testing.T) {
		var trace []string
		err := d.ForStmt(Tuple{1, 2}, func() (any, error) {
			trace = append(trace, "test")
			return false, nil
		}, func(v any) error {
			trace = append(trace, "body")
			return nil
		}, noState(), LoopOpts{})
		require.NoError(t, err)
		assert.Equal(t, []string{"test"}, trace)
	})

	t.Run("checked after every iteration", func(t *testing.T) {
		var trace []any
		sum := int64(0)
		err := d.ForStmt(Range{Start: 1, Stop: 10, Step: 1}, func() (any, error) {
			trace = append(trace, "test")
			return sum < 3, nil
		}, func(v any) error {
			trace = append(trace, v)
			sum += v.(int64)
			return nil
		}, noState(), LoopOpts{})
		require.NoError(t, err)
		assert.Equal(t, []any{"test", int64(1), "test", int64(2), "test"}, trace)
	})

	t.Run("does not replace exhaustion", func(t *testing.T) {
		tests, bodies := 0, 0
		err := d.ForStmt(Tuple{1, 2}, func() (any, error) {
			tests++
			return true, nil
		}, func(any) error {
			bodies++
			return nil
		}, noState(), LoopOpts{})
		require.NoError(t, err)
		assert.Equal(t, 2, bodies)
		assert.Equal(t, 3, tests)
	})
}

func TestForStmtNotIterable(t *testing.T) {
	err := NewDispatcher(nil).ForStmt(int64(3), nil, func(any) error { return nil }, noState(), LoopOpts{})
	var exc *Exception
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, "TypeError", exc.Type)
}

type stagedSeq struct{ n int }

func TestForStmtDispatch(t *testing.T) {
	var seen []string
	reg := NewRegistryBuilder().
		ForStmt(reflect.TypeFor[stagedSeq](), func(d *Dispatcher, iter any, extraTest Thunk, body func(any) error, st State, opts LoopOpts) error {
			seen = append(seen, "staged:"+opts.IterateNames)
			vals, err := st.Get()
			if err != nil {
				return err
			}
			for i := 0; i < iter.(stagedSeq).n; i++ {
				if err := body(i); err != nil {
					return err
				}
			}
			return st.Set(vals)
		}).
		Build()
	d := NewDispatcher(reg)

	var restored []any
	st := State{
		Get:     func() ([]any, error) { return []any{int64(42)}, nil },
		Set:     func(v []any) error { restored = v; return nil },
		Symbols: []string{"acc"},
	}
	count := 0
	require.NoError(t, d.ForStmt(stagedSeq{n: 2}, nil, func(any) error { count++; return nil }, st, LoopOpts{IterateNames: "i"}))
	assert.Equal(t, []string{"staged:i"}, seen)
	assert.Equal(t, 2, count)
	assert.Equal(t, []any{int64(42)}, restored)

	// Other types keep the default path.
	count = 0
	require.NoError(t, d.ForStmt(Tuple{1, 2, 3}, nil, func(any) error { count++; return nil }, st, LoopOpts{}))
	assert.Equal(t, 3, count)
	assert.Len(t, seen, 1)
}

type stagedBool struct{}

func TestWhileStmtDispatchReceivesFirstTest(t *testing.T) {
	tests := 0
	var first any
	reg := NewRegistryBuilder().
		WhileStmt(reflect.TypeFor[stagedBool](), func(d *Dispatcher, f any, test Thunk, body func() error, st State, opts LoopOpts) error {
			first = f
			return nil
		}).
		Build()
	err := NewDispatcher(reg).WhileStmt(func() (any, error) {
		tests++
		return stagedBool{}, nil
	}, func() error { return nil }, noState(), LoopOpts{})
	require.NoError(t, err)
	assert.Equal(t, stagedBool{}, first)
	assert.Equal(t, 1, tests)
}

func TestIfExp(t *testing.T) {
	d := NewDispatcher(nil)
	calls := 0
	v, err := d.IfExp(int64(0),
		func() (any, error) { calls++; return "yes", nil },
		func() (any, error) { return "no", nil },
		"'yes' if 0 else 'no'")
	require.NoError(t, err)
	assert.Equal(t, "no", v)
	assert.Zero(t, calls)
}
