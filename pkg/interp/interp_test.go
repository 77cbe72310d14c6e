package interp_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-malt/pkg/interp"
	"github.com/l3aro/go-malt/pkg/operators"
	"github.com/l3aro/go-malt/pkg/parser"
)

func newModule(t *testing.T, src string) (*interp.Interpreter, *bytes.Buffer) {
	t.Helper()
	mod, err := parser.ParseModule(context.Background(), []byte(src))
	require.NoError(t, err)
	var out bytes.Buffer
	ip := interp.New(interp.Options{Stdout: &out})
	require.NoError(t, ip.Exec(context.Background(), mod))
	return ip, &out
}

func eval(t *testing.T, src string) (any, error) {
	t.Helper()
	e, err := parser.ParseExpression(src)
	require.NoError(t, err)
	return interp.New(interp.Options{}).Eval(context.Background(), e)
}

func TestExpressions(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"7 // 2", "3"},
		{"-7 // 2", "-4"},
		{"-7 % 3", "2"},
		{"7 % -3", "-2"},
		{"7 / 2", "3.5"},
		{"2 ** 10", "1024"},
		{"2 ** -1", "0.5"},
		{"True + 1", "2"},
		{"'ab' * 2", "'abab'"},
		{"[1] + [2]", "[1, 2]"},
		{"(1,) + (2,)", "(1, 2)"},
		{"1 < 2 < 3", "True"},
		{"3 > 2 > 2", "False"},
		{"(1, 2) < (1, 3)", "True"},
		{"'a' in 'abc'", "True"},
		{"2 not in [1, 2]", "False"},
		{"None is None", "True"},
		{"not 0", "True"},
		{"0 or 'x'", "'x'"},
		{"1 and 0", "0"},
		{"'%s-%d' % ('a', 3)", "'a-3'"},
		{"1 if 0 else 2", "2"},
		{"[1, 2, 3][::-1]", "[3, 2, 1]"},
		{"'hello'[1:3]", "'el'"},
		{"{'a': 1}['a']", "1"},
		{"(lambda x, y=2: x * y)(4)", "8"},
		{"len(range(2, 10, 3))", "3"},
		{"max([3, 9, 4])", "9"},
		{"min(5, 2, 8)", "2"},
		{"sum([1, 2, 3])", "6"},
		{"'-'.join(['a', 'b'])", "'a-b'"},
		{"list(enumerate('ab'))", "[(0, 'a'), (1, 'b')]"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := eval(t, tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, operators.Repr(got))
		})
	}
}

func TestExpressionErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1 / 0", "ZeroDivisionError: division by zero"},
		{"1 // 0", "ZeroDivisionError: integer division or modulo by zero"},
		{"'a' + 1", "TypeError: unsupported operand type(s) for +: 'str' and 'int'"},
		{"missing", "NameError: name 'missing' is not defined"},
		{"[1][5]", "IndexError: list index out of range"},
		{"{}['k']", "KeyError: 'k'"},
		{"1 < 'a'", "TypeError: '<' not supported between instances of 'int' and 'str'"},
		{"(1)(2)", "TypeError: 'int' object is not callable"},
		{"ValueError('bad').args", ""},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := eval(t, tt.src)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestScoping(t *testing.T) {
	ip, out := newModule(t, `
count = 0

def bump():
    global count
    count += 1
    return count

def counter():
    n = 0
    def inc(by=1):
        nonlocal n
        n += by
        return n
    return inc

def unbound():
    print(x)
    x = 1
`)
	ctx := context.Background()

	_, err := ip.Call(ctx, "bump")
	require.NoError(t, err)
	v, err := ip.Call(ctx, "bump")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
	g, ok := ip.Global("count")
	require.True(t, ok)
	assert.Equal(t, int64(2), g)

	inc, err := ip.Call(ctx, "counter")
	require.NoError(t, err)
	ip.SetGlobal("inc", inc)
	_, err = ip.Call(ctx, "inc")
	require.NoError(t, err)
	v, err = ip.Call(ctx, "inc", int64(5))
	require.NoError(t, err)
	assert.Equal(t, int64(6), v)

	_, err = ip.Call(ctx, "unbound")
	require.Error(t, err)
	assert.Equal(t, "UnboundLocalError: local variable 'x' referenced before assignment", err.Error())
	assert.Empty(t, out.String())
}

func TestNonlocalWithoutBinding(t *testing.T) {
	ip, _ := newModule(t, `
def f():
    def g():
        nonlocal q
        q = 1
    g()
`)
	_, err := ip.Call(context.Background(), "f")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no binding for nonlocal 'q' found")
}

func TestLoops(t *testing.T) {
	ip, out := newModule(t, `
def f(xs):
    for x in xs:
        if x < 0:
            print('negative', x)
            break
    else:
        print('all positive')
    i = 0
    while i < 3:
        i += 1
        if i == 2:
            continue
        print(i, end=';')
    print()
`)
	ctx := context.Background()
	_, err := ip.Call(ctx, "f", operators.NewListOf(int64(1), int64(-2), int64(3)))
	require.NoError(t, err)
	_, err = ip.Call(ctx, "f", operators.NewListOf())
	require.NoError(t, err)
	assert.Equal(t, "negative -2\n1;3;\nall positive\n1;3;\n", out.String())
}

func TestCallBinding(t *testing.T) {
	ip, _ := newModule(t, `
def f(a, b=10, *rest, **kw):
    return a, b, rest, kw
`)
	ctx := context.Background()
	v, err := ip.Call(ctx, "f", int64(1))
	require.NoError(t, err)
	assert.Equal(t, "(1, 10, (), {})", operators.Repr(v))

	v, err = ip.Call(ctx, "f", int64(1), int64(2), int64(3))
	require.NoError(t, err)
	assert.Equal(t, "(1, 2, (3,), {})", operators.Repr(v))

	_, err = ip.Call(ctx, "f")
	require.Error(t, err)
	assert.Equal(t, "TypeError: f() missing 1 required positional argument: 'a'", err.Error())
}

func TestUnpacking(t *testing.T) {
	ip, _ := newModule(t, `
def f(v):
    a, b = v
    return b, a
`)
	ctx := context.Background()
	v, err := ip.Call(ctx, "f", operators.Tuple{int64(1), "x"})
	require.NoError(t, err)
	assert.Equal(t, "('x', 1)", operators.Repr(v))

	_, err = ip.Call(ctx, "f", operators.Tuple{int64(1)})
	require.Error(t, err)
	assert.Equal(t, "ValueError: not enough values to unpack (expected 2, got 1)", err.Error())
}

func TestRaiseAndAssert(t *testing.T) {
	ip, _ := newModule(t, `
def check(x):
    assert x != 0, 'zero'
    if x < 0:
        raise ValueError('negative')
    return x
`)
	ctx := context.Background()
	_, err := ip.Call(ctx, "check", int64(0))
	assert.EqualError(t, err, "AssertionError: zero")
	_, err = ip.Call(ctx, "check", int64(-1))
	assert.EqualError(t, err, "ValueError: negative")
}

func TestRecursionLimit(t *testing.T) {
	mod, err := parser.ParseModule(context.Background(), []byte("def f(n):\n    return f(n + 1)\n"))
	require.NoError(t, err)
	ip := interp.New(interp.Options{MaxDepth: 20})
	require.NoError(t, ip.Exec(context.Background(), mod))
	_, err = ip.Call(context.Background(), "f", int64(0))
	assert.EqualError(t, err, "RecursionError: maximum recursion depth exceeded")
}

func TestCancellation(t *testing.T) {
	ip, _ := newModule(t, "def spin():\n    while True:\n        pass\n")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := ip.Call(ctx, "spin")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOperatorModule(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"ag__.if_exp(True, lambda: 1, lambda: 2, 'x')", "1"},
		{"ag__.and_(0, lambda: missing)", "0"},
		{"ag__.or_(0, lambda: 'y')", "'y'"},
		{"ag__.not_([])", "True"},
		{"ag__.eq(1, 1.0)", "True"},
		{"ag__.ldu(lambda: missing, 'missing')", "Undefined(missing)"},
		{"ag__.list_pop([1, 2], ag__.Unset)", "([1], 2)"},
		{"ag__.list_append([1], 2)", "[1, 2]"},
		{"ag__.get_item([1, 2, 3], ag__.slice_(1, ag__.Unset, ag__.Unset), ag__.GetItemOpts(element_dtype=None))", "[2, 3]"},
		{"ag__.set_item({}, 'k', 1)", "{'k': 1}"},
		{"ag__.retval(ag__.UndefinedReturnValue)", "None"},
		{"ag__.len_(ag__.range_(4))", "4"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := eval(t, tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, operators.Repr(got))
		})
	}
}

func TestUndefinedUse(t *testing.T) {
	_, err := eval(t, "ag__.Undefined('y') + 1")
	assert.EqualError(t, err, "UnboundLocalError: local variable 'y' referenced before assignment")
}
