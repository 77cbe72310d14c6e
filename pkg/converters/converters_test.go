package converters

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/parser"
	"github.com/l3aro/go-malt/pkg/printer"
)

type passFunc func(*Context, *ast.FunctionDef) error

func parseFn(t *testing.T, src string) *ast.FunctionDef {
	t.Helper()
	fn, err := parser.ParseFunction(context.Background(), []byte(src), "f")
	require.NoError(t, err)
	return fn
}

func run(t *testing.T, src string, opts Options, ns map[string]Binding, passes ...passFunc) (*Context, string) {
	t.Helper()
	fn := parseFn(t, src)
	ctx := NewContext(fn, opts, ns)
	for _, p := range passes {
		require.NoError(t, p(ctx, fn))
	}
	return ctx, printer.Source(fn)
}

func TestBreakStatements(t *testing.T) {
	_, got := run(t, `def f(n):
    i = 0
    while i < n:
        if i == 3:
            break
        i += 1
    return i
`, Options{}, nil, BreakStatements)

	assert.Equal(t, `def f(n):
    i = 0
    break_ = False
    while not break_ and i < n:
        if i == 3:
            break_ = True
        if not break_:
            i += 1
    return i
`, got)
}

func TestBreakStatementsForElse(t *testing.T) {
	_, got := run(t, `def f(xs):
    for x in xs:
        if x:
            break
    else:
        x = None
    return x
`, Options{}, nil, BreakStatements)

	assert.Contains(t, got, "    break_ = False\n    for x in xs:\n")
	assert.Contains(t, got, "    if not break_:\n        x = None\n")
	assert.NotContains(t, got, "else:")
}

func TestContinueStatements(t *testing.T) {
	_, got := run(t, `def f(xs):
    s = 0
    for x in xs:
        if x < 0:
            continue
        s = s + x
    return s
`, Options{}, nil, ContinueStatements)

	assert.Equal(t, `def f(xs):
    s = 0
    for x in xs:
        continue_ = False
        if x < 0:
            continue_ = True
        if not continue_:
            s = s + x
    return s
`, got)
}

func TestReturnStatements(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "early return",
			src: `def f(x):
    if x > 0:
        return 1
    return 0
`,
			want: `def f(x):
    do_return = False
    retval_ = ag__.UndefinedReturnValue
    if x > 0:
        do_return = True
        retval_ = 1
    if not do_return:
        do_return = True
        retval_ = 0
    return ag__.retval(retval_)
`,
		},
		{
			name: "single trailing return is kept",
			src: `def f(x):
    y = x + 1
    return y
`,
			want: `def f(x):
    y = x + 1
    return y
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := run(t, tt.src, Options{}, nil, ReturnStatements)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReturnInsideLoopStopsLoop(t *testing.T) {
	_, got := run(t, `def f(xs):
    for x in xs:
        if x:
            return x
    return None
`, Options{}, nil, ReturnStatements)

	assert.Contains(t, got, "    for x in xs:\n")
	assert.Contains(t, got, "            retval_ = x\n")
	assert.Contains(t, got, "    if not do_return:\n")

	fn := parseFn(t, `def f(xs):
    for x in xs:
        if x:
            return x
    return None
`)
	ctx := NewContext(fn, Options{}, nil)
	require.NoError(t, ReturnStatements(ctx, fn))
	loop, ok := fn.Body[2].(*ast.For)
	require.True(t, ok)
	assert.Equal(t, "not do_return", printer.Expr(loop.ExtraTest))
}

func TestAsserts(t *testing.T) {
	_, got := run(t, `def f(x):
    assert x > 0, 'bad'
    assert x
`, Options{}, nil, Asserts)

	assert.Equal(t, `def f(x):
    ag__.assert_stmt(x > 0, lambda: 'bad')
    ag__.assert_stmt(x, lambda: None)
`, got)
}

func TestLists(t *testing.T) {
	_, got := run(t, `def f(l):
    l.append(1)
    v = l.pop()
    l.pop(0)
    return v
`, Options{}, nil, Lists)

	assert.Equal(t, `def f(l):
    l = ag__.list_append(l, 1)
    (l, v) = ag__.list_pop(l, ag__.Unset)
    (l, _) = ag__.list_pop(l, 0)
    return v
`, got)
}

func TestListsLeaveEnclosingReceivers(t *testing.T) {
	_, got := run(t, `def f(l):
    global acc
    acc.append(1)
    out.append(2)
    def g():
        l.append(3)
    def h():
        nonlocal l
        l.pop()
    return l
`, Options{}, nil, Lists)

	assert.Contains(t, got, "acc = ag__.list_append(acc, 1)")
	assert.Contains(t, got, "out.append(2)")
	assert.Contains(t, got, "l.append(3)")
	assert.Contains(t, got, "(l, _) = ag__.list_pop(l, ag__.Unset)")
	assert.NotContains(t, got, "out = ")
}

func TestSlicesKeepPositionalArity(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"x[5:] = v", "x = ag__.set_item(x, ag__.slice_(5, ag__.Unset, ag__.Unset), v)"},
		{"x[:10] = v", "x = ag__.set_item(x, ag__.slice_(ag__.Unset, 10, ag__.Unset), v)"},
		{"x[::2] = v", "x = ag__.set_item(x, ag__.slice_(ag__.Unset, ag__.Unset, 2), v)"},
		{"x[:] = v", "x = ag__.set_item(x, ag__.slice_(ag__.Unset, ag__.Unset, ag__.Unset), v)"},
		{"x[::] = v", "x = ag__.set_item(x, ag__.slice_(ag__.Unset, ag__.Unset, ag__.Unset), v)"},
		{"x[1:2:3] = v", "x = ag__.set_item(x, ag__.slice_(1, 2, 3), v)"},
		{"x[i] = v", "x = ag__.set_item(x, i, v)"},
		{"x.a[0] = v", "x.a = ag__.set_item(x.a, 0, v)"},
		{"y = x[1]", "y = ag__.get_item(x, 1, ag__.GetItemOpts(element_dtype=None))"},
		{"y = x[1:]", "y = ag__.get_item(x, ag__.slice_(1, ag__.Unset, ag__.Unset), ag__.GetItemOpts(element_dtype=None))"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, got := run(t, "def f(x, v, i):\n    "+tt.src+"\n", Options{}, nil, Slices)
			assert.Equal(t, "def f(x, v, i):\n    "+tt.want+"\n", got)
		})
	}
}

func TestSlicesNestedAndAugmented(t *testing.T) {
	_, got := run(t, `def f(x, v):
    x[0][1] = v
    x[0] += 1
`, Options{}, nil, Slices)

	assert.Equal(t, `def f(x, v):
    x = ag__.set_item(x, 0, ag__.set_item(ag__.get_item(x, 0, ag__.GetItemOpts(element_dtype=None)), 1, v))
    x = ag__.set_item(x, 0, ag__.get_item(x, 0, ag__.GetItemOpts(element_dtype=None)) + 1)
`, got)
}

func TestSlicesBindImpureKeysOnce(t *testing.T) {
	_, got := run(t, `def f(x, k, v):
    x[k()] = v()
    x[k()] += 1
    x[k()][1] = 7
`, Options{}, nil, Slices)

	assert.Equal(t, `def f(x, k, v):
    value_ = v()
    key_ = k()
    x = ag__.set_item(x, key_, value_)
    key__1 = k()
    x = ag__.set_item(x, key__1, ag__.get_item(x, key__1, ag__.GetItemOpts(element_dtype=None)) + 1)
    key__2 = k()
    base_ = ag__.get_item(x, key__2, ag__.GetItemOpts(element_dtype=None))
    x = ag__.set_item(x, key__2, ag__.set_item(base_, 1, 7))
`, got)
}

func TestSlicesLeaveEnclosingBases(t *testing.T) {
	_, got := run(t, `def f(v):
    g[0] = v
    g[1] += v
    return g[0]
`, Options{}, nil, Slices)

	assert.Equal(t, `def f(v):
    g[0] = v
    g[1] += v
    return ag__.get_item(g, 0, ag__.GetItemOpts(element_dtype=None))
`, got)
}

func TestSlicesElementType(t *testing.T) {
	_, got := run(t, `def f(x):
    y = x[0]
    ag__.set_element_type(x, int)
    z = x[0]
    return z
`, Options{}, nil, Slices)

	assert.Contains(t, got, "y = ag__.get_item(x, 0, ag__.GetItemOpts(element_dtype=None))")
	assert.Contains(t, got, "z = ag__.get_item(x, 0, ag__.GetItemOpts(element_dtype=int))")
}

func TestSlicesMultipleTargets(t *testing.T) {
	fn := parseFn(t, `def f(x):
    y = 0
    a = b = x
`)
	ctx := NewContext(fn, Options{}, nil)
	err := Slices(ctx, fn)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMultipleAssignmentTargets))

	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "f", ce.Entity)
	assert.Equal(t, 3, ce.Pos.Line)
}

func TestCallTrees(t *testing.T) {
	ns := map[string]Binding{
		"helper": {Kind: BindFunction},
		"print":  {Kind: BindBuiltin},
		"abs":    {Kind: BindValue},
	}
	ctx, got := run(t, `def f(x):
    print(len(x), abs(x), helper(x))
    for i in range(3):
        pass
`, Options{Recursive: true}, ns, CallTrees)

	assert.Contains(t, got, "ag__.print_(ag__.len_(x), abs(x), helper(x))")
	assert.Contains(t, got, "for i in ag__.range_(3):")
	assert.Equal(t, []string{"helper"}, ctx.Referenced)
}

func TestCallTreesShadowed(t *testing.T) {
	ctx, got := run(t, `def f(len, x):
    return len(x)
`, Options{Recursive: true}, nil, CallTrees)

	assert.Contains(t, got, "return len(x)")
	assert.Empty(t, ctx.Referenced)
}

func TestConditionalExpressions(t *testing.T) {
	_, got := run(t, `def f(a, b, c):
    return a if c else b
`, Options{}, nil, ConditionalExpressions)

	assert.Equal(t, `def f(a, b, c):
    return ag__.if_exp(c, lambda: a, lambda: b, 'a if c else b')
`, got)
}

func TestLogicalExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
		opts Options
		want string
	}{
		{"and", "a and b", Options{}, "ag__.and_(a, lambda: b)"},
		{"chain", "a and b and c", Options{}, "ag__.and_(a, lambda: ag__.and_(b, lambda: c))"},
		{"mixed", "a and b or not c", Options{}, "ag__.or_(ag__.and_(a, lambda: b), lambda: ag__.not_(c))"},
		{"equality off", "a == b", Options{}, "a == b"},
		{"eq", "a == b", Options{Features: []Feature{FeatureEqualityOperators}}, "ag__.eq(a, b)"},
		{"not eq", "a != b", Options{Features: []Feature{FeatureAll}}, "ag__.not_eq(a, b)"},
		{"chained compare", "a == b == c", Options{Features: []Feature{FeatureAll}}, "a == b == c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := run(t, "def f(a, b, c):\n    return "+tt.expr+"\n", tt.opts, nil, LogicalExpressions)
			assert.Equal(t, "def f(a, b, c):\n    return "+tt.want+"\n", got)
		})
	}
}

func TestControlFlowIf(t *testing.T) {
	ctx, got := run(t, `def f(c, x):
    if c:
        y = x + 1
    else:
        y = x - 1
    return y
`, Options{}, nil, ControlFlow)

	assert.Equal(t, `def f(c, x):
    y = ag__.Undefined('y')
    def get_state():
        return (y,)
    def set_state(vars_):
        nonlocal y
        (y,) = vars_
    def if_body():
        nonlocal y
        y = x + 1
    def else_body():
        nonlocal y
        y = x - 1
    ag__.if_stmt(c, if_body, else_body, get_state, set_state, ('y',), 1)
    return y
`, got)
	assert.Equal(t, []StateTuple{{Kind: "if", Line: 2, Symbols: []string{"y"}, Outputs: 1}}, ctx.StateTuples)
}

func TestControlFlowStateSelection(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []StateTuple
	}{
		{
			name: "while outputs before inputs",
			src: `def f(n):
    s = 0
    i = 0
    while i < n:
        s = s + i
        i = i + 1
    return s
`,
			want: []StateTuple{{Kind: "while", Line: 4, Symbols: []string{"s", "i"}, Outputs: 1}},
		},
		{
			name: "loop temporaries stay local",
			src: `def f(xs):
    total = 0
    for x in xs:
        tmp = x * 2
        total = total + tmp
    return total
`,
			want: []StateTuple{{Kind: "for", Line: 3, Symbols: []string{"total"}, Outputs: 1}},
		},
		{
			name: "unused branch results are dropped",
			src: `def f(c):
    if c:
        t = 1
    return c
`,
			want: []StateTuple{{Kind: "if", Line: 2, Symbols: []string{}, Outputs: 0}},
		},
		{
			name: "globals are threaded",
			src: `def f():
    global g
    if g:
        g = 0
`,
			want: []StateTuple{{Kind: "if", Line: 3, Symbols: []string{"g"}, Outputs: 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := run(t, tt.src, Options{}, nil, ControlFlow)
			assert.Equal(t, tt.want, ctx.StateTuples)
		})
	}
}

func TestControlFlowStable(t *testing.T) {
	src := `def f(n, m):
    a = 0
    b = 0
    c = 0
    while a < n:
        c = c + m
        b = b + a
        a = a + 1
    return (c, b)
`
	ctx1, out1 := run(t, src, Options{}, nil, ControlFlow)
	for range 5 {
		ctx2, out2 := run(t, src, Options{}, nil, ControlFlow)
		assert.Equal(t, out1, out2)
		assert.Equal(t, ctx1.StateTuples, ctx2.StateTuples)
	}
	assert.Equal(t, []string{"b", "c", "a"}, ctx1.StateTuples[0].Symbols)
}

func TestControlFlowNested(t *testing.T) {
	ctx, got := run(t, `def f(n):
    i = 0
    while i < n:
        if i > 1:
            t = 1
        else:
            t = 2
        print(t)
        i = i + 1
`, Options{}, nil, ControlFlow)

	assert.Equal(t, []StateTuple{
		{Kind: "while", Line: 3, Symbols: []string{"i"}, Outputs: 0},
		{Kind: "if", Line: 4, Symbols: []string{"t"}, Outputs: 1},
	}, ctx.StateTuples)
	assert.Contains(t, got, "        t = ag__.ldu(lambda: t, 't')\n")
	assert.Contains(t, got, "    ag__.while_stmt(loop_test, loop_body, get_state, set_state, ('i',), {})\n")
}

func TestControlFlowFor(t *testing.T) {
	_, got := run(t, `def f(xs):
    total = 0
    for x in xs:
        total = total + x
    return total
`, Options{}, nil, ControlFlow)

	assert.Contains(t, got, `    def loop_body(itr):
        nonlocal total
        x = itr
        total = total + x
`)
	assert.Contains(t, got, "    ag__.for_stmt(xs, None, loop_body, get_state, set_state, ('total',), {'iterate_names': 'x'})\n")
}

func TestControlFlowAmbiguousState(t *testing.T) {
	fn := parseFn(t, `def f(o, keys):
    for k in keys:
        setattr(o, k, 1)
`)
	ctx := NewContext(fn, Options{}, nil)
	err := ControlFlow(ctx, fn)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmbiguousState))
}

func TestConvertPipeline(t *testing.T) {
	fn := parseFn(t, `def f(xs):
    total = 0
    for x in xs:
        if x < 0:
            break
        total = total + x
    return total
`)
	ctx := NewContext(fn, Options{Features: []Feature{FeatureAll}}, nil)
	require.NoError(t, Convert(ctx, fn))

	got := printer.Source(fn)
	assert.Contains(t, got, "ag__.for_stmt(xs, extra_test, loop_body")
	assert.Contains(t, got, "return ag__.not_(break_)")
	assert.NotContains(t, got, "break\n")
	assert.Len(t, ctx.StateTuples, 3)
}

func TestConvertRejectsUnknownFeature(t *testing.T) {
	fn := parseFn(t, "def f():\n    pass\n")
	ctx := NewContext(fn, Options{Features: []Feature{"NOPE"}}, nil)
	err := Convert(ctx, fn)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))

	_, err = ParseFeature("lists")
	assert.NoError(t, err)
	_, err = ParseFeature("nope")
	assert.ErrorIs(t, err, ErrConfig)
}
