package dfg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/cfg"
)

func factsOf(t *testing.T, n ast.Node) *Facts {
	t.Helper()
	f, ok := FactsOf(n)
	require.True(t, ok, "missing facts on %s", ast.KindOf(n))
	return f
}

func TestReachingDefinitions(t *testing.T) {
	fn := parseFn(t, `def f(c):
    if c:
        x = 1
    y = 2
    while c:
        c = c - 1
`)
	_, err := Analyze(fn)
	require.NoError(t, err)

	ifFacts := factsOf(t, fn.Body[0])
	assert.Equal(t, []string{"c"}, ifFacts.DefinedIn.Strings())

	loopFacts := factsOf(t, fn.Body[2])
	assert.Equal(t, []string{"c", "x", "y"}, loopFacts.DefinedIn.Strings())
}

func TestReachingDefinitionsKillComposites(t *testing.T) {
	fn := parseFn(t, `def f(o):
    o.a = 1
    o = g()
    if o:
        pass
`)
	_, err := Analyze(fn)
	require.NoError(t, err)

	assert.Equal(t, []string{"o"}, factsOf(t, fn.Body[2]).DefinedIn.Strings())
}

func TestLivenessAcrossConstructs(t *testing.T) {
	fn := parseFn(t, `def f(n):
    s = 0
    t = 0
    for i in range(n):
        tmp = i * 2
        s = s + tmp
        t = i
    return s
`)
	_, err := Analyze(fn)
	require.NoError(t, err)

	f := factsOf(t, fn.Body[2])
	assert.True(t, f.Loop)
	assert.Equal(t, []string{"i", "s", "t", "tmp"}, f.Mutated.Strings())
	assert.Equal(t, []string{"s"}, f.LiveOut.Strings())
	// tmp and t are redefined before any read in the body.
	assert.Contains(t, f.LiveIn.Strings(), "s")
	assert.NotContains(t, f.LiveIn.Strings(), "tmp")
	assert.NotContains(t, f.LiveIn.Strings(), "t")
}

func TestLivenessIfTest(t *testing.T) {
	fn := parseFn(t, `def f(a, b):
    if a:
        b = 1
    return b
`)
	_, err := Analyze(fn)
	require.NoError(t, err)

	f := factsOf(t, fn.Body[0])
	assert.Equal(t, []string{"a", "b"}, f.LiveIn.Strings())
	assert.Equal(t, []string{"b"}, f.LiveOut.Strings())
}

func TestReachingFndefsCaptured(t *testing.T) {
	fn := parseFn(t, `def f(xs):
    fs = []
    for x in xs:
        y = x + 1
        def g():
            return y
        fs.append(g)
    return fs
`)
	_, err := Analyze(fn)
	require.NoError(t, err)

	f := factsOf(t, fn.Body[1])
	require.Len(t, f.Fndefs, 1)
	assert.Equal(t, "g", f.Fndefs[0].Name)
	assert.Equal(t, []string{"y"}, f.Captured.Strings())
}

func TestAnalyzeNestedFunctionConstructs(t *testing.T) {
	fn := parseFn(t, `def f():
    def g(a):
        while a > 0:
            a = a - 1
        return a
    return g(2)
`)
	_, err := Analyze(fn)
	require.NoError(t, err)

	g := fn.Body[0].(*ast.FunctionDef)
	f := factsOf(t, g.Body[0])
	assert.Equal(t, []string{"a"}, f.LiveOut.Strings())
	assert.Same(t, ScopeOf(g, ScopeKey), f.Scope)
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	fn := parseFn(t, `def f(x, n):
    for i in range(n):
        if x[i] > 0:
            x[i] = 0
        else:
            break
    return x
`)
	_, err := Analyze(fn)
	require.NoError(t, err)
	first := *factsOf(t, fn.Body[0])

	_, err = Analyze(fn)
	require.NoError(t, err)
	second := *factsOf(t, fn.Body[0])

	assert.Equal(t, first.Mutated.Strings(), second.Mutated.Strings())
	assert.Equal(t, first.LiveIn.Strings(), second.LiveIn.Strings())
	assert.Equal(t, first.LiveOut.Strings(), second.LiveOut.Strings())
	assert.Equal(t, first.DefinedIn.Strings(), second.DefinedIn.Strings())
}

func TestAnalyzeUnsupported(t *testing.T) {
	fn := parseFn(t, "def f():\n    with m:\n        pass\n")
	_, err := Analyze(fn)
	assert.True(t, errors.Is(err, cfg.ErrUnsupportedConstruct))
}

func TestDefUseChains(t *testing.T) {
	fn := parseFn(t, `def f(a):
    b = a
    return b
`)
	res, err := Analyze(fn)
	require.NoError(t, err)

	info := res.Info()
	require.Len(t, info.DataflowEdges, 2)
	assert.Equal(t, "a", info.DataflowEdges[0].VarName)
	assert.Equal(t, 1, info.DataflowEdges[0].DefRef.Line)
	assert.Equal(t, 2, info.DataflowEdges[0].UseRef.Line)
	assert.Equal(t, "b", info.DataflowEdges[1].VarName)
}
