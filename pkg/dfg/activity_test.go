package dfg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/parser"
	"github.com/l3aro/go-malt/pkg/qualname"
)

func parseFn(t *testing.T, src string) *ast.FunctionDef {
	t.Helper()
	fn, err := parser.ParseFunction(context.Background(), []byte(src), "f")
	require.NoError(t, err)
	return fn
}

func activityOf(t *testing.T, src string) (*ast.FunctionDef, *Scope) {
	t.Helper()
	fn := parseFn(t, src)
	qualname.Resolve(fn)
	return fn, Activity(fn)
}

func TestActivityFunctionScope(t *testing.T) {
	fn, s := activityOf(t, `def f(a, *rest):
    b = a.x
    a.items.append(b)
    c[0] = b
    return len(rest)
`)
	require.Same(t, s, ScopeOf(fn, ScopeKey))

	assert.Equal(t, []string{"a", "rest"}, s.Params.Strings())
	assert.Equal(t, []string{"b", "c[0]"}, s.Written.Strings())
	assert.Equal(t, []string{"a.items"}, s.Modified.Strings())
	assert.Subset(t, s.Read.Strings(), []string{"a", "a.x", "b", "len", "rest"})
	assert.True(t, s.IsLocal(qualname.Name("b")))
	assert.False(t, s.IsLocal(qualname.Name("c")))
}

func TestActivityBlockScopes(t *testing.T) {
	fn, _ := activityOf(t, `def f(x):
    if x > 0:
        y = 1
    else:
        z = 2
    for i in range(x):
        w = i
`)
	ifStmt := fn.Body[0].(*ast.If)
	assert.Equal(t, []string{"x"}, ScopeOf(ifStmt, CondScopeKey).Read.Strings())
	assert.Equal(t, []string{"y"}, ScopeOf(ifStmt, BodyScopeKey).Written.Strings())
	assert.Equal(t, []string{"z"}, ScopeOf(ifStmt, OrelseScopeKey).Written.Strings())

	forStmt := fn.Body[1].(*ast.For)
	assert.Equal(t, []string{"i"}, ScopeOf(forStmt, IterateScopeKey).Written.Strings())
	body := ScopeOf(forStmt, BodyScopeKey)
	assert.Equal(t, []string{"w"}, body.Written.Strings())
	assert.Equal(t, []string{"i"}, body.Read.Strings())
}

func TestActivityNestedFunction(t *testing.T) {
	fn, s := activityOf(t, `def f():
    total = 0
    scale = 2
    def add(v):
        nonlocal total
        total = total + v * scale
    add(1)
    return total
`)
	add := fn.Body[2].(*ast.FunctionDef)
	inner := ScopeOf(add, ScopeKey)
	require.NotNil(t, inner)

	assert.Equal(t, []string{"scale", "total"}, inner.FreeReads().Strings())
	assert.Equal(t, []string{"total"}, inner.NonlocalWrites().Strings())
	assert.False(t, inner.IsLocal(qualname.Name("total")))
	assert.True(t, inner.IsLocal(qualname.Name("v")))

	// The nested function's parameter does not leak outward.
	assert.False(t, s.Read.Has(qualname.Name("v")))
	assert.True(t, s.Read.Has(qualname.Name("scale")))
	assert.True(t, s.Written.Has(qualname.Name("add")))
}

func TestActivityLambda(t *testing.T) {
	_, s := activityOf(t, `def f(xs, k):
    g = lambda v: v + k
    return g
`)
	assert.True(t, s.Read.Has(qualname.Name("k")))
	assert.False(t, s.Read.Has(qualname.Name("v")))
}

func TestActivityGlobals(t *testing.T) {
	_, s := activityOf(t, `def f():
    if True:
        global counter
    counter = 1
`)
	assert.True(t, s.Globals.Has(qualname.Name("counter")))
	assert.False(t, s.IsLocal(qualname.Name("counter")))
}
