package transpiler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/cache"
	"github.com/l3aro/go-malt/pkg/converters"
	"github.com/l3aro/go-malt/pkg/parser"
)

var all = []converters.Feature{converters.FeatureAll}

const program = `import math
from os import path as p

LIMIT = 10

def helper(x):
    if x > LIMIT:
        x = LIMIT
    return x

def main(xs):
    total = 0
    for x in xs:
        total += helper(x)
    return total

def broken(o, keys):
    for k in keys:
        setattr(o, k, 1)
`

func TestNamespace(t *testing.T) {
	mod, err := parser.ParseModule(context.Background(), []byte(program))
	require.NoError(t, err)

	ns := Namespace(mod)
	assert.Equal(t, converters.BindModule, ns["math"].Kind)
	assert.Equal(t, converters.BindModule, ns["p"].Kind)
	assert.Equal(t, converters.BindValue, ns["LIMIT"].Kind)
	assert.Equal(t, converters.BindFunction, ns["helper"].Kind)
	assert.Equal(t, converters.BindFunction, ns["main"].Kind)
	assert.NotContains(t, ns, "path")
	assert.NotContains(t, ns, "len")
}

func TestTransform(t *testing.T) {
	tr := New(Config{})
	r, err := tr.Transform(context.Background(), EntityInfo{Name: "main", Source: []byte(program)},
		Options{Recursive: true, UserRequested: true, Features: all})
	require.NoError(t, err)

	assert.Equal(t, "main", r.Name)
	assert.Equal(t, []string{"ag__"}, r.ExtraBindings)
	assert.Equal(t, []string{"helper"}, r.Referenced)
	assert.Contains(t, r.Source, "ag__.for_stmt(xs, None, loop_body")
	require.Len(t, r.StateTuples, 1)
	assert.Equal(t, "for", r.StateTuples[0].Kind)
	assert.Equal(t, []string{"total"}, r.StateTuples[0].Symbols)
	require.NotNil(t, r.Node)
	assert.Equal(t, "main", r.Node.Name)
}

func TestTransformSingleFunctionSource(t *testing.T) {
	tr := New(Config{})
	r, err := tr.Transform(context.Background(), EntityInfo{Source: []byte("def f(a):\n    return a if a else 0\n")},
		Options{UserRequested: true})
	require.NoError(t, err)
	assert.Contains(t, r.Source, "ag__.if_exp(a, lambda: a, lambda: 0, 'a if a else 0')")

	_, err = tr.Transform(context.Background(), EntityInfo{Source: []byte(program)}, Options{UserRequested: true})
	assert.ErrorIs(t, err, parser.ErrFunctionNotFound)
}

func TestTransformFailure(t *testing.T) {
	tr := New(Config{})
	info := EntityInfo{Name: "broken", Source: []byte(program), SourceFile: "prog.py"}

	_, err := tr.Transform(context.Background(), info, Options{UserRequested: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, converters.ErrAmbiguousState)
	assert.Contains(t, err.Error(), "prog.py: ")

	r, err := tr.Transform(context.Background(), info, Options{})
	require.NoError(t, err)
	assert.True(t, r.Fallback)
	assert.Contains(t, r.Source, "setattr(o, k, 1)")
	assert.NotContains(t, r.Source, "ag__")
	assert.True(t, errors.Is(r.Err, converters.ErrAmbiguousState))
}

func TestTransformModule(t *testing.T) {
	tr := New(Config{})
	m, err := tr.TransformModule(context.Background(), []byte(program), Options{Features: all})
	require.NoError(t, err)

	require.Len(t, m.Functions, 3)
	assert.Equal(t, []string{"helper", "main", "broken"}, []string{m.Functions[0].Name, m.Functions[1].Name, m.Functions[2].Name})
	assert.False(t, m.Function("helper").Fallback)
	assert.True(t, m.Function("broken").Fallback)
	assert.Nil(t, m.Function("missing"))

	assert.Contains(t, m.Source, "LIMIT = 10\n")
	assert.Contains(t, m.Source, "ag__.if_stmt(")
	assert.Contains(t, m.Source, "setattr(o, k, 1)")
}

func TestTransformModuleUserRequestedFailure(t *testing.T) {
	tr := New(Config{})
	m, err := tr.TransformModule(context.Background(), []byte(program), Options{UserRequested: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, converters.ErrAmbiguousState)
	require.NotNil(t, m)
	assert.Nil(t, m.Function("main").Err)
}

func TestTransformFunctionsFollowsReferences(t *testing.T) {
	tr := New(Config{})
	ctx := context.Background()

	m, err := tr.TransformFunctions(ctx, []byte(program), []string{"main"}, Options{UserRequested: true, Features: all})
	require.NoError(t, err)
	assert.Len(t, m.Functions, 1)

	m, err = tr.TransformFunctions(ctx, []byte(program), []string{"main"}, Options{Recursive: true, UserRequested: true, Features: all})
	require.NoError(t, err)
	require.Len(t, m.Functions, 2)
	assert.NotNil(t, m.Function("helper"))
	assert.Contains(t, m.Function("helper").Source, "ag__.if_stmt(")

	_, err = tr.TransformFunctions(ctx, []byte(program), []string{"nope"}, Options{})
	assert.ErrorIs(t, err, parser.ErrFunctionNotFound)
}

func TestTransformUsesCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.msgpack")
	store, err := cache.Open(path, cache.Options{})
	require.NoError(t, err)
	tr := New(Config{Cache: store})
	ctx := context.Background()
	info := EntityInfo{Name: "main", Source: []byte(program)}
	opts := Options{Recursive: true, UserRequested: true, Features: all}

	first, err := tr.Transform(ctx, info, opts)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := tr.Transform(ctx, info, opts)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Source, second.Source)
	assert.Equal(t, first.Referenced, second.Referenced)
	assert.Equal(t, first.StateTuples, second.StateTuples)

	other, err := tr.Transform(ctx, info, Options{UserRequested: true, Features: all})
	require.NoError(t, err)
	assert.False(t, other.Cached)

	require.NoError(t, tr.Flush())
	reopened, err := cache.Open(path, cache.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Len())
}

func TestTransformCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := New(Config{})
	_, err := tr.Transform(ctx, EntityInfo{Name: "main", Source: []byte(program)}, Options{UserRequested: true})
	assert.Error(t, err)
}

func TestTransformRejectsUnknownFeature(t *testing.T) {
	tr := New(Config{})
	_, err := tr.TransformModule(context.Background(), []byte(program), Options{Features: []converters.Feature{"NOPE"}})
	assert.ErrorIs(t, err, converters.ErrConfig)
}

func TestModuleResultCarriesConvertedNodes(t *testing.T) {
	tr := New(Config{})
	src := []byte("def f(x):\n    if x:\n        x = 1\n    return x\n")
	m, err := tr.TransformModule(context.Background(), src, Options{UserRequested: true})
	require.NoError(t, err)
	var calls int
	ast.Inspect(m.Function("f").Node, func(n ast.Node) bool {
		if _, ok := n.(*ast.Call); ok {
			calls++
		}
		return true
	})
	assert.Positive(t, calls)
}
