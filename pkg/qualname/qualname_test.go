package qualname

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/printer"
)

func TestQNString(t *testing.T) {
	x := Name("x")
	tests := []struct {
		name string
		qn   QN
		want string
	}{
		{"simple", x, "x"},
		{"attribute", Attr(x, "f"), "x.f"},
		{"int subscript", Sub(x, int64(0)), "x[0]"},
		{"string subscript", Sub(x, "k"), "x['k']"},
		{"wildcard", Any(x), "x[*]"},
		{"chain", Sub(Attr(x, "f"), int64(-1)), "x.f[-1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.qn.String())
		})
	}
}

func TestQNPredicates(t *testing.T) {
	x := Name("x")
	xf := Attr(x, "f")
	xi := Any(xf)

	assert.True(t, x.IsSimple())
	assert.False(t, x.IsComposite())
	assert.True(t, xf.HasAttr())
	assert.True(t, xi.HasSubscript())
	assert.True(t, xi.IsWildcard())
	assert.False(t, xf.IsWildcard())

	assert.Equal(t, xf, xi.Parent())
	assert.Equal(t, x, xi.Root())
	assert.False(t, x.Parent().Valid())
	assert.Equal(t, []QN{x}, xi.Support())
	assert.True(t, xi.HasPrefix(x))
	assert.False(t, Name("xy").HasPrefix(x))
}

func TestQNIdentity(t *testing.T) {
	// Equal composites built independently are the same map key.
	m := map[QN]int{Attr(Name("a"), "b"): 1}
	assert.Equal(t, 1, m[Attr(Name("a"), "b")])
	assert.NotEqual(t, Sub(Name("a"), int64(1)), Sub(Name("a"), "1"))
}

func TestQNExpr(t *testing.T) {
	q := Sub(Attr(Name("x"), "f"), "k")
	assert.Equal(t, "x.f['k']", printer.Expr(q.Expr()))
	assert.Nil(t, Any(Name("x")).Expr())
}

func TestResolve(t *testing.T) {
	// x.a[i][0] with i a name.
	sub := &ast.Subscript{
		Value: &ast.Subscript{
			Value: &ast.Attribute{Value: ast.Ident("x"), Attr: "a"},
			Index: ast.Ident("i"),
		},
		Index: ast.Const(int64(0)),
	}
	Resolve(sub)

	q, ok := Of(sub)
	require.True(t, ok)
	assert.Equal(t, "x.a[*][0]", q.String())
	assert.True(t, q.IsWildcard())

	inner, ok := Of(sub.Value)
	require.True(t, ok)
	assert.Equal(t, "x.a[*]", inner.String())
}

func TestResolveNegativeAndSlice(t *testing.T) {
	neg := &ast.Subscript{Value: ast.Ident("x"), Index: &ast.UnaryOp{Op: "-", Operand: ast.Const(int64(1))}}
	sl := &ast.Subscript{Value: ast.Ident("x"), Index: &ast.Slice{Lower: ast.Const(int64(1))}}
	Resolve(neg)
	Resolve(sl)

	q, _ := Of(neg)
	assert.Equal(t, "x[-1]", q.String())
	q, _ = Of(sl)
	assert.Equal(t, "x[*]", q.String())
}

func TestResolveSkipsCallBases(t *testing.T) {
	attr := &ast.Attribute{Value: ast.CallOf(ast.Ident("f")), Attr: "a"}
	Resolve(attr)
	_, ok := Of(attr)
	assert.False(t, ok)
}

func TestOrder(t *testing.T) {
	// b = a; a = b.c
	stmts := &ast.Module{Body: []ast.Stmt{
		&ast.Assign{Targets: []ast.Expr{&ast.Name{ID: "b", Ctx: ast.Store}}, Value: ast.Ident("a")},
		&ast.Assign{
			Targets: []ast.Expr{&ast.Name{ID: "a", Ctx: ast.Store}},
			Value:   &ast.Attribute{Value: ast.Ident("b"), Attr: "c"},
		},
	}}
	Resolve(stmts)
	order := Order(stmts)

	assert.Equal(t, 0, order[Name("b")])
	assert.Equal(t, 1, order[Name("a")])
	assert.Equal(t, 2, order[Attr(Name("b"), "c")])
}

func TestSet(t *testing.T) {
	s := NewSet(Name("b"), Name("a"))
	s.Add(Name("a"))
	assert.Len(t, s, 2)
	assert.Equal(t, []string{"a", "b"}, s.Strings())

	u := s.Union(NewSet(Name("c")))
	assert.True(t, u.Has(Name("c")))
	assert.False(t, s.Has(Name("c")))
	assert.True(t, s.Equal(s.Copy()))
}
