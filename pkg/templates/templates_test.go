package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/printer"
	"github.com/l3aro/go-malt/pkg/qualname"
)

func TestReplaceExpressions(t *testing.T) {
	stmts, err := Replace(`
		target = ag__.set_item(target, key, value)
	`, Bindings{
		"target": qualname.Attr(qualname.Name("self"), "buf"),
		"key":    ast.Const(int64(3)),
		"value":  &ast.BinOp{Left: ast.Ident("a"), Op: "+", Right: ast.Ident("b")},
	})
	require.NoError(t, err)
	assert.Equal(t, "self.buf = ag__.set_item(self.buf, 3, a + b)\n", printer.Stmts(stmts))

	assign := stmts[0].(*ast.Assign)
	assert.Equal(t, ast.Store, assign.Targets[0].(*ast.Attribute).Ctx)
	assert.Equal(t, ast.Load, assign.Value.(*ast.Call).Args[0].(*ast.Attribute).Ctx)
}

func TestReplaceAbsentKeepsArity(t *testing.T) {
	e, err := ReplaceAsExpression("ag__.slice_(lower, upper, step)", Bindings{
		"lower": ast.Const(int64(5)),
		"upper": Absent,
		"step":  Absent,
	})
	require.NoError(t, err)
	assert.Equal(t, "ag__.slice_(5, ag__.Unset, ag__.Unset)", printer.Expr(e))
	assert.Len(t, e.(*ast.Call).Args, 3)
}

func TestReplaceStatementsAndIdentifiers(t *testing.T) {
	body := []ast.Stmt{
		&ast.Assign{Targets: []ast.Expr{&ast.Name{ID: "x", Ctx: ast.Store}}, Value: ast.Const(int64(1))},
		&ast.ExprStmt{Value: ast.CallOf(ast.Ident("f"), ast.Ident("x"))},
	}
	stmts, err := Replace(`
		def body_name():
		    nonlocal nonlocal_names
		    body
	`, Bindings{
		"body_name":      ast.Ident("if_body"),
		"nonlocal_names": []ast.Expr{ast.Ident("x"), ast.Ident("y")},
		"body":           body,
	})
	require.NoError(t, err)
	assert.Equal(t, "def if_body():\n    nonlocal x, y\n    x = 1\n    f(x)\n", printer.Stmts(stmts))
}

func TestReplaceDropsEmptyDeclarations(t *testing.T) {
	stmts, err := Replace(`
		def set_state(vars_):
		    nonlocal names
		    pass
	`, Bindings{"names": []ast.Expr{}})
	require.NoError(t, err)
	assert.Equal(t, "def set_state(vars_):\n    pass\n", printer.Stmts(stmts))
}

func TestReplaceSplicesSequences(t *testing.T) {
	e, err := ReplaceAsExpression("(names,)", Bindings{
		"names": []ast.Expr{ast.Ident("a"), ast.Ident("b")},
	})
	require.NoError(t, err)
	assert.Equal(t, "(a, b)", printer.Expr(e))

	e, err = ReplaceAsExpression("(names,)", Bindings{"names": []ast.Expr{}})
	require.NoError(t, err)
	assert.Equal(t, "()", printer.Expr(e))
}

func TestReplaceDoesNotRecurseIntoBindings(t *testing.T) {
	e, err := ReplaceAsExpression("f(a, b)", Bindings{
		"a": ast.Ident("b"),
		"b": ast.Const(int64(2)),
	})
	require.NoError(t, err)
	assert.Equal(t, "f(b, 2)", printer.Expr(e))
}

func TestReplaceErrors(t *testing.T) {
	tests := []struct {
		name     string
		template string
		bindings Bindings
		wantErr  error
	}{
		{"string binding", "x = v", Bindings{"v": "1 + 1"}, ErrStringBinding},
		{"unsupported type", "x = v", Bindings{"v": []int{1}}, ErrBindingType},
		{"expression as statement", "body", Bindings{"body": ast.Ident("x")}, ErrPlacement},
		{"statements as expression", "x = v", Bindings{"v": []ast.Stmt{&ast.Pass{}}}, ErrPlacement},
		{"list outside sequence", "x = v", Bindings{"v": []ast.Expr{ast.Ident("a")}}, ErrPlacement},
		{"wildcard symbol", "x = v", Bindings{"v": qualname.Any(qualname.Name("a"))}, ErrPlacement},
		{"bad identifier", "def f():\n    pass", Bindings{"f": ast.Const(int64(1))}, ErrPlacement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Replace(tt.template, tt.bindings)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestReplaceAsExpressionRejectsStatements(t *testing.T) {
	_, err := ReplaceAsExpression("x = 1", nil)
	assert.ErrorIs(t, err, ErrPlacement)
}

func TestReplaceReturnsFreshTrees(t *testing.T) {
	a, err := Replace("x = 1", nil)
	require.NoError(t, err)
	b, err := Replace("x = 1", nil)
	require.NoError(t, err)
	assert.NotSame(t, a[0], b[0])
}

func TestDedent(t *testing.T) {
	assert.Equal(t, "if a:\n    b\n", dedent("\n\t\tif a:\n\t\t    b\n\t"))
}
