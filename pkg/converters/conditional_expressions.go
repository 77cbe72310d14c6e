package converters

import (
	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/printer"
	"github.com/l3aro/go-malt/pkg/templates"
)

// ConditionalExpressions turns "a if c else b" into
// ag__.if_exp(c, lambda: a, lambda: b, 'a if c else b'), so only the selected
// branch is evaluated.
func ConditionalExpressions(ctx *Context, fn *ast.FunctionDef) error {
	rw := &ast.Rewriter{
		Expr: func(r *ast.Rewriter, e ast.Expr) (ast.Expr, error) {
			ie, ok := e.(*ast.IfExp)
			if !ok {
				return r.ExprChildren(e)
			}
			repr := printer.Expr(ie)
			if _, err := r.ExprChildren(ie); err != nil {
				return nil, err
			}
			return templates.ReplaceAsExpression("ag__.if_exp(test, lambda: body, lambda: orelse, repr_)", templates.Bindings{
				"test":   ie.Test,
				"body":   ie.Body,
				"orelse": ie.Orelse,
				"repr_":  ast.Const(repr),
			})
		},
	}
	body, err := rw.Block(fn.Body)
	if err != nil {
		return err
	}
	fn.Body = body
	return nil
}
