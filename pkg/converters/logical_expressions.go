package converters

import (
	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/templates"
)

// LogicalExpressions rewrites boolean operators into operator calls that keep
// short-circuit evaluation:
//
//	a and b and c  =>  ag__.and_(a, lambda: ag__.and_(b, lambda: c))
//	not a          =>  ag__.not_(a)
//
// With EQUALITY_OPERATORS, single comparisons a == b and a != b become
// ag__.eq(a, b) and ag__.not_eq(a, b).
func LogicalExpressions(ctx *Context, fn *ast.FunctionDef) error {
	equality := ctx.Options.Uses(FeatureEqualityOperators)
	rw := &ast.Rewriter{
		Expr: func(r *ast.Rewriter, e ast.Expr) (ast.Expr, error) {
			e, err := r.ExprChildren(e)
			if err != nil {
				return nil, err
			}
			switch e := e.(type) {
			case *ast.BoolOp:
				return boolOp(e)
			case *ast.UnaryOp:
				if e.Op == "not" {
					return templates.ReplaceAsExpression("ag__.not_(a)", templates.Bindings{"a": e.Operand})
				}
			case *ast.Compare:
				if equality && len(e.Ops) == 1 {
					switch e.Ops[0] {
					case "==":
						return templates.ReplaceAsExpression("ag__.eq(a, b)", templates.Bindings{"a": e.Left, "b": e.Comparators[0]})
					case "!=":
						return templates.ReplaceAsExpression("ag__.not_eq(a, b)", templates.Bindings{"a": e.Left, "b": e.Comparators[0]})
					}
				}
			}
			return e, nil
		},
	}
	body, err := rw.Block(fn.Body)
	if err != nil {
		return err
	}
	fn.Body = body
	return nil
}

func boolOp(e *ast.BoolOp) (ast.Expr, error) {
	op := "ag__.and_(a, lambda: b)"
	if e.Op == "or" {
		op = "ag__.or_(a, lambda: b)"
	}
	rest := e.Values[len(e.Values)-1]
	for i := len(e.Values) - 2; i >= 0; i-- {
		var err error
		rest, err = templates.ReplaceAsExpression(op, templates.Bindings{"a": e.Values[i], "b": rest})
		if err != nil {
			return nil, err
		}
	}
	return rest, nil
}
