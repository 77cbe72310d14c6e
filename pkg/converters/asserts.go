package converters

import (
	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/templates"
)

// Asserts turns assert statements into ag__.assert_stmt calls with a deferred
// message.
func Asserts(ctx *Context, fn *ast.FunctionDef) error {
	rw := &ast.Rewriter{
		Stmt: func(r *ast.Rewriter, s ast.Stmt) ([]ast.Stmt, error) {
			a, ok := s.(*ast.Assert)
			if !ok {
				out, err := r.StmtChildren(s)
				if err != nil {
					return nil, err
				}
				return []ast.Stmt{out}, nil
			}
			var msg ast.Expr = ast.Const(nil)
			if a.Msg != nil {
				msg = a.Msg
			}
			return templates.Replace("ag__.assert_stmt(test, lambda: msg)", templates.Bindings{
				"test": a.Test,
				"msg":  msg,
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
