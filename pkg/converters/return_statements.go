package converters

import (
	"github.com/l3aro/go-malt/pkg/ast"
)

func isReturn(s ast.Stmt) bool {
	_, ok := s.(*ast.Return)
	return ok
}

// ReturnStatements gives functions with early returns a single exit:
//
//	do_return = False
//	retval_ = ag__.UndefinedReturnValue
//	...                               # return v => do_return = True; retval_ = v
//	return ag__.retval(retval_)
//
// Statements after a possible return run under "if not do_return", and loops
// containing a return stop once it is set. A function whose only return is
// its last statement is left alone.
func ReturnStatements(ctx *Context, fn *ast.FunctionDef) error {
	return eachFunction(fn, func(f *ast.FunctionDef) error {
		lowerReturns(ctx, f)
		return nil
	})
}

func lowerReturns(ctx *Context, f *ast.FunctionDef) {
	body := f.Body
	if n := len(body); n > 0 && isReturn(body[n-1]) {
		body = body[:n-1]
	}
	if !blockContainsJump(body, isReturn, true) {
		return
	}

	doReturn := ctx.Namer.New("do_return")
	retval := ctx.Namer.New("retval_")
	g := &guard{
		jump: isReturn,
		lower: func(s ast.Stmt) []ast.Stmt {
			r := s.(*ast.Return)
			var v ast.Expr = ast.Const(nil)
			if r.Value != nil {
				v = r.Value
			}
			return []ast.Stmt{
				assignConst(doReturn, true, r.Pos()),
				&ast.Assign{
					Meta:    ast.Meta{At: r.Pos()},
					Targets: []ast.Expr{&ast.Name{ID: retval, Ctx: ast.Store}},
					Value:   v,
				},
			}
		},
		flag:         doReturn,
		throughLoops: true,
	}
	g.loop = func(s ast.Stmt) {
		switch s := s.(type) {
		case *ast.While:
			s.Test = andNot(doReturn, s.Test)
		case *ast.For:
			s.ExtraTest = andNot(doReturn, s.ExtraTest)
		}
	}

	at := f.Pos()
	out := []ast.Stmt{
		assignConst(doReturn, false, at),
		&ast.Assign{
			Meta:    ast.Meta{At: at},
			Targets: []ast.Expr{&ast.Name{ID: retval, Ctx: ast.Store}},
			Value:   ast.Dotted(Module + ".UndefinedReturnValue"),
		},
	}
	out = append(out, g.block(f.Body)...)
	out = append(out, &ast.Return{
		Meta:  ast.Meta{At: at},
		Value: ast.CallOf(ast.Dotted(Module+".retval"), ast.Ident(retval)),
	})
	f.Body = out
}
