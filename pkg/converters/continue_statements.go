package converters

import (
	"github.com/l3aro/go-malt/pkg/ast"
)

func isContinue(s ast.Stmt) bool {
	_, ok := s.(*ast.Continue)
	return ok
}

// ContinueStatements lowers continue into a flag reset at the top of every
// iteration; the rest of the iteration runs under "if not continue_".
func ContinueStatements(ctx *Context, fn *ast.FunctionDef) error {
	return eachFunction(fn, func(f *ast.FunctionDef) error {
		f.Body = lowerContinues(ctx, f.Body)
		return nil
	})
}

func lowerContinues(ctx *Context, stmts []ast.Stmt) []ast.Stmt {
	for _, s := range stmts {
		switch s := s.(type) {
		case *ast.If:
			s.Body = lowerContinues(ctx, s.Body)
			s.Orelse = lowerContinues(ctx, s.Orelse)
		case *ast.While:
			s.Body = continueLoop(ctx, s, lowerContinues(ctx, s.Body))
			s.Orelse = lowerContinues(ctx, s.Orelse)
		case *ast.For:
			s.Body = continueLoop(ctx, s, lowerContinues(ctx, s.Body))
			s.Orelse = lowerContinues(ctx, s.Orelse)
		}
	}
	return stmts
}

func continueLoop(ctx *Context, loop ast.Stmt, body []ast.Stmt) []ast.Stmt {
	if !blockContainsJump(body, isContinue, false) {
		return body
	}
	flag := ctx.Namer.New("continue_")
	g := &guard{
		jump: isContinue,
		lower: func(s ast.Stmt) []ast.Stmt {
			return []ast.Stmt{assignConst(flag, true, s.Pos())}
		},
		flag: flag,
	}
	return append([]ast.Stmt{assignConst(flag, false, loop.Pos())}, g.block(body)...)
}
