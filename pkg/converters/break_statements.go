package converters

import (
	"github.com/l3aro/go-malt/pkg/ast"
)

func isBreak(s ast.Stmt) bool {
	_, ok := s.(*ast.Break)
	return ok
}

// BreakStatements lowers break into a per-loop flag:
//
//	while test:            break_ = False
//	    if c:              while not break_ and test:
//	        break    =>        if c:
//	    body                       break_ = True
//	else:                      if not break_:
//	    orelse                     body
//	                       if not break_:
//	                           orelse
//
// For loops get "not break_" as their extra test. Loop else blocks are moved
// after the loop, guarded by the flag when the loop can break.
func BreakStatements(ctx *Context, fn *ast.FunctionDef) error {
	return eachFunction(fn, func(f *ast.FunctionDef) error {
		f.Body = lowerBreaks(ctx, f.Body)
		return nil
	})
}

func lowerBreaks(ctx *Context, stmts []ast.Stmt) []ast.Stmt {
	var out []ast.Stmt
	for _, s := range stmts {
		switch s := s.(type) {
		case *ast.If:
			s.Body = lowerBreaks(ctx, s.Body)
			s.Orelse = lowerBreaks(ctx, s.Orelse)
			out = append(out, s)
		case *ast.While:
			s.Body = lowerBreaks(ctx, s.Body)
			orelse := lowerBreaks(ctx, s.Orelse)
			s.Orelse = nil
			out = append(out, breakLoop(ctx, s, &s.Body, func(flag string) {
				s.Test = andNot(flag, s.Test)
			}, orelse)...)
		case *ast.For:
			s.Body = lowerBreaks(ctx, s.Body)
			orelse := lowerBreaks(ctx, s.Orelse)
			s.Orelse = nil
			out = append(out, breakLoop(ctx, s, &s.Body, func(flag string) {
				s.ExtraTest = andNot(flag, s.ExtraTest)
			}, orelse)...)
		default:
			out = append(out, s)
		}
	}
	return out
}

func breakLoop(ctx *Context, loop ast.Stmt, body *[]ast.Stmt, guardTest func(flag string), orelse []ast.Stmt) []ast.Stmt {
	if !blockContainsJump(*body, isBreak, false) {
		return append([]ast.Stmt{loop}, orelse...)
	}
	flag := ctx.Namer.New("break_")
	g := &guard{
		jump: isBreak,
		lower: func(s ast.Stmt) []ast.Stmt {
			return []ast.Stmt{assignConst(flag, true, s.Pos())}
		},
		flag: flag,
	}
	*body = g.block(*body)
	guardTest(flag)

	out := []ast.Stmt{assignConst(flag, false, loop.Pos()), loop}
	if len(orelse) > 0 {
		out = append(out, &ast.If{
			Meta: ast.Meta{At: orelse[0].Pos()},
			Test: notName(flag),
			Body: orelse,
		})
	}
	return out
}
