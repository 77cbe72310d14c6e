package converters

import (
	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/dfg"
	"github.com/l3aro/go-malt/pkg/qualname"
)

// eachFunction applies f to fn and to every function nested in it, innermost
// first.
func eachFunction(fn *ast.FunctionDef, f func(*ast.FunctionDef) error) error {
	var nested []*ast.FunctionDef
	ast.InspectStmts(fn.Body, func(n ast.Node) bool {
		if fd, ok := n.(*ast.FunctionDef); ok {
			nested = append(nested, fd)
			return false
		}
		return true
	})
	for _, fd := range nested {
		if err := eachFunction(fd, f); err != nil {
			return err
		}
	}
	return f(fn)
}

// containsJump reports whether a statement matching jump occurs in the tree
// rooted at s. Nested functions are never searched; loops, s included, only
// when throughLoops is set.
func containsJump(s ast.Stmt, jump func(ast.Stmt) bool, throughLoops bool) bool {
	found := false
	ast.Inspect(s, func(n ast.Node) bool {
		if found {
			return false
		}
		switch n := n.(type) {
		case *ast.FunctionDef, *ast.Lambda:
			return false
		case *ast.While, *ast.For:
			if !throughLoops {
				return false
			}
		case ast.Stmt:
			if jump(n) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

func blockContainsJump(stmts []ast.Stmt, jump func(ast.Stmt) bool, throughLoops bool) bool {
	for _, s := range stmts {
		if containsJump(s, jump, throughLoops) {
			return true
		}
	}
	return false
}

// guard lowers jumps in a block. Each jump is replaced by lower(jump), the
// statements after it are dropped, and the statements after any compound
// statement that may jump run under "if not flag".
type guard struct {
	jump         func(ast.Stmt) bool
	lower        func(ast.Stmt) []ast.Stmt
	flag         string
	throughLoops bool
	// loop adjusts a loop that contains a jump; set when throughLoops is.
	loop func(ast.Stmt)
}

func (g *guard) block(stmts []ast.Stmt) []ast.Stmt {
	var out []ast.Stmt
	for i, s := range stmts {
		if g.jump(s) {
			return append(out, g.lower(s)...)
		}
		jumps := containsJump(s, g.jump, g.throughLoops)
		if jumps {
			switch s := s.(type) {
			case *ast.If:
				s.Body = g.block(s.Body)
				s.Orelse = g.block(s.Orelse)
			case *ast.While:
				s.Body = g.block(s.Body)
				g.loop(s)
			case *ast.For:
				s.Body = g.block(s.Body)
				g.loop(s)
			}
		}
		out = append(out, s)
		if jumps {
			if rest := g.block(stmts[i+1:]); len(rest) > 0 {
				out = append(out, &ast.If{
					Meta: ast.Meta{At: rest[0].Pos()},
					Test: notName(g.flag),
					Body: rest,
				})
			}
			return out
		}
	}
	return out
}

func notName(id string) ast.Expr {
	return &ast.UnaryOp{Op: "not", Operand: ast.Ident(id)}
}

func assignConst(id string, v any, at ast.Pos) ast.Stmt {
	return &ast.Assign{
		Meta:    ast.Meta{At: at},
		Targets: []ast.Expr{&ast.Name{ID: id, Ctx: ast.Store}},
		Value:   ast.Const(v),
	}
}

// andNot prepends "not flag" to a loop condition. A nil condition yields the
// negation alone.
func andNot(flag string, cond ast.Expr) ast.Expr {
	if cond == nil {
		return notName(flag)
	}
	if b, ok := cond.(*ast.BoolOp); ok && b.Op == "and" {
		b.Values = append([]ast.Expr{notName(flag)}, b.Values...)
		return b
	}
	return &ast.BoolOp{Meta: ast.Meta{At: cond.Pos()}, Op: "and", Values: []ast.Expr{notName(flag), cond}}
}

// rebindable reports whether assigning to q inside the function with scope fs
// rebinds the same variable the function reads. Names that are only read
// resolve to an enclosing or global scope, and assigning them would make them
// local for the whole function.
func rebindable(fs *dfg.Scope, q qualname.QN) bool {
	if fs == nil {
		return false
	}
	root := q.Root()
	return fs.Bound.Has(root) || fs.Globals.Has(root) || fs.Nonlocals.Has(root)
}
