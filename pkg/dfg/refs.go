package dfg

import (
	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/cfg"
	"github.com/l3aro/go-malt/pkg/qualname"
)

// ref is a symbol occurrence inside a CFG item.
type ref struct {
	sym qualname.QN
	pos ast.Pos
}

// access lists the definitions and uses of one CFG item. Uses are evaluated
// before definitions.
type access struct {
	defs []ref
	uses []ref
}

// itemAccess extracts the symbols an item defines and uses. The tree must
// have been resolved and, for nested functions, analyzed by Activity.
func itemAccess(it cfg.Item) access {
	var acc access
	switch it.Role {
	case cfg.RoleParams:
		if args, ok := it.Node.(*ast.Arguments); ok {
			names := append([]*ast.Name{}, args.Args...)
			if args.Vararg != nil {
				names = append(names, args.Vararg)
			}
			if args.Kwarg != nil {
				names = append(names, args.Kwarg)
			}
			for _, n := range names {
				acc.defs = append(acc.defs, ref{sym: qualname.Name(n.ID), pos: n.Pos()})
			}
		}
	case cfg.RoleTest, cfg.RoleForIter:
		acc.uses = usesOf(it.Node.(ast.Expr), nil, acc.uses)
	case cfg.RoleForHeader:
		if f, ok := it.Node.(*ast.For); ok {
			acc.uses = usesOf(f.ExtraTest, nil, acc.uses)
		}
	case cfg.RoleForTarget:
		acc.targetAccess(it.Node.(ast.Expr))
	case cfg.RoleStmt:
		acc.stmtAccess(it.Node.(ast.Stmt))
	}
	return acc
}

func (acc *access) stmtAccess(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.Assign:
		acc.uses = usesOf(s.Value, nil, acc.uses)
		for _, t := range s.Targets {
			acc.targetAccess(t)
		}
	case *ast.AugAssign:
		acc.uses = usesOf(s.Value, nil, acc.uses)
		if q, ok := qualname.Of(s.Target); ok {
			for cur := q; cur.Valid(); cur = cur.Parent() {
				acc.uses = append(acc.uses, ref{sym: cur, pos: s.Target.Pos()})
			}
		}
		acc.targetAccess(s.Target)
	case *ast.ExprStmt:
		acc.uses = usesOf(s.Value, nil, acc.uses)
	case *ast.Return:
		acc.uses = usesOf(s.Value, nil, acc.uses)
	case *ast.Raise:
		acc.uses = usesOf(s.Exc, nil, acc.uses)
	case *ast.Assert:
		acc.uses = usesOf(s.Test, nil, acc.uses)
		acc.uses = usesOf(s.Msg, nil, acc.uses)
	case *ast.FunctionDef:
		if s.Args != nil {
			for _, d := range s.Args.Defaults {
				acc.uses = usesOf(d, nil, acc.uses)
			}
		}
		if fs := ScopeOf(s, ScopeKey); fs != nil {
			for _, q := range fs.FreeReads().Sorted() {
				acc.uses = append(acc.uses, ref{sym: q, pos: s.Pos()})
			}
		}
		acc.defs = append(acc.defs, ref{sym: qualname.Name(s.Name), pos: s.Pos()})
	}
}

func (acc *access) targetAccess(t ast.Expr) {
	switch t := t.(type) {
	case *ast.Tuple:
		for _, el := range t.Elts {
			acc.targetAccess(el)
		}
	case *ast.List:
		for _, el := range t.Elts {
			acc.targetAccess(el)
		}
	case *ast.Name:
		acc.defs = append(acc.defs, ref{sym: qualname.Name(t.ID), pos: t.Pos()})
	case *ast.Attribute:
		acc.uses = usesOf(t.Value, nil, acc.uses)
		if q, ok := qualname.Of(t); ok {
			acc.defs = append(acc.defs, ref{sym: q, pos: t.Pos()})
		}
	case *ast.Subscript:
		acc.uses = usesOf(t.Value, nil, acc.uses)
		acc.uses = usesOf(t.Index, nil, acc.uses)
		if q, ok := qualname.Of(t); ok {
			acc.defs = append(acc.defs, ref{sym: q, pos: t.Pos()})
		}
	}
}

// usesOf appends the symbols read by e. Names in shadow are lambda
// parameters and are not reads of the enclosing function.
func usesOf(e ast.Expr, shadow map[string]bool, out []ref) []ref {
	if e == nil {
		return out
	}
	ast.Inspect(e, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Lambda:
			inner := make(map[string]bool, len(shadow))
			for k := range shadow {
				inner[k] = true
			}
			if n.Args != nil {
				for _, d := range n.Args.Defaults {
					out = usesOf(d, shadow, out)
				}
				for _, p := range n.Args.Args {
					inner[p.ID] = true
				}
				if n.Args.Vararg != nil {
					inner[n.Args.Vararg.ID] = true
				}
				if n.Args.Kwarg != nil {
					inner[n.Args.Kwarg.ID] = true
				}
			}
			out = usesOf(n.Body, inner, out)
			return false
		case *ast.Name, *ast.Attribute, *ast.Subscript:
			if !loadCtx(n) {
				return true
			}
			q, ok := qualname.Of(n)
			if !ok || shadow[q.Root().Last()] {
				return true
			}
			out = append(out, ref{sym: q, pos: n.Pos()})
		}
		return true
	})
	return out
}
