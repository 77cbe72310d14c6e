package converters

import (
	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/dfg"
	"github.com/l3aro/go-malt/pkg/qualname"
	"github.com/l3aro/go-malt/pkg/templates"
)

// Lists rewrites in-place list mutation into calls whose result is rebound:
//
//	l.append(x)   =>  l = ag__.list_append(l, x)
//	v = l.pop()   =>  l, v = ag__.list_pop(l, ag__.Unset)
//	l.pop(i)      =>  l, _ = ag__.list_pop(l, i)
//
// Only receivers that are symbols (names, attributes, literal subscripts)
// are rewritten, since they must be assignable. The receiver's root must also
// be bound by the function itself or declared global or nonlocal there;
// mutating a list that lives in an enclosing scope is left as is.
func Lists(ctx *Context, fn *ast.FunctionDef) error {
	qualname.Resolve(fn)
	dfg.Activity(fn)
	return eachFunction(fn, func(f *ast.FunctionDef) error {
		fs := dfg.ScopeOf(f, dfg.ScopeKey)
		rw := &ast.Rewriter{
			Stmt: func(r *ast.Rewriter, s ast.Stmt) ([]ast.Stmt, error) {
				switch s := s.(type) {
				case *ast.FunctionDef:
					return []ast.Stmt{s}, nil
				case *ast.ExprStmt:
					if out, ok, err := listStmt(ctx, fs, s.Value, nil); ok || err != nil {
						return out, err
					}
				case *ast.Assign:
					if len(s.Targets) == 1 {
						if out, ok, err := listStmt(ctx, fs, s.Value, s.Targets[0]); ok || err != nil {
							return out, err
						}
					}
				}
				out, err := r.StmtChildren(s)
				if err != nil {
					return nil, err
				}
				return []ast.Stmt{out}, nil
			},
		}
		body, err := rw.Block(f.Body)
		if err != nil {
			return err
		}
		f.Body = body
		return nil
	})
}

// listMethod matches recv.method(args...) on a symbol receiver.
func listMethod(e ast.Expr, method string) (*ast.Call, qualname.QN, bool) {
	call, ok := e.(*ast.Call)
	if !ok || len(call.Keywords) > 0 {
		return nil, qualname.QN{}, false
	}
	attr, ok := call.Func.(*ast.Attribute)
	if !ok || attr.Attr != method {
		return nil, qualname.QN{}, false
	}
	q, ok := qualname.Of(attr.Value)
	if !ok || q.IsWildcard() || q.HasPrefix(qualname.Name(Module)) {
		return nil, qualname.QN{}, false
	}
	return call, q, true
}

func listStmt(ctx *Context, fs *dfg.Scope, value, target ast.Expr) ([]ast.Stmt, bool, error) {
	if call, recv, ok := listMethod(value, "append"); ok && target == nil && len(call.Args) == 1 && rebindable(fs, recv) {
		out, err := templates.Replace("target = ag__.list_append(target, x)", templates.Bindings{
			"target": recv,
			"x":      call.Args[0],
		})
		return out, true, err
	}
	if call, recv, ok := listMethod(value, "pop"); ok && len(call.Args) <= 1 && rebindable(fs, recv) {
		var idx any = templates.Absent
		if len(call.Args) == 1 {
			idx = call.Args[0]
		}
		var dest ast.Expr = &ast.Name{ID: ctx.Namer.New("_"), Ctx: ast.Store}
		if target != nil {
			dest = target
		}
		out, err := templates.Replace("target, dest = ag__.list_pop(target, i)", templates.Bindings{
			"target": recv,
			"dest":   dest,
			"i":      idx,
		})
		return out, true, err
	}
	return nil, false, nil
}
