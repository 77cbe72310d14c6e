package converters

import (
	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/dfg"
	"github.com/l3aro/go-malt/pkg/qualname"
)

// Builtins maps the builtin functions with operator overloads to their
// ag__ names.
var Builtins = map[string]string{
	"abs":       "abs_",
	"enumerate": "enumerate_",
	"float":     "float_",
	"int":       "int_",
	"len":       "len_",
	"print":     "print_",
	"range":     "range_",
}

// CallTrees redirects calls to overloaded builtins to the operator library
// (len(x) => ag__.len_(x)) unless the name is rebound by the function or its
// namespace. With Options.Recursive, calls to user functions from the
// namespace are recorded in Context.Referenced.
func CallTrees(ctx *Context, fn *ast.FunctionDef) error {
	qualname.Resolve(fn)
	dfg.Activity(fn)
	local := make(map[string]bool)
	ast.Inspect(fn, func(n ast.Node) bool {
		var s *dfg.Scope
		switch n := n.(type) {
		case *ast.FunctionDef:
			s = dfg.ScopeOf(n, dfg.ScopeKey)
		case *ast.Lambda:
			s = dfg.ScopeOf(n, dfg.ArgsScopeKey)
		}
		if s != nil {
			for q := range s.Bound {
				local[q.String()] = true
			}
			for q := range s.Params {
				local[q.String()] = true
			}
		}
		return true
	})

	rw := &ast.Rewriter{
		Expr: func(r *ast.Rewriter, e ast.Expr) (ast.Expr, error) {
			e, err := r.ExprChildren(e)
			if err != nil {
				return nil, err
			}
			call, ok := e.(*ast.Call)
			if !ok {
				return e, nil
			}
			name, ok := call.Func.(*ast.Name)
			if !ok || local[name.ID] {
				return e, nil
			}
			b, inNamespace := ctx.Namespace[name.ID]
			if op, ok := Builtins[name.ID]; ok && (!inNamespace || b.Kind == BindBuiltin) {
				call.Func = &ast.Attribute{
					Meta:  ast.Meta{At: name.Pos()},
					Value: ast.Ident(Module),
					Attr:  op,
					Ctx:   ast.Load,
				}
				return call, nil
			}
			if ctx.Options.Recursive && inNamespace && b.Kind == BindFunction {
				ctx.reference(name.ID)
			}
			return call, nil
		},
	}
	body, err := rw.Block(fn.Body)
	if err != nil {
		return err
	}
	fn.Body = body
	return nil
}
