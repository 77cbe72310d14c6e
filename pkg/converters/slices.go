package converters

import (
	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/dfg"
	"github.com/l3aro/go-malt/pkg/qualname"
	"github.com/l3aro/go-malt/pkg/templates"
)

// Slices rewrites subscripts into operator calls:
//
//	x[k] = v      =>  x = ag__.set_item(x, k, v)
//	x[a:] = v     =>  x = ag__.set_item(x, ag__.slice_(a, ag__.Unset, ag__.Unset), v)
//	y = x[k]      =>  y = ag__.get_item(x, k, ag__.GetItemOpts(element_dtype=None))
//
// The element type comes from the nearest preceding
// ag__.set_element_type(x, dtype) call on the same symbol. Assignments with
// more than one target are rejected.
//
// Keys that are not names or literals are bound to temporaries first, so each
// is evaluated once and after the assigned value:
//
//	x[k()] = v()  =>  value_ = v()
//	                  key_ = k()
//	                  x = ag__.set_item(x, key_, value_)
//
// Stores are only rewritten when the base is bound by the function itself or
// declared global or nonlocal there.
func Slices(ctx *Context, fn *ast.FunctionDef) error {
	qualname.Resolve(fn)
	dfg.Activity(fn)
	return eachFunction(fn, func(f *ast.FunctionDef) error {
		s := &slicer{ctx: ctx, scope: dfg.ScopeOf(f, dfg.ScopeKey), dtypes: make(map[qualname.QN]ast.Expr)}
		s.rw = &ast.Rewriter{Stmt: s.stmt, Expr: s.expr}
		body, err := s.rw.Block(f.Body)
		if err != nil {
			return err
		}
		f.Body = body
		return nil
	})
}

type slicer struct {
	ctx    *Context
	rw     *ast.Rewriter
	scope  *dfg.Scope
	dtypes map[qualname.QN]ast.Expr
}

func (s *slicer) stmt(r *ast.Rewriter, st ast.Stmt) ([]ast.Stmt, error) {
	switch st := st.(type) {
	case *ast.FunctionDef:
		// The body is handled on its own; defaults belong to this scope.
		if st.Args != nil {
			for i, d := range st.Args.Defaults {
				e, err := r.VisitExpr(d)
				if err != nil {
					return nil, err
				}
				st.Args.Defaults[i] = e
			}
		}
		return []ast.Stmt{st}, nil
	case *ast.Assign:
		if len(st.Targets) > 1 {
			return nil, s.ctx.errorf(ErrMultipleAssignmentTargets, st, "%d targets", len(st.Targets))
		}
		if sub, ok := st.Targets[0].(*ast.Subscript); ok && s.storable(sub) {
			value, err := r.VisitExpr(st.Value)
			if err != nil {
				return nil, err
			}
			var pre []ast.Stmt
			if !pureKeys(sub) && !pure(st.Value) {
				value = s.temp("value_", value, st.Pos(), &pre)
			}
			p, err := s.path(sub, st.Pos(), &pre)
			if err != nil {
				return nil, err
			}
			out, err := p.assign(value, st.Pos())
			if err != nil {
				return nil, err
			}
			return append(pre, out), nil
		}
	case *ast.AugAssign:
		if sub, ok := st.Target.(*ast.Subscript); ok && s.storable(sub) {
			var pre []ast.Stmt
			p, err := s.path(sub, st.Pos(), &pre)
			if err != nil {
				return nil, err
			}
			value, err := r.VisitExpr(st.Value)
			if err != nil {
				return nil, err
			}
			current, err := s.getItem(p.bases[0], p.keys[0], sub.Value)
			if err != nil {
				return nil, err
			}
			combined := &ast.BinOp{Meta: ast.Meta{At: st.Pos()}, Left: current, Op: st.Op, Right: value}
			out, err := p.assign(combined, st.Pos())
			if err != nil {
				return nil, err
			}
			return append(pre, out), nil
		}
	case *ast.ExprStmt:
		s.recordElementType(st.Value)
	}
	out, err := r.StmtChildren(st)
	if err != nil {
		return nil, err
	}
	return []ast.Stmt{out}, nil
}

// storable reports whether a subscript store can be turned into a rebinding
// of its base.
func (s *slicer) storable(sub *ast.Subscript) bool {
	if !assignable(sub.Value) {
		return false
	}
	q, ok := qualname.Of(chainRoot(sub))
	return ok && rebindable(s.scope, q)
}

// chainRoot returns the innermost non-subscript base of a subscript chain.
func chainRoot(sub *ast.Subscript) ast.Expr {
	var e ast.Expr = sub
	for {
		inner, ok := e.(*ast.Subscript)
		if !ok {
			return e
		}
		e = inner.Value
	}
}

// recordElementType tracks ag__.set_element_type(target, dtype) directives.
func (s *slicer) recordElementType(e ast.Expr) {
	call, ok := e.(*ast.Call)
	if !ok || ast.FullName(call.Func) != Module+".set_element_type" || len(call.Args) != 2 {
		return
	}
	if q, ok := qualname.Of(call.Args[0]); ok {
		s.dtypes[q] = call.Args[1]
	}
}

func assignable(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.Name, *ast.Attribute:
		return true
	case *ast.Subscript:
		return assignable(e.Value)
	}
	return false
}

func loadCopy(e ast.Expr) ast.Expr {
	c := ast.CopyExpr(e)
	ast.SetCtx(c, ast.Load)
	return c
}

// storePath is a subscript store chain with its keys and intermediate bases
// already rewritten. Index 0 is the outermost subscript.
type storePath struct {
	root  ast.Expr
	bases []ast.Expr
	keys  []ast.Expr
}

// path rewrites the chain of target, innermost first. When any key is
// impure, impure keys and the intermediate bases are bound to temporaries
// appended to pre, in the order they would be evaluated.
func (s *slicer) path(target *ast.Subscript, at ast.Pos, pre *[]ast.Stmt) (*storePath, error) {
	var chain []*ast.Subscript
	for e := ast.Expr(target); ; {
		sub, ok := e.(*ast.Subscript)
		if !ok {
			break
		}
		chain = append(chain, sub)
		e = sub.Value
	}
	hoist := !pureKeys(target)
	last := len(chain) - 1
	p := &storePath{
		root:  chain[last].Value,
		bases: make([]ast.Expr, len(chain)),
		keys:  make([]ast.Expr, len(chain)),
	}
	for i := last; i >= 0; i-- {
		if i == last {
			base, err := s.rw.VisitExpr(loadCopy(p.root))
			if err != nil {
				return nil, err
			}
			p.bases[i] = base
		} else {
			base, err := s.getItem(p.bases[i+1], p.keys[i+1], chain[i+1].Value)
			if err != nil {
				return nil, err
			}
			if hoist {
				base = s.temp("base_", base, at, pre)
			}
			p.bases[i] = base
		}
		key, err := s.key(chain[i].Index)
		if err != nil {
			return nil, err
		}
		if hoist && !pure(chain[i].Index) {
			key = s.temp("key_", key, at, pre)
		}
		p.keys[i] = key
	}
	return p, nil
}

// assign builds root = set_item(..., set_item(base, key, value)).
func (p *storePath) assign(value ast.Expr, at ast.Pos) (ast.Stmt, error) {
	for i := range p.keys {
		call, err := templates.ReplaceAsExpression("ag__.set_item(target, key, value)", templates.Bindings{
			"target": p.bases[i],
			"key":    p.keys[i],
			"value":  value,
		})
		if err != nil {
			return nil, err
		}
		value = call
	}
	dest := ast.CopyExpr(p.root)
	ast.SetCtx(dest, ast.Store)
	return &ast.Assign{Meta: ast.Meta{At: at}, Targets: []ast.Expr{dest}, Value: value}, nil
}

// temp binds e to a fresh name and returns a load of it.
func (s *slicer) temp(base string, e ast.Expr, at ast.Pos, pre *[]ast.Stmt) ast.Expr {
	name := s.ctx.Namer.New(base)
	*pre = append(*pre, &ast.Assign{
		Meta:    ast.Meta{At: at},
		Targets: []ast.Expr{&ast.Name{ID: name, Ctx: ast.Store}},
		Value:   e,
	})
	return ast.Ident(name)
}

// pure reports whether evaluating e twice, or out of order, is unobservable.
func pure(e ast.Expr) bool {
	switch e := e.(type) {
	case nil:
		return true
	case *ast.Name, *ast.Constant:
		return true
	case *ast.UnaryOp:
		return pure(e.Operand)
	case *ast.Slice:
		return pure(e.Lower) && pure(e.Upper) && pure(e.Step)
	case *ast.Tuple:
		for _, elt := range e.Elts {
			if !pure(elt) {
				return false
			}
		}
		return true
	}
	return false
}

// pureKeys reports whether every index along a subscript chain is pure.
func pureKeys(sub *ast.Subscript) bool {
	for {
		if !pure(sub.Index) {
			return false
		}
		inner, ok := sub.Value.(*ast.Subscript)
		if !ok {
			return true
		}
		sub = inner
	}
}

// key rewrites a subscript index; slices become ag__.slice_ with every
// position present.
func (s *slicer) key(index ast.Expr) (ast.Expr, error) {
	sl, ok := index.(*ast.Slice)
	if !ok {
		return s.rw.VisitExpr(ast.CopyExpr(index))
	}
	b := templates.Bindings{}
	for name, part := range map[string]ast.Expr{"lower": sl.Lower, "upper": sl.Upper, "step": sl.Step} {
		if part == nil {
			b[name] = templates.Absent
			continue
		}
		e, err := s.rw.VisitExpr(ast.CopyExpr(part))
		if err != nil {
			return nil, err
		}
		b[name] = e
	}
	return templates.ReplaceAsExpression("ag__.slice_(lower, upper, step)", b)
}

func (s *slicer) expr(r *ast.Rewriter, e ast.Expr) (ast.Expr, error) {
	sub, ok := e.(*ast.Subscript)
	if !ok || sub.Ctx != ast.Load {
		return r.ExprChildren(e)
	}
	target, err := r.VisitExpr(sub.Value)
	if err != nil {
		return nil, err
	}
	key, err := s.key(sub.Index)
	if err != nil {
		return nil, err
	}
	return s.getItem(target, key, sub.Value)
}

// getItem builds the get_item call for target[key]; orig is the unrewritten
// target, used to look up its element type.
func (s *slicer) getItem(target, key, orig ast.Expr) (ast.Expr, error) {
	var dtype ast.Expr = ast.Const(nil)
	if q, ok := qualname.Of(orig); ok {
		if d, ok := s.dtypes[q]; ok {
			dtype = d
		}
	}
	return templates.ReplaceAsExpression("ag__.get_item(target, key, ag__.GetItemOpts(element_dtype=dtype))", templates.Bindings{
		"target": target,
		"key":    key,
		"dtype":  dtype,
	})
}
