package converters

import (
	"sort"

	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/dfg"
	"github.com/l3aro/go-malt/pkg/printer"
	"github.com/l3aro/go-malt/pkg/qualname"
	"github.com/l3aro/go-malt/pkg/templates"
)

const getSetTemplate = `
def get_state():
    return state
def set_state(vars_):
    set_decls
    set_body
`

const ifTemplate = `
def if_body():
    decls
    body
def else_body():
    decls
    orelse
ag__.if_stmt(test, if_body, else_body, get_state, set_state, symbol_names, nouts)
`

const whileTemplate = `
def loop_test():
    return test
def loop_body():
    decls
    body
ag__.while_stmt(loop_test, loop_body, get_state, set_state, symbol_names, {})
`

const forTemplate = `
def loop_body(itr):
    decls
    target = itr
    body
ag__.for_stmt(iter_, extra_test, loop_body, get_state, set_state, symbol_names, {'iterate_names': iterate_names})
`

const forExtraTestTemplate = `
def extra_test_name():
    return extra_test
`

// ControlFlow replaces if, while and for statements with calls to the
// ag__.if_stmt, ag__.while_stmt and ag__.for_stmt operators. Bodies become
// nested functions that communicate through nonlocal state; the state of each
// construct is exposed through generated get_state and set_state accessors.
//
// A symbol mutated inside a construct is part of its state when it is live
// after the construct, when its incoming value is observed (live on entry and
// defined before, or any live-in symbol of a loop), when a closure created
// inside reads it, or when it is declared global or nonlocal. Output symbols
// come first, each group in order of first appearance.
func ControlFlow(ctx *Context, fn *ast.FunctionDef) error {
	if _, err := dfg.Analyze(fn); err != nil {
		return err
	}
	c := &controlFlow{ctx: ctx, order: qualname.Order(fn)}
	if err := c.function(fn); err != nil {
		return err
	}
	sort.SliceStable(ctx.StateTuples, func(i, j int) bool {
		return ctx.StateTuples[i].Line < ctx.StateTuples[j].Line
	})
	return nil
}

type controlFlow struct {
	ctx   *Context
	order map[qualname.QN]int
}

// host tracks the names bound in the function a rewritten construct ends up
// in: the converted function itself or the body function of an enclosing
// construct.
type host struct {
	bound map[string]bool
}

func (c *controlFlow) function(fn *ast.FunctionDef) error {
	h := &host{bound: directlyBound(fn.Body)}
	if fn.Args != nil {
		for _, a := range fn.Args.Args {
			h.bound[a.ID] = true
		}
		if fn.Args.Vararg != nil {
			h.bound[fn.Args.Vararg.ID] = true
		}
		if fn.Args.Kwarg != nil {
			h.bound[fn.Args.Kwarg.ID] = true
		}
	}
	body, err := c.block(fn.Body, h)
	if err != nil {
		return err
	}
	fn.Body = body
	return nil
}

func (c *controlFlow) block(stmts []ast.Stmt, h *host) ([]ast.Stmt, error) {
	var out []ast.Stmt
	for _, s := range stmts {
		switch s := s.(type) {
		case *ast.If, *ast.While, *ast.For:
			repl, err := c.construct(s, h)
			if err != nil {
				return nil, err
			}
			out = append(out, repl...)
		case *ast.FunctionDef:
			if err := c.function(s); err != nil {
				return nil, err
			}
			out = append(out, s)
		default:
			out = append(out, s)
		}
	}
	return out, nil
}

// directlyBound returns the names a block binds outside nested constructs
// and functions, plus any global or nonlocal declarations.
func directlyBound(stmts []ast.Stmt) map[string]bool {
	bound := make(map[string]bool)
	var target func(e ast.Expr)
	target = func(e ast.Expr) {
		switch e := e.(type) {
		case *ast.Name:
			bound[e.ID] = true
		case *ast.Tuple:
			for _, el := range e.Elts {
				target(el)
			}
		case *ast.List:
			for _, el := range e.Elts {
				target(el)
			}
		}
	}
	for _, s := range stmts {
		switch s := s.(type) {
		case *ast.Assign:
			for _, t := range s.Targets {
				target(t)
			}
		case *ast.AugAssign:
			target(s.Target)
		case *ast.FunctionDef:
			bound[s.Name] = true
		case *ast.Global:
			for _, id := range s.Names {
				bound[id] = true
			}
		case *ast.Nonlocal:
			for _, id := range s.Names {
				bound[id] = true
			}
		}
	}
	return bound
}

// stateOf selects and orders the state of a construct.
func (c *controlFlow) stateOf(n ast.Stmt, f *dfg.Facts) ([]qualname.QN, int, error) {
	if err := c.checkDynamicAttrs(n, f.Scope); err != nil {
		return nil, 0, err
	}
	var outs, ins []qualname.QN
	for q := range f.Mutated {
		root := q.Root()
		if root == qualname.Name(Module) {
			continue
		}
		if q.IsComposite() && !f.LiveIn.Has(root) {
			continue
		}
		if !f.Written.Has(q) && !f.DefinedIn.Has(q) {
			continue
		}
		out := f.LiveOut.Has(q)
		in := f.LiveIn.Has(q) && (f.DefinedIn.Has(q) || f.Loop)
		declared := q.IsSimple() && (f.Scope.Globals.Has(q) || f.Scope.Nonlocals.Has(q))
		if !out && !in && !f.Captured.Has(q) && !declared {
			continue
		}
		if q.IsWildcard() {
			return nil, 0, c.ctx.errorf(ErrAmbiguousState, n, "%s has no single location", q)
		}
		if out {
			outs = append(outs, q)
		} else {
			ins = append(ins, q)
		}
	}
	c.sortSymbols(outs)
	c.sortSymbols(ins)
	return append(outs, ins...), len(outs), nil
}

func (c *controlFlow) sortSymbols(qs []qualname.QN) {
	rank := func(q qualname.QN) int {
		if i, ok := c.order[q]; ok {
			return i
		}
		return len(c.order)
	}
	sort.Slice(qs, func(i, j int) bool {
		ri, rj := rank(qs[i]), rank(qs[j])
		if ri != rj {
			return ri < rj
		}
		return qs[i].String() < qs[j].String()
	})
}

var dynamicAttrFuncs = map[string]bool{"getattr": true, "setattr": true, "delattr": true}

// checkDynamicAttrs rejects attribute access by computed name, which hides
// the symbols a construct touches.
func (c *controlFlow) checkDynamicAttrs(n ast.Stmt, scope *dfg.Scope) error {
	var err error
	ast.Inspect(n, func(node ast.Node) bool {
		if err != nil {
			return false
		}
		call, ok := node.(*ast.Call)
		if !ok || len(call.Args) < 2 {
			return true
		}
		fn, ok := call.Func.(*ast.Name)
		if !ok || !dynamicAttrFuncs[fn.ID] || scope.IsLocal(qualname.Name(fn.ID)) {
			return true
		}
		if k, ok := call.Args[1].(*ast.Constant); ok {
			if _, isStr := k.Value.(string); isStr {
				return true
			}
		}
		err = c.ctx.errorf(ErrAmbiguousState, call, "%s with a computed attribute name", fn.ID)
		return false
	})
	return err
}

func (c *controlFlow) construct(n ast.Stmt, h *host) ([]ast.Stmt, error) {
	f, ok := dfg.FactsOf(n)
	if !ok {
		return nil, c.ctx.errorf(ErrUnsupportedConstruct, n, "no dataflow facts for %s", ast.KindOf(n))
	}
	state, nouts, err := c.stateOf(n, f)
	if err != nil {
		return nil, err
	}

	inner := &host{bound: make(map[string]bool)}
	for _, q := range state {
		if q.IsSimple() {
			inner.bound[q.String()] = true
		}
	}

	out, err := c.inits(state, f, h)
	if err != nil {
		return nil, err
	}

	acc, err := c.accessors(state, f.Scope)
	if err != nil {
		return nil, err
	}
	out = append(out, acc.defs...)

	decls := declarations(state, f.Scope)
	names := symbolNames(state)

	var repl []ast.Stmt
	switch n := n.(type) {
	case *ast.If:
		repl, err = c.ifStmt(n, inner, acc, decls, names, nouts)
	case *ast.While:
		repl, err = c.whileStmt(n, inner, acc, decls, names)
	case *ast.For:
		repl, err = c.forStmt(n, inner, acc, decls, names)
	}
	if err != nil {
		return nil, err
	}
	out = append(out, repl...)

	// A loop's else block only remains when the loop has no break.
	var orelse []ast.Stmt
	switch n := n.(type) {
	case *ast.While:
		orelse = n.Orelse
	case *ast.For:
		orelse = n.Orelse
	}
	rest, err := c.block(orelse, h)
	if err != nil {
		return nil, err
	}
	out = append(out, rest...)

	c.record(n, state, nouts)
	return out, nil
}

func (c *controlFlow) record(n ast.Stmt, state []qualname.QN, nouts int) {
	syms := make([]string, len(state))
	for i, q := range state {
		syms[i] = q.String()
	}
	c.ctx.StateTuples = append(c.ctx.StateTuples, StateTuple{
		Kind:    ast.KindOf(n),
		Line:    n.Pos().Line,
		Symbols: syms,
		Outputs: nouts,
	})
	c.ctx.Logger.Debug("state", "entity", c.ctx.Entity, "construct", ast.KindOf(n),
		"line", n.Pos().Line, "symbols", syms, "outputs", nouts)
}

// inits binds state symbols the host function does not bind yet, so that
// the nonlocal declarations of the body functions resolve. Symbols with no
// definition reaching the construct start out as ag__.Undefined.
func (c *controlFlow) inits(state []qualname.QN, f *dfg.Facts, h *host) ([]ast.Stmt, error) {
	var out []ast.Stmt
	for _, q := range state {
		if !q.IsSimple() || f.Scope.Globals.Has(q) || f.Scope.Nonlocals.Has(q) {
			continue
		}
		id := q.String()
		if f.DefinedIn.Has(q) && h.bound[id] {
			continue
		}
		var s []ast.Stmt
		var err error
		if f.DefinedIn.Has(q) {
			s, err = templates.Replace("var_ = ag__.ldu(lambda: var_, name)", templates.Bindings{
				"var_": q,
				"name": ast.Const(id),
			})
		} else {
			s, err = templates.Replace("var_ = ag__.Undefined(name)", templates.Bindings{
				"var_": q,
				"name": ast.Const(id),
			})
		}
		if err != nil {
			return nil, err
		}
		h.bound[id] = true
		out = append(out, s...)
	}
	return out, nil
}

type accessors struct {
	get, set *ast.Name
	defs     []ast.Stmt
}

func (c *controlFlow) accessors(state []qualname.QN, scope *dfg.Scope) (*accessors, error) {
	a := &accessors{
		get: ast.Ident(c.ctx.Namer.New("get_state")),
		set: ast.Ident(c.ctx.Namer.New("set_state")),
	}
	getters := &ast.Tuple{}
	targets := &ast.Tuple{Ctx: ast.Store}
	for _, q := range state {
		targets.Elts = append(targets.Elts, q.Expr())
		if q.IsSimple() {
			getters.Elts = append(getters.Elts, q.Expr())
			continue
		}
		g, err := templates.ReplaceAsExpression("ag__.ldu(lambda: sym, name)", templates.Bindings{
			"sym":  q,
			"name": ast.Const(q.String()),
		})
		if err != nil {
			return nil, err
		}
		getters.Elts = append(getters.Elts, g)
	}
	ast.SetCtx(targets, ast.Store)

	vars := ast.Ident(c.ctx.Namer.New("vars_"))
	setBody := []ast.Stmt{&ast.Pass{}}
	if len(state) > 0 {
		setBody = []ast.Stmt{&ast.Assign{Targets: []ast.Expr{targets}, Value: vars}}
	}
	defs, err := templates.Replace(getSetTemplate, templates.Bindings{
		"get_state": a.get,
		"set_state": a.set,
		"state":     getters,
		"vars_":     vars,
		"set_decls": declarations(state, scope),
		"set_body":  setBody,
	})
	if err != nil {
		return nil, err
	}
	a.defs = defs
	return a, nil
}

// declarations returns the global and nonlocal statements a body function
// needs to rebind the simple state symbols.
func declarations(state []qualname.QN, scope *dfg.Scope) []ast.Stmt {
	var globals, nonlocals []string
	for _, q := range state {
		if !q.IsSimple() {
			continue
		}
		if scope.Globals.Has(q) {
			globals = append(globals, q.String())
		} else {
			nonlocals = append(nonlocals, q.String())
		}
	}
	var out []ast.Stmt
	if len(globals) > 0 {
		out = append(out, &ast.Global{Names: globals})
	}
	if len(nonlocals) > 0 {
		out = append(out, &ast.Nonlocal{Names: nonlocals})
	}
	return out
}

func symbolNames(state []qualname.QN) *ast.Tuple {
	t := &ast.Tuple{Ctx: ast.Load}
	for _, q := range state {
		t.Elts = append(t.Elts, ast.Const(q.String()))
	}
	return t
}

func orPass(stmts []ast.Stmt) []ast.Stmt {
	if len(stmts) == 0 {
		return []ast.Stmt{&ast.Pass{}}
	}
	return stmts
}

// nested rewrites the constructs of a block that becomes a body function.
func (c *controlFlow) nested(stmts []ast.Stmt, inner *host) ([]ast.Stmt, error) {
	h := &host{bound: directlyBound(stmts)}
	for id := range inner.bound {
		h.bound[id] = true
	}
	return c.block(stmts, h)
}

func (c *controlFlow) ifStmt(n *ast.If, inner *host, a *accessors, decls []ast.Stmt, names *ast.Tuple, nouts int) ([]ast.Stmt, error) {
	body, err := c.nested(n.Body, inner)
	if err != nil {
		return nil, err
	}
	orelse, err := c.nested(n.Orelse, inner)
	if err != nil {
		return nil, err
	}
	return templates.Replace(ifTemplate, templates.Bindings{
		"if_body":      ast.Ident(c.ctx.Namer.New("if_body")),
		"else_body":    ast.Ident(c.ctx.Namer.New("else_body")),
		"decls":        decls,
		"body":         orPass(body),
		"orelse":       orPass(orelse),
		"test":         n.Test,
		"get_state":    a.get,
		"set_state":    a.set,
		"symbol_names": names,
		"nouts":        nouts,
	})
}

func (c *controlFlow) whileStmt(n *ast.While, inner *host, a *accessors, decls []ast.Stmt, names *ast.Tuple) ([]ast.Stmt, error) {
	body, err := c.nested(n.Body, inner)
	if err != nil {
		return nil, err
	}
	out, err := templates.Replace(whileTemplate, templates.Bindings{
		"loop_test":    ast.Ident(c.ctx.Namer.New("loop_test")),
		"loop_body":    ast.Ident(c.ctx.Namer.New("loop_body")),
		"decls":        decls,
		"body":         orPass(body),
		"test":         n.Test,
		"get_state":    a.get,
		"set_state":    a.set,
		"symbol_names": names,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controlFlow) forStmt(n *ast.For, inner *host, a *accessors, decls []ast.Stmt, names *ast.Tuple) ([]ast.Stmt, error) {
	ast.Inspect(n.Target, func(node ast.Node) bool {
		if id, ok := node.(*ast.Name); ok {
			inner.bound[id.ID] = true
		}
		return true
	})
	body, err := c.nested(n.Body, inner)
	if err != nil {
		return nil, err
	}

	var out []ast.Stmt
	var extra ast.Expr = ast.Const(nil)
	if n.ExtraTest != nil {
		name := ast.Ident(c.ctx.Namer.New("extra_test"))
		def, err := templates.Replace(forExtraTestTemplate, templates.Bindings{
			"extra_test_name": name,
			"extra_test":      n.ExtraTest,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, def...)
		extra = name
	}

	loop, err := templates.Replace(forTemplate, templates.Bindings{
		"loop_body":     ast.Ident(c.ctx.Namer.New("loop_body")),
		"itr":           ast.Ident(c.ctx.Namer.New("itr")),
		"decls":         decls,
		"target":        n.Target,
		"body":          orPass(body),
		"iter_":         n.Iter,
		"extra_test":    extra,
		"get_state":     a.get,
		"set_state":     a.set,
		"symbol_names":  names,
		"iterate_names": ast.Const(printer.Expr(n.Target)),
	})
	if err != nil {
		return nil, err
	}
	return append(out, loop...), nil
}
