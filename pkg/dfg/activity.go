package dfg

import (
	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/qualname"
)

// Annotation keys written by the activity analysis.
const (
	ScopeKey        ast.Key = "activity.scope"   // FunctionDef: the function scope
	ArgsScopeKey    ast.Key = "activity.args"    // FunctionDef, Lambda: parameters
	BodyScopeKey    ast.Key = "activity.body"    // If, While, For: body block
	OrelseScopeKey  ast.Key = "activity.orelse"  // If, While, For: else block
	CondScopeKey    ast.Key = "activity.cond"    // If, While: test expression
	IterateScopeKey ast.Key = "activity.iterate" // For: target and extra test
)

// Scope holds the symbols a lexical region reads and writes. Block scopes
// (branches, loop bodies) merge into their parent; function scopes are
// isolated and only contribute their free reads and nonlocal writes.
type Scope struct {
	Parent   *Scope `json:"-"`
	Function bool   `json:"function"`

	Read     qualname.Set `json:"-"`
	Written  qualname.Set `json:"-"` // Rebound by assignment, for targets, def
	Modified qualname.Set `json:"-"` // Mutated in place through a method call
	Params   qualname.Set `json:"-"`

	// Declarations. For block scopes these are inherited from the function.
	Globals   qualname.Set `json:"-"`
	Nonlocals qualname.Set `json:"-"`

	// Bound holds the names local to a function scope.
	Bound qualname.Set `json:"-"`
}

func newScope(parent *Scope, function bool) *Scope {
	s := &Scope{
		Parent:   parent,
		Function: function,
		Read:     qualname.NewSet(),
		Written:  qualname.NewSet(),
		Modified: qualname.NewSet(),
		Params:   qualname.NewSet(),
		Bound:    qualname.NewSet(),
	}
	if function || parent == nil {
		s.Globals = qualname.NewSet()
		s.Nonlocals = qualname.NewSet()
	} else {
		s.Globals = parent.Globals
		s.Nonlocals = parent.Nonlocals
	}
	return s
}

// Mutated returns Written ∪ Modified.
func (s *Scope) Mutated() qualname.Set {
	return s.Written.Union(s.Modified)
}

// IsLocal reports whether the simple name q is bound in this function and not
// declared global or nonlocal.
func (s *Scope) IsLocal(q qualname.QN) bool {
	fn := s.function()
	return fn.Bound.Has(q) && !fn.Globals.Has(q) && !fn.Nonlocals.Has(q)
}

func (s *Scope) function() *Scope {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.Function || cur.Parent == nil {
			return cur
		}
	}
	return s
}

// FreeReads returns the reads of a function scope whose root is not local
// to it. Composite reads are kept alongside their roots.
func (s *Scope) FreeReads() qualname.Set {
	out := qualname.NewSet()
	for q := range s.Read {
		if !s.IsLocal(q.Root()) {
			out.Add(q)
		}
	}
	return out
}

// NonlocalWrites returns the symbols a function scope mutates outside itself.
func (s *Scope) NonlocalWrites() qualname.Set {
	out := qualname.NewSet()
	for q := range s.Mutated() {
		root := q.Root()
		if s.Nonlocals.Has(root) || s.Globals.Has(root) {
			out.Add(q)
		}
	}
	return out
}

func (s *Scope) merge(child *Scope) {
	s.Read.AddAll(child.Read)
	s.Written.AddAll(child.Written)
	s.Modified.AddAll(child.Modified)
}

// activityAnalyzer computes scopes bottom-up and annotates the tree.
type activityAnalyzer struct {
	scope *Scope
}

// Activity analyzes fn and returns its function scope. The tree must have been
// resolved with qualname.Resolve. Nested functions and lambdas are analyzed as
// part of fn.
func Activity(fn *ast.FunctionDef) *Scope {
	a := &activityAnalyzer{}
	return a.function(fn, nil)
}

func (a *activityAnalyzer) function(fn *ast.FunctionDef, parent *Scope) *Scope {
	fs := newScope(parent, true)
	args := a.arguments(fn.Args, fs)
	ast.SetAnno(fn, ArgsScopeKey, args)

	// Declarations and bindings apply to the whole body, wherever they appear.
	declare(fn.Body, fs)

	prev := a.scope
	a.scope = fs
	a.block(fn.Body)
	a.scope = prev

	for q := range fs.Written {
		if q.IsSimple() {
			fs.Bound.Add(q)
		}
	}
	fs.Bound.AddAll(fs.Params)
	ast.SetAnno(fn, ScopeKey, fs)
	return fs
}

// declare records global and nonlocal statements of a function body,
// skipping nested functions.
func declare(stmts []ast.Stmt, fs *Scope) {
	ast.InspectStmts(stmts, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.FunctionDef, *ast.Lambda:
			return false
		case *ast.Global:
			for _, id := range n.Names {
				fs.Globals.Add(qualname.Name(id))
			}
		case *ast.Nonlocal:
			for _, id := range n.Names {
				fs.Nonlocals.Add(qualname.Name(id))
			}
		}
		return true
	})
}

func (a *activityAnalyzer) arguments(args *ast.Arguments, fs *Scope) *Scope {
	s := newScope(fs, false)
	if args == nil {
		return s
	}
	for _, p := range args.Args {
		s.Params.Add(qualname.Name(p.ID))
	}
	if args.Vararg != nil {
		s.Params.Add(qualname.Name(args.Vararg.ID))
	}
	if args.Kwarg != nil {
		s.Params.Add(qualname.Name(args.Kwarg.ID))
	}
	fs.Params.AddAll(s.Params)
	return s
}

func (a *activityAnalyzer) child(f func()) *Scope {
	parent := a.scope
	s := newScope(parent, false)
	a.scope = s
	f()
	a.scope = parent
	parent.merge(s)
	return s
}

func (a *activityAnalyzer) block(stmts []ast.Stmt) {
	for _, s := range stmts {
		a.stmt(s)
	}
}

func (a *activityAnalyzer) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.Assign:
		a.expr(s.Value)
		for _, t := range s.Targets {
			a.target(t)
		}
	case *ast.AugAssign:
		a.expr(s.Value)
		if q, ok := qualname.Of(s.Target); ok {
			addWithParents(a.scope.Read, q)
		}
		a.target(s.Target)
	case *ast.ExprStmt:
		a.expr(s.Value)
	case *ast.Return:
		a.expr(s.Value)
	case *ast.Raise:
		a.expr(s.Exc)
	case *ast.Assert:
		a.expr(s.Test)
		a.expr(s.Msg)
	case *ast.If:
		ast.SetAnno(s, CondScopeKey, a.child(func() { a.expr(s.Test) }))
		ast.SetAnno(s, BodyScopeKey, a.child(func() { a.block(s.Body) }))
		ast.SetAnno(s, OrelseScopeKey, a.child(func() { a.block(s.Orelse) }))
	case *ast.While:
		ast.SetAnno(s, CondScopeKey, a.child(func() { a.expr(s.Test) }))
		ast.SetAnno(s, BodyScopeKey, a.child(func() { a.block(s.Body) }))
		ast.SetAnno(s, OrelseScopeKey, a.child(func() { a.block(s.Orelse) }))
	case *ast.For:
		a.expr(s.Iter)
		ast.SetAnno(s, IterateScopeKey, a.child(func() {
			a.target(s.Target)
			a.expr(s.ExtraTest)
		}))
		ast.SetAnno(s, BodyScopeKey, a.child(func() { a.block(s.Body) }))
		ast.SetAnno(s, OrelseScopeKey, a.child(func() { a.block(s.Orelse) }))
	case *ast.FunctionDef:
		if s.Args != nil {
			for _, d := range s.Args.Defaults {
				a.expr(d)
			}
		}
		inner := a.function(s, a.scope)
		a.scope.Read.AddAll(inner.FreeReads())
		a.scope.Written.AddAll(inner.NonlocalWrites())
		a.scope.Written.Add(qualname.Name(s.Name))
	}
}

// target records the symbols bound by an assignment target. Composite targets
// read their parents and any subscript index.
func (a *activityAnalyzer) target(t ast.Expr) {
	switch t := t.(type) {
	case *ast.Tuple:
		for _, el := range t.Elts {
			a.target(el)
		}
	case *ast.List:
		for _, el := range t.Elts {
			a.target(el)
		}
	case *ast.Name:
		a.scope.Written.Add(qualname.Name(t.ID))
	case *ast.Attribute:
		a.expr(t.Value)
		if q, ok := qualname.Of(t); ok {
			a.scope.Written.Add(q)
		}
	case *ast.Subscript:
		a.expr(t.Value)
		a.expr(t.Index)
		if q, ok := qualname.Of(t); ok {
			a.scope.Written.Add(q)
		}
	}
}

// expr records reads, in-place modifications and lambda free reads.
func (a *activityAnalyzer) expr(e ast.Expr) {
	if e == nil {
		return
	}
	ast.Inspect(e, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Lambda:
			a.lambda(n)
			return false
		case *ast.Call:
			if attr, ok := n.Func.(*ast.Attribute); ok {
				if q, ok := qualname.Of(attr.Value); ok {
					a.scope.Modified.Add(q)
				}
			}
		case *ast.Name, *ast.Attribute, *ast.Subscript:
			if loadCtx(n) {
				if q, ok := qualname.Of(n); ok {
					addWithParents(a.scope.Read, q)
				}
			}
		}
		return true
	})
}

func (a *activityAnalyzer) lambda(l *ast.Lambda) {
	ls := newScope(a.scope, true)
	ast.SetAnno(l, ArgsScopeKey, a.arguments(l.Args, ls))
	if l.Args != nil {
		for _, d := range l.Args.Defaults {
			a.expr(d)
		}
	}
	prev := a.scope
	a.scope = ls
	a.expr(l.Body)
	a.scope = prev
	ls.Bound.AddAll(ls.Params)
	a.scope.Read.AddAll(ls.FreeReads())
	a.scope.Modified.AddAll(freeOnly(ls, ls.Modified))
}

func freeOnly(s *Scope, syms qualname.Set) qualname.Set {
	out := qualname.NewSet()
	for q := range syms {
		if !s.IsLocal(q.Root()) {
			out.Add(q)
		}
	}
	return out
}

func loadCtx(n ast.Node) bool {
	switch n := n.(type) {
	case *ast.Name:
		return n.Ctx == ast.Load
	case *ast.Attribute:
		return n.Ctx == ast.Load
	case *ast.Subscript:
		return n.Ctx == ast.Load
	}
	return false
}

// addWithParents adds q and every prefix of q: reading x.a[0] reads x.a and x.
func addWithParents(s qualname.Set, q qualname.QN) {
	for cur := q; cur.Valid(); cur = cur.Parent() {
		s.Add(cur)
	}
}

// ScopeOf returns the scope stored under key on n.
func ScopeOf(n ast.Node, key ast.Key) *Scope {
	v, ok := ast.GetAnno(n, key)
	if !ok {
		return nil
	}
	s, _ := v.(*Scope)
	return s
}
