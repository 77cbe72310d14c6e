package ast

// Children returns the direct children of n in lexical order. Nil children are
// omitted.
func Children(n Node) []Node {
	var out []Node
	addE := func(es ...Expr) {
		for _, e := range es {
			if e != nil {
				out = append(out, e)
			}
		}
	}
	addS := func(ss []Stmt) {
		for _, s := range ss {
			out = append(out, s)
		}
	}

	switch n := n.(type) {
	case *Module:
		addS(n.Body)
	case *Arguments:
		for _, a := range n.Args {
			out = append(out, a)
		}
		if n.Vararg != nil {
			out = append(out, n.Vararg)
		}
		if n.Kwarg != nil {
			out = append(out, n.Kwarg)
		}
		addE(n.Defaults...)
	case *Keyword:
		addE(n.Value)
	case *FunctionDef:
		if n.Args != nil {
			out = append(out, n.Args)
		}
		addS(n.Body)
	case *Return:
		addE(n.Value)
	case *Assign:
		addE(n.Targets...)
		addE(n.Value)
	case *AugAssign:
		addE(n.Target, n.Value)
	case *ExprStmt:
		addE(n.Value)
	case *If:
		addE(n.Test)
		addS(n.Body)
		addS(n.Orelse)
	case *While:
		addE(n.Test)
		addS(n.Body)
		addS(n.Orelse)
	case *For:
		addE(n.Target, n.Iter, n.ExtraTest)
		addS(n.Body)
		addS(n.Orelse)
	case *Raise:
		addE(n.Exc)
	case *Assert:
		addE(n.Test, n.Msg)
	case *Attribute:
		addE(n.Value)
	case *Subscript:
		addE(n.Value, n.Index)
	case *Slice:
		addE(n.Lower, n.Upper, n.Step)
	case *Call:
		addE(n.Func)
		addE(n.Args...)
		for _, k := range n.Keywords {
			out = append(out, k)
		}
	case *BinOp:
		addE(n.Left, n.Right)
	case *UnaryOp:
		addE(n.Operand)
	case *BoolOp:
		addE(n.Values...)
	case *Compare:
		addE(n.Left)
		addE(n.Comparators...)
	case *IfExp:
		addE(n.Body, n.Test, n.Orelse)
	case *Lambda:
		if n.Args != nil {
			out = append(out, n.Args)
		}
		addE(n.Body)
	case *List:
		addE(n.Elts...)
	case *Tuple:
		addE(n.Elts...)
	case *Dict:
		for i := range n.Keys {
			addE(n.Keys[i], n.Values[i])
		}
	}
	return out
}

// Inspect walks the tree in pre-order. Children of a node are skipped when f
// returns false.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, f)
	}
}

// InspectStmts walks every statement in the list.
func InspectStmts(stmts []Stmt, f func(Node) bool) {
	for _, s := range stmts {
		Inspect(s, f)
	}
}

// Rewriter rebuilds a tree. Stmt and Expr hooks replace nodes; a nil hook means
// "rewrite the children and keep the node". Hooks usually call StmtChildren or
// ExprChildren first so inner nodes are rewritten before the outer one.
type Rewriter struct {
	Stmt func(r *Rewriter, s Stmt) ([]Stmt, error)
	Expr func(r *Rewriter, e Expr) (Expr, error)
}

// Block rewrites a statement list, splicing multi-statement replacements.
func (r *Rewriter) Block(stmts []Stmt) ([]Stmt, error) {
	if stmts == nil {
		return nil, nil
	}
	out := make([]Stmt, 0, len(stmts))
	for _, s := range stmts {
		repl, err := r.VisitStmt(s)
		if err != nil {
			return nil, err
		}
		out = append(out, repl...)
	}
	return out, nil
}

// VisitStmt rewrites a single statement.
func (r *Rewriter) VisitStmt(s Stmt) ([]Stmt, error) {
	if r.Stmt != nil {
		return r.Stmt(r, s)
	}
	s, err := r.StmtChildren(s)
	if err != nil {
		return nil, err
	}
	return []Stmt{s}, nil
}

// VisitExpr rewrites a single expression. Nil is passed through.
func (r *Rewriter) VisitExpr(e Expr) (Expr, error) {
	if e == nil {
		return nil, nil
	}
	if r.Expr != nil {
		return r.Expr(r, e)
	}
	return r.ExprChildren(e)
}

func (r *Rewriter) exprs(es []Expr) ([]Expr, error) {
	for i, e := range es {
		ne, err := r.VisitExpr(e)
		if err != nil {
			return nil, err
		}
		es[i] = ne
	}
	return es, nil
}

func (r *Rewriter) arguments(a *Arguments) error {
	if a == nil {
		return nil
	}
	_, err := r.exprs(a.Defaults)
	return err
}

// StmtChildren rewrites the children of s in place and returns s.
func (r *Rewriter) StmtChildren(s Stmt) (Stmt, error) {
	var err error
	switch s := s.(type) {
	case *FunctionDef:
		if err = r.arguments(s.Args); err != nil {
			return nil, err
		}
		s.Body, err = r.Block(s.Body)
	case *Return:
		s.Value, err = r.VisitExpr(s.Value)
	case *Assign:
		if s.Targets, err = r.exprs(s.Targets); err != nil {
			return nil, err
		}
		s.Value, err = r.VisitExpr(s.Value)
	case *AugAssign:
		if s.Target, err = r.VisitExpr(s.Target); err != nil {
			return nil, err
		}
		s.Value, err = r.VisitExpr(s.Value)
	case *ExprStmt:
		s.Value, err = r.VisitExpr(s.Value)
	case *If:
		if s.Test, err = r.VisitExpr(s.Test); err != nil {
			return nil, err
		}
		if s.Body, err = r.Block(s.Body); err != nil {
			return nil, err
		}
		s.Orelse, err = r.Block(s.Orelse)
	case *While:
		if s.Test, err = r.VisitExpr(s.Test); err != nil {
			return nil, err
		}
		if s.Body, err = r.Block(s.Body); err != nil {
			return nil, err
		}
		s.Orelse, err = r.Block(s.Orelse)
	case *For:
		if s.Target, err = r.VisitExpr(s.Target); err != nil {
			return nil, err
		}
		if s.Iter, err = r.VisitExpr(s.Iter); err != nil {
			return nil, err
		}
		if s.ExtraTest, err = r.VisitExpr(s.ExtraTest); err != nil {
			return nil, err
		}
		if s.Body, err = r.Block(s.Body); err != nil {
			return nil, err
		}
		s.Orelse, err = r.Block(s.Orelse)
	case *Raise:
		s.Exc, err = r.VisitExpr(s.Exc)
	case *Assert:
		if s.Test, err = r.VisitExpr(s.Test); err != nil {
			return nil, err
		}
		s.Msg, err = r.VisitExpr(s.Msg)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ExprChildren rewrites the children of e in place and returns e.
func (r *Rewriter) ExprChildren(e Expr) (Expr, error) {
	var err error
	switch e := e.(type) {
	case *Attribute:
		e.Value, err = r.VisitExpr(e.Value)
	case *Subscript:
		if e.Value, err = r.VisitExpr(e.Value); err != nil {
			return nil, err
		}
		e.Index, err = r.VisitExpr(e.Index)
	case *Slice:
		if e.Lower, err = r.VisitExpr(e.Lower); err != nil {
			return nil, err
		}
		if e.Upper, err = r.VisitExpr(e.Upper); err != nil {
			return nil, err
		}
		e.Step, err = r.VisitExpr(e.Step)
	case *Call:
		if e.Func, err = r.VisitExpr(e.Func); err != nil {
			return nil, err
		}
		if e.Args, err = r.exprs(e.Args); err != nil {
			return nil, err
		}
		for _, k := range e.Keywords {
			if k.Value, err = r.VisitExpr(k.Value); err != nil {
				return nil, err
			}
		}
	case *BinOp:
		if e.Left, err = r.VisitExpr(e.Left); err != nil {
			return nil, err
		}
		e.Right, err = r.VisitExpr(e.Right)
	case *UnaryOp:
		e.Operand, err = r.VisitExpr(e.Operand)
	case *BoolOp:
		e.Values, err = r.exprs(e.Values)
	case *Compare:
		if e.Left, err = r.VisitExpr(e.Left); err != nil {
			return nil, err
		}
		e.Comparators, err = r.exprs(e.Comparators)
	case *IfExp:
		if e.Test, err = r.VisitExpr(e.Test); err != nil {
			return nil, err
		}
		if e.Body, err = r.VisitExpr(e.Body); err != nil {
			return nil, err
		}
		e.Orelse, err = r.VisitExpr(e.Orelse)
	case *Lambda:
		if err = r.arguments(e.Args); err != nil {
			return nil, err
		}
		e.Body, err = r.VisitExpr(e.Body)
	case *List:
		e.Elts, err = r.exprs(e.Elts)
	case *Tuple:
		e.Elts, err = r.exprs(e.Elts)
	case *Dict:
		if e.Keys, err = r.exprs(e.Keys); err != nil {
			return nil, err
		}
		e.Values, err = r.exprs(e.Values)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}
