package ast

// Copy returns a deep copy of n without annotations.
func Copy(n Node) Node {
	switch n := n.(type) {
	case nil:
		return nil
	case Stmt:
		return CopyStmt(n)
	case Expr:
		return CopyExpr(n)
	case *Module:
		return &Module{Meta: Meta{At: n.At}, Body: CopyStmts(n.Body)}
	case *Arguments:
		return copyArgs(n)
	case *Keyword:
		return copyKeyword(n)
	}
	panic("ast: unknown node in Copy")
}

// CopyStmts deep-copies a statement list.
func CopyStmts(stmts []Stmt) []Stmt {
	if stmts == nil {
		return nil
	}
	out := make([]Stmt, len(stmts))
	for i, s := range stmts {
		out[i] = CopyStmt(s)
	}
	return out
}

// CopyExprs deep-copies an expression list.
func CopyExprs(es []Expr) []Expr {
	if es == nil {
		return nil
	}
	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = CopyExpr(e)
	}
	return out
}

func copyName(n *Name) *Name {
	if n == nil {
		return nil
	}
	return &Name{Meta: Meta{At: n.At}, ID: n.ID, Ctx: n.Ctx}
}

func copyArgs(a *Arguments) *Arguments {
	if a == nil {
		return nil
	}
	out := &Arguments{
		Meta:     Meta{At: a.At},
		Defaults: CopyExprs(a.Defaults),
		Vararg:   copyName(a.Vararg),
		Kwarg:    copyName(a.Kwarg),
	}
	for _, p := range a.Args {
		out.Args = append(out.Args, copyName(p))
	}
	return out
}

func copyKeyword(k *Keyword) *Keyword {
	return &Keyword{Meta: Meta{At: k.At}, Arg: k.Arg, Value: CopyExpr(k.Value)}
}

// CopyStmt deep-copies a statement.
func CopyStmt(s Stmt) Stmt {
	m := Meta{At: s.Pos()}
	switch s := s.(type) {
	case *FunctionDef:
		return &FunctionDef{Meta: m, Name: s.Name, Args: copyArgs(s.Args), Body: CopyStmts(s.Body)}
	case *Return:
		return &Return{Meta: m, Value: CopyExpr(s.Value)}
	case *Assign:
		return &Assign{Meta: m, Targets: CopyExprs(s.Targets), Value: CopyExpr(s.Value)}
	case *AugAssign:
		return &AugAssign{Meta: m, Target: CopyExpr(s.Target), Op: s.Op, Value: CopyExpr(s.Value)}
	case *ExprStmt:
		return &ExprStmt{Meta: m, Value: CopyExpr(s.Value)}
	case *If:
		return &If{Meta: m, Test: CopyExpr(s.Test), Body: CopyStmts(s.Body), Orelse: CopyStmts(s.Orelse)}
	case *While:
		return &While{Meta: m, Test: CopyExpr(s.Test), Body: CopyStmts(s.Body), Orelse: CopyStmts(s.Orelse)}
	case *For:
		return &For{
			Meta:      m,
			Target:    CopyExpr(s.Target),
			Iter:      CopyExpr(s.Iter),
			Body:      CopyStmts(s.Body),
			Orelse:    CopyStmts(s.Orelse),
			ExtraTest: CopyExpr(s.ExtraTest),
		}
	case *Break:
		return &Break{Meta: m}
	case *Continue:
		return &Continue{Meta: m}
	case *Pass:
		return &Pass{Meta: m}
	case *Global:
		return &Global{Meta: m, Names: append([]string(nil), s.Names...)}
	case *Nonlocal:
		return &Nonlocal{Meta: m, Names: append([]string(nil), s.Names...)}
	case *Raise:
		return &Raise{Meta: m, Exc: CopyExpr(s.Exc)}
	case *Assert:
		return &Assert{Meta: m, Test: CopyExpr(s.Test), Msg: CopyExpr(s.Msg)}
	case *Unsupported:
		return &Unsupported{Meta: m, Kind: s.Kind, Text: s.Text}
	}
	panic("ast: unknown statement in CopyStmt")
}

// CopyExpr deep-copies an expression. Nil is passed through.
func CopyExpr(e Expr) Expr {
	if e == nil {
		return nil
	}
	m := Meta{At: e.Pos()}
	switch e := e.(type) {
	case *Name:
		return &Name{Meta: m, ID: e.ID, Ctx: e.Ctx}
	case *Constant:
		return &Constant{Meta: m, Value: e.Value}
	case *Attribute:
		return &Attribute{Meta: m, Value: CopyExpr(e.Value), Attr: e.Attr, Ctx: e.Ctx}
	case *Subscript:
		return &Subscript{Meta: m, Value: CopyExpr(e.Value), Index: CopyExpr(e.Index), Ctx: e.Ctx}
	case *Slice:
		return &Slice{Meta: m, Lower: CopyExpr(e.Lower), Upper: CopyExpr(e.Upper), Step: CopyExpr(e.Step)}
	case *Call:
		out := &Call{Meta: m, Func: CopyExpr(e.Func), Args: CopyExprs(e.Args)}
		for _, k := range e.Keywords {
			out.Keywords = append(out.Keywords, copyKeyword(k))
		}
		return out
	case *BinOp:
		return &BinOp{Meta: m, Left: CopyExpr(e.Left), Op: e.Op, Right: CopyExpr(e.Right)}
	case *UnaryOp:
		return &UnaryOp{Meta: m, Op: e.Op, Operand: CopyExpr(e.Operand)}
	case *BoolOp:
		return &BoolOp{Meta: m, Op: e.Op, Values: CopyExprs(e.Values)}
	case *Compare:
		return &Compare{
			Meta:        m,
			Left:        CopyExpr(e.Left),
			Ops:         append([]string(nil), e.Ops...),
			Comparators: CopyExprs(e.Comparators),
		}
	case *IfExp:
		return &IfExp{Meta: m, Test: CopyExpr(e.Test), Body: CopyExpr(e.Body), Orelse: CopyExpr(e.Orelse)}
	case *Lambda:
		return &Lambda{Meta: m, Args: copyArgs(e.Args), Body: CopyExpr(e.Body)}
	case *List:
		return &List{Meta: m, Elts: CopyExprs(e.Elts), Ctx: e.Ctx}
	case *Tuple:
		return &Tuple{Meta: m, Elts: CopyExprs(e.Elts), Ctx: e.Ctx}
	case *Dict:
		return &Dict{Meta: m, Keys: CopyExprs(e.Keys), Values: CopyExprs(e.Values)}
	case *UnsupportedExpr:
		return &UnsupportedExpr{Meta: m, Kind: e.Kind, Text: e.Text}
	}
	panic("ast: unknown expression in CopyExpr")
}
