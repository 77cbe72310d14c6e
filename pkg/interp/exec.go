package interp

import (
	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/operators"
)

// ctrl is the non-local exit a statement requests.
type ctrl int

const (
	ctrlNone ctrl = iota
	ctrlBreak
	ctrlContinue
	ctrlReturn
)

func (c ctrl) String() string {
	switch c {
	case ctrlBreak:
		return "break"
	case ctrlContinue:
		return "continue"
	case ctrlReturn:
		return "return"
	}
	return ""
}

func (ip *Interpreter) execBlock(f *frame, stmts []ast.Stmt) (ctrl, error) {
	for _, st := range stmts {
		c, err := ip.exec(f, st)
		if err != nil || c != ctrlNone {
			return c, err
		}
	}
	return ctrlNone, nil
}

func (ip *Interpreter) exec(f *frame, st ast.Stmt) (ctrl, error) {
	switch st := st.(type) {
	case *ast.ExprStmt:
		_, err := ip.eval(f, st.Value)
		return ctrlNone, err

	case *ast.Assign:
		v, err := ip.eval(f, st.Value)
		if err != nil {
			return ctrlNone, err
		}
		for _, t := range st.Targets {
			if err := ip.assign(f, t, v); err != nil {
				return ctrlNone, err
			}
		}
		return ctrlNone, nil

	case *ast.AugAssign:
		return ctrlNone, ip.augAssign(f, st)

	case *ast.Return:
		var v any
		if st.Value != nil {
			var err error
			if v, err = ip.eval(f, st.Value); err != nil {
				return ctrlNone, err
			}
			if u, ok := v.(operators.Undefined); ok {
				return ctrlNone, u.Err()
			}
		}
		f.ret = v
		return ctrlReturn, nil

	case *ast.If:
		ok, err := ip.truth(f, st.Test)
		if err != nil {
			return ctrlNone, err
		}
		if ok {
			return ip.execBlock(f, st.Body)
		}
		return ip.execBlock(f, st.Orelse)

	case *ast.While:
		for {
			if err := ip.checkContext(); err != nil {
				return ctrlNone, err
			}
			ok, err := ip.truth(f, st.Test)
			if err != nil {
				return ctrlNone, err
			}
			if !ok {
				return ip.execBlock(f, st.Orelse)
			}
			c, err := ip.execBlock(f, st.Body)
			if err != nil {
				return ctrlNone, err
			}
			switch c {
			case ctrlBreak:
				return ctrlNone, nil
			case ctrlReturn:
				return c, nil
			}
		}

	case *ast.For:
		return ip.forLoop(f, st)

	case *ast.Break:
		return ctrlBreak, nil

	case *ast.Continue:
		return ctrlContinue, nil

	case *ast.Pass, *ast.Global, *ast.Nonlocal:
		return ctrlNone, nil

	case *ast.FunctionDef:
		fn, err := ip.makeFunction(f, st.Name, st, st.Args)
		if err != nil {
			return ctrlNone, err
		}
		return ctrlNone, ip.store(f, st.Name, fn)

	case *ast.Raise:
		return ctrlNone, ip.raise(f, st)

	case *ast.Assert:
		test, err := ip.eval(f, st.Test)
		if err != nil {
			return ctrlNone, err
		}
		var msg operators.Thunk
		if st.Msg != nil {
			msg = func() (any, error) { return ip.eval(f, st.Msg) }
		}
		return ctrlNone, operators.AssertStmt(test, msg)

	case *ast.Unsupported:
		return ctrlNone, operators.Raise("SyntaxError", "unsupported statement: %s", st.Kind)
	}
	return ctrlNone, operators.Raise("SyntaxError", "unsupported statement: %s", ast.KindOf(st))
}

func (ip *Interpreter) forLoop(f *frame, st *ast.For) (ctrl, error) {
	iter, err := ip.eval(f, st.Iter)
	if err != nil {
		return ctrlNone, err
	}
	var (
		out     = ctrlNone
		stopped bool
	)
	guard := func() (bool, error) {
		if st.ExtraTest == nil {
			return true, nil
		}
		return ip.truth(f, st.ExtraTest)
	}
	ok, err := guard()
	if err != nil {
		return ctrlNone, err
	}
	if !ok {
		return ctrlNone, nil
	}
	err = operators.Iterate(iter, func(v any) (bool, error) {
		if err := ip.checkContext(); err != nil {
			return false, err
		}
		if err := ip.assign(f, st.Target, v); err != nil {
			return false, err
		}
		c, err := ip.execBlock(f, st.Body)
		if err != nil {
			return false, err
		}
		switch c {
		case ctrlBreak:
			stopped = true
			return false, nil
		case ctrlReturn:
			out, stopped = c, true
			return false, nil
		}
		ok, err := guard()
		if err != nil {
			return false, err
		}
		stopped = !ok
		return ok, nil
	})
	if err != nil || stopped {
		return out, err
	}
	return ip.execBlock(f, st.Orelse)
}

func (ip *Interpreter) truth(f *frame, e ast.Expr) (bool, error) {
	v, err := ip.eval(f, e)
	if err != nil {
		return false, err
	}
	return operators.Truth(v)
}

// assign binds v to an assignment target.
func (ip *Interpreter) assign(f *frame, target ast.Expr, v any) error {
	switch t := target.(type) {
	case *ast.Name:
		return ip.store(f, t.ID, v)
	case *ast.Tuple:
		return ip.unpack(f, t.Elts, v)
	case *ast.List:
		return ip.unpack(f, t.Elts, v)
	case *ast.Subscript:
		obj, err := ip.eval(f, t.Value)
		if err != nil {
			return err
		}
		key, err := ip.index(f, t.Index)
		if err != nil {
			return err
		}
		_, err = operators.StoreIndex(obj, key, v)
		return err
	case *ast.Attribute:
		obj, err := ip.eval(f, t.Value)
		if err != nil {
			return err
		}
		return setAttr(obj, t.Attr, v)
	}
	return operators.Raise("SyntaxError", "cannot assign to %s", ast.KindOf(target))
}

func (ip *Interpreter) unpack(f *frame, targets []ast.Expr, v any) error {
	if u, ok := v.(operators.Undefined); ok {
		return u.Err()
	}
	items, err := operators.Collect(v)
	if err != nil {
		return operators.Raise("TypeError", "cannot unpack non-iterable %s object", operators.TypeName(v))
	}
	switch {
	case len(items) > len(targets):
		return operators.Raise("ValueError", "too many values to unpack (expected %d)", len(targets))
	case len(items) < len(targets):
		return operators.Raise("ValueError", "not enough values to unpack (expected %d, got %d)", len(targets), len(items))
	}
	for i, t := range targets {
		if err := ip.assign(f, t, items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (ip *Interpreter) augAssign(f *frame, st *ast.AugAssign) error {
	switch t := st.Target.(type) {
	case *ast.Name:
		cur, err := ip.load(f, t.ID)
		if err != nil {
			return err
		}
		rhs, err := ip.eval(f, st.Value)
		if err != nil {
			return err
		}
		out, err := inplace(st.Op, cur, rhs)
		if err != nil {
			return err
		}
		return ip.store(f, t.ID, out)
	case *ast.Subscript:
		obj, err := ip.eval(f, t.Value)
		if err != nil {
			return err
		}
		key, err := ip.index(f, t.Index)
		if err != nil {
			return err
		}
		cur, err := operators.Index(obj, key)
		if err != nil {
			return err
		}
		rhs, err := ip.eval(f, st.Value)
		if err != nil {
			return err
		}
		out, err := inplace(st.Op, cur, rhs)
		if err != nil {
			return err
		}
		_, err = operators.StoreIndex(obj, key, out)
		return err
	case *ast.Attribute:
		obj, err := ip.eval(f, t.Value)
		if err != nil {
			return err
		}
		cur, err := ip.getAttr(obj, t.Attr)
		if err != nil {
			return err
		}
		rhs, err := ip.eval(f, st.Value)
		if err != nil {
			return err
		}
		out, err := inplace(st.Op, cur, rhs)
		if err != nil {
			return err
		}
		return setAttr(obj, t.Attr, out)
	}
	return operators.Raise("SyntaxError", "illegal expression for augmented assignment")
}

func (ip *Interpreter) raise(f *frame, st *ast.Raise) error {
	if st.Exc == nil {
		return operators.Raise("RuntimeError", "No active exception to reraise")
	}
	v, err := ip.eval(f, st.Exc)
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case *operators.Exception:
		return v
	case *ExceptionType:
		return &operators.Exception{Type: v.Name}
	}
	return operators.Raise("TypeError", "exceptions must derive from BaseException")
}
