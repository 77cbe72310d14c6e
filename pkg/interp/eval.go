package interp

import (
	"strings"

	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/operators"
)

// Function is a user-defined function or lambda closed over its defining
// activation.
type Function struct {
	Name     string
	node     ast.Node
	args     *ast.Arguments
	defaults []any
	env      *env
	info     *scopeInfo
}

func (fn *Function) Repr() string     { return "<function " + fn.Name + ">" }
func (fn *Function) TypeName() string { return "function" }

// Builtin is a host-implemented callable.
type Builtin struct {
	Name string
	Fn   func(ip *Interpreter, args []any, kw []Kwarg) (any, error)
}

func (b *Builtin) Repr() string     { return "<built-in function " + b.Name + ">" }
func (b *Builtin) TypeName() string { return "builtin_function_or_method" }

// Kwarg is one keyword argument of a call.
type Kwarg struct {
	Name  string
	Value any
}

// Module is a namespace of attributes, such as ag__.
type Module struct {
	Name  string
	Attrs map[string]any
}

func (m *Module) Repr() string     { return "<module '" + m.Name + "'>" }
func (m *Module) TypeName() string { return "module" }

// Object is a plain attribute bag, built by namespace(**kwargs).
type Object struct {
	keys  []string
	attrs map[string]any
}

func newObject() *Object { return &Object{attrs: make(map[string]any)} }

func (o *Object) set(name string, v any) {
	if _, ok := o.attrs[name]; !ok {
		o.keys = append(o.keys, name)
	}
	o.attrs[name] = v
}

func (o *Object) TypeName() string { return "SimpleNamespace" }

func (o *Object) Repr() string {
	parts := make([]string, len(o.keys))
	for i, k := range o.keys {
		parts[i] = k + "=" + operators.Repr(o.attrs[k])
	}
	return "namespace(" + strings.Join(parts, ", ") + ")"
}

func (ip *Interpreter) makeFunction(f *frame, name string, node ast.Node, args *ast.Arguments) (*Function, error) {
	info, err := ip.scopeOf(node)
	if err != nil {
		return nil, err
	}
	if err := checkNonlocals(f.env, info); err != nil {
		return nil, err
	}
	fn := &Function{Name: name, node: node, args: args, env: f.env, info: info}
	if args != nil {
		for _, d := range args.Defaults {
			v, err := ip.eval(f, d)
			if err != nil {
				return nil, err
			}
			fn.defaults = append(fn.defaults, v)
		}
	}
	return fn, nil
}

func (ip *Interpreter) eval(f *frame, e ast.Expr) (any, error) {
	switch e := e.(type) {
	case *ast.Name:
		return ip.load(f, e.ID)

	case *ast.Constant:
		return e.Value, nil

	case *ast.Attribute:
		obj, err := ip.eval(f, e.Value)
		if err != nil {
			return nil, err
		}
		return ip.getAttr(obj, e.Attr)

	case *ast.Subscript:
		obj, err := ip.eval(f, e.Value)
		if err != nil {
			return nil, err
		}
		key, err := ip.index(f, e.Index)
		if err != nil {
			return nil, err
		}
		return operators.Index(obj, key)

	case *ast.Call:
		return ip.evalCall(f, e)

	case *ast.BinOp:
		l, err := ip.eval(f, e.Left)
		if err != nil {
			return nil, err
		}
		r, err := ip.eval(f, e.Right)
		if err != nil {
			return nil, err
		}
		return binop(e.Op, l, r)

	case *ast.UnaryOp:
		v, err := ip.eval(f, e.Operand)
		if err != nil {
			return nil, err
		}
		return unary(e.Op, v)

	case *ast.BoolOp:
		var v any
		for _, sub := range e.Values {
			var err error
			if v, err = ip.eval(f, sub); err != nil {
				return nil, err
			}
			ok, err := operators.Truth(v)
			if err != nil {
				return nil, err
			}
			if ok == (e.Op == "or") {
				return v, nil
			}
		}
		return v, nil

	case *ast.Compare:
		left, err := ip.eval(f, e.Left)
		if err != nil {
			return nil, err
		}
		for i, op := range e.Ops {
			right, err := ip.eval(f, e.Comparators[i])
			if err != nil {
				return nil, err
			}
			ok, err := compare(op, left, right)
			if err != nil || !ok {
				return false, err
			}
			left = right
		}
		return true, nil

	case *ast.IfExp:
		ok, err := ip.truth(f, e.Test)
		if err != nil {
			return nil, err
		}
		if ok {
			return ip.eval(f, e.Body)
		}
		return ip.eval(f, e.Orelse)

	case *ast.Lambda:
		return ip.makeFunction(f, "<lambda>", e, e.Args)

	case *ast.List:
		items, err := ip.evalAll(f, e.Elts)
		if err != nil {
			return nil, err
		}
		return &operators.List{Items: items}, nil

	case *ast.Tuple:
		items, err := ip.evalAll(f, e.Elts)
		if err != nil {
			return nil, err
		}
		return operators.Tuple(items), nil

	case *ast.Dict:
		d := operators.NewDict()
		for i, k := range e.Keys {
			kv, err := ip.eval(f, k)
			if err != nil {
				return nil, err
			}
			vv, err := ip.eval(f, e.Values[i])
			if err != nil {
				return nil, err
			}
			if err := d.Set(kv, vv); err != nil {
				return nil, err
			}
		}
		return d, nil

	case *ast.Slice:
		return nil, operators.Raise("SyntaxError", "slice outside of a subscript")

	case *ast.UnsupportedExpr:
		return nil, operators.Raise("SyntaxError", "unsupported expression: %s", e.Kind)
	}
	return nil, operators.Raise("SyntaxError", "unsupported expression: %s", ast.KindOf(e))
}

func (ip *Interpreter) evalAll(f *frame, es []ast.Expr) ([]any, error) {
	out := make([]any, len(es))
	for i, e := range es {
		v, err := ip.eval(f, e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// index evaluates a subscript index, turning slice syntax into a slice key.
func (ip *Interpreter) index(f *frame, e ast.Expr) (any, error) {
	s, ok := e.(*ast.Slice)
	if !ok {
		return ip.eval(f, e)
	}
	part := func(p ast.Expr) (any, error) {
		if p == nil {
			return operators.Unset, nil
		}
		return ip.eval(f, p)
	}
	lower, err := part(s.Lower)
	if err != nil {
		return nil, err
	}
	upper, err := part(s.Upper)
	if err != nil {
		return nil, err
	}
	step, err := part(s.Step)
	if err != nil {
		return nil, err
	}
	return operators.NewSlice(lower, upper, step), nil
}

func (ip *Interpreter) evalCall(f *frame, c *ast.Call) (any, error) {
	fn, err := ip.eval(f, c.Func)
	if err != nil {
		return nil, err
	}
	args, err := ip.evalAll(f, c.Args)
	if err != nil {
		return nil, err
	}
	var kw []Kwarg
	for _, k := range c.Keywords {
		v, err := ip.eval(f, k.Value)
		if err != nil {
			return nil, err
		}
		kw = append(kw, Kwarg{Name: k.Arg, Value: v})
	}
	return ip.call(fn, args, kw)
}

func (ip *Interpreter) call(fn any, args []any, kw []Kwarg) (any, error) {
	if err := ip.checkContext(); err != nil {
		return nil, err
	}
	switch fn := fn.(type) {
	case *Function:
		return ip.callFunction(fn, args, kw)
	case *Builtin:
		return fn.Fn(ip, args, kw)
	case *ExceptionType:
		return fn.instantiate(args)
	case operators.Undefined:
		return nil, fn.Err()
	}
	return nil, operators.Raise("TypeError", "'%s' object is not callable", operators.TypeName(fn))
}

func (ip *Interpreter) callFunction(fn *Function, args []any, kw []Kwarg) (any, error) {
	if ip.depth >= ip.maxDepth {
		return nil, operators.Raise("RecursionError", "maximum recursion depth exceeded")
	}
	ip.depth++
	defer func() { ip.depth-- }()

	e := newEnv(fn.env, fn.info)
	if err := bindArgs(fn, e, args, kw); err != nil {
		return nil, err
	}
	f := &frame{env: e}
	switch n := fn.node.(type) {
	case *ast.Lambda:
		return ip.eval(f, n.Body)
	case *ast.FunctionDef:
		c, err := ip.execBlock(f, n.Body)
		if err != nil {
			return nil, err
		}
		switch c {
		case ctrlReturn:
			return f.ret, nil
		case ctrlBreak, ctrlContinue:
			return nil, operators.Raise("SyntaxError", "'%s' outside loop", c)
		}
	}
	return nil, nil
}

func bindArgs(fn *Function, e *env, args []any, kw []Kwarg) error {
	set := func(id string, v any) {
		c := e.cells[id]
		c.v, c.bound = v, true
	}
	a := fn.args
	if a == nil {
		a = &ast.Arguments{}
	}
	n := len(a.Args)
	for i, v := range args {
		if i < n {
			set(a.Args[i].ID, v)
		}
	}
	if len(args) > n {
		if a.Vararg == nil {
			return operators.Raise("TypeError", "%s() takes %d positional arguments but %d were given", fn.Name, n, len(args))
		}
		set(a.Vararg.ID, operators.Tuple(append([]any(nil), args[n:]...)))
	} else if a.Vararg != nil {
		set(a.Vararg.ID, operators.Tuple{})
	}
	var extra *operators.Dict
	if a.Kwarg != nil {
		extra = operators.NewDict()
		set(a.Kwarg.ID, extra)
	}
	for _, k := range kw {
		pos := -1
		for i, p := range a.Args {
			if p.ID == k.Name {
				pos = i
				break
			}
		}
		switch {
		case pos >= 0 && pos < len(args):
			return operators.Raise("TypeError", "%s() got multiple values for argument '%s'", fn.Name, k.Name)
		case pos >= 0:
			set(k.Name, k.Value)
		case extra != nil:
			if err := extra.Set(k.Name, k.Value); err != nil {
				return err
			}
		default:
			return operators.Raise("TypeError", "%s() got an unexpected keyword argument '%s'", fn.Name, k.Name)
		}
	}
	firstDefault := n - len(fn.defaults)
	var missing []string
	for i, p := range a.Args {
		if e.cells[p.ID].bound {
			continue
		}
		if i >= firstDefault {
			set(p.ID, fn.defaults[i-firstDefault])
			continue
		}
		missing = append(missing, "'"+p.ID+"'")
	}
	if len(missing) > 0 {
		return operators.Raise("TypeError", "%s() missing %d required positional argument%s: %s",
			fn.Name, len(missing), plural(len(missing)), strings.Join(missing, " and "))
	}
	return nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func (ip *Interpreter) getAttr(obj any, name string) (any, error) {
	switch o := obj.(type) {
	case *Module:
		if v, ok := o.Attrs[name]; ok {
			return v, nil
		}
		return nil, operators.Raise("AttributeError", "module '%s' has no attribute '%s'", o.Name, name)
	case *Object:
		if v, ok := o.attrs[name]; ok {
			return v, nil
		}
	case *operators.Exception:
		if name == "args" {
			if o.Msg == "" {
				return operators.Tuple{}, nil
			}
			return operators.Tuple{o.Msg}, nil
		}
	case operators.Undefined:
		return nil, o.Err()
	}
	if m, ok := method(obj, name); ok {
		return m, nil
	}
	return nil, operators.Raise("AttributeError", "'%s' object has no attribute '%s'", operators.TypeName(obj), name)
}

func setAttr(obj any, name string, v any) error {
	switch o := obj.(type) {
	case *Object:
		o.set(name, v)
		return nil
	case operators.Undefined:
		return o.Err()
	}
	return operators.Raise("AttributeError", "'%s' object has no attribute '%s'", operators.TypeName(obj), name)
}

// ExceptionType is a built-in exception class. Calling it builds an
// exception value.
type ExceptionType struct {
	Name string
}

func (t *ExceptionType) Repr() string     { return "<class '" + t.Name + "'>" }
func (t *ExceptionType) TypeName() string { return "type" }

func (t *ExceptionType) instantiate(args []any) (any, error) {
	switch len(args) {
	case 0:
		return &operators.Exception{Type: t.Name}, nil
	case 1:
		return &operators.Exception{Type: t.Name, Msg: operators.Str(args[0])}, nil
	}
	return &operators.Exception{Type: t.Name, Msg: operators.Repr(operators.Tuple(args))}, nil
}
