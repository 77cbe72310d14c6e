package interp

import (
	"github.com/l3aro/go-malt/pkg/operators"
)

// argAt returns the i-th argument, positional or by keyword name, or Unset.
func argAt(args []any, kw []Kwarg, i int, name string) any {
	if i < len(args) {
		return args[i]
	}
	for _, k := range kw {
		if k.Name == name {
			return k.Value
		}
	}
	return operators.Unset
}

func need(op string, args []any, kw []Kwarg, names ...string) ([]any, error) {
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = argAt(args, kw, i, n)
		if operators.IsUnset(out[i]) {
			return nil, operators.Raise("TypeError", "%s() missing required argument '%s'", op, n)
		}
	}
	return out, nil
}

// thunk adapts a zero-argument callable. None yields a nil thunk.
func (ip *Interpreter) thunk(fn any) operators.Thunk {
	if fn == nil || operators.IsUnset(fn) {
		return nil
	}
	return func() (any, error) { return ip.call(fn, nil, nil) }
}

func (ip *Interpreter) proc(fn any) func() error {
	return func() error {
		_, err := ip.call(fn, nil, nil)
		return err
	}
}

// state builds the accessor pair a control flow operator receives.
func (ip *Interpreter) state(get, set, names any) (operators.State, error) {
	st := operators.State{
		Get: func() ([]any, error) {
			v, err := ip.call(get, nil, nil)
			if err != nil {
				return nil, err
			}
			return operators.Collect(v)
		},
		Set: func(vals []any) error {
			_, err := ip.call(set, []any{operators.Tuple(vals)}, nil)
			return err
		},
	}
	items, err := operators.Collect(names)
	if err != nil {
		return st, err
	}
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return st, operators.Raise("TypeError", "symbol names must be strings, not %s", operators.TypeName(it))
		}
		st.Symbols = append(st.Symbols, s)
	}
	return st, nil
}

func loopOpts(v any) (operators.LoopOpts, error) {
	var opts operators.LoopOpts
	d, ok := v.(*operators.Dict)
	if !ok {
		return opts, nil
	}
	names, found, err := d.Get("iterate_names")
	if err != nil || !found {
		return opts, err
	}
	opts.IterateNames = operators.Str(names)
	return opts, nil
}

func dtypeName(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case *Builtin:
		return v.Name
	case string:
		return v
	}
	return operators.Repr(v)
}

// agModule binds the operator library for rewritten code.
func (ip *Interpreter) agModule() *Module {
	d := ip.dispatch
	m := &Module{Name: ModuleName, Attrs: map[string]any{
		"Unset":                operators.Unset,
		"UndefinedReturnValue": operators.UndefinedReturnValue,
	}}
	def := func(name string, fn func(args []any, kw []Kwarg) (any, error)) {
		m.Attrs[name] = builtin(ModuleName+"."+name, func(_ *Interpreter, args []any, kw []Kwarg) (any, error) {
			return fn(args, kw)
		})
	}

	def("if_stmt", func(args []any, kw []Kwarg) (any, error) {
		a, err := need("if_stmt", args, kw, "cond", "body", "orelse", "get_state", "set_state", "symbol_names", "nouts")
		if err != nil {
			return nil, err
		}
		st, err := ip.state(a[3], a[4], a[5])
		if err != nil {
			return nil, err
		}
		nouts, _ := operators.AsInt(a[6])
		return nil, d.IfStmt(a[0], ip.proc(a[1]), ip.proc(a[2]), st, int(nouts))
	})
	def("while_stmt", func(args []any, kw []Kwarg) (any, error) {
		a, err := need("while_stmt", args, kw, "test", "body", "get_state", "set_state", "symbol_names", "opts")
		if err != nil {
			return nil, err
		}
		st, err := ip.state(a[2], a[3], a[4])
		if err != nil {
			return nil, err
		}
		opts, err := loopOpts(a[5])
		if err != nil {
			return nil, err
		}
		return nil, d.WhileStmt(ip.thunk(a[0]), ip.proc(a[1]), st, opts)
	})
	def("for_stmt", func(args []any, kw []Kwarg) (any, error) {
		a, err := need("for_stmt", args, kw, "iter_", "extra_test", "body", "get_state", "set_state", "symbol_names", "opts")
		if err != nil {
			return nil, err
		}
		st, err := ip.state(a[3], a[4], a[5])
		if err != nil {
			return nil, err
		}
		opts, err := loopOpts(a[6])
		if err != nil {
			return nil, err
		}
		body := func(v any) error {
			_, err := ip.call(a[2], []any{v}, nil)
			return err
		}
		return nil, d.ForStmt(a[0], ip.thunk(a[1]), body, st, opts)
	})
	def("if_exp", func(args []any, kw []Kwarg) (any, error) {
		a, err := need("if_exp", args, kw, "cond", "if_true", "if_false", "expr_repr")
		if err != nil {
			return nil, err
		}
		return d.IfExp(a[0], ip.thunk(a[1]), ip.thunk(a[2]), operators.Str(a[3]))
	})

	def("GetItemOpts", func(args []any, kw []Kwarg) (any, error) {
		return operators.GetItemOpts{ElementType: dtypeName(argAt(args, kw, 0, "element_dtype"))}, nil
	})
	def("get_item", func(args []any, kw []Kwarg) (any, error) {
		a, err := need("get_item", args, kw, "target", "i")
		if err != nil {
			return nil, err
		}
		opts, _ := argAt(args, kw, 2, "opts").(operators.GetItemOpts)
		return d.GetItem(a[0], a[1], opts)
	})
	def("set_item", func(args []any, kw []Kwarg) (any, error) {
		a, err := need("set_item", args, kw, "target", "i", "x")
		if err != nil {
			return nil, err
		}
		return d.SetItem(a[0], a[1], a[2])
	})
	def("slice_", func(args []any, kw []Kwarg) (any, error) {
		return operators.NewSlice(argAt(args, kw, 0, "lower"), argAt(args, kw, 1, "upper"), argAt(args, kw, 2, "step")), nil
	})
	def("set_element_type", func([]any, []Kwarg) (any, error) { return nil, nil })

	def("and_", func(args []any, kw []Kwarg) (any, error) {
		a, err := need("and_", args, kw, "a", "b")
		if err != nil {
			return nil, err
		}
		return d.And(a[0], ip.thunk(a[1]))
	})
	def("or_", func(args []any, kw []Kwarg) (any, error) {
		a, err := need("or_", args, kw, "a", "b")
		if err != nil {
			return nil, err
		}
		return d.Or(a[0], ip.thunk(a[1]))
	})
	def("not_", func(args []any, kw []Kwarg) (any, error) {
		a, err := need("not_", args, kw, "a")
		if err != nil {
			return nil, err
		}
		return d.Not(a[0])
	})
	def("eq", func(args []any, kw []Kwarg) (any, error) {
		a, err := need("eq", args, kw, "a", "b")
		if err != nil {
			return nil, err
		}
		return d.Eq(a[0], a[1])
	})
	def("not_eq", func(args []any, kw []Kwarg) (any, error) {
		a, err := need("not_eq", args, kw, "a", "b")
		if err != nil {
			return nil, err
		}
		return d.NotEq(a[0], a[1])
	})

	def("assert_stmt", func(args []any, kw []Kwarg) (any, error) {
		a, err := need("assert_stmt", args, kw, "expression1")
		if err != nil {
			return nil, err
		}
		return nil, operators.AssertStmt(a[0], ip.thunk(argAt(args, kw, 1, "expression2")))
	})
	def("list_append", func(args []any, kw []Kwarg) (any, error) {
		a, err := need("list_append", args, kw, "target", "x")
		if err != nil {
			return nil, err
		}
		return operators.ListAppend(a[0], a[1])
	})
	def("list_pop", func(args []any, kw []Kwarg) (any, error) {
		a, err := need("list_pop", args, kw, "target")
		if err != nil {
			return nil, err
		}
		l, v, err := operators.ListPop(a[0], argAt(args, kw, 1, "i"))
		if err != nil {
			return nil, err
		}
		return operators.Tuple{l, v}, nil
	})

	def("ld", func(args []any, kw []Kwarg) (any, error) {
		a, err := need("ld", args, kw, "v")
		if err != nil {
			return nil, err
		}
		return operators.Ld(a[0]), nil
	})
	def("ldu", func(args []any, kw []Kwarg) (any, error) {
		a, err := need("ldu", args, kw, "load", "name")
		if err != nil {
			return nil, err
		}
		return operators.Ldu(ip.thunk(a[0]), operators.Str(a[1]))
	})
	def("Undefined", func(args []any, kw []Kwarg) (any, error) {
		a, err := need("Undefined", args, kw, "name")
		if err != nil {
			return nil, err
		}
		return operators.Undefined{Name: operators.Str(a[0])}, nil
	})
	def("retval", func(args []any, kw []Kwarg) (any, error) {
		a, err := need("retval", args, kw, "v")
		if err != nil {
			return nil, err
		}
		return operators.Retval(a[0]), nil
	})

	// Builtin overloads. They behave like the plain builtins; a backend
	// replaces them to stage the call.
	for alias, name := range map[string]string{
		"len_": "len", "range_": "range", "print_": "print", "int_": "int",
		"float_": "float", "abs_": "abs", "enumerate_": "enumerate",
	} {
		m.Attrs[alias] = ip.builtins[name]
	}
	return m
}
