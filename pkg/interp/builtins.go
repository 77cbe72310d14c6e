package interp

import (
	"slices"
	"strconv"
	"strings"

	"github.com/l3aro/go-malt/pkg/operators"
)

var exceptionTypes = []string{
	"Exception", "ValueError", "TypeError", "KeyError", "IndexError",
	"NameError", "UnboundLocalError", "AttributeError", "ZeroDivisionError",
	"AssertionError", "RuntimeError", "NotImplementedError", "StopIteration",
	"RecursionError",
}

func strconvFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

func builtin(name string, fn func(ip *Interpreter, args []any, kw []Kwarg) (any, error)) *Builtin {
	return &Builtin{Name: name, Fn: fn}
}

// positional wraps a function of exactly n positional arguments.
func positional(name string, n int, fn func(args []any) (any, error)) *Builtin {
	return builtin(name, func(_ *Interpreter, args []any, kw []Kwarg) (any, error) {
		if len(kw) > 0 {
			return nil, operators.Raise("TypeError", "%s() takes no keyword arguments", name)
		}
		if len(args) != n {
			return nil, operators.Raise("TypeError", "%s() takes exactly %d argument%s (%d given)", name, n, plural(n), len(args))
		}
		return fn(args)
	})
}

// optional wraps a function of min to max positional arguments; missing ones
// are Unset.
func optional(name string, lo, hi int, fn func(args []any) (any, error)) *Builtin {
	return builtin(name, func(_ *Interpreter, args []any, kw []Kwarg) (any, error) {
		if len(kw) > 0 {
			return nil, operators.Raise("TypeError", "%s() takes no keyword arguments", name)
		}
		if len(args) < lo || len(args) > hi {
			return nil, operators.Raise("TypeError", "%s expected at most %d arguments, got %d", name, hi, len(args))
		}
		full := make([]any, hi)
		for i := range full {
			full[i] = operators.Unset
		}
		copy(full, args)
		return fn(full)
	})
}

func printTo(ip *Interpreter, args []any, kw []Kwarg) (any, error) {
	if err := undefinedOperand(args...); err != nil {
		return nil, err
	}
	sep, end := " ", "\n"
	for _, k := range kw {
		s, ok := k.Value.(string)
		switch {
		case k.Value == nil:
			continue
		case !ok:
			return nil, operators.Raise("TypeError", "%s must be None or a string, not %s", k.Name, operators.TypeName(k.Value))
		case k.Name == "sep":
			sep = s
		case k.Name == "end":
			end = s
		default:
			return nil, operators.Raise("TypeError", "'%s' is an invalid keyword argument for print()", k.Name)
		}
	}
	if sep == " " && end == "\n" {
		return nil, operators.Print(ip.stdout, args...)
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = operators.Str(a)
	}
	_, err := ip.stdout.Write([]byte(strings.Join(parts, sep) + end))
	return nil, err
}

func extreme(name string, want int) *Builtin {
	return builtin(name, func(_ *Interpreter, args []any, kw []Kwarg) (any, error) {
		if len(kw) > 0 {
			return nil, operators.Raise("TypeError", "%s() takes no keyword arguments", name)
		}
		items := args
		if len(args) == 1 {
			var err error
			if items, err = operators.Collect(args[0]); err != nil {
				return nil, err
			}
		}
		if len(items) == 0 {
			return nil, operators.Raise("ValueError", "%s() arg is an empty sequence", name)
		}
		op := "<"
		if want > 0 {
			op = ">"
		}
		best := items[0]
		for _, it := range items[1:] {
			c, err := order(op, it, best)
			if err != nil {
				return nil, err
			}
			if c == want {
				best = it
			}
		}
		return best, nil
	})
}

func (ip *Interpreter) hostBuiltins() map[string]any {
	b := map[string]any{
		"len":       positional("len", 1, func(a []any) (any, error) { return operators.Len(a[0]) }),
		"range":     builtin("range", func(_ *Interpreter, a []any, _ []Kwarg) (any, error) { return operators.NewRange(a...) }),
		"print":     builtin("print", printTo),
		"abs":       positional("abs", 1, func(a []any) (any, error) { return operators.Abs(a[0]) }),
		"enumerate": optional("enumerate", 1, 2, func(a []any) (any, error) { return operators.Enumerate(a[0], a[1]) }),
		"int": optional("int", 0, 1, func(a []any) (any, error) {
			if operators.IsUnset(a[0]) {
				return int64(0), nil
			}
			return operators.Int(a[0])
		}),
		"float": optional("float", 0, 1, func(a []any) (any, error) {
			if operators.IsUnset(a[0]) {
				return 0.0, nil
			}
			return operators.Float(a[0])
		}),
		"str": optional("str", 0, 1, func(a []any) (any, error) {
			if operators.IsUnset(a[0]) {
				return "", nil
			}
			return operators.Str(a[0]), nil
		}),
		"repr": positional("repr", 1, func(a []any) (any, error) { return operators.Repr(a[0]), nil }),
		"bool": optional("bool", 0, 1, func(a []any) (any, error) {
			if operators.IsUnset(a[0]) {
				return false, nil
			}
			return operators.Truth(a[0])
		}),
		"list": optional("list", 0, 1, func(a []any) (any, error) { return operators.NewList(a[0]) }),
		"tuple": optional("tuple", 0, 1, func(a []any) (any, error) {
			if operators.IsUnset(a[0]) {
				return operators.Tuple{}, nil
			}
			items, err := operators.Collect(a[0])
			return operators.Tuple(items), err
		}),
		"min": extreme("min", -1),
		"max": extreme("max", 1),
		"sum": optional("sum", 1, 2, func(a []any) (any, error) {
			var total any = int64(0)
			if !operators.IsUnset(a[1]) {
				total = a[1]
			}
			err := operators.Iterate(a[0], func(v any) (bool, error) {
				var err error
				total, err = binop("+", total, v)
				return err == nil, err
			})
			return total, err
		}),
		"isinstance": positional("isinstance", 2, func(a []any) (any, error) {
			t, ok := a[1].(*Builtin)
			if !ok {
				if et, ok := a[1].(*ExceptionType); ok {
					e, isExc := a[0].(*operators.Exception)
					return isExc && (e.Type == et.Name || et.Name == "Exception"), nil
				}
				return nil, operators.Raise("TypeError", "isinstance() arg 2 must be a type")
			}
			return operators.TypeName(a[0]) == t.Name, nil
		}),
		"getattr": optional("getattr", 2, 3, func(a []any) (any, error) {
			name, ok := a[1].(string)
			if !ok {
				return nil, operators.Raise("TypeError", "attribute name must be string")
			}
			v, err := ip.getAttr(a[0], name)
			if err != nil && !operators.IsUnset(a[2]) {
				return a[2], nil
			}
			return v, err
		}),
		"setattr": positional("setattr", 3, func(a []any) (any, error) {
			name, ok := a[1].(string)
			if !ok {
				return nil, operators.Raise("TypeError", "attribute name must be string")
			}
			return nil, setAttr(a[0], name, a[2])
		}),
		"hasattr": positional("hasattr", 2, func(a []any) (any, error) {
			name, ok := a[1].(string)
			if !ok {
				return nil, operators.Raise("TypeError", "attribute name must be string")
			}
			_, err := ip.getAttr(a[0], name)
			return err == nil, nil
		}),
		"namespace": builtin("namespace", func(_ *Interpreter, args []any, kw []Kwarg) (any, error) {
			if len(args) > 0 {
				return nil, operators.Raise("TypeError", "namespace() takes no positional arguments")
			}
			o := newObject()
			for _, k := range kw {
				o.set(k.Name, k.Value)
			}
			return o, nil
		}),
	}
	for _, name := range exceptionTypes {
		b[name] = &ExceptionType{Name: name}
	}
	return b
}

// method returns a bound method of a built-in value.
func method(obj any, name string) (*Builtin, bool) {
	switch o := obj.(type) {
	case *operators.List:
		return listMethod(o, name)
	case *operators.Dict:
		return dictMethod(o, name)
	case string:
		return stringMethod(o, name)
	}
	return nil, false
}

func listMethod(l *operators.List, name string) (*Builtin, bool) {
	switch name {
	case "append":
		return positional(name, 1, func(a []any) (any, error) {
			_, err := operators.ListAppend(l, a[0])
			return nil, err
		}), true
	case "pop":
		return optional(name, 0, 1, func(a []any) (any, error) {
			_, v, err := operators.ListPop(l, a[0])
			return v, err
		}), true
	case "extend":
		return positional(name, 1, func(a []any) (any, error) {
			_, err := inplace("+", l, a[0])
			return nil, err
		}), true
	case "insert":
		return positional(name, 2, func(a []any) (any, error) {
			i, ok := operators.AsInt(a[0])
			if !ok {
				return nil, operators.Raise("TypeError", "'%s' object cannot be interpreted as an integer", operators.TypeName(a[0]))
			}
			n := int64(len(l.Items))
			if i < 0 {
				i = max(i+n, 0)
			}
			l.Items = slices.Insert(l.Items, int(min(i, n)), a[1])
			return nil, nil
		}), true
	case "index", "count":
		return positional(name, 1, func(a []any) (any, error) {
			count := int64(0)
			for i, it := range l.Items {
				eq, err := operators.Equal(it, a[0])
				if err != nil {
					return nil, err
				}
				if !eq {
					continue
				}
				if name == "index" {
					return int64(i), nil
				}
				count++
			}
			if name == "index" {
				return nil, operators.Raise("ValueError", "%s is not in list", operators.Repr(a[0]))
			}
			return count, nil
		}), true
	}
	return nil, false
}

func dictMethod(d *operators.Dict, name string) (*Builtin, bool) {
	switch name {
	case "get":
		return optional(name, 1, 2, func(a []any) (any, error) {
			v, ok, err := d.Get(a[0])
			if err != nil || ok {
				return v, err
			}
			if operators.IsUnset(a[1]) {
				return nil, nil
			}
			return a[1], nil
		}), true
	case "keys":
		return positional(name, 0, func([]any) (any, error) {
			return &operators.List{Items: slices.Clone(d.Keys())}, nil
		}), true
	case "values", "items":
		return positional(name, 0, func([]any) (any, error) {
			out := &operators.List{}
			for _, k := range d.Keys() {
				v, _, _ := d.Get(k)
				if name == "items" {
					out.Items = append(out.Items, operators.Tuple{k, v})
				} else {
					out.Items = append(out.Items, v)
				}
			}
			return out, nil
		}), true
	}
	return nil, false
}

func stringMethod(s, name string) (*Builtin, bool) {
	switch name {
	case "upper":
		return positional(name, 0, func([]any) (any, error) { return strings.ToUpper(s), nil }), true
	case "lower":
		return positional(name, 0, func([]any) (any, error) { return strings.ToLower(s), nil }), true
	case "strip":
		return positional(name, 0, func([]any) (any, error) { return strings.TrimSpace(s), nil }), true
	case "startswith", "endswith":
		return positional(name, 1, func(a []any) (any, error) {
			p, ok := a[0].(string)
			if !ok {
				return nil, operators.Raise("TypeError", "%s first arg must be str", name)
			}
			if name == "startswith" {
				return strings.HasPrefix(s, p), nil
			}
			return strings.HasSuffix(s, p), nil
		}), true
	case "split":
		return optional(name, 0, 1, func(a []any) (any, error) {
			var parts []string
			if sep, ok := a[0].(string); ok {
				parts = strings.Split(s, sep)
			} else {
				parts = strings.Fields(s)
			}
			out := &operators.List{}
			for _, p := range parts {
				out.Items = append(out.Items, p)
			}
			return out, nil
		}), true
	case "join":
		return positional(name, 1, func(a []any) (any, error) {
			items, err := operators.Collect(a[0])
			if err != nil {
				return nil, err
			}
			parts := make([]string, len(items))
			for i, it := range items {
				str, ok := it.(string)
				if !ok {
					return nil, operators.Raise("TypeError", "sequence item %d: expected str instance, %s found", i, operators.TypeName(it))
				}
				parts[i] = str
			}
			return strings.Join(parts, s), nil
		}), true
	}
	return nil, false
}
