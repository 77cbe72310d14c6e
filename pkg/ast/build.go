package ast

import "strings"

// Ident returns a load-context name.
func Ident(id string) *Name {
	return &Name{ID: id, Ctx: Load}
}

// Const wraps a literal value.
func Const(v any) *Constant {
	return &Constant{Value: v}
}

// Dotted builds a load-context attribute chain from "a.b.c".
func Dotted(path string) Expr {
	parts := strings.Split(path, ".")
	var e Expr = Ident(parts[0])
	for _, p := range parts[1:] {
		e = &Attribute{Value: e, Attr: p, Ctx: Load}
	}
	return e
}

// CallOf builds a call with positional arguments.
func CallOf(fn Expr, args ...Expr) *Call {
	return &Call{Func: fn, Args: args}
}

// SetCtx sets the context of an assignment target. Tuple and list elements are
// updated recursively; the object of an attribute or subscript stays Load.
func SetCtx(e Expr, ctx Ctx) {
	switch e := e.(type) {
	case *Name:
		e.Ctx = ctx
	case *Attribute:
		e.Ctx = ctx
	case *Subscript:
		e.Ctx = ctx
	case *Tuple:
		e.Ctx = ctx
		for _, el := range e.Elts {
			SetCtx(el, ctx)
		}
	case *List:
		e.Ctx = ctx
		for _, el := range e.Elts {
			SetCtx(el, ctx)
		}
	}
}

// IsName reports whether e is a plain name with the given id.
func IsName(e Expr, id string) bool {
	n, ok := e.(*Name)
	return ok && n.ID == id
}

// FullName renders a dotted name ("a.b.c") for name/attribute chains, or "".
func FullName(e Expr) string {
	switch e := e.(type) {
	case *Name:
		return e.ID
	case *Attribute:
		if base := FullName(e.Value); base != "" {
			return base + "." + e.Attr
		}
	}
	return ""
}

// NamesIn collects every identifier referenced in the tree rooted at n,
// including function names and parameters.
func NamesIn(n Node) map[string]bool {
	names := make(map[string]bool)
	Inspect(n, func(c Node) bool {
		switch c := c.(type) {
		case *Name:
			names[c.ID] = true
		case *FunctionDef:
			names[c.Name] = true
		case *Global:
			for _, id := range c.Names {
				names[id] = true
			}
		case *Nonlocal:
			for _, id := range c.Names {
				names[id] = true
			}
		}
		return true
	})
	return names
}
