package qualname

import "github.com/l3aro/go-malt/pkg/ast"

// AnnoKey is the annotation under which Resolve stores a node's QN.
const AnnoKey ast.Key = "qn"

// Resolve annotates every name, attribute and subscript node under n whose
// base is itself a symbol, replacing earlier annotations. Subscripts with int
// or string literal keys become literal subscripts; any other index, slices
// included, becomes a wildcard.
func Resolve(n ast.Node) {
	ast.Inspect(n, func(c ast.Node) bool {
		ast.DelAnno(c, AnnoKey)
		return true
	})
	ast.Inspect(n, func(c ast.Node) bool {
		if e, ok := c.(ast.Expr); ok {
			resolve(e)
		}
		return true
	})
}

func resolve(e ast.Expr) (QN, bool) {
	if q, ok := Of(e); ok {
		return q, true
	}
	var q QN
	switch e := e.(type) {
	case *ast.Name:
		q = Name(e.ID)
	case *ast.Attribute:
		base, ok := resolve(e.Value)
		if !ok {
			return QN{}, false
		}
		q = Attr(base, e.Attr)
	case *ast.Subscript:
		base, ok := resolve(e.Value)
		if !ok {
			return QN{}, false
		}
		if key, ok := LiteralKey(e.Index); ok {
			q = Sub(base, key)
		} else {
			q = Any(base)
		}
	default:
		return QN{}, false
	}
	ast.SetAnno(e, AnnoKey, q)
	return q, true
}

// Of returns the QN Resolve attached to e.
func Of(e ast.Node) (QN, bool) {
	v, ok := ast.GetAnno(e, AnnoKey)
	if !ok {
		return QN{}, false
	}
	q, ok := v.(QN)
	return q, ok
}

// LiteralKey returns the value of a subscript index that can be part of a
// symbol: an int (possibly negated) or a string constant.
func LiteralKey(e ast.Expr) (any, bool) {
	switch e := e.(type) {
	case *ast.Constant:
		switch v := e.Value.(type) {
		case int64, string:
			return v, true
		}
	case *ast.UnaryOp:
		if c, ok := e.Operand.(*ast.Constant); ok && e.Op == "-" {
			if v, ok := c.Value.(int64); ok {
				return -v, true
			}
		}
	}
	return nil, false
}

// Order assigns each symbol under n the index of its first lexical
// appearance. Symbols appearing in composite form also register their
// parents, right after the composite.
func Order(n ast.Node) map[QN]int {
	order := make(map[QN]int)
	add := func(q QN) {
		if _, seen := order[q]; !seen {
			order[q] = len(order)
		}
	}
	ast.Inspect(n, func(c ast.Node) bool {
		switch c := c.(type) {
		case *ast.Name, *ast.Attribute, *ast.Subscript:
			if q, ok := Of(c); ok {
				add(q)
			}
		case *ast.FunctionDef:
			add(Name(c.Name))
		case *ast.Arguments:
			for _, a := range c.Args {
				add(Name(a.ID))
			}
		}
		return true
	})
	return order
}
