package interp

import (
	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/operators"
)

// scopeInfo is the static binding structure of one function or lambda body.
type scopeInfo struct {
	locals    map[string]bool
	globals   map[string]bool
	nonlocals map[string]bool
}

func newScopeInfo() *scopeInfo {
	return &scopeInfo{
		locals:    make(map[string]bool),
		globals:   make(map[string]bool),
		nonlocals: make(map[string]bool),
	}
}

// scopeOf computes (and memoizes) the bindings of a FunctionDef or Lambda.
// Nested functions and lambdas are not entered; their names are bound in the
// scope that defines them.
func (ip *Interpreter) scopeOf(n ast.Node) (*scopeInfo, error) {
	if s, ok := ip.scopes[n]; ok {
		return s, nil
	}
	s := newScopeInfo()
	var args *ast.Arguments
	var body []ast.Stmt
	switch n := n.(type) {
	case *ast.FunctionDef:
		args, body = n.Args, n.Body
	case *ast.Lambda:
		args = n.Args
	}
	if args != nil {
		for _, a := range args.Args {
			s.locals[a.ID] = true
		}
		if args.Vararg != nil {
			s.locals[args.Vararg.ID] = true
		}
		if args.Kwarg != nil {
			s.locals[args.Kwarg.ID] = true
		}
	}
	// Declarations apply to the whole body regardless of position.
	declared := func(name string) bool { return s.globals[name] || s.nonlocals[name] }
	var decl func([]ast.Stmt) error
	decl = func(stmts []ast.Stmt) error {
		for _, st := range stmts {
			switch st := st.(type) {
			case *ast.Global:
				for _, id := range st.Names {
					if isParam(args, id) {
						return operators.Raise("SyntaxError", "name '%s' is parameter and global", id)
					}
					s.globals[id] = true
				}
			case *ast.Nonlocal:
				for _, id := range st.Names {
					if isParam(args, id) {
						return operators.Raise("SyntaxError", "name '%s' is parameter and nonlocal", id)
					}
					s.nonlocals[id] = true
				}
			case *ast.If:
				if err := decl(st.Body); err != nil {
					return err
				}
				if err := decl(st.Orelse); err != nil {
					return err
				}
			case *ast.While:
				if err := decl(st.Body); err != nil {
					return err
				}
				if err := decl(st.Orelse); err != nil {
					return err
				}
			case *ast.For:
				if err := decl(st.Body); err != nil {
					return err
				}
				if err := decl(st.Orelse); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := decl(body); err != nil {
		return nil, err
	}
	bind := func(id string) {
		if !declared(id) {
			s.locals[id] = true
		}
	}
	var target func(ast.Expr)
	target = func(e ast.Expr) {
		switch e := e.(type) {
		case *ast.Name:
			bind(e.ID)
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
	var walk func([]ast.Stmt)
	walk = func(stmts []ast.Stmt) {
		for _, st := range stmts {
			switch st := st.(type) {
			case *ast.Assign:
				for _, t := range st.Targets {
					target(t)
				}
			case *ast.AugAssign:
				target(st.Target)
			case *ast.FunctionDef:
				bind(st.Name)
			case *ast.For:
				target(st.Target)
				walk(st.Body)
				walk(st.Orelse)
			case *ast.If:
				walk(st.Body)
				walk(st.Orelse)
			case *ast.While:
				walk(st.Body)
				walk(st.Orelse)
			}
		}
	}
	walk(body)
	for id := range s.globals {
		delete(s.locals, id)
	}
	for id := range s.nonlocals {
		delete(s.locals, id)
	}
	ip.scopes[n] = s
	return s, nil
}

func isParam(args *ast.Arguments, id string) bool {
	if args == nil {
		return false
	}
	for _, a := range args.Args {
		if a.ID == id {
			return true
		}
	}
	return (args.Vararg != nil && args.Vararg.ID == id) || (args.Kwarg != nil && args.Kwarg.ID == id)
}

// checkNonlocals verifies that every nonlocal name of info is bound by an
// enclosing function.
func checkNonlocals(parent *env, info *scopeInfo) error {
	for id := range info.nonlocals {
		found := false
		for p := parent; p != nil; p = p.parent {
			if p.info.locals[id] {
				found = true
				break
			}
		}
		if !found {
			return operators.Raise("SyntaxError", "no binding for nonlocal '%s' found", id)
		}
	}
	return nil
}
