// Package templates builds syntax trees from small code skeletons. A skeleton
// is ordinary source whose placeholder identifiers are replaced by bound tree
// fragments, so generated code is always well formed.
package templates

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/parser"
	"github.com/l3aro/go-malt/pkg/qualname"
)

var (
	// ErrStringBinding is returned when a binding is a plain string. Source text
	// is never re-parsed; bind ast nodes instead.
	ErrStringBinding = errors.New("string bindings are not allowed")
	// ErrPlacement is returned when a fragment is bound where its kind is not
	// structurally valid.
	ErrPlacement = errors.New("invalid placement")
	// ErrBindingType is returned for binding values of unsupported types.
	ErrBindingType = errors.New("unsupported binding type")
)

type absent struct{}

// Absent marks an omitted optional value. It is substituted by the explicit
// marker ag__.Unset, keeping positional arity.
var Absent = absent{}

// Bindings maps placeholder identifiers to their replacements. Accepted values:
// ast.Expr, ast.Stmt, []ast.Stmt, []ast.Expr, qualname.QN, Absent, int, int64,
// float64 and bool.
type Bindings map[string]any

// UnsetMarker returns the node Absent is replaced with.
func UnsetMarker() ast.Expr {
	return ast.Dotted("ag__.Unset")
}

var parsed sync.Map // template source -> []ast.Stmt

func parse(template string) ([]ast.Stmt, error) {
	if v, ok := parsed.Load(template); ok {
		return ast.CopyStmts(v.([]ast.Stmt)), nil
	}
	stmts, err := parser.ParseStatements(dedent(template))
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	parsed.Store(template, stmts)
	return ast.CopyStmts(stmts), nil
}

// Replace instantiates a statement template.
func Replace(template string, bindings Bindings) ([]ast.Stmt, error) {
	if err := validate(bindings); err != nil {
		return nil, err
	}
	stmts, err := parse(template)
	if err != nil {
		return nil, err
	}
	r := &replacer{bindings: bindings, spliced: make(map[ast.Node]bool)}
	return r.rewriter().Block(stmts)
}

// ReplaceAsExpression instantiates a template that must consist of a single
// expression.
func ReplaceAsExpression(template string, bindings Bindings) (ast.Expr, error) {
	stmts, err := Replace(template, bindings)
	if err != nil {
		return nil, err
	}
	if len(stmts) != 1 {
		return nil, fmt.Errorf("%w: expression template produced %d statements", ErrPlacement, len(stmts))
	}
	es, ok := stmts[0].(*ast.ExprStmt)
	if !ok {
		return nil, fmt.Errorf("%w: expression template produced a %s statement", ErrPlacement, ast.KindOf(stmts[0]))
	}
	return es.Value, nil
}

func validate(bindings Bindings) error {
	for name, v := range bindings {
		switch v.(type) {
		case string:
			return fmt.Errorf("%w: %q", ErrStringBinding, name)
		case ast.Expr, ast.Stmt, []ast.Stmt, []ast.Expr, qualname.QN, absent, int, int64, float64, bool:
		default:
			return fmt.Errorf("%w: %q is %T", ErrBindingType, name, v)
		}
	}
	return nil
}

type replacer struct {
	bindings Bindings
	// spliced holds fragments inserted from bindings; they are not searched for
	// placeholders.
	spliced map[ast.Node]bool
}

func (r *replacer) rewriter() *ast.Rewriter {
	return &ast.Rewriter{Stmt: r.stmt, Expr: r.expr}
}

func (r *replacer) lookup(id string) (any, bool) {
	v, ok := r.bindings[id]
	return v, ok
}

func (r *replacer) stmt(rw *ast.Rewriter, s ast.Stmt) ([]ast.Stmt, error) {
	switch s := s.(type) {
	case *ast.ExprStmt:
		if n, ok := s.Value.(*ast.Name); ok {
			if v, ok := r.lookup(n.ID); ok {
				return r.statementFor(n.ID, v)
			}
		}
	case *ast.FunctionDef:
		name, err := r.identifier(s.Name)
		if err != nil {
			return nil, err
		}
		s.Name = name
		if err := r.arguments(s.Args); err != nil {
			return nil, err
		}
	case *ast.Global:
		names, err := r.identifiers(s.Names)
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			return nil, nil
		}
		s.Names = names
	case *ast.Nonlocal:
		names, err := r.identifiers(s.Names)
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			return nil, nil
		}
		s.Names = names
	}
	out, err := rw.StmtChildren(s)
	if err != nil {
		return nil, err
	}
	return []ast.Stmt{out}, nil
}

// statementFor converts a binding used in statement position.
func (r *replacer) statementFor(name string, v any) ([]ast.Stmt, error) {
	switch v := v.(type) {
	case []ast.Stmt:
		return ast.CopyStmts(v), nil
	case ast.Stmt:
		return []ast.Stmt{ast.CopyStmt(v)}, nil
	}
	return nil, fmt.Errorf("%w: %q is used as a statement but bound to %T", ErrPlacement, name, v)
}

func (r *replacer) expr(rw *ast.Rewriter, e ast.Expr) (ast.Expr, error) {
	if r.spliced[e] {
		return e, nil
	}
	switch e := e.(type) {
	case *ast.Name:
		v, ok := r.lookup(e.ID)
		if !ok {
			return e, nil
		}
		repl, err := r.expressionFor(e.ID, v)
		if err != nil {
			return nil, err
		}
		ast.SetCtx(repl, e.Ctx)
		return repl, nil
	case *ast.Tuple:
		elts, err := r.splice(e.Elts)
		if err != nil {
			return nil, err
		}
		e.Elts = elts
	case *ast.List:
		elts, err := r.splice(e.Elts)
		if err != nil {
			return nil, err
		}
		e.Elts = elts
	case *ast.Call:
		args, err := r.splice(e.Args)
		if err != nil {
			return nil, err
		}
		e.Args = args
	case *ast.Lambda:
		if err := r.arguments(e.Args); err != nil {
			return nil, err
		}
	}
	return rw.ExprChildren(e)
}

// expressionFor converts a binding used in expression position.
func (r *replacer) expressionFor(name string, v any) (ast.Expr, error) {
	switch v := v.(type) {
	case ast.Expr:
		return ast.CopyExpr(v), nil
	case qualname.QN:
		e := v.Expr()
		if e == nil {
			return nil, fmt.Errorf("%w: %q is bound to wildcard symbol %s", ErrPlacement, name, v)
		}
		return e, nil
	case absent:
		return UnsetMarker(), nil
	case int:
		return ast.Const(int64(v)), nil
	case int64, float64, bool:
		return ast.Const(v), nil
	case []ast.Expr:
		return nil, fmt.Errorf("%w: %q is a list of expressions and can only be spliced into a sequence", ErrPlacement, name)
	}
	return nil, fmt.Errorf("%w: %q is used as an expression but bound to %T", ErrPlacement, name, v)
}

// splice expands placeholders bound to expression lists inside a sequence.
func (r *replacer) splice(elts []ast.Expr) ([]ast.Expr, error) {
	var out []ast.Expr
	changed := false
	for _, el := range elts {
		if n, ok := el.(*ast.Name); ok {
			if v, ok := r.lookup(n.ID); ok {
				if list, ok := v.([]ast.Expr); ok {
					for _, item := range list {
						c := ast.CopyExpr(item)
						ast.SetCtx(c, n.Ctx)
						r.spliced[c] = true
						out = append(out, c)
					}
					changed = true
					continue
				}
			}
		}
		out = append(out, el)
	}
	if !changed {
		return elts, nil
	}
	if out == nil {
		out = []ast.Expr{}
	}
	return out, nil
}

// identifier replaces a placeholder used as a bare identifier (function name,
// parameter, declaration).
func (r *replacer) identifier(id string) (string, error) {
	v, ok := r.lookup(id)
	if !ok {
		return id, nil
	}
	switch v := v.(type) {
	case *ast.Name:
		return v.ID, nil
	case qualname.QN:
		if v.IsSimple() {
			return v.String(), nil
		}
	}
	return "", fmt.Errorf("%w: %q is used as an identifier but bound to %T", ErrPlacement, id, v)
}

func (r *replacer) identifiers(ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		v, ok := r.lookup(id)
		if list, isList := v.([]ast.Expr); ok && isList {
			for _, e := range list {
				n, ok := e.(*ast.Name)
				if !ok {
					return nil, fmt.Errorf("%w: %q holds a %s, want names", ErrPlacement, id, ast.KindOf(e))
				}
				out = append(out, n.ID)
			}
			continue
		}
		name, err := r.identifier(id)
		if err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}

func (r *replacer) arguments(args *ast.Arguments) error {
	if args == nil {
		return nil
	}
	for _, a := range args.Args {
		name, err := r.identifier(a.ID)
		if err != nil {
			return err
		}
		a.ID = name
	}
	return nil
}

// dedent strips the common leading whitespace of template lines.
func dedent(s string) string {
	lines := strings.Split(strings.Trim(s, "\n"), "\n")
	prefix := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if prefix < 0 || n < prefix {
			prefix = n
		}
	}
	if prefix <= 0 {
		return strings.Join(lines, "\n") + "\n"
	}
	for i, l := range lines {
		if len(l) >= prefix {
			lines[i] = l[prefix:]
		} else {
			lines[i] = strings.TrimLeft(l, " \t")
		}
	}
	return strings.Join(lines, "\n") + "\n"
}
