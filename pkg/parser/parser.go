// Package parser lowers tree-sitter Python syntax trees into the rewriter's AST.
package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/l3aro/go-malt/pkg/ast"
)

// ErrFunctionNotFound is returned when a named function is not defined at the
// top level of a module.
var ErrFunctionNotFound = errors.New("function not found")

// SyntaxError reports source that tree-sitter could not parse cleanly.
type SyntaxError struct {
	Pos  ast.Pos
	Near string
}

func (e *SyntaxError) Error() string {
	if e.Near == "" {
		return fmt.Sprintf("syntax error at %s", e.Pos)
	}
	return fmt.Sprintf("syntax error at %s near %q", e.Pos, e.Near)
}

// errUnsupportedParams marks parameter lists the AST cannot represent.
var errUnsupportedParams = errors.New("unsupported parameter list")

// ParseModule parses a whole source file.
func ParseModule(ctx context.Context, src []byte) (*ast.Module, error) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(python.GetLanguage())

	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing source: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, firstSyntaxError(root, src)
	}

	c := &converter{src: src}
	body, err := c.block(root)
	if err != nil {
		return nil, err
	}
	return &ast.Module{Meta: ast.Meta{At: ast.Pos{Line: 1, Col: 1}}, Body: body}, nil
}

// ParseFile parses the module stored at path.
func ParseFile(ctx context.Context, path string) (*ast.Module, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	mod, err := ParseModule(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mod, nil
}

// ParseFunction parses src and returns the top-level function called name.
func ParseFunction(ctx context.Context, src []byte, name string) (*ast.FunctionDef, error) {
	mod, err := ParseModule(ctx, src)
	if err != nil {
		return nil, err
	}
	for _, fn := range Functions(mod) {
		if fn.Name == name {
			return fn, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
}

// ParseStatements parses a snippet of statements.
func ParseStatements(src string) ([]ast.Stmt, error) {
	mod, err := ParseModule(context.Background(), []byte(src))
	if err != nil {
		return nil, err
	}
	return mod.Body, nil
}

// ParseExpression parses a single expression.
func ParseExpression(src string) (ast.Expr, error) {
	stmts, err := ParseStatements(src)
	if err != nil {
		return nil, err
	}
	if len(stmts) != 1 {
		return nil, fmt.Errorf("expected a single expression, got %d statements", len(stmts))
	}
	es, ok := stmts[0].(*ast.ExprStmt)
	if !ok {
		return nil, fmt.Errorf("expected an expression, got %s", ast.KindOf(stmts[0]))
	}
	return es.Value, nil
}

// Functions returns the top-level function definitions of a module.
func Functions(mod *ast.Module) []*ast.FunctionDef {
	var fns []*ast.FunctionDef
	for _, s := range mod.Body {
		if fn, ok := s.(*ast.FunctionDef); ok {
			fns = append(fns, fn)
		}
	}
	return fns
}

func firstSyntaxError(n *sitter.Node, src []byte) error {
	var found *sitter.Node
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if found != nil || n == nil {
			return
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			found = n
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(n)
	if found == nil {
		found = n
	}
	near := strings.TrimSpace(found.Content(src))
	if idx := strings.IndexByte(near, '\n'); idx >= 0 {
		near = near[:idx]
	}
	return &SyntaxError{Pos: position(found), Near: near}
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func position(n *sitter.Node) ast.Pos {
	p := n.StartPoint()
	return ast.Pos{Line: int(p.Row) + 1, Col: int(p.Column) + 1}
}

// converter turns tree-sitter nodes into AST nodes.
type converter struct {
	src []byte
}

func (c *converter) text(n *sitter.Node) string {
	return n.Content(c.src)
}

func (c *converter) meta(n *sitter.Node) ast.Meta {
	return ast.Meta{At: position(n)}
}

// namedChildren returns the named children of n, skipping comments.
func namedChildren(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

func (c *converter) block(n *sitter.Node) ([]ast.Stmt, error) {
	var out []ast.Stmt
	if n == nil {
		return out, nil
	}
	for _, child := range namedChildren(n) {
		stmts, err := c.stmt(child)
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	return out, nil
}

func (c *converter) unsupported(n *sitter.Node) []ast.Stmt {
	return []ast.Stmt{&ast.Unsupported{Meta: c.meta(n), Kind: n.Type(), Text: c.text(n)}}
}

func isAsync(n *sitter.Node) bool {
	first := n.Child(0)
	return first != nil && first.Type() == "async"
}

func (c *converter) stmt(n *sitter.Node) ([]ast.Stmt, error) {
	m := c.meta(n)
	switch n.Type() {
	case "expression_statement":
		return c.exprStatement(n)

	case "return_statement":
		ret := &ast.Return{Meta: m}
		if kids := namedChildren(n); len(kids) > 0 {
			ret.Value = c.expr(kids[0])
		}
		return []ast.Stmt{ret}, nil

	case "pass_statement":
		return []ast.Stmt{&ast.Pass{Meta: m}}, nil

	case "break_statement":
		return []ast.Stmt{&ast.Break{Meta: m}}, nil

	case "continue_statement":
		return []ast.Stmt{&ast.Continue{Meta: m}}, nil

	case "if_statement":
		return c.ifStatement(n)

	case "while_statement":
		body, err := c.block(n.ChildByFieldName("body"))
		if err != nil {
			return nil, err
		}
		orelse, err := c.elseClause(n.ChildByFieldName("alternative"))
		if err != nil {
			return nil, err
		}
		return []ast.Stmt{&ast.While{
			Meta:   m,
			Test:   c.expr(n.ChildByFieldName("condition")),
			Body:   body,
			Orelse: orelse,
		}}, nil

	case "for_statement":
		if isAsync(n) {
			return c.unsupported(n), nil
		}
		body, err := c.block(n.ChildByFieldName("body"))
		if err != nil {
			return nil, err
		}
		orelse, err := c.elseClause(n.ChildByFieldName("alternative"))
		if err != nil {
			return nil, err
		}
		target := c.expr(n.ChildByFieldName("left"))
		ast.SetCtx(target, ast.Store)
		return []ast.Stmt{&ast.For{
			Meta:   m,
			Target: target,
			Iter:   c.expr(n.ChildByFieldName("right")),
			Body:   body,
			Orelse: orelse,
		}}, nil

	case "function_definition":
		if isAsync(n) {
			return c.unsupported(n), nil
		}
		args, err := c.parameters(n.ChildByFieldName("parameters"))
		if errors.Is(err, errUnsupportedParams) {
			return c.unsupported(n), nil
		}
		if err != nil {
			return nil, err
		}
		body, err := c.block(n.ChildByFieldName("body"))
		if err != nil {
			return nil, err
		}
		return []ast.Stmt{&ast.FunctionDef{
			Meta: m,
			Name: c.text(n.ChildByFieldName("name")),
			Args: args,
			Body: body,
		}}, nil

	case "global_statement", "nonlocal_statement":
		var names []string
		for _, id := range namedChildren(n) {
			names = append(names, c.text(id))
		}
		if n.Type() == "global_statement" {
			return []ast.Stmt{&ast.Global{Meta: m, Names: names}}, nil
		}
		return []ast.Stmt{&ast.Nonlocal{Meta: m, Names: names}}, nil

	case "raise_statement":
		kids := namedChildren(n)
		if len(kids) > 1 {
			return c.unsupported(n), nil
		}
		r := &ast.Raise{Meta: m}
		if len(kids) == 1 {
			r.Exc = c.expr(kids[0])
		}
		return []ast.Stmt{r}, nil

	case "assert_statement":
		kids := namedChildren(n)
		a := &ast.Assert{Meta: m, Test: c.expr(kids[0])}
		if len(kids) > 1 {
			a.Msg = c.expr(kids[1])
		}
		return []ast.Stmt{a}, nil
	}

	return c.unsupported(n), nil
}

func (c *converter) exprStatement(n *sitter.Node) ([]ast.Stmt, error) {
	m := c.meta(n)
	kids := namedChildren(n)
	if len(kids) == 0 {
		return nil, nil
	}
	if len(kids) > 1 {
		t := &ast.Tuple{Meta: m}
		for _, k := range kids {
			t.Elts = append(t.Elts, c.expr(k))
		}
		return []ast.Stmt{&ast.ExprStmt{Meta: m, Value: t}}, nil
	}

	child := kids[0]
	switch child.Type() {
	case "assignment":
		return c.assignment(child)
	case "augmented_assignment":
		target := c.expr(child.ChildByFieldName("left"))
		ast.SetCtx(target, ast.Store)
		op := strings.TrimSuffix(c.text(child.ChildByFieldName("operator")), "=")
		return []ast.Stmt{&ast.AugAssign{
			Meta:   m,
			Target: target,
			Op:     op,
			Value:  c.expr(child.ChildByFieldName("right")),
		}}, nil
	}
	return []ast.Stmt{&ast.ExprStmt{Meta: m, Value: c.expr(child)}}, nil
}

func (c *converter) assignment(n *sitter.Node) ([]ast.Stmt, error) {
	assign := &ast.Assign{Meta: c.meta(n)}
	cur := n
	for {
		target := c.expr(cur.ChildByFieldName("left"))
		ast.SetCtx(target, ast.Store)
		assign.Targets = append(assign.Targets, target)

		right := cur.ChildByFieldName("right")
		if right == nil {
			// Bare annotation ("x: int") binds nothing.
			return []ast.Stmt{&ast.Pass{Meta: c.meta(n)}}, nil
		}
		if right.Type() != "assignment" {
			assign.Value = c.expr(right)
			break
		}
		cur = right
	}
	return []ast.Stmt{assign}, nil
}

func (c *converter) ifStatement(n *sitter.Node) ([]ast.Stmt, error) {
	body, err := c.block(n.ChildByFieldName("consequence"))
	if err != nil {
		return nil, err
	}

	var clauses []*sitter.Node
	for _, child := range namedChildren(n) {
		if child.Type() == "elif_clause" || child.Type() == "else_clause" {
			clauses = append(clauses, child)
		}
	}

	var orelse []ast.Stmt
	for i := len(clauses) - 1; i >= 0; i-- {
		clause := clauses[i]
		if clause.Type() == "else_clause" {
			if orelse, err = c.block(clause.ChildByFieldName("body")); err != nil {
				return nil, err
			}
			continue
		}
		elifBody, err := c.block(clause.ChildByFieldName("consequence"))
		if err != nil {
			return nil, err
		}
		orelse = []ast.Stmt{&ast.If{
			Meta:   c.meta(clause),
			Test:   c.expr(clause.ChildByFieldName("condition")),
			Body:   elifBody,
			Orelse: orelse,
		}}
	}

	return []ast.Stmt{&ast.If{
		Meta:   c.meta(n),
		Test:   c.expr(n.ChildByFieldName("condition")),
		Body:   body,
		Orelse: orelse,
	}}, nil
}

func (c *converter) elseClause(n *sitter.Node) ([]ast.Stmt, error) {
	if n == nil {
		return nil, nil
	}
	return c.block(n.ChildByFieldName("body"))
}

func (c *converter) param(n *sitter.Node) *ast.Name {
	return &ast.Name{Meta: c.meta(n), ID: c.text(n), Ctx: ast.Param}
}

func (c *converter) parameters(n *sitter.Node) (*ast.Arguments, error) {
	args := &ast.Arguments{}
	if n == nil {
		return args, nil
	}
	args.Meta = c.meta(n)

	for _, p := range namedChildren(n) {
		if args.Vararg != nil || args.Kwarg != nil {
			// Keyword-only parameters.
			if p.Type() != "dictionary_splat_pattern" {
				return nil, errUnsupportedParams
			}
		}
		switch p.Type() {
		case "identifier":
			args.Args = append(args.Args, c.param(p))
		case "default_parameter", "typed_default_parameter":
			args.Args = append(args.Args, c.param(p.ChildByFieldName("name")))
			args.Defaults = append(args.Defaults, c.expr(p.ChildByFieldName("value")))
		case "typed_parameter":
			inner := namedChildren(p)
			if len(inner) == 0 {
				return nil, errUnsupportedParams
			}
			switch inner[0].Type() {
			case "identifier":
				args.Args = append(args.Args, c.param(inner[0]))
			case "list_splat_pattern":
				args.Vararg = c.splatName(inner[0])
			case "dictionary_splat_pattern":
				args.Kwarg = c.splatName(inner[0])
			default:
				return nil, errUnsupportedParams
			}
		case "list_splat_pattern":
			args.Vararg = c.splatName(p)
		case "dictionary_splat_pattern":
			args.Kwarg = c.splatName(p)
		default:
			return nil, errUnsupportedParams
		}
	}
	if args.Vararg != nil && args.Vararg.ID == "" || args.Kwarg != nil && args.Kwarg.ID == "" {
		return nil, errUnsupportedParams
	}
	return args, nil
}

func (c *converter) splatName(n *sitter.Node) *ast.Name {
	kids := namedChildren(n)
	if len(kids) == 0 {
		return &ast.Name{Meta: c.meta(n), Ctx: ast.Param}
	}
	return c.param(kids[0])
}

func (c *converter) unsupportedExpr(n *sitter.Node) ast.Expr {
	return &ast.UnsupportedExpr{Meta: c.meta(n), Kind: n.Type(), Text: c.text(n)}
}

func (c *converter) exprs(nodes []*sitter.Node) []ast.Expr {
	out := make([]ast.Expr, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, c.expr(n))
	}
	return out
}

func (c *converter) expr(n *sitter.Node) ast.Expr {
	if n == nil {
		return nil
	}
	m := c.meta(n)
	switch n.Type() {
	case "identifier", "keyword_identifier":
		return &ast.Name{Meta: m, ID: c.text(n), Ctx: ast.Load}

	case "true":
		return &ast.Constant{Meta: m, Value: true}
	case "false":
		return &ast.Constant{Meta: m, Value: false}
	case "none":
		return &ast.Constant{Meta: m, Value: nil}

	case "integer":
		text := strings.ReplaceAll(c.text(n), "_", "")
		v, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return c.unsupportedExpr(n)
		}
		return &ast.Constant{Meta: m, Value: v}

	case "float":
		v, err := strconv.ParseFloat(strings.ReplaceAll(c.text(n), "_", ""), 64)
		if err != nil {
			return c.unsupportedExpr(n)
		}
		return &ast.Constant{Meta: m, Value: v}

	case "string":
		s, ok := decodeString(c.text(n))
		if !ok {
			return c.unsupportedExpr(n)
		}
		return &ast.Constant{Meta: m, Value: s}

	case "concatenated_string":
		var sb strings.Builder
		for _, part := range namedChildren(n) {
			s, ok := decodeString(c.text(part))
			if !ok {
				return c.unsupportedExpr(n)
			}
			sb.WriteString(s)
		}
		return &ast.Constant{Meta: m, Value: sb.String()}

	case "attribute":
		return &ast.Attribute{
			Meta:  m,
			Value: c.expr(n.ChildByFieldName("object")),
			Attr:  c.text(n.ChildByFieldName("attribute")),
			Ctx:   ast.Load,
		}

	case "subscript":
		kids := namedChildren(n)
		value := n.ChildByFieldName("value")
		var keys []ast.Expr
		for _, k := range kids {
			if sameNode(k, value) {
				continue
			}
			keys = append(keys, c.expr(k))
		}
		var index ast.Expr
		if len(keys) == 1 {
			index = keys[0]
		} else {
			index = &ast.Tuple{Meta: m, Elts: keys}
		}
		return &ast.Subscript{Meta: m, Value: c.expr(value), Index: index, Ctx: ast.Load}

	case "slice":
		parts := make([]ast.Expr, 3)
		slot := 0
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child == nil || child.Type() == "comment" {
				continue
			}
			if !child.IsNamed() {
				if child.Type() == ":" {
					slot++
				}
				continue
			}
			if slot < 3 {
				parts[slot] = c.expr(child)
			}
		}
		return &ast.Slice{Meta: m, Lower: parts[0], Upper: parts[1], Step: parts[2]}

	case "call":
		return c.call(n)

	case "binary_operator":
		return &ast.BinOp{
			Meta:  m,
			Left:  c.expr(n.ChildByFieldName("left")),
			Op:    c.text(n.ChildByFieldName("operator")),
			Right: c.expr(n.ChildByFieldName("right")),
		}

	case "unary_operator":
		return &ast.UnaryOp{
			Meta:    m,
			Op:      c.text(n.ChildByFieldName("operator")),
			Operand: c.expr(n.ChildByFieldName("argument")),
		}

	case "not_operator":
		return &ast.UnaryOp{Meta: m, Op: "not", Operand: c.expr(n.ChildByFieldName("argument"))}

	case "boolean_operator":
		op := c.text(n.ChildByFieldName("operator"))
		left := c.expr(n.ChildByFieldName("left"))
		right := c.expr(n.ChildByFieldName("right"))
		values := []ast.Expr{left}
		if lb, ok := left.(*ast.BoolOp); ok && lb.Op == op {
			values = append([]ast.Expr(nil), lb.Values...)
		}
		return &ast.BoolOp{Meta: m, Op: op, Values: append(values, right)}

	case "comparison_operator":
		return c.comparison(n)

	case "conditional_expression":
		kids := namedChildren(n)
		if len(kids) != 3 {
			return c.unsupportedExpr(n)
		}
		return &ast.IfExp{Meta: m, Body: c.expr(kids[0]), Test: c.expr(kids[1]), Orelse: c.expr(kids[2])}

	case "lambda":
		args, err := c.parameters(n.ChildByFieldName("parameters"))
		if err != nil {
			return c.unsupportedExpr(n)
		}
		return &ast.Lambda{Meta: m, Args: args, Body: c.expr(n.ChildByFieldName("body"))}

	case "parenthesized_expression":
		kids := namedChildren(n)
		if len(kids) != 1 {
			return c.unsupportedExpr(n)
		}
		return c.expr(kids[0])

	case "list", "list_pattern":
		return &ast.List{Meta: m, Elts: c.exprs(namedChildren(n)), Ctx: ast.Load}

	case "tuple", "expression_list", "pattern_list", "tuple_pattern":
		return &ast.Tuple{Meta: m, Elts: c.exprs(namedChildren(n)), Ctx: ast.Load}

	case "dictionary":
		d := &ast.Dict{Meta: m}
		for _, pair := range namedChildren(n) {
			if pair.Type() != "pair" {
				return c.unsupportedExpr(n)
			}
			d.Keys = append(d.Keys, c.expr(pair.ChildByFieldName("key")))
			d.Values = append(d.Values, c.expr(pair.ChildByFieldName("value")))
		}
		return d
	}

	return c.unsupportedExpr(n)
}

func (c *converter) call(n *sitter.Node) ast.Expr {
	call := &ast.Call{Meta: c.meta(n), Func: c.expr(n.ChildByFieldName("function"))}
	argList := n.ChildByFieldName("arguments")
	if argList == nil {
		return call
	}
	if argList.Type() != "argument_list" {
		return c.unsupportedExpr(n)
	}
	for _, a := range namedChildren(argList) {
		switch a.Type() {
		case "keyword_argument":
			call.Keywords = append(call.Keywords, &ast.Keyword{
				Meta:  c.meta(a),
				Arg:   c.text(a.ChildByFieldName("name")),
				Value: c.expr(a.ChildByFieldName("value")),
			})
		case "list_splat", "dictionary_splat":
			return c.unsupportedExpr(n)
		default:
			call.Args = append(call.Args, c.expr(a))
		}
	}
	return call
}

func (c *converter) comparison(n *sitter.Node) ast.Expr {
	cmp := &ast.Compare{Meta: c.meta(n)}
	var pending []string
	first := true
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		if !child.IsNamed() {
			pending = append(pending, c.text(child))
			continue
		}
		if first {
			cmp.Left = c.expr(child)
			first = false
			continue
		}
		cmp.Ops = append(cmp.Ops, strings.Join(pending, " "))
		cmp.Comparators = append(cmp.Comparators, c.expr(child))
		pending = nil
	}
	return cmp
}
