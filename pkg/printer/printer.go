// Package printer renders AST nodes back to Python source.
package printer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/l3aro/go-malt/pkg/ast"
)

const indentUnit = "    "

// Operator precedence, lowest to highest.
const (
	precTuple = iota
	precLambda
	precIfExp
	precOr
	precAnd
	precNot
	precCompare
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precArith
	precTerm
	precUnary
	precPower
	precAwait
	precPrimary
	precAtom
)

var binaryPrec = map[string]int{
	"|":  precBitOr,
	"^":  precBitXor,
	"&":  precBitAnd,
	"<<": precShift,
	">>": precShift,
	"+":  precArith,
	"-":  precArith,
	"*":  precTerm,
	"/":  precTerm,
	"//": precTerm,
	"%":  precTerm,
	"@":  precTerm,
	"**": precPower,
}

// Source renders a node. Statement lists are rendered with Stmts.
func Source(n ast.Node) string {
	p := &printer{}
	switch n := n.(type) {
	case *ast.Module:
		p.stmts(n.Body, 0)
	case ast.Stmt:
		p.stmt(n, 0)
	case ast.Expr:
		return Expr(n)
	default:
		return fmt.Sprintf("<%s>", ast.KindOf(n))
	}
	return p.sb.String()
}

// Stmts renders a statement list at the top indentation level.
func Stmts(stmts []ast.Stmt) string {
	p := &printer{}
	p.stmts(stmts, 0)
	return p.sb.String()
}

// Expr renders a single expression.
func Expr(e ast.Expr) string {
	return expr(e, precTuple)
}

type printer struct {
	sb strings.Builder
}

func (p *printer) line(depth int, format string, args ...any) {
	p.sb.WriteString(strings.Repeat(indentUnit, depth))
	fmt.Fprintf(&p.sb, format, args...)
	p.sb.WriteByte('\n')
}

func (p *printer) stmts(stmts []ast.Stmt, depth int) {
	if len(stmts) == 0 {
		p.line(depth, "pass")
		return
	}
	for _, s := range stmts {
		p.stmt(s, depth)
	}
}

func (p *printer) stmt(s ast.Stmt, depth int) {
	switch s := s.(type) {
	case *ast.FunctionDef:
		p.line(depth, "def %s(%s):", s.Name, arguments(s.Args))
		p.stmts(s.Body, depth+1)
	case *ast.Return:
		if s.Value == nil {
			p.line(depth, "return")
		} else {
			p.line(depth, "return %s", Expr(s.Value))
		}
	case *ast.Assign:
		parts := make([]string, 0, len(s.Targets)+1)
		for _, t := range s.Targets {
			parts = append(parts, Expr(t))
		}
		parts = append(parts, Expr(s.Value))
		p.line(depth, "%s", strings.Join(parts, " = "))
	case *ast.AugAssign:
		p.line(depth, "%s %s= %s", Expr(s.Target), s.Op, Expr(s.Value))
	case *ast.ExprStmt:
		p.line(depth, "%s", Expr(s.Value))
	case *ast.If:
		p.ifChain(s, depth, "if")
	case *ast.While:
		p.line(depth, "while %s:", Expr(s.Test))
		p.stmts(s.Body, depth+1)
		if len(s.Orelse) > 0 {
			p.line(depth, "else:")
			p.stmts(s.Orelse, depth+1)
		}
	case *ast.For:
		p.line(depth, "for %s in %s:", Expr(s.Target), Expr(s.Iter))
		p.stmts(s.Body, depth+1)
		if len(s.Orelse) > 0 {
			p.line(depth, "else:")
			p.stmts(s.Orelse, depth+1)
		}
	case *ast.Break:
		p.line(depth, "break")
	case *ast.Continue:
		p.line(depth, "continue")
	case *ast.Pass:
		p.line(depth, "pass")
	case *ast.Global:
		p.line(depth, "global %s", strings.Join(s.Names, ", "))
	case *ast.Nonlocal:
		p.line(depth, "nonlocal %s", strings.Join(s.Names, ", "))
	case *ast.Raise:
		if s.Exc == nil {
			p.line(depth, "raise")
		} else {
			p.line(depth, "raise %s", Expr(s.Exc))
		}
	case *ast.Assert:
		if s.Msg == nil {
			p.line(depth, "assert %s", Expr(s.Test))
		} else {
			p.line(depth, "assert %s, %s", Expr(s.Test), Expr(s.Msg))
		}
	case *ast.Unsupported:
		p.line(depth, "%s", s.Text)
	default:
		p.line(depth, "<%s>", ast.KindOf(s))
	}
}

func (p *printer) ifChain(s *ast.If, depth int, keyword string) {
	p.line(depth, "%s %s:", keyword, Expr(s.Test))
	p.stmts(s.Body, depth+1)
	if len(s.Orelse) == 0 {
		return
	}
	if elif, ok := s.Orelse[0].(*ast.If); ok && len(s.Orelse) == 1 {
		p.ifChain(elif, depth, "elif")
		return
	}
	p.line(depth, "else:")
	p.stmts(s.Orelse, depth+1)
}

func arguments(a *ast.Arguments) string {
	if a == nil {
		return ""
	}
	var parts []string
	firstDefault := len(a.Args) - len(a.Defaults)
	for i, arg := range a.Args {
		if i >= firstDefault {
			parts = append(parts, arg.ID+"="+expr(a.Defaults[i-firstDefault], precLambda))
		} else {
			parts = append(parts, arg.ID)
		}
	}
	if a.Vararg != nil {
		parts = append(parts, "*"+a.Vararg.ID)
	}
	if a.Kwarg != nil {
		parts = append(parts, "**"+a.Kwarg.ID)
	}
	return strings.Join(parts, ", ")
}

func exprList(es []ast.Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = expr(e, precLambda)
	}
	return strings.Join(parts, ", ")
}

func wrap(s string, own, required int) string {
	if own < required {
		return "(" + s + ")"
	}
	return s
}

func expr(e ast.Expr, required int) string {
	switch e := e.(type) {
	case nil:
		return ""
	case *ast.Name:
		return e.ID
	case *ast.Constant:
		return Constant(e.Value)
	case *ast.Attribute:
		return expr(e.Value, precPrimary) + "." + e.Attr
	case *ast.Subscript:
		return expr(e.Value, precPrimary) + "[" + index(e.Index) + "]"
	case *ast.Slice:
		return slice(e)
	case *ast.Call:
		args := make([]string, 0, len(e.Args)+len(e.Keywords))
		for _, a := range e.Args {
			args = append(args, expr(a, precLambda))
		}
		for _, k := range e.Keywords {
			args = append(args, k.Arg+"="+expr(k.Value, precLambda))
		}
		return expr(e.Func, precPrimary) + "(" + strings.Join(args, ", ") + ")"
	case *ast.BinOp:
		prec, ok := binaryPrec[e.Op]
		if !ok {
			prec = precTerm
		}
		left, right := prec, prec+1
		if e.Op == "**" {
			left, right = precAwait, precUnary
		}
		s := expr(e.Left, left) + " " + e.Op + " " + expr(e.Right, right)
		return wrap(s, prec, required)
	case *ast.UnaryOp:
		if e.Op == "not" {
			return wrap("not "+expr(e.Operand, precNot), precNot, required)
		}
		return wrap(e.Op+expr(e.Operand, precUnary), precUnary, required)
	case *ast.BoolOp:
		prec := precOr
		if e.Op == "and" {
			prec = precAnd
		}
		parts := make([]string, len(e.Values))
		for i, v := range e.Values {
			parts[i] = expr(v, prec+1)
		}
		return wrap(strings.Join(parts, " "+e.Op+" "), prec, required)
	case *ast.Compare:
		var sb strings.Builder
		sb.WriteString(expr(e.Left, precBitOr))
		for i, op := range e.Ops {
			sb.WriteString(" " + op + " ")
			sb.WriteString(expr(e.Comparators[i], precBitOr))
		}
		return wrap(sb.String(), precCompare, required)
	case *ast.IfExp:
		s := expr(e.Body, precOr) + " if " + expr(e.Test, precOr) + " else " + expr(e.Orelse, precIfExp)
		return wrap(s, precIfExp, required)
	case *ast.Lambda:
		args := arguments(e.Args)
		head := "lambda"
		if args != "" {
			head += " " + args
		}
		return wrap(head+": "+expr(e.Body, precLambda), precLambda, required)
	case *ast.List:
		return "[" + exprList(e.Elts) + "]"
	case *ast.Tuple:
		if len(e.Elts) == 1 {
			return "(" + expr(e.Elts[0], precLambda) + ",)"
		}
		return "(" + exprList(e.Elts) + ")"
	case *ast.Dict:
		parts := make([]string, len(e.Keys))
		for i := range e.Keys {
			parts[i] = expr(e.Keys[i], precLambda) + ": " + expr(e.Values[i], precLambda)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *ast.UnsupportedExpr:
		return e.Text
	}
	return fmt.Sprintf("<%s>", ast.KindOf(e))
}

func index(e ast.Expr) string {
	if t, ok := e.(*ast.Tuple); ok && len(t.Elts) > 1 {
		parts := make([]string, len(t.Elts))
		for i, el := range t.Elts {
			parts[i] = index(el)
		}
		return strings.Join(parts, ", ")
	}
	return expr(e, precTuple)
}

func slice(s *ast.Slice) string {
	out := expr(s.Lower, precLambda) + ":" + expr(s.Upper, precLambda)
	if s.Step != nil {
		out += ":" + expr(s.Step, precLambda)
	}
	return out
}

// Constant renders a literal the way Python's repr does.
func Constant(v any) string {
	switch v := v.(type) {
	case nil:
		return "None"
	case bool:
		if v {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return Float(v)
	case string:
		return Quote(v)
	}
	return fmt.Sprintf("%v", v)
}

// Float renders a float the way Python's repr does.
func Float(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	if f != 0 {
		if exp := math.Floor(math.Log10(math.Abs(f))); exp < -4 || exp >= 16 {
			return strconv.FormatFloat(f, 'e', -1, 64)
		}
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Quote renders a string literal, preferring single quotes as Python does.
func Quote(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}
	var sb strings.Builder
	sb.WriteByte(q)
	for _, r := range s {
		switch {
		case r == rune(q) || r == '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&sb, `\x%02x`, r)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte(q)
	return sb.String()
}
