// Package ast defines the syntax tree the rewriter operates on.
//
// The tree models the subset of Python the converters understand. Nodes are plain
// pointer structs; every node carries a position and an annotation map keyed by
// pass name (see anno.go). Analyses annotate nodes in place, converters build new
// nodes, and annotations are never trusted across a rewrite.
package ast

import "fmt"

// Pos is a 1-based source position.
type Pos struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Ctx is the expression context of a name-like node.
type Ctx int

const (
	Load Ctx = iota
	Store
	Del
	Param
)

func (c Ctx) String() string {
	switch c {
	case Load:
		return "load"
	case Store:
		return "store"
	case Del:
		return "del"
	case Param:
		return "param"
	default:
		return "unknown"
	}
}

// Meta holds data common to all nodes.
type Meta struct {
	At   Pos
	anno map[Key]any
}

// Pos returns the node position.
func (m *Meta) Pos() Pos { return m.At }

func (m *Meta) meta() *Meta { return m }

// Node is any syntax tree node.
type Node interface {
	Pos() Pos
	meta() *Meta
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Module is a parsed source file.
type Module struct {
	Meta
	Body []Stmt
}

// Arguments is a function or lambda parameter list.
type Arguments struct {
	Meta
	Args     []*Name
	Defaults []Expr // aligned with the tail of Args
	Vararg   *Name
	Kwarg    *Name
}

// Keyword is a keyword argument in a call.
type Keyword struct {
	Meta
	Arg   string
	Value Expr
}

// Statements.
type (
	FunctionDef struct {
		Meta
		Name string
		Args *Arguments
		Body []Stmt
	}

	Return struct {
		Meta
		Value Expr // nil for a bare return
	}

	// Assign has more than one target only for chained assignments (a = b = v).
	Assign struct {
		Meta
		Targets []Expr
		Value   Expr
	}

	AugAssign struct {
		Meta
		Target Expr
		Op     string
		Value  Expr
	}

	ExprStmt struct {
		Meta
		Value Expr
	}

	If struct {
		Meta
		Test   Expr
		Body   []Stmt
		Orelse []Stmt
	}

	While struct {
		Meta
		Test   Expr
		Body   []Stmt
		Orelse []Stmt
	}

	// For carries an optional ExtraTest, a condition checked before the first and
	// after every iteration. It has no surface syntax; lowering passes set it.
	For struct {
		Meta
		Target    Expr
		Iter      Expr
		Body      []Stmt
		Orelse    []Stmt
		ExtraTest Expr
	}

	Break struct{ Meta }

	Continue struct{ Meta }

	Pass struct{ Meta }

	Global struct {
		Meta
		Names []string
	}

	Nonlocal struct {
		Meta
		Names []string
	}

	Raise struct {
		Meta
		Exc Expr
	}

	Assert struct {
		Meta
		Test Expr
		Msg  Expr
	}

	// Unsupported stands in for a statement the rewriter cannot model.
	Unsupported struct {
		Meta
		Kind string
		Text string
	}
)

// Expressions.
type (
	Name struct {
		Meta
		ID  string
		Ctx Ctx
	}

	// Constant holds nil (None), bool, int64, float64 or string.
	Constant struct {
		Meta
		Value any
	}

	Attribute struct {
		Meta
		Value Expr
		Attr  string
		Ctx   Ctx
	}

	Subscript struct {
		Meta
		Value Expr
		Index Expr
		Ctx   Ctx
	}

	// Slice is only valid as a Subscript index. Absent parts are nil.
	Slice struct {
		Meta
		Lower Expr
		Upper Expr
		Step  Expr
	}

	Call struct {
		Meta
		Func     Expr
		Args     []Expr
		Keywords []*Keyword
	}

	BinOp struct {
		Meta
		Left  Expr
		Op    string
		Right Expr
	}

	// UnaryOp covers -, +, ~ and not.
	UnaryOp struct {
		Meta
		Op      string
		Operand Expr
	}

	BoolOp struct {
		Meta
		Op     string // "and" or "or"
		Values []Expr
	}

	Compare struct {
		Meta
		Left        Expr
		Ops         []string
		Comparators []Expr
	}

	IfExp struct {
		Meta
		Test   Expr
		Body   Expr
		Orelse Expr
	}

	Lambda struct {
		Meta
		Args *Arguments
		Body Expr
	}

	List struct {
		Meta
		Elts []Expr
		Ctx  Ctx
	}

	Tuple struct {
		Meta
		Elts []Expr
		Ctx  Ctx
	}

	Dict struct {
		Meta
		Keys   []Expr
		Values []Expr
	}

	UnsupportedExpr struct {
		Meta
		Kind string
		Text string
	}
)

func (*FunctionDef) stmtNode() {}
func (*Return) stmtNode()      {}
func (*Assign) stmtNode()      {}
func (*AugAssign) stmtNode()   {}
func (*ExprStmt) stmtNode()    {}
func (*If) stmtNode()          {}
func (*While) stmtNode()       {}
func (*For) stmtNode()         {}
func (*Break) stmtNode()       {}
func (*Continue) stmtNode()    {}
func (*Pass) stmtNode()        {}
func (*Global) stmtNode()      {}
func (*Nonlocal) stmtNode()    {}
func (*Raise) stmtNode()       {}
func (*Assert) stmtNode()      {}
func (*Unsupported) stmtNode() {}

func (*Name) exprNode()            {}
func (*Constant) exprNode()        {}
func (*Attribute) exprNode()       {}
func (*Subscript) exprNode()       {}
func (*Slice) exprNode()           {}
func (*Call) exprNode()            {}
func (*BinOp) exprNode()           {}
func (*UnaryOp) exprNode()         {}
func (*BoolOp) exprNode()          {}
func (*Compare) exprNode()         {}
func (*IfExp) exprNode()           {}
func (*Lambda) exprNode()          {}
func (*List) exprNode()            {}
func (*Tuple) exprNode()           {}
func (*Dict) exprNode()            {}
func (*UnsupportedExpr) exprNode() {}

// IsCompound reports whether s owns nested statement blocks.
func IsCompound(s Stmt) bool {
	switch s.(type) {
	case *If, *While, *For, *FunctionDef:
		return true
	}
	return false
}

// KindOf returns a short, stable node kind name used in diagnostics.
func KindOf(n Node) string {
	switch n := n.(type) {
	case *Module:
		return "module"
	case *Arguments:
		return "arguments"
	case *Keyword:
		return "keyword"
	case *FunctionDef:
		return "function_definition"
	case *Return:
		return "return"
	case *Assign:
		return "assignment"
	case *AugAssign:
		return "augmented_assignment"
	case *ExprStmt:
		return "expression_statement"
	case *If:
		return "if"
	case *While:
		return "while"
	case *For:
		return "for"
	case *Break:
		return "break"
	case *Continue:
		return "continue"
	case *Pass:
		return "pass"
	case *Global:
		return "global"
	case *Nonlocal:
		return "nonlocal"
	case *Raise:
		return "raise"
	case *Assert:
		return "assert"
	case *Unsupported:
		return n.Kind
	case *Name:
		return "name"
	case *Constant:
		return "constant"
	case *Attribute:
		return "attribute"
	case *Subscript:
		return "subscript"
	case *Slice:
		return "slice"
	case *Call:
		return "call"
	case *BinOp:
		return "binary_operator"
	case *UnaryOp:
		return "unary_operator"
	case *BoolOp:
		return "boolean_operator"
	case *Compare:
		return "comparison"
	case *IfExp:
		return "conditional_expression"
	case *Lambda:
		return "lambda"
	case *List:
		return "list"
	case *Tuple:
		return "tuple"
	case *Dict:
		return "dictionary"
	case *UnsupportedExpr:
		return n.Kind
	default:
		return fmt.Sprintf("%T", n)
	}
}
