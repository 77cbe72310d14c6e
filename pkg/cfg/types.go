// Package cfg builds control flow graphs over function bodies.
// A graph is an arena of blocks; edges refer to blocks by index.
package cfg

import (
	"errors"
	"fmt"

	"github.com/l3aro/go-malt/pkg/ast"
)

// BlockType represents the type of a CFG block.
type BlockType string

const (
	BlockTypeEntry       BlockType = "entry"       // Function entry point, holds the parameters
	BlockTypeBranch      BlockType = "branch"      // Body of an if/else arm
	BlockTypeLoopHeader  BlockType = "loop_header" // Loop test or iteration step
	BlockTypeLoopBody    BlockType = "loop_body"   // Loop body
	BlockTypeLoopElse    BlockType = "loop_else"   // Loop else clause
	BlockTypeJoin        BlockType = "join"        // Join point after a construct
	BlockTypeUnreachable BlockType = "unreachable" // Code after a jump
	BlockTypeExit        BlockType = "exit"        // Single synthetic exit
	BlockTypePlain       BlockType = "plain"       // Regular statements
)

// EdgeType represents the type of a CFG edge.
type EdgeType string

const (
	EdgeTypeFallthrough EdgeType = "fallthrough"  // Sequential flow
	EdgeTypeTrue        EdgeType = "branch_true"  // True branch of a test
	EdgeTypeFalse       EdgeType = "branch_false" // False branch of a test
	EdgeTypeLoopBack    EdgeType = "loop_back"    // End of a loop body back to its header
	EdgeTypeBreak       EdgeType = "break"        // Break out of a loop
	EdgeTypeContinue    EdgeType = "continue"     // Continue to the loop header
	EdgeTypeReturn      EdgeType = "return"       // Return to the exit block
	EdgeTypeExceptional EdgeType = "exceptional"  // Raise to the exit block
)

// Role tells how a block item participates in control flow.
type Role string

const (
	RoleStmt      Role = "stmt"       // A simple statement or a nested function definition
	RoleTest      Role = "test"       // If/while test expression
	RoleForIter   Role = "for_iter"   // For iterable, evaluated once before the loop
	RoleForHeader Role = "for_header" // For iteration step, with the extra test if any
	RoleForTarget Role = "for_target" // Assignment of the iteration element
	RoleParams    Role = "params"     // Function parameters
)

// Item is one entry of a basic block. Items reference nodes owned by the
// syntax tree.
type Item struct {
	Node ast.Node `json:"-"`
	Role Role     `json:"role"`
}

// Block is a basic block: items with no internal control transfer.
type Block struct {
	ID    int       `json:"id"`
	Type  BlockType `json:"type"`
	Items []Item    `json:"-"`
	Succs []int     `json:"succs"` // Indices into Graph.Edges
	Preds []int     `json:"preds"` // Indices into Graph.Edges
}

// Edge is a directed control transfer between blocks.
type Edge struct {
	From int      `json:"from"`
	To   int      `json:"to"`
	Type EdgeType `json:"type"`
}

// Point is the program point just before Items[Index] of a block. Index may
// equal len(Items), meaning the end of the block.
type Point struct {
	Block int `json:"block"`
	Index int `json:"index"`
}

// Region locates a compound statement in the graph.
type Region struct {
	Node   ast.Stmt `json:"-"`
	Entry  Point    `json:"entry"`  // Before the construct, seen from outside
	Header int      `json:"header"` // Block holding the test or iteration step
	Exit   int      `json:"exit"`   // Join block after the construct
}

// Graph is the CFG of one function.
type Graph struct {
	Name    string               `json:"name"`
	Blocks  []*Block             `json:"blocks"`
	Edges   []Edge               `json:"edges"`
	Entry   int                  `json:"entry"`
	Exit    int                  `json:"exit"`
	Regions map[ast.Stmt]*Region `json:"-"`
	Func    *ast.FunctionDef     `json:"-"`
}

// Succs returns the successor block indices of b.
func (g *Graph) Succs(b int) []int {
	out := make([]int, 0, len(g.Blocks[b].Succs))
	for _, e := range g.Blocks[b].Succs {
		out = append(out, g.Edges[e].To)
	}
	return out
}

// Preds returns the predecessor block indices of b.
func (g *Graph) Preds(b int) []int {
	out := make([]int, 0, len(g.Blocks[b].Preds))
	for _, e := range g.Blocks[b].Preds {
		out = append(out, g.Edges[e].From)
	}
	return out
}

// CyclomaticComplexity returns E - N + 2.
func (g *Graph) CyclomaticComplexity() int {
	return len(g.Edges) - len(g.Blocks) + 2
}

// ErrUnsupportedConstruct is returned for statements the builder cannot model.
var ErrUnsupportedConstruct = errors.New("unsupported construct")

// UnsupportedError reports the offending node.
type UnsupportedError struct {
	Kind string
	Pos  ast.Pos
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: %s at %s", ErrUnsupportedConstruct, e.Kind, e.Pos)
}

func (e *UnsupportedError) Unwrap() error { return ErrUnsupportedConstruct }
