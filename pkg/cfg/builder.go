package cfg

import (
	"fmt"
	"strings"

	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/printer"
)

// loopContext tracks the jump targets of the innermost loop.
type loopContext struct {
	header int // Target of continue
	exit   int // Target of break
}

// builder holds the state of a single CFG construction.
type builder struct {
	g       *Graph
	current int
	loops   []*loopContext
}

// Build constructs the CFG of a function body. Nested function definitions
// appear as a single item; their bodies get graphs of their own (see BuildAll).
func Build(fn *ast.FunctionDef) (*Graph, error) {
	if fn == nil {
		return nil, fmt.Errorf("cannot build CFG from nil function")
	}

	b := &builder{g: &Graph{
		Name:    fn.Name,
		Regions: make(map[ast.Stmt]*Region),
		Func:    fn,
	}}
	b.g.Entry = b.newBlock(BlockTypeEntry)
	b.g.Exit = b.newBlock(BlockTypeExit)
	b.current = b.g.Entry

	if fn.Args != nil {
		if err := checkExprs(fn.Args.Defaults...); err != nil {
			return nil, err
		}
		b.add(fn.Args, RoleParams)
	}
	if err := b.block(fn.Body); err != nil {
		return nil, fmt.Errorf("building CFG for %s: %w", fn.Name, err)
	}
	b.addEdge(b.current, b.g.Exit, EdgeTypeFallthrough)

	return b.g, nil
}

// BuildAll builds graphs for fn and every function defined inside it.
func BuildAll(fn *ast.FunctionDef) (map[*ast.FunctionDef]*Graph, error) {
	graphs := make(map[*ast.FunctionDef]*Graph)
	var firstErr error
	ast.Inspect(fn, func(n ast.Node) bool {
		if firstErr != nil {
			return false
		}
		if fd, ok := n.(*ast.FunctionDef); ok {
			g, err := Build(fd)
			if err != nil {
				firstErr = err
				return false
			}
			graphs[fd] = g
		}
		return true
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return graphs, nil
}

func (b *builder) newBlock(t BlockType) int {
	id := len(b.g.Blocks)
	b.g.Blocks = append(b.g.Blocks, &Block{ID: id, Type: t})
	return id
}

func (b *builder) addEdge(from, to int, t EdgeType) {
	idx := len(b.g.Edges)
	b.g.Edges = append(b.g.Edges, Edge{From: from, To: to, Type: t})
	b.g.Blocks[from].Succs = append(b.g.Blocks[from].Succs, idx)
	b.g.Blocks[to].Preds = append(b.g.Blocks[to].Preds, idx)
}

func (b *builder) add(n ast.Node, role Role) {
	blk := b.g.Blocks[b.current]
	blk.Items = append(blk.Items, Item{Node: n, Role: role})
}

func (b *builder) point() Point {
	return Point{Block: b.current, Index: len(b.g.Blocks[b.current].Items)}
}

// jump ends the current block with an edge to target. Whatever follows lands
// in a fresh block with no predecessors.
func (b *builder) jump(target int, t EdgeType) {
	b.addEdge(b.current, target, t)
	b.current = b.newBlock(BlockTypeUnreachable)
}

func (b *builder) block(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := b.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) stmt(s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.Unsupported:
		return &UnsupportedError{Kind: s.Kind, Pos: s.Pos()}
	case *ast.If:
		return b.processIf(s)
	case *ast.While:
		return b.processWhile(s)
	case *ast.For:
		return b.processFor(s)
	case *ast.Break:
		loop, err := b.innermostLoop(s)
		if err != nil {
			return err
		}
		b.add(s, RoleStmt)
		b.jump(loop.exit, EdgeTypeBreak)
	case *ast.Continue:
		loop, err := b.innermostLoop(s)
		if err != nil {
			return err
		}
		b.add(s, RoleStmt)
		b.jump(loop.header, EdgeTypeContinue)
	case *ast.Return:
		if err := checkExprs(s.Value); err != nil {
			return err
		}
		b.add(s, RoleStmt)
		b.jump(b.g.Exit, EdgeTypeReturn)
	case *ast.Raise:
		if err := checkExprs(s.Exc); err != nil {
			return err
		}
		b.add(s, RoleStmt)
		b.jump(b.g.Exit, EdgeTypeExceptional)
	case *ast.FunctionDef:
		if s.Args != nil {
			if err := checkExprs(s.Args.Defaults...); err != nil {
				return err
			}
		}
		b.add(s, RoleStmt)
	default:
		if err := checkNode(s); err != nil {
			return err
		}
		b.add(s, RoleStmt)
	}
	return nil
}

func (b *builder) innermostLoop(s ast.Stmt) (*loopContext, error) {
	if len(b.loops) == 0 {
		return nil, &UnsupportedError{Kind: ast.KindOf(s) + " outside loop", Pos: s.Pos()}
	}
	return b.loops[len(b.loops)-1], nil
}

func (b *builder) processIf(s *ast.If) error {
	if err := checkExprs(s.Test); err != nil {
		return err
	}
	entry := b.point()
	b.add(s.Test, RoleTest)
	head := b.current

	body := b.newBlock(BlockTypeBranch)
	b.addEdge(head, body, EdgeTypeTrue)
	b.current = body
	if err := b.block(s.Body); err != nil {
		return err
	}
	ends := []int{b.current}

	if len(s.Orelse) > 0 {
		els := b.newBlock(BlockTypeBranch)
		b.addEdge(head, els, EdgeTypeFalse)
		b.current = els
		if err := b.block(s.Orelse); err != nil {
			return err
		}
		ends = append(ends, b.current)
	}

	join := b.newBlock(BlockTypeJoin)
	for _, end := range ends {
		b.addEdge(end, join, EdgeTypeFallthrough)
	}
	if len(s.Orelse) == 0 {
		b.addEdge(head, join, EdgeTypeFalse)
	}
	b.current = join
	b.g.Regions[s] = &Region{Node: s, Entry: entry, Header: head, Exit: join}
	return nil
}

func (b *builder) processWhile(s *ast.While) error {
	if err := checkExprs(s.Test); err != nil {
		return err
	}
	entry := b.point()
	header := b.newBlock(BlockTypeLoopHeader)
	b.addEdge(b.current, header, EdgeTypeFallthrough)
	b.current = header
	b.add(s.Test, RoleTest)

	return b.loop(s, entry, header, s.Body, s.Orelse, nil)
}

func (b *builder) processFor(s *ast.For) error {
	if err := checkExprs(s.Target, s.Iter, s.ExtraTest); err != nil {
		return err
	}
	entry := b.point()
	b.add(s.Iter, RoleForIter)
	header := b.newBlock(BlockTypeLoopHeader)
	b.addEdge(b.current, header, EdgeTypeFallthrough)
	b.current = header
	b.add(s, RoleForHeader)

	return b.loop(s, entry, header, s.Body, s.Orelse, s.Target)
}

// loop wires the body, else clause and exit of a loop whose header block has
// already been created. A non-nil target is assigned at the top of the body.
func (b *builder) loop(s ast.Stmt, entry Point, header int, body, orelse []ast.Stmt, target ast.Expr) error {
	bodyBlock := b.newBlock(BlockTypeLoopBody)
	b.addEdge(header, bodyBlock, EdgeTypeTrue)

	elseBlock := -1
	if len(orelse) > 0 {
		elseBlock = b.newBlock(BlockTypeLoopElse)
		b.addEdge(header, elseBlock, EdgeTypeFalse)
	}
	exit := b.newBlock(BlockTypeJoin)
	if elseBlock < 0 {
		b.addEdge(header, exit, EdgeTypeFalse)
	}

	b.loops = append(b.loops, &loopContext{header: header, exit: exit})
	b.current = bodyBlock
	if target != nil {
		b.add(target, RoleForTarget)
	}
	if err := b.block(body); err != nil {
		return err
	}
	b.addEdge(b.current, header, EdgeTypeLoopBack)
	b.loops = b.loops[:len(b.loops)-1]

	if elseBlock >= 0 {
		b.current = elseBlock
		if err := b.block(orelse); err != nil {
			return err
		}
		b.addEdge(b.current, exit, EdgeTypeFallthrough)
	}

	b.current = exit
	b.g.Regions[s] = &Region{Node: s, Entry: entry, Header: header, Exit: exit}
	return nil
}

func checkExprs(es ...ast.Expr) error {
	for _, e := range es {
		if e == nil {
			continue
		}
		if err := checkNode(e); err != nil {
			return err
		}
	}
	return nil
}

// checkNode rejects unsupported expressions anywhere under n.
func checkNode(n ast.Node) error {
	var err error
	ast.Inspect(n, func(c ast.Node) bool {
		if err != nil {
			return false
		}
		if u, ok := c.(*ast.UnsupportedExpr); ok {
			err = &UnsupportedError{Kind: u.Kind, Pos: u.Pos()}
			return false
		}
		return true
	})
	return err
}

// String renders an item for diagnostics.
func (it Item) String() string {
	switch it.Role {
	case RoleTest:
		return "test " + printer.Expr(it.Node.(ast.Expr))
	case RoleForIter:
		return "iter " + printer.Expr(it.Node.(ast.Expr))
	case RoleForTarget:
		return "target " + printer.Expr(it.Node.(ast.Expr))
	case RoleForHeader:
		s := "next"
		if f, ok := it.Node.(*ast.For); ok && f.ExtraTest != nil {
			s += " while " + printer.Expr(f.ExtraTest)
		}
		return s
	case RoleParams:
		var names []string
		if a, ok := it.Node.(*ast.Arguments); ok {
			for _, arg := range a.Args {
				names = append(names, arg.ID)
			}
		}
		return "params " + strings.Join(names, ", ")
	}
	if fd, ok := it.Node.(*ast.FunctionDef); ok {
		return "def " + fd.Name
	}
	src := printer.Source(it.Node)
	if i := strings.IndexByte(src, '\n'); i >= 0 {
		src = src[:i]
	}
	return src
}
