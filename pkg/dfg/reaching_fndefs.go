package dfg

import (
	"container/list"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/cfg"
	"github.com/l3aro/go-malt/pkg/qualname"
)

// ReachingFndefs tracks which nested function definitions are visible at each
// point: a def statement generates its function, and any later binding of the
// same name kills it.
type ReachingFndefs struct {
	graph  *cfg.Graph
	fndefs []*ast.FunctionDef
	gen    [][][]uint32 // Per block and item
	kill   [][][]qualname.QN
	byName map[qualname.QN]*roaring.Bitmap
	in     []*roaring.Bitmap
}

// AnalyzeFndefs computes reaching function definitions for g.
func AnalyzeFndefs(g *cfg.Graph) *ReachingFndefs {
	r := &ReachingFndefs{
		graph:  g,
		gen:    make([][][]uint32, len(g.Blocks)),
		kill:   make([][][]qualname.QN, len(g.Blocks)),
		byName: make(map[qualname.QN]*roaring.Bitmap),
	}
	items := blockAccess(g)
	for b, blk := range g.Blocks {
		r.gen[b] = make([][]uint32, len(blk.Items))
		r.kill[b] = make([][]qualname.QN, len(blk.Items))
		for i, it := range blk.Items {
			for _, d := range items[b][i].defs {
				if d.sym.IsSimple() {
					r.kill[b][i] = append(r.kill[b][i], d.sym)
				}
			}
			fd, ok := it.Node.(*ast.FunctionDef)
			if !ok || it.Role != cfg.RoleStmt {
				continue
			}
			id := uint32(len(r.fndefs))
			r.fndefs = append(r.fndefs, fd)
			r.gen[b][i] = append(r.gen[b][i], id)
			name := qualname.Name(fd.Name)
			if r.byName[name] == nil {
				r.byName[name] = roaring.New()
			}
			r.byName[name].Add(id)
		}
	}

	r.in = make([]*roaring.Bitmap, len(g.Blocks))
	out := make([]*roaring.Bitmap, len(g.Blocks))
	for i := range g.Blocks {
		r.in[i] = roaring.New()
		out[i] = roaring.New()
	}

	worklist := list.New()
	for i := range g.Blocks {
		worklist.PushBack(i)
	}
	for worklist.Len() > 0 {
		blockID := worklist.Remove(worklist.Front()).(int)

		in := roaring.New()
		for _, p := range g.Preds(blockID) {
			in.Or(out[p])
		}
		r.in[blockID] = in

		newOut := r.transfer(in, blockID, len(g.Blocks[blockID].Items))
		if !newOut.Equals(out[blockID]) {
			out[blockID] = newOut
			for _, succ := range g.Succs(blockID) {
				worklist.PushBack(succ)
			}
		}
	}
	return r
}

func (r *ReachingFndefs) transfer(set *roaring.Bitmap, block, upto int) *roaring.Bitmap {
	cur := set.Clone()
	for i := 0; i < upto; i++ {
		for _, name := range r.kill[block][i] {
			if ids := r.byName[name]; ids != nil {
				cur.AndNot(ids)
			}
		}
		for _, id := range r.gen[block][i] {
			cur.Add(id)
		}
	}
	return cur
}

// At returns the function definitions reaching point p, in definition order.
func (r *ReachingFndefs) At(p cfg.Point) []*ast.FunctionDef {
	set := r.transfer(r.in[p.Block], p.Block, p.Index)
	out := make([]*ast.FunctionDef, 0, set.GetCardinality())
	it := set.Iterator()
	for it.HasNext() {
		out = append(out, r.fndefs[it.Next()])
	}
	return out
}

// DefinedWithin returns the function definitions that reach the exit of a
// region without reaching its entry: the closures the construct creates.
func (r *ReachingFndefs) DefinedWithin(reg *cfg.Region) []*ast.FunctionDef {
	before := make(map[*ast.FunctionDef]bool)
	for _, fd := range r.At(reg.Entry) {
		before[fd] = true
	}
	var out []*ast.FunctionDef
	for _, fd := range r.At(cfg.Point{Block: reg.Exit}) {
		if !before[fd] {
			out = append(out, fd)
		}
	}
	return out
}
