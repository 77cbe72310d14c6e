// Package dfg implements the dataflow analyses the converters rely on:
// activity (per-scope reads and writes), reaching definitions, reaching
// function definitions and liveness.
package dfg

import (
	"container/list"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/cfg"
	"github.com/l3aro/go-malt/pkg/qualname"
)

// Definition is an assignment site of a symbol.
type Definition struct {
	ID    uint32
	Sym   qualname.QN
	Pos   ast.Pos
	Block int
	Index int // Item index within the block
}

// ReachingDefsAnalyzer performs reaching definitions analysis on a control
// flow graph with a worklist over blocks. Definition sets are bitmaps of
// definition IDs.
type ReachingDefsAnalyzer struct {
	// items holds the accesses of every item, per block
	items [][]access
	// itemDefs maps block and item to the definition IDs it generates
	itemDefs [][][]uint32
	// kills maps a defined symbol to the definitions its assignment kills
	kills map[qualname.QN]*roaring.Bitmap
	defs  []Definition
}

// NewReachingDefsAnalyzer creates a new ReachingDefsAnalyzer.
func NewReachingDefsAnalyzer() *ReachingDefsAnalyzer {
	return &ReachingDefsAnalyzer{kills: make(map[qualname.QN]*roaring.Bitmap)}
}

// ReachingDefs holds the fixpoint of the analysis.
type ReachingDefs struct {
	analyzer *ReachingDefsAnalyzer
	graph    *cfg.Graph
	in       []*roaring.Bitmap
	out      []*roaring.Bitmap
}

// Analyze computes the definitions reaching every block of g.
func (r *ReachingDefsAnalyzer) Analyze(g *cfg.Graph) *ReachingDefs {
	r.initialize(g)

	in := make([]*roaring.Bitmap, len(g.Blocks))
	out := make([]*roaring.Bitmap, len(g.Blocks))
	for i := range g.Blocks {
		in[i] = roaring.New()
		out[i] = roaring.New()
	}

	worklist := list.New()
	for i := range g.Blocks {
		worklist.PushBack(i)
	}

	for worklist.Len() > 0 {
		blockID := worklist.Remove(worklist.Front()).(int)

		// in[block] = union of out[pred]
		in[blockID] = r.unionPreds(out, g.Preds(blockID))

		// out[block] = transfer of in[block] through every item
		newOut := r.transfer(in[blockID], blockID, len(g.Blocks[blockID].Items))
		if !newOut.Equals(out[blockID]) {
			out[blockID] = newOut
			for _, succ := range g.Succs(blockID) {
				worklist.PushBack(succ)
			}
		}
	}

	return &ReachingDefs{analyzer: r, graph: g, in: in, out: out}
}

// initialize numbers the definitions of g and builds kill sets.
func (r *ReachingDefsAnalyzer) initialize(g *cfg.Graph) {
	r.items = blockAccess(g)
	r.itemDefs = make([][][]uint32, len(g.Blocks))
	r.defs = nil
	r.kills = make(map[qualname.QN]*roaring.Bitmap)

	bySym := make(map[qualname.QN]*roaring.Bitmap)
	for b, items := range r.items {
		r.itemDefs[b] = make([][]uint32, len(items))
		for i, acc := range items {
			for _, d := range acc.defs {
				id := uint32(len(r.defs))
				r.defs = append(r.defs, Definition{ID: id, Sym: d.sym, Pos: d.pos, Block: b, Index: i})
				r.itemDefs[b][i] = append(r.itemDefs[b][i], id)
				if bySym[d.sym] == nil {
					bySym[d.sym] = roaring.New()
				}
				bySym[d.sym].Add(id)
			}
		}
	}

	// Assigning x invalidates x and everything reached through it.
	for q := range bySym {
		kill := roaring.New()
		for s, ids := range bySym {
			if s.HasPrefix(q) {
				kill.Or(ids)
			}
		}
		r.kills[q] = kill
	}
}

// unionPreds computes the union of out sets for all predecessors.
func (r *ReachingDefsAnalyzer) unionPreds(out []*roaring.Bitmap, preds []int) *roaring.Bitmap {
	result := roaring.New()
	for _, p := range preds {
		result.Or(out[p])
	}
	return result
}

// transfer applies the first upto items of a block to set.
func (r *ReachingDefsAnalyzer) transfer(set *roaring.Bitmap, block, upto int) *roaring.Bitmap {
	cur := set.Clone()
	for i := 0; i < upto; i++ {
		for _, id := range r.itemDefs[block][i] {
			cur.AndNot(r.kills[r.defs[id].Sym])
			cur.Add(id)
		}
	}
	return cur
}

// Definitions returns every definition site, indexed by ID.
func (rd *ReachingDefs) Definitions() []Definition {
	return rd.analyzer.defs
}

// At returns the definitions reaching point p.
func (rd *ReachingDefs) At(p cfg.Point) *roaring.Bitmap {
	return rd.analyzer.transfer(rd.in[p.Block], p.Block, p.Index)
}

// DefinedAt returns the symbols with at least one definition reaching p.
func (rd *ReachingDefs) DefinedAt(p cfg.Point) qualname.Set {
	out := qualname.NewSet()
	it := rd.At(p).Iterator()
	for it.HasNext() {
		out.Add(rd.analyzer.defs[it.Next()].Sym)
	}
	return out
}

// DefUseChains connects every use to the definitions of the same symbol
// that reach it.
func (rd *ReachingDefs) DefUseChains() []DataflowEdge {
	r := rd.analyzer
	var edges []DataflowEdge
	for b, items := range r.items {
		cur := rd.in[b].Clone()
		for i, acc := range items {
			for _, use := range acc.uses {
				it := cur.Iterator()
				for it.HasNext() {
					def := r.defs[it.Next()]
					if def.Sym != use.sym {
						continue
					}
					edges = append(edges, DataflowEdge{
						DefRef:  VarRef{Name: def.Sym.String(), RefType: RefTypeDefinition, Line: def.Pos.Line, Column: def.Pos.Col},
						UseRef:  VarRef{Name: use.sym.String(), RefType: RefTypeUse, Line: use.pos.Line, Column: use.pos.Col},
						VarName: use.sym.String(),
					})
				}
			}
			for _, id := range r.itemDefs[b][i] {
				cur.AndNot(r.kills[r.defs[id].Sym])
				cur.Add(id)
			}
		}
	}
	return deduplicateEdges(edges)
}

// deduplicateEdges removes duplicate edges, keeping the first occurrence.
func deduplicateEdges(edges []DataflowEdge) []DataflowEdge {
	seen := make(map[DataflowEdge]bool)
	var result []DataflowEdge
	for _, e := range edges {
		if !seen[e] {
			seen[e] = true
			result = append(result, e)
		}
	}
	return result
}

func blockAccess(g *cfg.Graph) [][]access {
	out := make([][]access, len(g.Blocks))
	for b, blk := range g.Blocks {
		out[b] = make([]access, len(blk.Items))
		for i, it := range blk.Items {
			out[b][i] = itemAccess(it)
		}
	}
	return out
}
