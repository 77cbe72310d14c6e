package dfg

import (
	"container/list"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/l3aro/go-malt/pkg/cfg"
	"github.com/l3aro/go-malt/pkg/qualname"
)

// Liveness is a backward analysis: a symbol is live at a point if some path
// from it reads the symbol before redefining it. Symbols are numbered per
// analysis; bitmaps hold symbol numbers.
type Liveness struct {
	graph *cfg.Graph
	items [][]access
	syms  []qualname.QN
	ids   map[qualname.QN]uint32
	kills map[qualname.QN]*roaring.Bitmap
	in    []*roaring.Bitmap
	out   []*roaring.Bitmap
}

// AnalyzeLiveness computes live symbols for every block of g.
func AnalyzeLiveness(g *cfg.Graph) *Liveness {
	l := &Liveness{
		graph: g,
		items: blockAccess(g),
		ids:   make(map[qualname.QN]uint32),
		kills: make(map[qualname.QN]*roaring.Bitmap),
	}
	l.index()

	l.in = make([]*roaring.Bitmap, len(g.Blocks))
	l.out = make([]*roaring.Bitmap, len(g.Blocks))
	for i := range g.Blocks {
		l.in[i] = roaring.New()
		l.out[i] = roaring.New()
	}

	worklist := list.New()
	for i := len(g.Blocks) - 1; i >= 0; i-- {
		worklist.PushBack(i)
	}

	for worklist.Len() > 0 {
		blockID := worklist.Remove(worklist.Front()).(int)

		out := roaring.New()
		for _, succ := range g.Succs(blockID) {
			out.Or(l.in[succ])
		}
		l.out[blockID] = out

		newIn := l.transfer(out, blockID, 0)
		if !newIn.Equals(l.in[blockID]) {
			l.in[blockID] = newIn
			for _, pred := range g.Preds(blockID) {
				worklist.PushBack(pred)
			}
		}
	}
	return l
}

func (l *Liveness) id(q qualname.QN) uint32 {
	if id, ok := l.ids[q]; ok {
		return id
	}
	id := uint32(len(l.syms))
	l.syms = append(l.syms, q)
	l.ids[q] = id
	return id
}

func (l *Liveness) index() {
	defined := qualname.NewSet()
	for _, items := range l.items {
		for _, acc := range items {
			for _, u := range acc.uses {
				l.id(u.sym)
			}
			for _, d := range acc.defs {
				l.id(d.sym)
				defined.Add(d.sym)
			}
		}
	}
	for q := range defined {
		kill := roaring.New()
		for s, id := range l.ids {
			if s.HasPrefix(q) {
				kill.Add(id)
			}
		}
		l.kills[q] = kill
	}
}

// transfer walks a block backwards from its end down to item from.
func (l *Liveness) transfer(out *roaring.Bitmap, block, from int) *roaring.Bitmap {
	cur := out.Clone()
	items := l.items[block]
	for i := len(items) - 1; i >= from; i-- {
		for _, d := range items[i].defs {
			cur.AndNot(l.kills[d.sym])
		}
		for _, u := range items[i].uses {
			cur.Add(l.ids[u.sym])
		}
	}
	return cur
}

func (l *Liveness) set(b *roaring.Bitmap) qualname.Set {
	out := qualname.NewSet()
	it := b.Iterator()
	for it.HasNext() {
		out.Add(l.syms[it.Next()])
	}
	return out
}

// LiveAt returns the symbols live just before point p.
func (l *Liveness) LiveAt(p cfg.Point) qualname.Set {
	return l.set(l.transfer(l.out[p.Block], p.Block, p.Index))
}

// LiveIn returns the symbols live on entry to a block.
func (l *Liveness) LiveIn(block int) qualname.Set {
	return l.set(l.in[block])
}
