package dfg

import (
	"fmt"
	"sort"

	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/cfg"
	"github.com/l3aro/go-malt/pkg/qualname"
)

// FactsKey annotates If, While and For nodes with their Facts.
const FactsKey ast.Key = "dfg.facts"

// Facts summarizes the dataflow across one control-flow construct.
type Facts struct {
	Loop      bool
	Mutated   qualname.Set // Written or modified in place inside the construct
	Written   qualname.Set // Rebound inside the construct
	LiveIn    qualname.Set // Live on entry to the construct's test or header
	LiveOut   qualname.Set // Live after the construct
	DefinedIn qualname.Set // Defined on some path reaching the construct
	Captured  qualname.Set // Mutated symbols read by closures created inside
	Fndefs    []*ast.FunctionDef
	Scope     *Scope // Function scope the construct belongs to
}

// Result holds the analyses of a function and everything nested in it.
type Result struct {
	Func   *ast.FunctionDef
	Scope  *Scope
	Graphs map[*ast.FunctionDef]*cfg.Graph
	Defs   map[*ast.FunctionDef]*ReachingDefs
}

// Analyze runs the standard pipeline on fn: symbol resolution, activity, CFG
// construction, reaching definitions, reaching function definitions and
// liveness. Every If, While and For in fn, nested functions included, is
// annotated with its Facts.
func Analyze(fn *ast.FunctionDef) (*Result, error) {
	qualname.Resolve(fn)
	scope := Activity(fn)

	graphs, err := cfg.BuildAll(fn)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Func:   fn,
		Scope:  scope,
		Graphs: graphs,
		Defs:   make(map[*ast.FunctionDef]*ReachingDefs, len(graphs)),
	}
	for fd, g := range graphs {
		rd := NewReachingDefsAnalyzer().Analyze(g)
		res.Defs[fd] = rd
		live := AnalyzeLiveness(g)
		fndefs := AnalyzeFndefs(g)
		fs := ScopeOf(fd, ScopeKey)

		for node, reg := range g.Regions {
			facts, err := regionFacts(node, reg, fs, rd, live, fndefs)
			if err != nil {
				return nil, err
			}
			ast.SetAnno(node, FactsKey, facts)
		}
	}
	return res, nil
}

func regionFacts(node ast.Stmt, reg *cfg.Region, fs *Scope, rd *ReachingDefs, live *Liveness, fndefs *ReachingFndefs) (*Facts, error) {
	f := &Facts{
		Written: qualname.NewSet(),
		Scope:   fs,
	}
	var scopes []*Scope
	switch n := node.(type) {
	case *ast.If:
		scopes = []*Scope{ScopeOf(n, BodyScopeKey), ScopeOf(n, OrelseScopeKey)}
		f.LiveIn = live.LiveAt(reg.Entry)
	case *ast.While:
		f.Loop = true
		scopes = []*Scope{ScopeOf(n, CondScopeKey), ScopeOf(n, BodyScopeKey), ScopeOf(n, OrelseScopeKey)}
		f.LiveIn = live.LiveIn(reg.Header)
	case *ast.For:
		f.Loop = true
		scopes = []*Scope{ScopeOf(n, IterateScopeKey), ScopeOf(n, BodyScopeKey), ScopeOf(n, OrelseScopeKey)}
		f.LiveIn = live.LiveIn(reg.Header)
	default:
		return nil, fmt.Errorf("no facts for %s", ast.KindOf(node))
	}

	f.Mutated = qualname.NewSet()
	for _, s := range scopes {
		if s == nil {
			return nil, fmt.Errorf("%s at %s: missing activity annotations", ast.KindOf(node), node.Pos())
		}
		f.Mutated.AddAll(s.Mutated())
		f.Written.AddAll(s.Written)
	}
	f.LiveOut = live.LiveIn(reg.Exit)
	f.DefinedIn = rd.DefinedAt(reg.Entry)

	f.Captured = qualname.NewSet()
	f.Fndefs = fndefs.DefinedWithin(reg)
	for _, fd := range f.Fndefs {
		inner := ScopeOf(fd, ScopeKey)
		if inner == nil {
			continue
		}
		for q := range inner.FreeReads() {
			if f.Mutated.Has(q) {
				f.Captured.Add(q)
			}
		}
	}
	return f, nil
}

// FactsOf returns the facts annotated on a construct.
func FactsOf(n ast.Node) (*Facts, bool) {
	v, ok := ast.GetAnno(n, FactsKey)
	if !ok {
		return nil, false
	}
	f, ok := v.(*Facts)
	return f, ok
}

// Info renders the analysis of fn for reporting.
func (r *Result) Info() *DFGInfo {
	info := &DFGInfo{FunctionName: r.Func.Name}
	if rd, ok := r.Defs[r.Func]; ok {
		info.DataflowEdges = rd.DefUseChains()
	}
	ast.Inspect(r.Func, func(n ast.Node) bool {
		f, ok := FactsOf(n)
		if !ok {
			return true
		}
		ci := ConstructInfo{
			Kind:      ast.KindOf(n),
			Line:      n.Pos().Line,
			Mutated:   f.Mutated.Strings(),
			LiveIn:    f.LiveIn.Strings(),
			LiveOut:   f.LiveOut.Strings(),
			DefinedIn: f.DefinedIn.Strings(),
			Captured:  f.Captured.Strings(),
		}
		for _, fd := range f.Fndefs {
			ci.Fndefs = append(ci.Fndefs, fd.Name)
		}
		info.Constructs = append(info.Constructs, ci)
		return true
	})
	sort.SliceStable(info.Constructs, func(i, j int) bool {
		return info.Constructs[i].Line < info.Constructs[j].Line
	})
	return info
}
