// Package qualname implements symbols: canonical, comparable names for the
// locations a program reads and writes (x, x.f, x[0], x[*]).
package qualname

import (
	"sort"
	"strconv"
	"strings"

	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/printer"
)

// Kind of the last accessor of a symbol.
type Kind byte

const (
	KindName      Kind = 'n'
	KindAttr      Kind = 'a'
	KindSubscript Kind = 's'
	KindWildcard  Kind = 'w'
)

// Wildcard is the key used for subscripts whose index is not a literal.
const Wildcard = "*"

const sep = "\x00"

// QN is a qualified name. QNs are comparable and safe to use as map keys; two
// occurrences denote the same symbol iff their QNs are equal.
//
// The zero QN is invalid.
type QN struct {
	path string
}

// Accessor is a single step appended to a symbol by Compose.
type Accessor struct {
	Kind Kind
	// Name is the attribute name or the rendered literal subscript key.
	Name string
}

// Name returns the symbol of a plain identifier.
func Name(id string) QN {
	return QN{path: string(KindName) + id}
}

// Attr returns base.attr.
func Attr(base QN, attr string) QN {
	return Compose(base, Accessor{Kind: KindAttr, Name: attr})
}

// Sub returns base[key] for a literal key. The key is any value accepted by
// printer.Constant.
func Sub(base QN, key any) QN {
	return Compose(base, Accessor{Kind: KindSubscript, Name: printer.Constant(key)})
}

// Any returns base[*].
func Any(base QN) QN {
	return Compose(base, Accessor{Kind: KindWildcard, Name: Wildcard})
}

// Compose appends an accessor to base.
func Compose(base QN, acc Accessor) QN {
	if !base.Valid() {
		return QN{}
	}
	return QN{path: base.path + sep + string(acc.Kind) + acc.Name}
}

// Valid reports whether q names a symbol.
func (q QN) Valid() bool { return q.path != "" }

func (q QN) parts() []string { return strings.Split(q.path, sep) }

// String renders q as source text, e.g. "x.f[0]" or "x[*]".
func (q QN) String() string {
	if !q.Valid() {
		return "<invalid>"
	}
	var sb strings.Builder
	for _, p := range q.parts() {
		switch Kind(p[0]) {
		case KindName:
			sb.WriteString(p[1:])
		case KindAttr:
			sb.WriteString(".")
			sb.WriteString(p[1:])
		case KindSubscript, KindWildcard:
			sb.WriteString("[")
			sb.WriteString(p[1:])
			sb.WriteString("]")
		}
	}
	return sb.String()
}

// Kind returns the kind of the last accessor.
func (q QN) Kind() Kind {
	if !q.Valid() {
		return 0
	}
	idx := strings.LastIndex(q.path, sep)
	return Kind(q.path[idx+1])
}

// IsSimple reports whether q is a plain name.
func (q QN) IsSimple() bool { return q.Valid() && !strings.Contains(q.path, sep) }

// IsComposite reports whether q has at least one accessor.
func (q QN) IsComposite() bool { return q.Valid() && !q.IsSimple() }

// HasAttr reports whether the last accessor is an attribute.
func (q QN) HasAttr() bool { return q.Kind() == KindAttr }

// HasSubscript reports whether the last accessor is a subscript.
func (q QN) HasSubscript() bool {
	k := q.Kind()
	return k == KindSubscript || k == KindWildcard
}

// IsWildcard reports whether any accessor in q is a wildcard subscript.
func (q QN) IsWildcard() bool {
	return strings.Contains(q.path, sep+string(KindWildcard))
}

// Parent returns the symbol without its last accessor, or the zero QN for
// simple names.
func (q QN) Parent() QN {
	idx := strings.LastIndex(q.path, sep)
	if idx < 0 {
		return QN{}
	}
	return QN{path: q.path[:idx]}
}

// Root returns the simple name at the base of q.
func (q QN) Root() QN {
	if idx := strings.Index(q.path, sep); idx >= 0 {
		return QN{path: q.path[:idx]}
	}
	return q
}

// Last returns the identifier, attribute name or rendered key of the last
// accessor.
func (q QN) Last() string {
	idx := strings.LastIndex(q.path, sep)
	return q.path[idx+1+1:]
}

// HasPrefix reports whether q equals p or is built on top of p.
func (q QN) HasPrefix(p QN) bool {
	return q == p || strings.HasPrefix(q.path, p.path+sep)
}

// Support returns the simple symbols q depends on. Subscript keys are either
// literals or wildcards, so only the root contributes.
func (q QN) Support() []QN {
	if !q.Valid() {
		return nil
	}
	return []QN{q.Root()}
}

// Expr builds a load-context expression for q. It returns nil for wildcard
// symbols, which do not name a single location.
func (q QN) Expr() ast.Expr {
	if !q.Valid() || q.IsWildcard() {
		return nil
	}
	var e ast.Expr
	for _, p := range q.parts() {
		switch Kind(p[0]) {
		case KindName:
			e = ast.Ident(p[1:])
		case KindAttr:
			e = &ast.Attribute{Value: e, Attr: p[1:], Ctx: ast.Load}
		case KindSubscript:
			e = &ast.Subscript{Value: e, Index: literal(p[1:]), Ctx: ast.Load}
		}
	}
	return e
}

// literal parses a key rendered by printer.Constant back into a node.
func literal(s string) ast.Expr {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ast.Const(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return ast.Const(f)
	}
	switch s {
	case "None":
		return ast.Const(nil)
	case "True":
		return ast.Const(true)
	case "False":
		return ast.Const(false)
	}
	if len(s) >= 2 {
		if v, err := strconv.Unquote(`"` + strings.ReplaceAll(s[1:len(s)-1], `"`, `\"`) + `"`); err == nil {
			return ast.Const(v)
		}
		return ast.Const(s[1 : len(s)-1])
	}
	return ast.Const(s)
}

// Set is an unordered set of symbols.
type Set map[QN]struct{}

// NewSet builds a set from its arguments.
func NewSet(qns ...QN) Set {
	s := make(Set, len(qns))
	for _, q := range qns {
		s.Add(q)
	}
	return s
}

// Add inserts q.
func (s Set) Add(q QN) { s[q] = struct{}{} }

// Has reports membership.
func (s Set) Has(q QN) bool {
	_, ok := s[q]
	return ok
}

// AddAll inserts every member of o.
func (s Set) AddAll(o Set) {
	for q := range o {
		s[q] = struct{}{}
	}
}

// Union returns a new set with the members of both.
func (s Set) Union(o Set) Set {
	out := make(Set, len(s)+len(o))
	out.AddAll(s)
	out.AddAll(o)
	return out
}

// Copy returns a shallow copy.
func (s Set) Copy() Set {
	out := make(Set, len(s))
	out.AddAll(s)
	return out
}

// Equal reports whether both sets hold the same symbols.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for q := range s {
		if !o.Has(q) {
			return false
		}
	}
	return true
}

// Sorted returns the members ordered by their rendered form.
func (s Set) Sorted() []QN {
	out := make([]QN, 0, len(s))
	for q := range s {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Strings returns the rendered members, sorted.
func (s Set) Strings() []string {
	out := make([]string, 0, len(s))
	for _, q := range s.Sorted() {
		out = append(out, q.String())
	}
	return out
}
