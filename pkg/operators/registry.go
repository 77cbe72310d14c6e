package operators

import (
	"maps"
	"reflect"
	"slices"
)

// Op names a dispatched operator, as it appears in rewritten code.
type Op string

const (
	OpIfStmt    Op = "if_stmt"
	OpWhileStmt Op = "while_stmt"
	OpForStmt   Op = "for_stmt"
	OpIfExp     Op = "if_exp"
	OpGetItem   Op = "get_item"
	OpSetItem   Op = "set_item"
	OpAnd       Op = "and_"
	OpOr        Op = "or_"
	OpNot       Op = "not_"
	OpEq        Op = "eq"
)

// Thunk is a deferred computation.
type Thunk func() (any, error)

// State gives a backend access to the symbols a construct reads and writes.
// Get returns their values in Symbols order; Set restores them. The default
// handlers never call either.
type State struct {
	Get     func() ([]any, error)
	Set     func([]any) error
	Symbols []string
}

// LoopOpts carries optional loop parameters.
type LoopOpts struct {
	// IterateNames is the source text of a for loop target.
	IterateNames string
}

// Handler signatures, one per dispatched operator. Handlers are keyed by the
// runtime type of their first operand: the condition, the iterable, the first
// test result, the subscripted target or the left operand.
type (
	IfHandler      func(d *Dispatcher, cond any, body, orelse func() error, st State, nouts int) error
	WhileHandler   func(d *Dispatcher, first any, test Thunk, body func() error, st State, opts LoopOpts) error
	ForHandler     func(d *Dispatcher, iter any, extraTest Thunk, body func(any) error, st State, opts LoopOpts) error
	IfExpHandler   func(d *Dispatcher, cond any, ifTrue, ifFalse Thunk, repr string) (any, error)
	GetItemHandler func(d *Dispatcher, target, key any, opts GetItemOpts) (any, error)
	SetItemHandler func(d *Dispatcher, target, key, value any) (any, error)
	LogicalHandler func(d *Dispatcher, a any, b Thunk) (any, error)
	NotHandler     func(d *Dispatcher, a any) (any, error)
	EqHandler      func(d *Dispatcher, a, b any) (any, error)
)

type table[H any] map[reflect.Type]H

func (t table[H]) lookup(v any, fallback H) H {
	if h, ok := t[reflect.TypeOf(v)]; ok {
		return h
	}
	return fallback
}

// Registry maps runtime types to operator handlers. It is immutable once built
// and safe for concurrent lookups.
type Registry struct {
	ifStmt    table[IfHandler]
	whileStmt table[WhileHandler]
	forStmt   table[ForHandler]
	ifExp     table[IfExpHandler]
	getItem   table[GetItemHandler]
	setItem   table[SetItemHandler]
	and       table[LogicalHandler]
	or        table[LogicalHandler]
	not       table[NotHandler]
	eq        table[EqHandler]
}

// Types lists the runtime types with a handler for op, sorted by name.
func (r *Registry) Types(op Op) []reflect.Type {
	if r == nil {
		return nil
	}
	var keys []reflect.Type
	switch op {
	case OpIfStmt:
		keys = slices.Collect(maps.Keys(r.ifStmt))
	case OpWhileStmt:
		keys = slices.Collect(maps.Keys(r.whileStmt))
	case OpForStmt:
		keys = slices.Collect(maps.Keys(r.forStmt))
	case OpIfExp:
		keys = slices.Collect(maps.Keys(r.ifExp))
	case OpGetItem:
		keys = slices.Collect(maps.Keys(r.getItem))
	case OpSetItem:
		keys = slices.Collect(maps.Keys(r.setItem))
	case OpAnd:
		keys = slices.Collect(maps.Keys(r.and))
	case OpOr:
		keys = slices.Collect(maps.Keys(r.or))
	case OpNot:
		keys = slices.Collect(maps.Keys(r.not))
	case OpEq:
		keys = slices.Collect(maps.Keys(r.eq))
	}
	slices.SortFunc(keys, func(a, b reflect.Type) int {
		return compareTypes(a, b)
	})
	return keys
}

func compareTypes(a, b reflect.Type) int {
	name := func(t reflect.Type) string {
		if t == nil {
			return "<nil>"
		}
		return t.String()
	}
	switch na, nb := name(a), name(b); {
	case na < nb:
		return -1
	case na > nb:
		return 1
	}
	return 0
}

// RegistryBuilder collects handler registrations. A later registration for
// the same operator and type replaces the earlier one. A builder is not safe
// for concurrent use.
type RegistryBuilder struct {
	r Registry
}

// NewRegistryBuilder returns an empty builder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{r: Registry{
		ifStmt:    table[IfHandler]{},
		whileStmt: table[WhileHandler]{},
		forStmt:   table[ForHandler]{},
		ifExp:     table[IfExpHandler]{},
		getItem:   table[GetItemHandler]{},
		setItem:   table[SetItemHandler]{},
		and:       table[LogicalHandler]{},
		or:        table[LogicalHandler]{},
		not:       table[NotHandler]{},
		eq:        table[EqHandler]{},
	}}
}

// IfStmt overrides if statements whose condition has type t.
func (b *RegistryBuilder) IfStmt(t reflect.Type, h IfHandler) *RegistryBuilder {
	b.r.ifStmt[t] = h
	return b
}

// WhileStmt overrides while loops whose first test value has type t.
func (b *RegistryBuilder) WhileStmt(t reflect.Type, h WhileHandler) *RegistryBuilder {
	b.r.whileStmt[t] = h
	return b
}

// ForStmt overrides for loops over iterables of type t.
func (b *RegistryBuilder) ForStmt(t reflect.Type, h ForHandler) *RegistryBuilder {
	b.r.forStmt[t] = h
	return b
}

// IfExp overrides conditional expressions whose condition has type t.
func (b *RegistryBuilder) IfExp(t reflect.Type, h IfExpHandler) *RegistryBuilder {
	b.r.ifExp[t] = h
	return b
}

// GetItem overrides subscript reads on targets of type t.
func (b *RegistryBuilder) GetItem(t reflect.Type, h GetItemHandler) *RegistryBuilder {
	b.r.getItem[t] = h
	return b
}

// SetItem overrides subscript writes on targets of type t.
func (b *RegistryBuilder) SetItem(t reflect.Type, h SetItemHandler) *RegistryBuilder {
	b.r.setItem[t] = h
	return b
}

// And overrides "and" when the left operand has type t.
func (b *RegistryBuilder) And(t reflect.Type, h LogicalHandler) *RegistryBuilder {
	b.r.and[t] = h
	return b
}

// Or overrides "or" when the left operand has type t.
func (b *RegistryBuilder) Or(t reflect.Type, h LogicalHandler) *RegistryBuilder {
	b.r.or[t] = h
	return b
}

// Not overrides "not" on operands of type t.
func (b *RegistryBuilder) Not(t reflect.Type, h NotHandler) *RegistryBuilder {
	b.r.not[t] = h
	return b
}

// Eq overrides equality when the left operand has type t.
func (b *RegistryBuilder) Eq(t reflect.Type, h EqHandler) *RegistryBuilder {
	b.r.eq[t] = h
	return b
}

// Build returns a snapshot of the registrations made so far. Later
// registrations on the builder do not affect it.
func (b *RegistryBuilder) Build() *Registry {
	return &Registry{
		ifStmt:    maps.Clone(b.r.ifStmt),
		whileStmt: maps.Clone(b.r.whileStmt),
		forStmt:   maps.Clone(b.r.forStmt),
		ifExp:     maps.Clone(b.r.ifExp),
		getItem:   maps.Clone(b.r.getItem),
		setItem:   maps.Clone(b.r.setItem),
		and:       maps.Clone(b.r.and),
		or:        maps.Clone(b.r.or),
		not:       maps.Clone(b.r.not),
		eq:        maps.Clone(b.r.eq),
	}
}

// Dispatcher routes operator calls through a registry, falling back to host
// semantics for unregistered types. The zero value has no registrations.
type Dispatcher struct {
	reg *Registry
}

// NewDispatcher returns a dispatcher over reg. A nil registry is empty.
func NewDispatcher(reg *Registry) *Dispatcher {
	if reg == nil {
		reg = NewRegistryBuilder().Build()
	}
	return &Dispatcher{reg: reg}
}

// Registry returns the registry the dispatcher consults.
func (d *Dispatcher) Registry() *Registry {
	if d.reg == nil {
		return &Registry{}
	}
	return d.reg
}
