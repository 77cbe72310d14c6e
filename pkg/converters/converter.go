// Package converters implements the rewrite passes that turn a function into
// its functional form. Passes run in a fixed order over a single function
// tree, which they modify in place. Each pass recomputes the analyses it needs.
package converters

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/l3aro/go-malt/internal/log"
	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/cfg"
	"github.com/l3aro/go-malt/pkg/naming"
)

// Feature is an opt-in rewrite category.
type Feature string

const (
	FeatureAll               Feature = "ALL"
	FeatureAutoControlDeps   Feature = "AUTO_CONTROL_DEPS"
	FeatureAssertStatements  Feature = "ASSERT_STATEMENTS"
	FeatureBuiltinFunctions  Feature = "BUILTIN_FUNCTIONS"
	FeatureEqualityOperators Feature = "EQUALITY_OPERATORS"
	FeatureLists             Feature = "LISTS"
	FeatureNameScopes        Feature = "NAME_SCOPES"
)

// Features lists every known feature.
var Features = []Feature{
	FeatureAll,
	FeatureAutoControlDeps,
	FeatureAssertStatements,
	FeatureBuiltinFunctions,
	FeatureEqualityOperators,
	FeatureLists,
	FeatureNameScopes,
}

// ParseFeature parses a feature name, case-insensitively.
func ParseFeature(s string) (Feature, error) {
	f := Feature(strings.ToUpper(strings.TrimSpace(s)))
	if !slices.Contains(Features, f) {
		return "", fmt.Errorf("%w: unknown feature %q", ErrConfig, s)
	}
	return f, nil
}

// Options control which rewrites are applied.
type Options struct {
	// Recursive marks referenced user functions for conversion.
	Recursive bool
	// UserRequested is set when the function was explicitly selected for
	// conversion, as opposed to reached through recursion.
	UserRequested bool
	Features      []Feature
}

// Uses reports whether feature f is enabled.
func (o Options) Uses(f Feature) bool {
	return slices.Contains(o.Features, f) || slices.Contains(o.Features, FeatureAll)
}

// Validate checks the options for unknown features.
func (o Options) Validate() error {
	for _, f := range o.Features {
		if !slices.Contains(Features, f) {
			return fmt.Errorf("%w: unknown feature %q", ErrConfig, f)
		}
	}
	return nil
}

// Errors surfaced by conversion. Use errors.Is to classify a failure.
var (
	ErrUnsupportedConstruct      = cfg.ErrUnsupportedConstruct
	ErrMultipleAssignmentTargets = errors.New("multiple assignment targets")
	ErrAmbiguousState            = errors.New("ambiguous state")
	ErrConfig                    = errors.New("configuration error")
)

// Error reports a conversion failure at a site of the converted entity.
type Error struct {
	Kind   error
	Entity string
	Pos    ast.Pos
	Err    error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("converting ")
	sb.WriteString(e.Entity)
	if e.Pos.Line > 0 {
		sb.WriteString(" at ")
		sb.WriteString(e.Pos.String())
	}
	sb.WriteString(": ")
	sb.WriteString(e.Kind.Error())
	if e.Err != nil && e.Err != e.Kind {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// BindingKind classifies a name visible to the converted function.
type BindingKind int

const (
	BindValue BindingKind = iota
	BindBuiltin
	BindFunction // a user function, eligible for conversion
	BindModule
)

func (k BindingKind) String() string {
	switch k {
	case BindBuiltin:
		return "builtin"
	case BindFunction:
		return "function"
	case BindModule:
		return "module"
	default:
		return "value"
	}
}

// Binding describes a free name of the converted function.
type Binding struct {
	Kind BindingKind
}

// StateTuple records the state chosen for one construct.
type StateTuple struct {
	Kind    string   `json:"kind"`
	Line    int      `json:"line"`
	Symbols []string `json:"symbols"`
	Outputs int      `json:"outputs"`
}

// Context is the per-entity state shared by the passes.
type Context struct {
	Entity    string
	Options   Options
	Namespace map[string]Binding
	Namer     *naming.Namer
	Logger    log.Logger

	// Filled in by the passes.
	Referenced  []string
	StateTuples []StateTuple
}

// NewContext prepares a context for converting fn. Every name appearing in fn
// is reserved so generated names never shadow user code.
func NewContext(fn *ast.FunctionDef, opts Options, ns map[string]Binding) *Context {
	namer := naming.New(ast.NamesIn(fn))
	namer.Reserve(Module)
	return &Context{
		Entity:    fn.Name,
		Options:   opts,
		Namespace: ns,
		Namer:     namer,
		Logger:    log.Default(),
	}
}

// Module is the name the operator library is bound to in converted code.
const Module = "ag__"

func (c *Context) errorf(kind error, n ast.Node, format string, args ...any) error {
	e := &Error{Kind: kind, Entity: c.Entity}
	if n != nil {
		e.Pos = n.Pos()
	}
	if format != "" {
		e.Err = fmt.Errorf(format, args...)
	}
	return e
}

func (c *Context) wrap(err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	var ue *cfg.UnsupportedError
	if errors.As(err, &ue) {
		return &Error{Kind: ErrUnsupportedConstruct, Entity: c.Entity, Pos: ue.Pos, Err: err}
	}
	return fmt.Errorf("converting %s: %w", c.Entity, err)
}

func (c *Context) reference(name string) {
	if !slices.Contains(c.Referenced, name) {
		c.Referenced = append(c.Referenced, name)
	}
}

// Pass is one rewrite step.
type Pass struct {
	Name string
	// Feature gates the pass; empty means always on.
	Feature Feature
	Apply   func(ctx *Context, fn *ast.FunctionDef) error
}

// Pipeline is the pass order. Jump lowering comes first so the control flow
// pass only sees structured loops.
var Pipeline = []Pass{
	{Name: "break_statements", Apply: BreakStatements},
	{Name: "continue_statements", Apply: ContinueStatements},
	{Name: "return_statements", Apply: ReturnStatements},
	{Name: "asserts", Feature: FeatureAssertStatements, Apply: Asserts},
	{Name: "lists", Feature: FeatureLists, Apply: Lists},
	{Name: "slices", Apply: Slices},
	{Name: "call_trees", Feature: FeatureBuiltinFunctions, Apply: CallTrees},
	{Name: "control_flow", Apply: ControlFlow},
	{Name: "conditional_expressions", Apply: ConditionalExpressions},
	{Name: "logical_expressions", Apply: LogicalExpressions},
}

// Convert runs the enabled passes over fn.
func Convert(ctx *Context, fn *ast.FunctionDef) error {
	if err := ctx.Options.Validate(); err != nil {
		return fmt.Errorf("converting %s: %w", ctx.Entity, err)
	}
	for _, p := range Pipeline {
		if p.Feature != "" && !ctx.Options.Uses(p.Feature) {
			continue
		}
		start := time.Now()
		if err := p.Apply(ctx, fn); err != nil {
			return ctx.wrap(err)
		}
		ctx.Logger.Debug("pass done", "entity", ctx.Entity, "pass", p.Name, "elapsed", time.Since(start))
	}
	return nil
}
