// Package interp is a tree-walking evaluator for the supported Python subset.
// It runs both original and rewritten functions, binding ag__ to the operator
// library, so their observable behavior can be compared: printed output,
// return values and raised errors.
package interp

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/l3aro/go-malt/internal/log"
	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/operators"
)

// DefaultMaxDepth bounds nested calls before RecursionError is raised.
const DefaultMaxDepth = 500

// Options configure an Interpreter.
type Options struct {
	// Stdout receives print output. Defaults to os.Stdout.
	Stdout io.Writer
	// Dispatcher routes ag__ operators; nil uses host semantics only.
	Dispatcher *operators.Dispatcher
	MaxDepth   int
	Logger     log.Logger
}

// Interpreter executes modules and calls their functions. It is not safe for
// concurrent use; create one per goroutine.
type Interpreter struct {
	stdout   io.Writer
	dispatch *operators.Dispatcher
	logger   log.Logger
	maxDepth int

	globals  map[string]any
	builtins map[string]any
	scopes   map[ast.Node]*scopeInfo

	ctx   context.Context
	depth int
}

// New creates an interpreter with a fresh global namespace.
func New(opts Options) *Interpreter {
	ip := &Interpreter{
		stdout:   opts.Stdout,
		dispatch: opts.Dispatcher,
		logger:   opts.Logger,
		maxDepth: opts.MaxDepth,
		globals:  make(map[string]any),
		scopes:   make(map[ast.Node]*scopeInfo),
		ctx:      context.Background(),
	}
	if ip.stdout == nil {
		ip.stdout = os.Stdout
	}
	if ip.dispatch == nil {
		ip.dispatch = operators.NewDispatcher(nil)
	}
	if ip.logger == nil {
		ip.logger = log.Default()
	}
	if ip.maxDepth <= 0 {
		ip.maxDepth = DefaultMaxDepth
	}
	ip.builtins = ip.hostBuiltins()
	ip.builtins[ModuleName] = ip.agModule()
	return ip
}

// ModuleName is the global name the operator library is bound to.
const ModuleName = "ag__"

// Exec runs the top-level statements of mod in the global namespace.
func (ip *Interpreter) Exec(ctx context.Context, mod *ast.Module) error {
	return ip.with(ctx, func() error {
		f := &frame{}
		c, err := ip.execBlock(f, mod.Body)
		if err != nil {
			return err
		}
		if c != ctrlNone {
			return operators.Raise("SyntaxError", "'%s' outside function", c)
		}
		return nil
	})
}

// Define binds fn in the global namespace, as a def statement at module level
// would.
func (ip *Interpreter) Define(ctx context.Context, fn *ast.FunctionDef) error {
	return ip.Exec(ctx, &ast.Module{Body: []ast.Stmt{fn}})
}

// Call calls the global function name with positional arguments.
func (ip *Interpreter) Call(ctx context.Context, name string, args ...any) (any, error) {
	fn, ok := ip.globals[name]
	if !ok {
		return nil, operators.Raise("NameError", "name '%s' is not defined", name)
	}
	var out any
	err := ip.with(ctx, func() error {
		var err error
		out, err = ip.call(fn, args, nil)
		return err
	})
	if err != nil {
		ip.logger.Debug("call failed", "function", name, "error", err)
	}
	return out, err
}

// Eval evaluates an expression in the global namespace.
func (ip *Interpreter) Eval(ctx context.Context, e ast.Expr) (any, error) {
	var out any
	err := ip.with(ctx, func() error {
		var err error
		out, err = ip.eval(&frame{}, e)
		return err
	})
	return out, err
}

// Global returns a global binding.
func (ip *Interpreter) Global(name string) (any, bool) {
	v, ok := ip.globals[name]
	return v, ok
}

// SetGlobal binds a global name.
func (ip *Interpreter) SetGlobal(name string, v any) {
	ip.globals[name] = v
}

func (ip *Interpreter) with(ctx context.Context, f func() error) error {
	prev := ip.ctx
	ip.ctx = ctx
	defer func() { ip.ctx = prev }()
	return f()
}

func (ip *Interpreter) checkContext() error {
	if err := ip.ctx.Err(); err != nil {
		return fmt.Errorf("interrupted: %w", err)
	}
	return nil
}

// cell holds one variable of a function scope.
type cell struct {
	v     any
	bound bool
}

// env is the variable storage of one function activation. Closures keep the
// env of their defining activation as parent.
type env struct {
	parent *env
	info   *scopeInfo
	cells  map[string]*cell
}

func newEnv(parent *env, info *scopeInfo) *env {
	e := &env{parent: parent, info: info, cells: make(map[string]*cell, len(info.locals))}
	for id := range info.locals {
		e.cells[id] = &cell{}
	}
	return e
}

// frame is the execution state of one activation; a nil env means module
// level.
type frame struct {
	env *env
	ret any
}

func (ip *Interpreter) loadGlobal(name string) (any, error) {
	if v, ok := ip.globals[name]; ok {
		return v, nil
	}
	if v, ok := ip.builtins[name]; ok {
		return v, nil
	}
	return nil, operators.Raise("NameError", "name '%s' is not defined", name)
}

// enclosing finds the cell a free or nonlocal name refers to. It returns nil
// when the name resolves to the global namespace.
func enclosing(e *env, name string) *cell {
	for p := e.parent; p != nil; p = p.parent {
		if p.info.globals[name] {
			return nil
		}
		if p.info.locals[name] {
			return p.cells[name]
		}
	}
	return nil
}

func (ip *Interpreter) load(f *frame, name string) (any, error) {
	e := f.env
	if e == nil || e.info.globals[name] {
		return ip.loadGlobal(name)
	}
	if e.info.locals[name] {
		c := e.cells[name]
		if !c.bound {
			return nil, operators.Raise("UnboundLocalError", "local variable '%s' referenced before assignment", name)
		}
		return c.v, nil
	}
	if c := enclosing(e, name); c != nil {
		if !c.bound {
			return nil, operators.Raise("NameError", "free variable '%s' referenced before assignment in enclosing scope", name)
		}
		return c.v, nil
	}
	return ip.loadGlobal(name)
}

func (ip *Interpreter) store(f *frame, name string, v any) error {
	e := f.env
	if e == nil || e.info.globals[name] {
		ip.globals[name] = v
		return nil
	}
	if c, ok := e.cells[name]; ok {
		c.v, c.bound = v, true
		return nil
	}
	if c := enclosing(e, name); c != nil {
		c.v, c.bound = v, true
		return nil
	}
	ip.globals[name] = v
	return nil
}
