// Package transpiler is the entity-level entry point of the rewriter. It
// parses source, runs the conversion passes over the requested functions and
// caches the rewritten code by source identity.
package transpiler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/l3aro/go-malt/internal/log"
	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/cache"
	"github.com/l3aro/go-malt/pkg/converters"
	"github.com/l3aro/go-malt/pkg/parser"
	"github.com/l3aro/go-malt/pkg/printer"
)

// Options control a conversion.
type Options = converters.Options

// EntityInfo identifies the function to convert.
type EntityInfo struct {
	// Name of a top-level function in Source. May be empty when Source defines
	// exactly one function.
	Name       string
	Source     []byte
	SourceFile string
	// Namespace describes the names visible to the function. When nil it is
	// derived from the top level of Source.
	Namespace map[string]converters.Binding
}

// Result is the outcome of converting one function.
type Result struct {
	Name          string                  `json:"name" msgpack:"name"`
	Node          *ast.FunctionDef        `json:"-" msgpack:"-"`
	Source        string                  `json:"source" msgpack:"source"`
	ExtraBindings []string                `json:"extra_bindings,omitempty" msgpack:"extra_bindings"`
	Referenced    []string                `json:"referenced,omitempty" msgpack:"referenced"`
	StateTuples   []converters.StateTuple `json:"state_tuples,omitempty" msgpack:"state_tuples"`

	// Fallback is set when conversion failed for a function that was not
	// explicitly requested; Source then holds the unconverted function.
	Fallback bool   `json:"fallback,omitempty" msgpack:"-"`
	Error    string `json:"error,omitempty" msgpack:"-"`
	Cached   bool   `json:"cached,omitempty" msgpack:"-"`
	Err      error  `json:"-" msgpack:"-"`
}

// ModuleResult holds the per-function results of a module conversion, in
// definition order.
type ModuleResult struct {
	Functions []*Result `json:"functions"`
	// Source is the module with every converted function replaced.
	Source string `json:"source"`
}

// Function returns the result for name, or nil.
func (m *ModuleResult) Function(name string) *Result {
	for _, r := range m.Functions {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Config configures a Transformer.
type Config struct {
	// Cache stores rewrite results; nil disables caching.
	Cache  *cache.Store
	Logger log.Logger
}

// Transformer converts functions. It is safe for concurrent use.
type Transformer struct {
	cache  *cache.Store
	logger log.Logger
}

// New creates a Transformer.
func New(cfg Config) *Transformer {
	t := &Transformer{cache: cfg.Cache, logger: cfg.Logger}
	if t.logger == nil {
		t.logger = log.Default()
	}
	return t
}

// Flush persists the cache, if any.
func (t *Transformer) Flush() error {
	if t.cache == nil {
		return nil
	}
	return t.cache.Flush()
}

// Transform converts a single function. When opts.UserRequested is false a
// conversion failure is not returned as an error: the result carries the
// original function with Fallback set.
func (t *Transformer) Transform(ctx context.Context, info EntityInfo, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	mod, err := parser.ParseModule(ctx, info.Source)
	if err != nil {
		return nil, withFile(info.SourceFile, err)
	}
	fn, err := pick(mod, info.Name)
	if err != nil {
		return nil, withFile(info.SourceFile, err)
	}
	ns := info.Namespace
	if ns == nil {
		ns = Namespace(mod)
	}
	r := t.convert(ctx, fn, ns, opts)
	if r.Err != nil && !r.Fallback {
		return r, withFile(info.SourceFile, r.Err)
	}
	return r, nil
}

// TransformModule converts every top-level function of src.
func (t *Transformer) TransformModule(ctx context.Context, src []byte, opts Options) (*ModuleResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	mod, err := parser.ParseModule(ctx, src)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, fn := range parser.Functions(mod) {
		names = append(names, fn.Name)
	}
	return t.transform(ctx, mod, names, opts)
}

// TransformFunctions converts the named top-level functions of src. With
// opts.Recursive, user functions they call are converted as well, as if not
// requested by the user.
func (t *Transformer) TransformFunctions(ctx context.Context, src []byte, names []string, opts Options) (*ModuleResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	mod, err := parser.ParseModule(ctx, src)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if _, err := pick(mod, name); err != nil {
			return nil, err
		}
	}
	return t.transform(ctx, mod, names, opts)
}

// transform converts names concurrently, then the functions they reference,
// until no new function is reached. Every goroutine owns a copy of its tree.
func (t *Transformer) transform(ctx context.Context, mod *ast.Module, names []string, opts Options) (*ModuleResult, error) {
	defs := make(map[string]*ast.FunctionDef)
	for _, fn := range parser.Functions(mod) {
		defs[fn.Name] = fn
	}
	ns := Namespace(mod)

	done := make(map[string]*Result)
	wave := names
	for len(wave) > 0 {
		results := make([]*Result, len(wave))
		var wg sync.WaitGroup
		for i, name := range wave {
			wg.Add(1)
			go func() {
				defer wg.Done()
				fn := ast.CopyStmt(defs[name]).(*ast.FunctionDef)
				results[i] = t.convert(ctx, fn, ns, opts)
			}()
		}
		wg.Wait()

		var next []string
		for _, r := range results {
			done[r.Name] = r
		}
		if opts.Recursive {
			for _, r := range results {
				for _, ref := range r.Referenced {
					if _, seen := done[ref]; seen || defs[ref] == nil || slices.Contains(next, ref) {
						continue
					}
					next = append(next, ref)
				}
			}
		}
		wave = next
		opts.UserRequested = false
	}

	out := &ModuleResult{}
	body := make([]ast.Stmt, 0, len(mod.Body))
	var errs []error
	for _, s := range mod.Body {
		fn, ok := s.(*ast.FunctionDef)
		if !ok {
			body = append(body, s)
			continue
		}
		r, ok := done[fn.Name]
		if !ok {
			body = append(body, s)
			continue
		}
		out.Functions = append(out.Functions, r)
		if r.Err != nil && !r.Fallback {
			errs = append(errs, r.Err)
		}
		if r.Node != nil {
			body = append(body, r.Node)
		} else {
			body = append(body, s)
		}
	}
	out.Source = printer.Source(&ast.Module{Body: body})
	return out, errors.Join(errs...)
}

// cacheEntry is the persisted part of a Result.
type cacheEntry struct {
	Source        string                  `msgpack:"source"`
	ExtraBindings []string                `msgpack:"extra_bindings"`
	Referenced    []string                `msgpack:"referenced"`
	StateTuples   []converters.StateTuple `msgpack:"state_tuples"`
}

func (t *Transformer) convert(ctx context.Context, fn *ast.FunctionDef, ns map[string]converters.Binding, opts Options) *Result {
	original := printer.Source(fn)
	pristine := ast.CopyStmt(fn).(*ast.FunctionDef)
	r := &Result{Name: fn.Name}
	fail := func(err error) *Result {
		r.Err, r.Error = err, err.Error()
		if !opts.UserRequested {
			r.Fallback = true
			r.Node, r.Source = pristine, original
			t.logger.Warn("conversion failed, keeping original", "function", fn.Name, "error", err)
		}
		return r
	}
	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("converting %s: %w", fn.Name, err))
	}

	key, err := cache.Key([]byte(original), cacheParams(opts, ns)...)
	if err != nil {
		return fail(err)
	}
	if t.cache != nil {
		var e cacheEntry
		if err := t.cache.Get(key, &e); err == nil {
			if node, err := parser.ParseFunction(ctx, []byte(e.Source), fn.Name); err == nil {
				t.logger.Debug("cache hit", "function", fn.Name)
				r.Node, r.Source = node, e.Source
				r.ExtraBindings, r.Referenced, r.StateTuples = e.ExtraBindings, e.Referenced, e.StateTuples
				r.Cached = true
				return r
			}
			t.cache.Delete(key)
		}
	}

	start := time.Now()
	cctx := converters.NewContext(fn, opts, ns)
	cctx.Logger = t.logger
	if err := converters.Convert(cctx, fn); err != nil {
		return fail(err)
	}
	r.Node = fn
	r.Source = printer.Source(fn)
	r.ExtraBindings = []string{converters.Module}
	r.Referenced = cctx.Referenced
	r.StateTuples = cctx.StateTuples
	t.logger.Debug("converted", "function", fn.Name, "constructs", len(r.StateTuples), "elapsed", time.Since(start))

	if t.cache != nil {
		e := cacheEntry{Source: r.Source, ExtraBindings: r.ExtraBindings, Referenced: r.Referenced, StateTuples: r.StateTuples}
		if err := t.cache.Put(key, e); err != nil {
			t.logger.Warn("caching result", "function", fn.Name, "error", err)
		}
	}
	return r
}

// cacheParams lists everything besides the source that affects a rewrite.
func cacheParams(opts Options, ns map[string]converters.Binding) []string {
	features := make([]string, len(opts.Features))
	for i, f := range opts.Features {
		features[i] = string(f)
	}
	sort.Strings(features)
	params := []string{
		fmt.Sprintf("recursive=%t", opts.Recursive),
		"features=" + strings.Join(features, ","),
	}
	names := make([]string, 0, len(ns))
	for name := range ns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		params = append(params, name+"="+ns[name].Kind.String())
	}
	return params
}

func pick(mod *ast.Module, name string) (*ast.FunctionDef, error) {
	fns := parser.Functions(mod)
	if name == "" {
		if len(fns) != 1 {
			return nil, fmt.Errorf("%w: source defines %d functions, name one", parser.ErrFunctionNotFound, len(fns))
		}
		return fns[0], nil
	}
	for _, fn := range fns {
		if fn.Name == name {
			return fn, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", parser.ErrFunctionNotFound, name)
}

func withFile(file string, err error) error {
	if file == "" {
		return err
	}
	return fmt.Errorf("%s: %w", file, err)
}
