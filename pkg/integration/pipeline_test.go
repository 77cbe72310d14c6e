// Package integration provides end-to-end tests for the complete rewrite
// pipeline: Scan → Parse → CFG → Dataflow → Convert → Interpret.
package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-malt/internal/scanner"
	"github.com/l3aro/go-malt/pkg/cache"
	"github.com/l3aro/go-malt/pkg/cfg"
	"github.com/l3aro/go-malt/pkg/dfg"
	"github.com/l3aro/go-malt/pkg/interp"
	"github.com/l3aro/go-malt/pkg/operators"
	"github.com/l3aro/go-malt/pkg/parser"
	"github.com/l3aro/go-malt/pkg/transpiler"
)

// getTestProjectPath returns the path to the test sample project.
func getTestProjectPath() string {
	return filepath.Join("testdata", "sample_project")
}

func ints(vs ...int64) *operators.List {
	l := &operators.List{}
	for _, v := range vs {
		l.Items = append(l.Items, v)
	}
	return l
}

type call struct {
	function string
	args     []any
}

var calls = map[string][]call{
	"calculator.py": {
		{"add", []any{int64(2), int64(3)}},
		{"factorial", []any{int64(5)}},
		{"factorial", []any{int64(0)}},
		{"power", []any{int64(2), int64(10)}},
		{"clamp", []any{int64(-4), int64(0), int64(9)}},
		{"clamp", []any{int64(12), int64(0), int64(9)}},
		{"clamp", []any{int64(4), int64(0), int64(9)}},
	},
	"utils.py": {
		{"normalize", []any{ints(1, 3)}},
		{"normalize", []any{ints(0, 0)}},
		{"first_negative", []any{ints(4, -1, -2)}},
		{"first_negative", []any{ints(1)}},
		{"describe", []any{int64(7)}},
		{"describe", []any{int64(8)}},
	},
	"main.py": {
		{"score", []any{ints(3, 9, 4)}},
		{"score", []any{ints()}},
	},
}

// run executes src and calls every function in cs, returning one line per
// call with the printed output, result and error.
func run(t *testing.T, src string, cs []call) []string {
	t.Helper()
	ctx := context.Background()
	mod, err := parser.ParseModule(ctx, []byte(src))
	require.NoError(t, err)

	var out bytes.Buffer
	ip := interp.New(interp.Options{Stdout: &out})
	require.NoError(t, ip.Exec(ctx, mod))

	var lines []string
	for _, c := range cs {
		out.Reset()
		v, err := ip.Call(ctx, c.function, c.args...)
		line := c.function + ": " + out.String() + operators.Repr(v)
		if err != nil {
			line = c.function + ": " + out.String() + "raised " + err.Error()
		}
		lines = append(lines, line)
	}
	return lines
}

// TestFullPipeline tests the complete pipeline:
// Scan Project → Analyze → Rewrite (cached) → Run Original and Rewritten
func TestFullPipeline(t *testing.T) {
	projectPath := getTestProjectPath()
	ctx := context.Background()

	// Step 1: Scan the project, honoring .gmaltignore
	files, err := scanner.Scan(projectPath)
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		names = append(names, f.Path)
	}
	require.Equal(t, []string{"calculator.py", "main.py", "utils.py"}, names)

	// Step 2: Control flow and dataflow of a loop
	t.Run("Analyze", func(t *testing.T) {
		src, err := os.ReadFile(filepath.Join(projectPath, "calculator.py"))
		require.NoError(t, err)
		fn, err := parser.ParseFunction(ctx, src, "factorial")
		require.NoError(t, err)

		g, err := cfg.Build(fn)
		require.NoError(t, err)
		assert.Greater(t, g.CyclomaticComplexity(), 1)

		res, err := dfg.Analyze(fn)
		require.NoError(t, err)
		info := res.Info()
		require.Len(t, info.Constructs, 1)
		assert.ElementsMatch(t, []string{"n", "result"}, info.Constructs[0].Mutated)
	})

	// Step 3: Rewrite every file and compare behavior
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.msgpack"), cache.Options{})
	require.NoError(t, err)
	tr := transpiler.New(transpiler.Config{Cache: store})
	opts := transpiler.Options{Recursive: true, UserRequested: true}

	for _, f := range files {
		t.Run(f.Path, func(t *testing.T) {
			src, err := os.ReadFile(f.FullPath)
			require.NoError(t, err)

			m, err := tr.TransformModule(ctx, src, opts)
			require.NoError(t, err)
			for _, r := range m.Functions {
				assert.False(t, r.Fallback, r.Name)
			}
			assert.Contains(t, m.Source, "ag__.")

			want := run(t, string(src), calls[f.Path])
			got := run(t, m.Source, calls[f.Path])
			assert.Equal(t, want, got)
		})
	}
	require.NoError(t, tr.Flush())

	// Step 4: A second run is served from the cache snapshot
	t.Run("Cached", func(t *testing.T) {
		reopened, err := cache.Open(store.Path(), cache.Options{})
		require.NoError(t, err)
		tr := transpiler.New(transpiler.Config{Cache: reopened})

		src, err := os.ReadFile(filepath.Join(projectPath, "main.py"))
		require.NoError(t, err)
		m, err := tr.TransformModule(ctx, src, opts)
		require.NoError(t, err)
		for _, r := range m.Functions {
			assert.True(t, r.Cached, r.Name)
		}
	})
}
