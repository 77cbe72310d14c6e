package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-malt/internal/config"
	"github.com/l3aro/go-malt/internal/healthcheck"
	"github.com/l3aro/go-malt/pkg/cfg"
	"github.com/l3aro/go-malt/pkg/parser"
)

const totalSrc = `def total(xs):
    s = 0
    for x in xs:
        if x > 1:
            s += x
    return s


def add(a, b):
    print(a)
    return a + b
`

func useDefaults(t *testing.T) {
	t.Helper()
	color.NoColor = true
	cfg := config.DefaultConfig()
	cfg.CachePath = ""
	settings = cfg
}

func TestRenderDiff(t *testing.T) {
	useDefaults(t)
	before := "a\nb\nc\nd\ne\nf\ng\nh\n"
	after := "a\nb\nc\nd\ne\nf\ng\nH\n"

	var buf bytes.Buffer
	renderDiff(&buf, "x.py", before, after)
	out := buf.String()

	assert.Contains(t, out, "--- x.py\n")
	assert.Contains(t, out, "+++ x.py (rewritten)\n")
	assert.Contains(t, out, "@@ 4 unchanged lines @@\n")
	assert.Contains(t, out, " e\n f\n g\n")
	assert.Contains(t, out, "-h\n")
	assert.Contains(t, out, "+H\n")
	assert.NotContains(t, out, " a\n")
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, splitLines(""))
	assert.Equal(t, []string{"a", "b"}, splitLines("a\nb\n"))
}

func TestIsLiteral(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"3", true},
		{"-2.5", true},
		{"'text'", true},
		{"[1, (2, 3), {'k': None}]", true},
		{"x", false},
		{"f(1)", false},
		{"[1, y]", false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := parser.ParseExpression(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, isLiteral(e))
		})
	}
}

func TestRunFunction(t *testing.T) {
	useDefaults(t)
	ctx := context.Background()

	out, err := runFunction(ctx, []byte(totalSrc), "add", []string{"1", "2"})
	require.NoError(t, err)
	assert.Equal(t, outcome{Stdout: "1\n", Result: "3"}, out)

	out, err = runFunction(ctx, []byte(totalSrc), "add", []string{"1", "'a'"})
	require.NoError(t, err)
	assert.Contains(t, out.Error, "TypeError")

	_, err = runFunction(ctx, []byte(totalSrc), "add", []string{"1", "os"})
	assert.Error(t, err)
}

func TestRunComparesRewrite(t *testing.T) {
	useDefaults(t)
	ctx := context.Background()

	rewritten, err := transformForRun(ctx, []byte(totalSrc))
	require.NoError(t, err)
	assert.Contains(t, string(rewritten), "ag__.for_stmt")

	original, err := runFunction(ctx, []byte(totalSrc), "total", []string{"[1, 2, 3]"})
	require.NoError(t, err)
	converted, err := runFunction(ctx, rewritten, "total", []string{"[1, 2, 3]"})
	require.NoError(t, err)
	assert.Equal(t, "5", original.Result)
	assert.True(t, original.equal(converted))

	var buf bytes.Buffer
	printComparison(&buf, comparison{Original: original, Converted: converted, Match: true})
	assert.Contains(t, buf.String(), "=> 5\n")
	assert.Contains(t, buf.String(), "match\n")
}

func TestAnalyzeSource(t *testing.T) {
	useDefaults(t)
	ctx := context.Background()

	report, err := analyzeSource(ctx, []byte(totalSrc), []string{"total"})
	require.NoError(t, err)
	require.Len(t, report, 1)
	fa := report[0]
	assert.Equal(t, "total", fa.Function)
	assert.Empty(t, fa.Error)
	assert.Len(t, fa.Constructs, 2)

	var loopState []string
	for _, st := range fa.StateTuples {
		if st.Kind == "for" {
			loopState = st.Symbols
		}
	}
	assert.Equal(t, []string{"s"}, loopState)

	var buf bytes.Buffer
	printAnalysis(&buf, report)
	assert.Contains(t, buf.String(), "Total: 2 constructs")

	_, err = analyzeSource(ctx, []byte(totalSrc), []string{"missing"})
	assert.ErrorIs(t, err, parser.ErrFunctionNotFound)
}

func TestGraphView(t *testing.T) {
	fn, err := parser.ParseFunction(context.Background(), []byte(totalSrc), "add")
	require.NoError(t, err)
	g, err := cfg.Build(fn)
	require.NoError(t, err)

	v := newGraphView(g)
	assert.Equal(t, "add", v.Function)

	var items []string
	for _, b := range v.Blocks {
		items = append(items, b.Items...)
	}
	assert.Contains(t, items, "params(a, b)")
	assert.Contains(t, items, "return a + b")

	var buf bytes.Buffer
	printGraph(&buf, v)
	assert.True(t, strings.HasPrefix(buf.String(), "=== CFG for function: add ===\n"))
}

func TestRewriteCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	color.NoColor = true

	path := filepath.Join(dir, "prog.py")
	require.NoError(t, os.WriteFile(path, []byte(totalSrc), 0644))

	var buf bytes.Buffer
	RootCmd.SetOut(&buf)
	RootCmd.SetArgs([]string{"rewrite", path, "--no-cache", "--function", "total"})
	require.NoError(t, RootCmd.Execute())
	assert.Contains(t, buf.String(), "def total(xs):")
	assert.Contains(t, buf.String(), "ag__.for_stmt(xs, None, loop_body")
	assert.NotContains(t, buf.String(), "def add")
}

func TestRewriteChangedOnly(t *testing.T) {
	useDefaults(t)
	ctx := context.Background()
	src := t.TempDir()
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.py"), []byte(totalSrc), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.py"), []byte("def g(x):\n    return x\n"), 0644))

	flags := rewriteFlags{outDir: out, changed: true}
	var buf bytes.Buffer
	require.NoError(t, runRewrite(ctx, &buf, src, flags))
	rewritten, err := os.ReadFile(filepath.Join(out, "a.py"))
	require.NoError(t, err)
	assert.Contains(t, string(rewritten), "ag__.for_stmt")
	_, err = os.Stat(filepath.Join(out, ".gmalt", "dirty.msgpack"))
	require.NoError(t, err)

	// Unchanged inputs are not written again.
	require.NoError(t, os.Remove(filepath.Join(out, "a.py")))
	require.NoError(t, runRewrite(ctx, &buf, src, flags))
	_, err = os.Stat(filepath.Join(out, "a.py"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, os.WriteFile(filepath.Join(src, "a.py"), []byte(totalSrc+"\nLIMIT = 3\n"), 0644))
	require.NoError(t, runRewrite(ctx, &buf, src, flags))
	_, err = os.Stat(filepath.Join(out, "a.py"))
	assert.NoError(t, err)

	assert.Error(t, runRewrite(ctx, &buf, src, rewriteFlags{changed: true}))
}

func TestPrintHealth(t *testing.T) {
	useDefaults(t)
	result, err := healthcheck.Check(context.Background(), settings, "", "")
	require.NoError(t, err)

	var buf bytes.Buffer
	printHealth(&buf, result)
	assert.Contains(t, buf.String(), "Effective Config: defaults\n")
	assert.Contains(t, buf.String(), "cache: disabled\n")
	assert.Contains(t, buf.String(), "pipeline: ready\n")
}
