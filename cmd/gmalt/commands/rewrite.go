package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-malt/internal/log"
	"github.com/l3aro/go-malt/pkg/converters"
	"github.com/l3aro/go-malt/pkg/dirty"
	"github.com/l3aro/go-malt/pkg/parser"
	"github.com/l3aro/go-malt/pkg/printer"
	"github.com/l3aro/go-malt/pkg/transpiler"
)

// rewriteCmd represents the rewrite command
var rewriteCmd = &cobra.Command{
	Use:   "rewrite <path>",
	Short: "Rewrite the functions of a file or directory",
	Long: `Rewrites every top-level function of a Python file, or of every .py file
under a directory, into functional form. With --function only the named
functions are rewritten (plus the functions they call, with --recursive).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		functions, _ := cmd.Flags().GetStringSlice("function")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		showDiff, _ := cmd.Flags().GetBool("diff")
		outDir, _ := cmd.Flags().GetString("output")
		changedOnly, _ := cmd.Flags().GetBool("changed-only")
		return runRewrite(cmd.Context(), cmd.OutOrStdout(), args[0], rewriteFlags{
			functions: functions,
			json:      jsonOutput,
			diff:      showDiff,
			outDir:    outDir,
			changed:   changedOnly,
		})
	},
}

type rewriteFlags struct {
	functions []string
	json      bool
	diff      bool
	outDir    string
	changed   bool
}

// fileResult is the JSON form of one rewritten file.
type fileResult struct {
	File      string               `json:"file"`
	Functions []*transpiler.Result `json:"functions,omitempty"`
	Source    string               `json:"source,omitempty"`
	Error     string               `json:"error,omitempty"`
}

func runRewrite(ctx context.Context, w io.Writer, path string, flags rewriteFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	files, err := sourceFiles(path)
	if err != nil {
		return err
	}
	if len(flags.functions) > 0 && len(files) != 1 {
		return fmt.Errorf("--function requires a single file")
	}
	if flags.changed && flags.outDir == "" {
		return fmt.Errorf("--changed-only requires --output")
	}
	opts, err := settings.ConverterOptions()
	if err != nil {
		return err
	}
	var tracker *dirty.Tracker
	if flags.changed {
		tracker, err = dirty.Open(
			dirty.WithPath(filepath.Join(flags.outDir, dirty.DefaultFile)),
			dirty.WithParams(optionParams(opts)...),
		)
		if err != nil {
			return err
		}
	}
	tr, flush, err := openTransformer()
	if err != nil {
		return err
	}

	var spinner *log.ProgressSpinner
	if len(files) > 1 && !flags.json && isatty.IsTerminal(os.Stderr.Fd()) {
		spinner = log.NewProgressSpinner(os.Stderr, "rewriting")
		spinner.Start()
		defer spinner.Stop()
	}

	var (
		results []fileResult
		failed  int
		skipped int
	)
	for _, file := range files {
		if spinner != nil {
			spinner.Message("rewriting " + file)
		}
		if tracker != nil {
			changed, err := tracker.CheckAndMarkContext(ctx, file)
			if err != nil {
				return err
			}
			if !changed {
				skipped++
				logger.Debug("unchanged since last rewrite", "file", file)
				continue
			}
		}
		src, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading file %s: %w", file, err)
		}

		var m *transpiler.ModuleResult
		if len(flags.functions) > 0 {
			m, err = tr.TransformFunctions(ctx, src, flags.functions, opts)
		} else {
			m, err = tr.TransformModule(ctx, src, opts)
		}
		fr := fileResult{File: file}
		if m != nil {
			fr.Functions = m.Functions
			fr.Source = m.Source
		}
		if err != nil {
			failed++
			fr.Error = err.Error()
			logger.Error("rewrite failed", "file", file, "error", err)
		}
		for _, r := range fr.Functions {
			if r.Fallback {
				logger.Warn("kept original function", "file", file, "function", r.Name, "error", r.Error)
			}
		}
		results = append(results, fr)
		if err != nil && !flags.json {
			continue
		}

		switch {
		case flags.json:
		case flags.diff:
			before, err := normalized(ctx, src)
			if err != nil {
				return err
			}
			if spinner != nil {
				spinner.Stop()
			}
			renderDiff(w, file, before, fr.Source)
			if spinner != nil {
				spinner.Start()
			}
		case flags.outDir != "":
			if err := writeRewritten(path, file, flags.outDir, fr.Source); err != nil {
				return err
			}
			if tracker != nil {
				tracker.ClearDirty(file)
			}
		case len(flags.functions) > 0:
			for _, r := range fr.Functions {
				fmt.Fprint(w, r.Source)
			}
		default:
			if len(files) > 1 {
				fmt.Fprintf(w, "# %s\n", file)
			}
			fmt.Fprint(w, fr.Source)
		}
	}
	if spinner != nil {
		spinner.Stop()
	}
	if err := flush(); err != nil {
		logger.Warn("saving cache", "error", err)
	}
	if tracker != nil {
		tracker.Prune()
		if err := tracker.Save(); err != nil {
			logger.Warn("saving rewrite state", "error", err)
		}
		logger.Info("incremental rewrite", "rewritten", len(files)-skipped, "unchanged", skipped)
	}
	if flags.json {
		if err := writeJSON(w, results); err != nil {
			return err
		}
	}
	if failed > 0 {
		if len(files) == 1 {
			return errors.New(results[0].Error)
		}
		return fmt.Errorf("%d of %d files failed to rewrite", failed, len(files))
	}
	return nil
}

// optionParams are the options that change what a rewrite produces.
func optionParams(opts converters.Options) []string {
	features := make([]string, len(opts.Features))
	for i, f := range opts.Features {
		features[i] = string(f)
	}
	slices.Sort(features)
	return []string{
		"recursive=" + strconv.FormatBool(opts.Recursive),
		"features=" + strings.Join(features, ","),
	}
}

// normalized renders src through the printer so diffs only show rewrites.
func normalized(ctx context.Context, src []byte) (string, error) {
	mod, err := parser.ParseModule(ctx, src)
	if err != nil {
		return "", err
	}
	return printer.Source(mod), nil
}

func writeRewritten(root, file, outDir, source string) error {
	rel, err := filepath.Rel(root, file)
	if err != nil || rel == "." {
		rel = filepath.Base(file)
	}
	dst := filepath.Join(outDir, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(dst, []byte(source), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return nil
}

// diffContext is the number of unchanged lines shown around a change.
const diffContext = 3

// renderDiff prints a line diff of before and after.
func renderDiff(w io.Writer, name, before, after string) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToRunes(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(a, b, false), lines)

	bold := color.New(color.Bold)
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	hunk := color.New(color.FgCyan)

	bold.Fprintf(w, "--- %s\n", name)
	bold.Fprintf(w, "+++ %s (rewritten)\n", name)
	for i, d := range diffs {
		text := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			for _, l := range text {
				added.Fprintf(w, "+%s\n", l)
			}
		case diffmatchpatch.DiffDelete:
			for _, l := range text {
				removed.Fprintf(w, "-%s\n", l)
			}
		default:
			head, tail := diffContext, diffContext
			if i == 0 {
				head = 0
			}
			if i == len(diffs)-1 {
				tail = 0
			}
			if len(text) <= head+tail {
				for _, l := range text {
					fmt.Fprintf(w, " %s\n", l)
				}
				continue
			}
			for _, l := range text[:head] {
				fmt.Fprintf(w, " %s\n", l)
			}
			hunk.Fprintf(w, "@@ %d unchanged lines @@\n", len(text)-head-tail)
			for _, l := range text[len(text)-tail:] {
				fmt.Fprintf(w, " %s\n", l)
			}
		}
	}
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func init() {
	rewriteCmd.Flags().StringSliceP("function", "f", nil, "Function to rewrite (repeatable)")
	rewriteCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	rewriteCmd.Flags().BoolP("diff", "d", false, "Show a diff against the original")
	rewriteCmd.Flags().StringP("output", "o", "", "Write rewritten files under this directory")
	rewriteCmd.Flags().Bool("changed-only", false, "With --output, skip files unchanged since the last rewrite")
	RootCmd.AddCommand(rewriteCmd)
}
