package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/interp"
	"github.com/l3aro/go-malt/pkg/operators"
	"github.com/l3aro/go-malt/pkg/parser"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <file> <function> [args...]",
	Short: "Call a function with the built-in interpreter",
	Long: `Executes a Python file with the built-in interpreter and calls one of its
functions. Arguments are Python literals, for example 3, 'text' or [1, 2].

With --compare the file is also rewritten and both versions are run, showing
whether printed output, return value and raised error agree.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := readPythonFile(args[0])
		if err != nil {
			return err
		}
		compare, _ := cmd.Flags().GetBool("compare")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		ctx := cmd.Context()
		original, err := runFunction(ctx, src, args[1], args[2:])
		if err != nil {
			return err
		}
		if !compare {
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), original)
			}
			printOutcome(cmd.OutOrStdout(), original)
			if original.Error != "" {
				return fmt.Errorf("%s raised %s", args[1], original.Error)
			}
			return nil
		}

		rewritten, err := transformForRun(ctx, src)
		if err != nil {
			return err
		}
		converted, err := runFunction(ctx, rewritten, args[1], args[2:])
		if err != nil {
			return err
		}
		cmp := comparison{Original: original, Converted: converted, Match: original.equal(converted)}
		if jsonOutput {
			if err := writeJSON(cmd.OutOrStdout(), cmp); err != nil {
				return err
			}
		} else {
			printComparison(cmd.OutOrStdout(), cmp)
		}
		if !cmp.Match {
			return fmt.Errorf("behavior of %s changed after rewrite", args[1])
		}
		return nil
	},
}

// outcome is what one call produced.
type outcome struct {
	Stdout string `json:"stdout"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (o outcome) equal(other outcome) bool {
	return o.Stdout == other.Stdout && o.Result == other.Result && o.Error == other.Error
}

type comparison struct {
	Original  outcome `json:"original"`
	Converted outcome `json:"converted"`
	Match     bool    `json:"match"`
}

// runFunction executes src and calls name with the literal arguments. Errors
// raised by the program are reported in the outcome; the returned error is
// for failures to set the call up.
func runFunction(ctx context.Context, src []byte, name string, literals []string) (outcome, error) {
	mod, err := parser.ParseModule(ctx, src)
	if err != nil {
		return outcome{}, err
	}
	var stdout bytes.Buffer
	ip := interp.New(interp.Options{Stdout: &stdout, Logger: logger})
	if err := ip.Exec(ctx, mod); err != nil {
		return outcome{}, fmt.Errorf("executing module: %w", err)
	}
	args := make([]any, len(literals))
	for i, lit := range literals {
		if args[i], err = evalLiteral(ctx, ip, lit); err != nil {
			return outcome{}, err
		}
	}
	result, err := ip.Call(ctx, name, args...)
	out := outcome{Stdout: stdout.String()}
	if err != nil {
		out.Error = err.Error()
	} else {
		out.Result = operators.Repr(result)
	}
	return out, nil
}

// evalLiteral evaluates a command line argument. Only literal expressions are
// accepted so arguments cannot reach into the program under test.
func evalLiteral(ctx context.Context, ip *interp.Interpreter, lit string) (any, error) {
	e, err := parser.ParseExpression(lit)
	if err != nil {
		return nil, fmt.Errorf("argument %q: %w", lit, err)
	}
	if !isLiteral(e) {
		return nil, fmt.Errorf("argument %q is not a literal", lit)
	}
	return ip.Eval(ctx, e)
}

func isLiteral(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.Constant:
		return true
	case *ast.UnaryOp:
		return isLiteral(e.Operand)
	case *ast.List:
		return allLiterals(e.Elts)
	case *ast.Tuple:
		return allLiterals(e.Elts)
	case *ast.Dict:
		for i, k := range e.Keys {
			if k == nil || !isLiteral(k) || !isLiteral(e.Values[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func allLiterals(es []ast.Expr) bool {
	for _, e := range es {
		if !isLiteral(e) {
			return false
		}
	}
	return true
}

// transformForRun rewrites every function of src, keeping the original of
// any function that cannot be converted.
func transformForRun(ctx context.Context, src []byte) ([]byte, error) {
	opts, err := settings.ConverterOptions()
	if err != nil {
		return nil, err
	}
	opts.UserRequested = false
	tr, flush, err := openTransformer()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := flush(); err != nil {
			logger.Warn("saving cache", "error", err)
		}
	}()
	res, err := tr.TransformModule(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	for _, r := range res.Functions {
		if r.Fallback {
			logger.Warn("function left unconverted", "function", r.Name, "error", r.Error)
		}
	}
	return []byte(res.Source), nil
}

func printOutcome(w io.Writer, o outcome) {
	if o.Stdout != "" {
		fmt.Fprint(w, o.Stdout)
	}
	if o.Error != "" {
		color.New(color.FgRed).Fprintf(w, "error: %s\n", o.Error)
		return
	}
	fmt.Fprintf(w, "=> %s\n", o.Result)
}

func printComparison(w io.Writer, c comparison) {
	bold := color.New(color.Bold)
	bold.Fprintln(w, "original:")
	printOutcome(w, c.Original)
	bold.Fprintln(w, "converted:")
	printOutcome(w, c.Converted)
	if c.Match {
		color.New(color.FgGreen).Fprintln(w, "match")
		return
	}
	red := color.New(color.FgRed)
	red.Fprintln(w, "mismatch")
	if c.Original.Stdout != c.Converted.Stdout {
		renderDiff(w, "stdout", c.Original.Stdout, c.Converted.Stdout)
	}
}

func init() {
	runCmd.Flags().BoolP("compare", "c", false, "Also run the rewritten code and compare behavior")
	runCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(runCmd)
}
