package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/converters"
	"github.com/l3aro/go-malt/pkg/dfg"
	"github.com/l3aro/go-malt/pkg/parser"
	"github.com/l3aro/go-malt/pkg/transpiler"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Show dataflow facts and chosen state per construct",
	Long: `Runs the dataflow analyses over the functions of a Python file and shows,
for each if, while and for statement, the symbols it mutates, the symbols live
around it and those defined before it, followed by the state the rewrite
threads through each construct.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := readPythonFile(args[0])
		if err != nil {
			return err
		}
		functions, _ := cmd.Flags().GetStringSlice("function")
		report, err := analyzeSource(cmd.Context(), src, functions)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return writeJSON(cmd.OutOrStdout(), report)
		}
		printAnalysis(cmd.OutOrStdout(), report)
		return nil
	},
}

// functionAnalysis is the report for one function.
type functionAnalysis struct {
	Function    string                  `json:"function"`
	Constructs  []dfg.ConstructInfo     `json:"constructs"`
	StateTuples []converters.StateTuple `json:"state_tuples"`
	Error       string                  `json:"error,omitempty"`
}

func analyzeSource(ctx context.Context, src []byte, functions []string) ([]functionAnalysis, error) {
	mod, err := parser.ParseModule(ctx, src)
	if err != nil {
		return nil, err
	}
	opts, err := settings.ConverterOptions()
	if err != nil {
		return nil, err
	}
	opts.UserRequested = true
	tr, flush, err := openTransformer()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := flush(); err != nil {
			logger.Warn("saving cache", "error", err)
		}
	}()

	var report []functionAnalysis
	for _, fn := range parser.Functions(mod) {
		if len(functions) > 0 && !contains(functions, fn.Name) {
			continue
		}
		fa := functionAnalysis{Function: fn.Name}
		res, err := dfg.Analyze(ast.CopyStmt(fn).(*ast.FunctionDef))
		if err != nil {
			fa.Error = err.Error()
			report = append(report, fa)
			continue
		}
		fa.Constructs = res.Info().Constructs

		r, err := tr.Transform(ctx, transpiler.EntityInfo{Name: fn.Name, Source: src}, opts)
		if err != nil {
			fa.Error = err.Error()
		} else {
			fa.StateTuples = r.StateTuples
		}
		report = append(report, fa)
	}
	for _, name := range functions {
		if !hasFunction(report, name) {
			return nil, fmt.Errorf("%w: %q", parser.ErrFunctionNotFound, name)
		}
	}
	return report, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func hasFunction(report []functionAnalysis, name string) bool {
	for _, fa := range report {
		if fa.Function == name {
			return true
		}
	}
	return false
}

func printAnalysis(w io.Writer, report []functionAnalysis) {
	facts := table.NewWriter()
	facts.SetOutputMirror(w)
	facts.SetStyle(table.StyleLight)
	facts.SetTitle("Dataflow")
	facts.AppendHeader(table.Row{"Function", "Construct", "Line", "Mutated", "Live in", "Live out", "Defined in"})

	state := table.NewWriter()
	state.SetOutputMirror(w)
	state.SetStyle(table.StyleLight)
	state.SetTitle("Loop and branch state")
	state.AppendHeader(table.Row{"Function", "Construct", "Line", "State", "Outputs"})

	var constructs, tuples int
	for _, fa := range report {
		if fa.Error != "" {
			state.AppendRow(table.Row{fa.Function, "error", "", fa.Error, ""})
		}
		for _, c := range fa.Constructs {
			facts.AppendRow(table.Row{fa.Function, c.Kind, c.Line, list(c.Mutated), list(c.LiveIn), list(c.LiveOut), list(c.DefinedIn)})
			constructs++
		}
		for _, st := range fa.StateTuples {
			state.AppendRow(table.Row{fa.Function, st.Kind, st.Line, list(st.Symbols), st.Outputs})
			tuples++
		}
	}
	facts.AppendFooter(table.Row{fmt.Sprintf("Total: %d constructs", constructs)})
	state.AppendFooter(table.Row{fmt.Sprintf("Total: %d constructs", tuples)})

	facts.Render()
	fmt.Fprintln(w)
	state.Render()
}

func list(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func init() {
	analyzeCmd.Flags().StringSliceP("function", "f", nil, "Function to analyze (repeatable)")
	analyzeCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(analyzeCmd)
}
