package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/cfg"
	"github.com/l3aro/go-malt/pkg/parser"
	"github.com/l3aro/go-malt/pkg/printer"
)

// cfgCmd represents the cfg command
var cfgCmd = &cobra.Command{
	Use:   "cfg <file> <function>",
	Short: "Show the control flow graph of a function",
	Long: `Builds the control flow graph of a top-level function in a Python file.
Outputs blocks with their items, edges and cyclomatic complexity.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := readPythonFile(args[0])
		if err != nil {
			return err
		}
		fn, err := parser.ParseFunction(cmd.Context(), src, args[1])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		g, err := cfg.Build(fn)
		if err != nil {
			return fmt.Errorf("building CFG: %w", err)
		}

		view := newGraphView(g)
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return writeJSON(cmd.OutOrStdout(), view)
		}
		printGraph(cmd.OutOrStdout(), view)
		return nil
	},
}

// graphView is the printable form of a graph.
type graphView struct {
	Function             string      `json:"function"`
	CyclomaticComplexity int         `json:"cyclomatic_complexity"`
	Entry                int         `json:"entry"`
	Exit                 int         `json:"exit"`
	Blocks               []blockView `json:"blocks"`
	Edges                []cfg.Edge  `json:"edges"`
}

type blockView struct {
	ID    int           `json:"id"`
	Type  cfg.BlockType `json:"type"`
	Items []string      `json:"items"`
}

func newGraphView(g *cfg.Graph) graphView {
	v := graphView{
		Function:             g.Name,
		CyclomaticComplexity: g.CyclomaticComplexity(),
		Entry:                g.Entry,
		Exit:                 g.Exit,
		Edges:                g.Edges,
	}
	for _, b := range g.Blocks {
		bv := blockView{ID: b.ID, Type: b.Type, Items: []string{}}
		for _, it := range b.Items {
			bv.Items = append(bv.Items, itemText(it))
		}
		v.Blocks = append(v.Blocks, bv)
	}
	return v
}

// itemText renders a block item on one line.
func itemText(it cfg.Item) string {
	switch n := it.Node.(type) {
	case *ast.Arguments:
		var names []string
		for _, a := range n.Args {
			names = append(names, a.ID)
		}
		if n.Vararg != nil {
			names = append(names, "*"+n.Vararg.ID)
		}
		if n.Kwarg != nil {
			names = append(names, "**"+n.Kwarg.ID)
		}
		return "params(" + strings.Join(names, ", ") + ")"
	case *ast.For:
		return "for " + printer.Expr(n.Target) + " in ..."
	case *ast.FunctionDef:
		return "def " + n.Name
	case ast.Expr:
		return fmt.Sprintf("%s: %s", it.Role, printer.Expr(n))
	case ast.Stmt:
		line, _, _ := strings.Cut(printer.Source(n), "\n")
		return line
	}
	return string(it.Role)
}

func printGraph(w io.Writer, v graphView) {
	fmt.Fprintf(w, "=== CFG for function: %s ===\n", v.Function)
	fmt.Fprintf(w, "Cyclomatic Complexity: %d\n", v.CyclomaticComplexity)
	fmt.Fprintf(w, "Entry Block: %d\n", v.Entry)
	fmt.Fprintf(w, "Exit Block: %d\n", v.Exit)
	fmt.Fprintf(w, "\nBlocks (%d):\n", len(v.Blocks))
	for _, b := range v.Blocks {
		fmt.Fprintf(w, "  %d (%s)\n", b.ID, b.Type)
		for _, item := range b.Items {
			fmt.Fprintf(w, "    %s\n", item)
		}
	}
	fmt.Fprintf(w, "\nEdges (%d):\n", len(v.Edges))
	for _, e := range v.Edges {
		fmt.Fprintf(w, "  %d --%s--> %d\n", e.From, e.Type, e.To)
	}
}

func init() {
	cfgCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(cfgCmd)
}
