package dfg

// RefType represents the type of symbol reference in data flow analysis.
type RefType string

const (
	RefTypeDefinition RefType = "definition" // Symbol definition (assignment)
	RefTypeUse        RefType = "use"        // Symbol use (read)
)

// VarRef represents a symbol reference in the source code.
type VarRef struct {
	Name    string  `json:"name"`     // Rendered symbol, e.g. "x.a[0]"
	RefType RefType `json:"ref_type"` // Type of reference (definition, use)
	Line    int     `json:"line"`     // Line number in source
	Column  int     `json:"column"`   // Column number in source
}

// DataflowEdge connects a definition to a use it reaches.
type DataflowEdge struct {
	DefRef  VarRef `json:"def_ref"`  // Definition reference
	UseRef  VarRef `json:"use_ref"`  // Use reference
	VarName string `json:"var_name"` // Name of the symbol being tracked
}

// DFGInfo summarizes the data flow of a function.
type DFGInfo struct {
	FunctionName  string          `json:"function_name"`  // Name of the function
	DataflowEdges []DataflowEdge  `json:"dataflow_edges"` // Def-use chains
	Constructs    []ConstructInfo `json:"constructs"`     // Facts per control-flow construct
}

// ConstructInfo is the serializable form of Facts.
type ConstructInfo struct {
	Kind      string   `json:"kind"`
	Line      int      `json:"line"`
	Mutated   []string `json:"mutated"`
	LiveIn    []string `json:"live_in"`
	LiveOut   []string `json:"live_out"`
	DefinedIn []string `json:"defined_in"`
	Captured  []string `json:"captured,omitempty"`
	Fndefs    []string `json:"fndefs,omitempty"`
}
