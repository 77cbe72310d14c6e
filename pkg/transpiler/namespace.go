package transpiler

import (
	"strings"

	"github.com/l3aro/go-malt/pkg/ast"
	"github.com/l3aro/go-malt/pkg/converters"
)

// Namespace describes the names bound at the top level of mod: functions are
// conversion candidates, imports are modules and anything else assigned is a
// plain value. Names not listed resolve to builtins.
func Namespace(mod *ast.Module) map[string]converters.Binding {
	ns := make(map[string]converters.Binding)
	bind := func(e ast.Expr) {
		for _, id := range targetNames(e) {
			ns[id] = converters.Binding{Kind: converters.BindValue}
		}
	}
	for _, s := range mod.Body {
		switch s := s.(type) {
		case *ast.FunctionDef:
			ns[s.Name] = converters.Binding{Kind: converters.BindFunction}
		case *ast.Assign:
			for _, t := range s.Targets {
				bind(t)
			}
		case *ast.AugAssign:
			bind(s.Target)
		case *ast.For:
			bind(s.Target)
		case *ast.Unsupported:
			for _, id := range importedNames(s) {
				ns[id] = converters.Binding{Kind: converters.BindModule}
			}
		}
	}
	return ns
}

func targetNames(e ast.Expr) []string {
	switch e := e.(type) {
	case *ast.Name:
		return []string{e.ID}
	case *ast.Tuple:
		var ids []string
		for _, el := range e.Elts {
			ids = append(ids, targetNames(el)...)
		}
		return ids
	case *ast.List:
		var ids []string
		for _, el := range e.Elts {
			ids = append(ids, targetNames(el)...)
		}
		return ids
	}
	return nil
}

// importedNames returns the names an import statement binds:
// "import a.b" binds a, "import a as b" and "from m import a as b" bind b.
func importedNames(s *ast.Unsupported) []string {
	text := strings.Join(strings.Fields(s.Text), " ")
	var list string
	switch s.Kind {
	case "import_statement":
		list = strings.TrimPrefix(text, "import ")
	case "import_from_statement":
		_, after, ok := strings.Cut(text, " import ")
		if !ok {
			return nil
		}
		list = strings.Trim(after, "() ")
	default:
		return nil
	}
	var ids []string
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" || item == "*" {
			continue
		}
		if _, alias, ok := strings.Cut(item, " as "); ok {
			ids = append(ids, strings.TrimSpace(alias))
			continue
		}
		if s.Kind == "import_statement" {
			item, _, _ = strings.Cut(item, ".")
		}
		ids = append(ids, item)
	}
	return ids
}
