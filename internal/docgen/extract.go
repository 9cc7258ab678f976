package docgen

import (
	"path/filepath"
	"sort"
	"strings"

	"go.starlark.net/syntax"
)

// SortOrder controls the order of functions and globals within a module.
type SortOrder string

const (
	// SortName orders symbols alphabetically.
	SortName SortOrder = "name"
	// SortSource keeps symbols in the order they are defined.
	SortSource SortOrder = "source"
)

// BuildOptions configures the documentation extraction.
type BuildOptions struct {
	// IncludePrivate includes private symbols (starting with _).
	IncludePrivate bool

	// Sort is the symbol order. Empty means SortName.
	Sort SortOrder

	// Concurrency bounds how many files are parsed at once.
	// Zero or less means GOMAXPROCS.
	Concurrency int
}

// DefaultBuildOptions returns sensible defaults.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{Sort: SortName}
}

// maxValueWidth is the longest global value rendered before truncation.
const maxValueWidth = 50

// ExtractFile extracts documentation from a Starlark file.
func ExtractFile(filename string, src []byte, opts BuildOptions) (*ModuleDoc, error) {
	f, err := syntax.Parse(filename, src, syntax.RetainComments)
	if err != nil {
		return nil, err
	}

	doc := &ModuleDoc{
		File: filename,
		Name: filepath.Base(filename),
	}

	if len(f.Stmts) > 0 {
		doc.Docstring = extractExprDocstring(f.Stmts[0])
	}

	for _, stmt := range f.Stmts {
		switch s := stmt.(type) {
		case *syntax.DefStmt:
			fn := extractFunctionDoc(s)
			if opts.IncludePrivate || !fn.IsPrivate {
				doc.Functions = append(doc.Functions, fn)
			}

		case *syntax.AssignStmt:
			// Only simple assignments (x = value).
			ident, ok := s.LHS.(*syntax.Ident)
			if !ok || s.Op != syntax.EQ {
				continue
			}
			g := GlobalDoc{
				Name:      ident.Name,
				Value:     truncateValue(s.RHS),
				Line:      int(s.OpPos.Line),
				IsPrivate: isPrivate(ident.Name),
			}
			if opts.IncludePrivate || !g.IsPrivate {
				doc.Globals = append(doc.Globals, g)
			}

		case *syntax.LoadStmt:
			doc.Loads = append(doc.Loads, extractLoadDoc(s))
		}
	}

	if opts.Sort != SortSource {
		sort.SliceStable(doc.Functions, func(i, j int) bool {
			return doc.Functions[i].Name < doc.Functions[j].Name
		})
		sort.SliceStable(doc.Globals, func(i, j int) bool {
			return doc.Globals[i].Name < doc.Globals[j].Name
		})
	}

	return doc, nil
}

func isPrivate(name string) bool {
	return strings.HasPrefix(name, "_")
}

func extractFunctionDoc(def *syntax.DefStmt) FunctionDoc {
	doc := FunctionDoc{
		Name:      def.Name.Name,
		Line:      int(def.Def.Line),
		IsPrivate: isPrivate(def.Name.Name),
	}

	for _, param := range def.Params {
		doc.Params = append(doc.Params, extractParamDoc(param))
	}

	if len(def.Body) > 0 {
		doc.Docstring = extractExprDocstring(def.Body[0])
	}
	if doc.Docstring != "" {
		doc.Parsed = ParseDocstring(doc.Docstring)
	}

	return doc
}

func extractParamDoc(expr syntax.Expr) ParamDoc {
	switch p := expr.(type) {
	case *syntax.Ident:
		return ParamDoc{Name: p.Name}

	case *syntax.BinaryExpr:
		// name = default
		if p.Op == syntax.EQ {
			if ident, ok := p.X.(*syntax.Ident); ok {
				return ParamDoc{
					Name:       ident.Name,
					Default:    exprToString(p.Y),
					HasDefault: true,
				}
			}
		}

	case *syntax.UnaryExpr:
		// *args, **kwargs, or a bare * separator.
		prefix := "*"
		if p.Op == syntax.STARSTAR {
			prefix = "**"
		}
		if p.X == nil {
			return ParamDoc{Name: prefix}
		}
		if ident, ok := p.X.(*syntax.Ident); ok {
			return ParamDoc{Name: prefix + ident.Name}
		}
	}

	return ParamDoc{Name: "?"}
}

func extractLoadDoc(load *syntax.LoadStmt) LoadDoc {
	doc := LoadDoc{Line: int(load.Load.Line)}
	if module, ok := load.Module.Value.(string); ok {
		doc.Module = module
	}
	for i := range load.To {
		doc.Symbols = append(doc.Symbols, LoadSymbol{
			Local:    load.To[i].Name,
			Exported: load.From[i].Name,
		})
	}
	return doc
}

// extractExprDocstring returns the string literal of an expression
// statement, or "".
func extractExprDocstring(stmt syntax.Stmt) string {
	exprStmt, ok := stmt.(*syntax.ExprStmt)
	if !ok {
		return ""
	}

	lit, ok := exprStmt.X.(*syntax.Literal)
	if !ok || lit.Token != syntax.STRING {
		return ""
	}

	// Already unquoted by the parser.
	if s, ok := lit.Value.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// exprToString converts an expression to a short source-like string.
func exprToString(expr syntax.Expr) string {
	switch e := expr.(type) {
	case *syntax.Ident:
		return e.Name
	case *syntax.Literal:
		switch e.Token {
		case syntax.STRING:
			if s, ok := e.Value.(string); ok {
				return `"` + s + `"`
			}
		case syntax.INT, syntax.FLOAT:
			return e.Raw
		}
	case *syntax.UnaryExpr:
		if e.Op == syntax.MINUS && e.X != nil {
			return "-" + exprToString(e.X)
		}
	case *syntax.ListExpr:
		if len(e.List) == 0 {
			return "[]"
		}
		return "[...]"
	case *syntax.DictExpr:
		if len(e.List) == 0 {
			return "{}"
		}
		return "{...}"
	case *syntax.TupleExpr:
		return "(...)"
	case *syntax.DotExpr:
		return exprToString(e.X) + "." + e.Name.Name
	case *syntax.CallExpr:
		if fn, ok := e.Fn.(*syntax.Ident); ok {
			return fn.Name + "(...)"
		}
		return "(...)"
	}
	return "..."
}

func truncateValue(expr syntax.Expr) string {
	s := exprToString(expr)
	if len(s) > maxValueWidth {
		return s[:maxValueWidth-3] + "..."
	}
	return s
}
