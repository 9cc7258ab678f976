// Package docgen extracts documentation from Starlark files and renders it.
//
// A Builder parses a set of source files into an API model: module
// docstrings, functions with their Python-style docstrings (first string
// literal in the body), parameters, globals and load() statements. A
// Renderer turns that model into Markdown, JSON or a small HTML site.
package docgen

// API is the documentation model for a set of files.
type API struct {
	// Modules are in the order the files were given to the builder.
	Modules []ModuleDoc `json:"modules"`
}

// ModuleDoc represents documentation for a Starlark module (file).
type ModuleDoc struct {
	// File is the source file path.
	File string `json:"file"`

	// Name is the base name of File.
	Name string `json:"name"`

	// Docstring is the module-level docstring (if any).
	Docstring string `json:"docstring,omitempty"`

	// Loads lists the module's load() statements in source order.
	Loads []LoadDoc `json:"loads,omitempty"`

	// Functions contains documentation for all functions.
	Functions []FunctionDoc `json:"functions,omitempty"`

	// Globals contains documentation for global variables.
	Globals []GlobalDoc `json:"globals,omitempty"`
}

// FunctionDoc represents documentation for a single function.
type FunctionDoc struct {
	Name      string           `json:"name"`
	Docstring string           `json:"docstring,omitempty"`
	Parsed    *ParsedDocstring `json:"parsed,omitempty"`
	Params    []ParamDoc       `json:"params,omitempty"`
	Line      int              `json:"line"`

	// IsPrivate indicates if the function name starts with _.
	IsPrivate bool `json:"private,omitempty"`
}

// ParamDoc represents a function parameter.
type ParamDoc struct {
	// Name includes the * or ** prefix for variadic parameters.
	Name string `json:"name"`

	// Default is the default value (if any), as source text.
	Default    string `json:"default,omitempty"`
	HasDefault bool   `json:"has_default,omitempty"`
}

// GlobalDoc represents a global variable assignment.
type GlobalDoc struct {
	Name string `json:"name"`

	// Value is the assigned value as source text (truncated if long).
	Value     string `json:"value,omitempty"`
	Line      int    `json:"line"`
	IsPrivate bool   `json:"private,omitempty"`
}

// LoadDoc represents a load() statement.
type LoadDoc struct {
	// Module is the loaded module label, e.g. "//lib:defs.bzl".
	Module string `json:"module"`

	// Symbols are the imported names, local name first.
	Symbols []LoadSymbol `json:"symbols,omitempty"`

	Line int `json:"line"`
}

// LoadSymbol is one binding introduced by load().
type LoadSymbol struct {
	Local    string `json:"local"`
	Exported string `json:"exported"`
}

// Function returns the module's function with the given name.
func (m *ModuleDoc) Function(name string) (FunctionDoc, bool) {
	for _, fn := range m.Functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return FunctionDoc{}, false
}

// Summary returns the first paragraph of the module docstring.
func (m *ModuleDoc) Summary() string {
	return splitSummaryDescription(m.Docstring)[0]
}

// IsEmpty reports whether the module has nothing to document.
func (m *ModuleDoc) IsEmpty() bool {
	return m.Docstring == "" && len(m.Functions) == 0 && len(m.Globals) == 0 && len(m.Loads) == 0
}
