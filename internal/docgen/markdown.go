package docgen

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// RenderMarkdown renders the API as a single Markdown document.
func RenderMarkdown(w io.Writer, api *API, opts FormatOptions) error {
	var body bytes.Buffer
	renderMarkdownBody(&body, api, opts)

	if opts.Frontmatter {
		fm, err := frontmatter(markdownTitle(opts), body.Bytes())
		if err != nil {
			return err
		}
		if _, err := w.Write(fm); err != nil {
			return err
		}
	}
	_, err := w.Write(body.Bytes())
	return err
}

func markdownTitle(opts FormatOptions) string {
	switch {
	case opts.Title != "":
		return opts.Title
	case opts.Name != "":
		return opts.Name
	}
	return "API"
}

func renderMarkdownBody(w *bytes.Buffer, api *API, opts FormatOptions) {
	writef(w, "# %s\n\n", markdownTitle(opts))

	// Headings are assigned anchors in document order, so the TOC has to
	// be computed against the same slugger before anything is written.
	slugs := newSlugger()
	slugs.add(markdownTitle(opts))
	if opts.TableOfContents {
		slugs.add("Contents")
	}
	anchors := make([]moduleAnchors, len(api.Modules))
	for i := range api.Modules {
		anchors[i] = assignAnchors(slugs, &api.Modules[i])
	}

	if opts.TableOfContents && len(api.Modules) > 0 {
		writeln(w, "## Contents\n")
		for i, mod := range api.Modules {
			writef(w, "- [%s](#%s)\n", mod.Name, anchors[i].module)
			for j, fn := range mod.Functions {
				writef(w, "  - [%s](#%s)\n", fn.Name, anchors[i].functions[j])
			}
		}
		writeln(w, "")
	}

	for i := range api.Modules {
		renderModuleMarkdown(w, &api.Modules[i], opts)
	}
}

type moduleAnchors struct {
	module    string
	functions []string
}

// assignAnchors walks the headings renderModuleMarkdown will emit.
func assignAnchors(s *slugger, mod *ModuleDoc) moduleAnchors {
	a := moduleAnchors{module: s.add(mod.Name)}
	if len(mod.Loads) > 0 {
		s.add("Loads")
	}
	if len(mod.Functions) > 0 {
		s.add("Functions")
		for _, fn := range mod.Functions {
			a.functions = append(a.functions, s.add(fn.Name))
		}
	}
	if len(mod.Globals) > 0 {
		s.add("Variables")
		for _, g := range mod.Globals {
			s.add(g.Name)
		}
	}
	return a
}

func renderModuleMarkdown(w *bytes.Buffer, mod *ModuleDoc, opts FormatOptions) {
	writef(w, "## %s\n\n", mod.Name)

	if link := sourceLink(opts, mod.File, 0); link != "" {
		writef(w, "*Source: [%s](%s)*\n\n", mod.File, link)
	}

	if mod.Docstring != "" {
		writef(w, "%s\n\n", mod.Docstring)
	}

	if len(mod.Loads) > 0 {
		writeln(w, "### Loads\n")
		for _, l := range mod.Loads {
			var names []string
			for _, s := range l.Symbols {
				if s.Local == s.Exported {
					names = append(names, "`"+s.Local+"`")
				} else {
					names = append(names, fmt.Sprintf("`%s` as `%s`", s.Exported, s.Local))
				}
			}
			writef(w, "- `%s`: %s\n", l.Module, strings.Join(names, ", "))
		}
		writeln(w, "")
	}

	if len(mod.Functions) > 0 {
		writeln(w, "### Functions\n")
		for _, fn := range mod.Functions {
			renderFunctionMarkdown(w, mod.File, fn, opts)
		}
	}

	if len(mod.Globals) > 0 {
		writeln(w, "### Variables\n")
		for _, g := range mod.Globals {
			writef(w, "#### `%s`\n\n", g.Name)
			if g.Value != "" && g.Value != "..." {
				writef(w, "```python\n%s = %s\n```\n\n", g.Name, g.Value)
			}
		}
	}
}

func renderFunctionMarkdown(w *bytes.Buffer, file string, fn FunctionDoc, opts FormatOptions) {
	writef(w, "#### %s\n\n", fn.Name)
	writef(w, "```python\n%s\n```\n\n", buildSignature(fn))

	if link := sourceLink(opts, file, fn.Line); link != "" {
		writef(w, "*Defined at [line %d](%s)*\n\n", fn.Line, link)
	}

	if fn.Parsed.HasDocumentation() {
		renderParsedDocstring(w, fn, opts)
	} else if fn.Docstring != "" {
		writef(w, "%s\n\n", fn.Docstring)
	}

	writeln(w, "---\n")
}

// buildSignature builds a function signature string.
func buildSignature(fn FunctionDoc) string {
	params := make([]string, 0, len(fn.Params))
	for _, p := range fn.Params {
		if p.HasDefault {
			params = append(params, fmt.Sprintf("%s=%s", p.Name, p.Default))
		} else {
			params = append(params, p.Name)
		}
	}
	return fmt.Sprintf("def %s(%s)", fn.Name, strings.Join(params, ", "))
}

func renderParsedDocstring(w *bytes.Buffer, fn FunctionDoc, opts FormatOptions) {
	p := fn.Parsed

	if p.Deprecated != "" {
		writef(w, "> **Deprecated:** %s\n\n", p.Deprecated)
	}
	if p.Summary != "" {
		writef(w, "%s\n\n", p.Summary)
	}
	if p.Description != "" {
		writef(w, "%s\n\n", p.Description)
	}

	if rows := argumentRows(fn); len(rows) > 0 {
		writeln(w, "**Arguments:**\n")
		writeln(w, "| Name | Description |")
		writeln(w, "|------|-------------|")
		for _, row := range rows {
			writef(w, "| `%s` | %s |\n", row[0], escapeCell(row[1]))
		}
		writeln(w, "")
	}

	if p.Returns != "" {
		writeln(w, "**Returns:**\n")
		writef(w, "%s\n\n", p.Returns)
	}

	if len(p.Raises) > 0 {
		writeln(w, "**Raises:**\n")
		for _, r := range p.Raises {
			writef(w, "- `%s`: %s\n", r.Name, r.Description)
		}
		writeln(w, "")
	}

	if p.Example != "" {
		example := p.Example
		if opts.FormatExamples {
			example = formatExample(example)
		}
		writeln(w, "**Example:**\n")
		writef(w, "```python\n%s\n```\n\n", example)
	}

	if p.Note != "" {
		writeln(w, "**Note:**\n")
		writef(w, "> %s\n\n", strings.ReplaceAll(p.Note, "\n", "\n> "))
	}
}

// argumentRows pairs signature parameters with their documentation, then
// appends documented names missing from the signature.
func argumentRows(fn FunctionDoc) [][2]string {
	var rows [][2]string
	inSignature := make(map[string]bool, len(fn.Params))

	for _, param := range fn.Params {
		inSignature[param.Name] = true
		desc, ok := fn.Parsed.Arg(param.Name)
		if !ok {
			// Docstrings often document *args without the star.
			desc, ok = fn.Parsed.Arg(strings.TrimLeft(param.Name, "*"))
		}
		if !ok || desc == "" {
			desc = "*No description*"
		}
		if param.HasDefault {
			desc += fmt.Sprintf(" (default: `%s`)", param.Default)
		}
		rows = append(rows, [2]string{param.Name, desc})
	}

	for _, a := range fn.Parsed.Args {
		if inSignature[a.Name] || inSignature["*"+a.Name] || inSignature["**"+a.Name] {
			continue
		}
		rows = append(rows, [2]string{a.Name, a.Description})
	}
	return rows
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// sourceLink builds a link to file (and line, when positive), or "".
func sourceLink(opts FormatOptions, file string, line int) string {
	if opts.SourceBaseURL == "" {
		return ""
	}
	link := strings.TrimSuffix(opts.SourceBaseURL, "/") + "/"
	if opts.Revision != "" {
		link += opts.Revision + "/"
	}
	link += strings.TrimPrefix(toSlash(file), "./")
	if line > 0 {
		link += fmt.Sprintf("#L%d", line)
	}
	return link
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// slugger assigns GitHub-style heading anchors, suffixing duplicates.
type slugger struct {
	seen map[string]int
}

func newSlugger() *slugger {
	return &slugger{seen: make(map[string]int)}
}

func (s *slugger) add(heading string) string {
	base := slug(heading)
	n := s.seen[base]
	s.seen[base] = n + 1
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n)
}

func slug(heading string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(heading) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	return b.String()
}

func writef(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

func writeln(w io.Writer, s string) {
	_, _ = fmt.Fprintln(w, s)
}
