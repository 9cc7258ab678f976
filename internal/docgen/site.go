package docgen

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates
var templateFS embed.FS

// StylesheetPath is the site-relative path of the bundled stylesheet.
const StylesheetPath = "assets/style.css"

var siteTemplates = template.Must(template.New("site").ParseFS(templateFS, "templates/*.html"))

type sitePage struct {
	Project string
	Title   string
	Modules []siteModule
	Module  *siteModule
}

type siteModule struct {
	Doc       *ModuleDoc
	Href      string
	Source    string
	Summary   template.HTML
	Docstring template.HTML
	Functions []siteFunction
}

type siteFunction struct {
	Doc       FunctionDoc
	Anchor    string
	Signature string
	Source    string
	Body      template.HTML
	Args      [][2]template.HTML
	Returns   template.HTML
	Raises    []ArgDoc
	Example   string
	Note      template.HTML
	Deprecate template.HTML
}

// RenderSite renders the API as a small static site: index.html, one page
// per module and a stylesheet. Page order is stable: index first, modules
// in model order, assets last.
func (r *Renderer) RenderSite(api *API, opts FormatOptions) ([]Page, error) {
	project := opts.Name
	if project == "" {
		project = deriveProjectName(api)
	}

	modules := make([]siteModule, len(api.Modules))
	hrefs := pageNames(api)
	for i := range api.Modules {
		m, err := r.siteModule(&api.Modules[i], hrefs[i], opts)
		if err != nil {
			return nil, err
		}
		modules[i] = m
	}

	var pages []Page

	index, err := execute("index.html", sitePage{Project: project, Title: project, Modules: modules})
	if err != nil {
		return nil, err
	}
	pages = append(pages, Page{Path: "index.html", Content: index})

	for i := range modules {
		content, err := execute("module.html", sitePage{
			Project: project,
			Title:   modules[i].Doc.Name + " - " + project,
			Modules: modules,
			Module:  &modules[i],
		})
		if err != nil {
			return nil, err
		}
		pages = append(pages, Page{Path: modules[i].Href, Content: content})
	}

	css, err := templateFS.ReadFile("templates/style.css")
	if err != nil {
		return nil, err
	}
	pages = append(pages, Page{Path: StylesheetPath, Content: css})

	return pages, nil
}

func execute(name string, data sitePage) ([]byte, error) {
	var buf bytes.Buffer
	if err := siteTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) siteModule(mod *ModuleDoc, href string, opts FormatOptions) (siteModule, error) {
	m := siteModule{Doc: mod, Href: href, Source: sourceLink(opts, mod.File, 0)}

	var err error
	if m.Summary, err = r.markdownHTML(mod.Summary()); err != nil {
		return m, err
	}
	if m.Docstring, err = r.markdownHTML(mod.Docstring); err != nil {
		return m, err
	}

	slugs := newSlugger()
	for _, fn := range mod.Functions {
		f := siteFunction{
			Doc:       fn,
			Anchor:    slugs.add(fn.Name),
			Signature: buildSignature(fn),
			Source:    sourceLink(opts, mod.File, fn.Line),
		}
		if err := r.fillFunction(&f, opts); err != nil {
			return m, err
		}
		m.Functions = append(m.Functions, f)
	}
	return m, nil
}

func (r *Renderer) fillFunction(f *siteFunction, opts FormatOptions) error {
	p := f.Doc.Parsed
	if !p.HasDocumentation() {
		body, err := r.markdownHTML(f.Doc.Docstring)
		f.Body = body
		return err
	}

	text := p.Summary
	if p.Description != "" {
		text += "\n\n" + p.Description
	}
	var err error
	if f.Body, err = r.markdownHTML(text); err != nil {
		return err
	}
	for _, row := range argumentRows(f.Doc) {
		desc, err := r.inlineHTML(row[1])
		if err != nil {
			return err
		}
		f.Args = append(f.Args, [2]template.HTML{template.HTML(template.HTMLEscapeString(row[0])), desc})
	}
	if f.Returns, err = r.markdownHTML(p.Returns); err != nil {
		return err
	}
	if f.Note, err = r.markdownHTML(p.Note); err != nil {
		return err
	}
	if f.Deprecate, err = r.inlineHTML(p.Deprecated); err != nil {
		return err
	}
	f.Raises = p.Raises
	f.Example = p.Example
	if opts.FormatExamples && f.Example != "" {
		f.Example = formatExample(f.Example)
	}
	return nil
}

// markdownHTML renders Markdown to HTML. Raw HTML in docstrings is not
// passed through.
func (r *Renderer) markdownHTML(src string) (template.HTML, error) {
	if src == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// inlineHTML renders a one-line Markdown snippet without the wrapping
// paragraph.
func (r *Renderer) inlineHTML(src string) (template.HTML, error) {
	h, err := r.markdownHTML(src)
	if err != nil {
		return "", err
	}
	s := strings.TrimSpace(string(h))
	s = strings.TrimPrefix(s, "<p>")
	s = strings.TrimSuffix(s, "</p>")
	return template.HTML(s), nil
}

// pageNames returns one unique page path per module, derived from its
// path relative to the modules' common directory. A taken name gets the
// lowest free numeric suffix; "index" is reserved for the index page.
func pageNames(api *API) []string {
	root := commonDir(api)
	seen := map[string]bool{"index": true}
	names := make([]string, len(api.Modules))
	for i, mod := range api.Modules {
		rel := toSlash(mod.File)
		if root != "" {
			if r, err := filepath.Rel(root, mod.File); err == nil {
				rel = toSlash(r)
			}
		}
		base := pageSlug(rel)
		name := base
		n := 2
		if base == "index" {
			n = 1
		}
		for seen[name] {
			name = fmt.Sprintf("%s-%d", base, n)
			n++
		}
		seen[name] = true
		names[i] = name + ".html"
	}
	return names
}

func pageSlug(rel string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(rel) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "module"
	}
	return s
}

// commonDir returns the deepest directory containing every module, or "".
func commonDir(api *API) string {
	if len(api.Modules) == 0 {
		return ""
	}
	dir := filepath.Dir(api.Modules[0].File)
	for _, mod := range api.Modules[1:] {
		for !within(mod.File, dir) {
			parent := filepath.Dir(dir)
			if parent == dir {
				return ""
			}
			dir = parent
		}
	}
	return dir
}

func within(file, dir string) bool {
	if dir == "." && !filepath.IsAbs(file) {
		return true
	}
	rel, err := filepath.Rel(dir, file)
	return err == nil && filepath.IsLocal(rel)
}

// deriveProjectName names a site after the modules' common directory,
// e.g. "rules_docs" becomes "Rules Docs".
func deriveProjectName(api *API) string {
	dir := commonDir(api)
	base := path.Base(toSlash(dir))
	if dir == "" || base == "." || base == "/" {
		return "API"
	}
	words := strings.NewReplacer("_", " ", "-", " ").Replace(base)
	// Casers keep state; one per call keeps Renderer safe to share.
	return cases.Title(language.English).String(words)
}
