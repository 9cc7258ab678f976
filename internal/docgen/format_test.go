package docgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/inful/mdfp"
	"golang.org/x/net/html"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestBuilderKeepsInputOrder(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"c.star": `"""C."""`,
		"a.star": `"""A."""`,
		"b.star": `"""B."""`,
		"d.star": `"""D."""`,
	})
	paths := []string{
		filepath.Join(dir, "c.star"),
		filepath.Join(dir, "a.star"),
		filepath.Join(dir, "d.star"),
		filepath.Join(dir, "b.star"),
	}

	api, err := NewBuilder().Build(context.Background(), paths, BuildOptions{Concurrency: 2})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var got []string
	for _, m := range api.Modules {
		got = append(got, m.Docstring)
	}
	if diff := cmp.Diff([]string{"C.", "A.", "D.", "B."}, got); diff != "" {
		t.Errorf("module order (-want +got):\n%s", diff)
	}
}

func TestBuilderEmpty(t *testing.T) {
	api, err := NewBuilder().Build(context.Background(), nil, DefaultBuildOptions())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(api.Modules) != 0 {
		t.Errorf("expected no modules, got %d", len(api.Modules))
	}
}

func TestBuilderErrors(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"good.star": "X = 1\n",
		"bad.star":  "def broken(\n",
	})

	tests := []struct {
		name string
		path string
		want string
	}{
		{"syntax", filepath.Join(dir, "bad.star"), "extracting " + filepath.Join(dir, "bad.star")},
		{"missing", filepath.Join(dir, "missing.star"), "reading " + filepath.Join(dir, "missing.star")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			paths := []string{filepath.Join(dir, "good.star"), tc.path}
			api, err := NewBuilder().Build(context.Background(), paths, DefaultBuildOptions())
			if err == nil {
				t.Fatal("Build returned nil error")
			}
			if api != nil {
				t.Errorf("Build returned a model alongside error: %+v", api)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not contain %q", err, tc.want)
			}
		})
	}
}

func TestBuilderCanceled(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.star": "X = 1\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBuilder().Build(ctx, []string{filepath.Join(dir, "a.star")}, DefaultBuildOptions())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Build() error = %v, want context.Canceled", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in       string
		want     Format
		filename string
	}{
		{"", FormatMarkdown, "API.md"},
		{"md", FormatMarkdown, "API.md"},
		{"json", FormatJSON, "API.json"},
		{"html", FormatHTML, ""},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseFormat(tc.in)
			if err != nil {
				t.Fatalf("ParseFormat(%q) failed: %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tc.in, got, tc.want)
			}
			if got.DefaultFilename() != tc.filename {
				t.Errorf("DefaultFilename() = %q, want %q", got.DefaultFilename(), tc.filename)
			}
			if got.Textual() != (tc.filename != "") {
				t.Errorf("Textual() = %v", got.Textual())
			}
		})
	}
}

func TestParseFormatUnknown(t *testing.T) {
	for _, in := range []string{"pdf", "MD", " md"} {
		_, err := ParseFormat(in)
		if !errors.Is(err, ErrUnknownFormat) {
			t.Fatalf("ParseFormat(%q) error = %v, want ErrUnknownFormat", in, err)
		}
		want := `invalid format given "` + in + `": valid options are md, json, html`
		if err.Error() != want {
			t.Errorf("ParseFormat(%q) error = %q, want %q", in, err, want)
		}
	}
}

func TestRendererFormatUnknown(t *testing.T) {
	_, err := NewRenderer().Format(context.Background(), Format(42), &API{}, FormatOptions{})
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Format(42) error = %v, want ErrUnknownFormat", err)
	}
}

func TestRenderJSON(t *testing.T) {
	out, err := NewRenderer().Format(context.Background(), FormatJSON, exampleAPI(), FormatOptions{})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if out.Pages != nil {
		t.Errorf("JSON output has pages: %v", out.Pages)
	}

	var got API
	if err := json.Unmarshal(out.Text, &got); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out.Text)
	}
	if diff := cmp.Diff(exampleAPI(), &got); diff != "" {
		t.Errorf("JSON model mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(string(out.Text), "\n  \"modules\": [") {
		t.Errorf("expected two-space indentation:\n%s", out.Text)
	}
}

func TestRenderJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderJSON(&buf, &API{}, FormatOptions{Indent: "\t"}); err != nil {
		t.Fatalf("RenderJSON failed: %v", err)
	}
	if got, want := buf.String(), "{\n\t\"modules\": []\n}\n"; got != want {
		t.Errorf("RenderJSON() = %q, want %q", got, want)
	}
}

func TestRenderSite(t *testing.T) {
	api := &API{Modules: []ModuleDoc{
		{
			File:      filepath.Join("rules_docs", "a.star"),
			Name:      "a.star",
			Docstring: "Uses **bold** text.\n\n<script>alert(1)</script>",
			Functions: []FunctionDoc{{
				Name:      "run",
				Docstring: "Runs.\n\nArgs:\n    x: The input.",
				Parsed:    ParseDocstring("Runs.\n\nArgs:\n    x: The input."),
				Params:    []ParamDoc{{Name: "x"}},
			}},
		},
		{File: filepath.Join("rules_docs", "sub", "b.star"), Name: "b.star"},
	}}

	out, err := NewRenderer().Format(context.Background(), FormatHTML, api, FormatOptions{})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if out.Text != nil {
		t.Errorf("site output has text: %q", out.Text)
	}

	var paths []string
	pages := make(map[string]string)
	for _, p := range out.Pages {
		paths = append(paths, p.Path)
		pages[p.Path] = string(p.Content)
	}
	want := []string{"index.html", "a-star.html", "sub-b-star.html", StylesheetPath}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Fatalf("page order (-want +got):\n%s", diff)
	}

	doc, err := html.Parse(strings.NewReader(pages["index.html"]))
	if err != nil {
		t.Fatalf("index.html does not parse: %v", err)
	}
	if got := textOf(find(doc, "title")); got != "Rules Docs" {
		t.Errorf("index title = %q, want Rules Docs", got)
	}
	hrefs := links(doc)
	for _, href := range []string{"a-star.html", "sub-b-star.html"} {
		if !hrefs[href] {
			t.Errorf("index.html does not link %s; links: %v", href, hrefs)
		}
	}

	module := pages["a-star.html"]
	for _, want := range []string{
		"<strong>bold</strong>",
		`id="run"`,
		"def run(x)",
		"The input.",
		`href="assets/style.css"`,
	} {
		if !strings.Contains(module, want) {
			t.Errorf("a-star.html missing %q", want)
		}
	}
	if strings.Contains(module, "<script>") {
		t.Error("raw HTML from a docstring was passed through")
	}
}

func TestRenderSiteEmpty(t *testing.T) {
	out, err := NewRenderer().Format(context.Background(), FormatHTML, &API{}, FormatOptions{Name: "Empty"})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if len(out.Pages) != 2 {
		t.Fatalf("expected index and stylesheet, got %d pages", len(out.Pages))
	}
	if !strings.Contains(string(out.Pages[0].Content), "No modules documented.") {
		t.Errorf("index.html:\n%s", out.Pages[0].Content)
	}
}

func TestPageNames(t *testing.T) {
	api := &API{Modules: []ModuleDoc{
		{File: "x/index.star"},
		{File: "x/defs.bzl"},
		{File: "y/defs.bzl"},
	}}
	want := []string{"x-index-star.html", "x-defs-bzl.html", "y-defs-bzl.html"}
	if diff := cmp.Diff(want, pageNames(api)); diff != "" {
		t.Errorf("pageNames (-want +got):\n%s", diff)
	}

	dup := &API{Modules: []ModuleDoc{{File: "index"}, {File: "a.b"}, {File: "a-b"}}}
	want = []string{"index-1.html", "a-b.html", "a-b-2.html"}
	if diff := cmp.Diff(want, pageNames(dup)); diff != "" {
		t.Errorf("pageNames (-want +got):\n%s", diff)
	}

	// A module whose own slug matches an earlier suffixed name must not
	// share its page.
	suffixed := &API{Modules: []ModuleDoc{
		{File: "lib/a.bzl"},
		{File: "lib/a-bzl.bzl"},
		{File: "lib/a/bzl"},
		{File: "lib/a-bzl-2"},
		{File: "lib/index"},
		{File: "lib/index-1"},
	}}
	got := pageNames(suffixed)
	want = []string{"a-bzl.html", "a-bzl-bzl.html", "a-bzl-2.html", "a-bzl-2-2.html", "index-1.html", "index-1-2.html"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pageNames (-want +got):\n%s", diff)
	}
	pages := map[string]bool{"index.html": true}
	for _, name := range got {
		if pages[name] {
			t.Errorf("duplicate page %q", name)
		}
		pages[name] = true
	}
}

func TestFrontmatter(t *testing.T) {
	body := []byte("# API\n")
	fm, err := frontmatter("API", body)
	if err != nil {
		t.Fatalf("frontmatter failed: %v", err)
	}
	s := string(fm)
	if !strings.HasPrefix(s, "---\n") || !strings.HasSuffix(s, "---\n\n") {
		t.Errorf("frontmatter is not delimited:\n%s", s)
	}
	for _, want := range []string{"title: API\n", mdfp.FingerprintField + ": "} {
		if !strings.Contains(s, want) {
			t.Errorf("frontmatter missing %q:\n%s", want, s)
		}
	}

	again, err := frontmatter("API", body)
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != s {
		t.Error("frontmatter is not deterministic")
	}

	changed, err := frontmatter("API", []byte("# API\n\nmore\n"))
	if err != nil {
		t.Fatal(err)
	}
	if string(changed) == s {
		t.Error("fingerprint did not change with the body")
	}
}

func TestFormatExample(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"formats", `x=foo( "a",b )`, `x = foo("a", b)`},
		{"unparseable", ">>> print(1)\n1", ">>> print(1)\n1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatExample(tc.in); got != tc.want {
				t.Errorf("formatExample(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func find(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func links(n *html.Node) map[string]bool {
	out := make(map[string]bool)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, a := range n.Attr {
				if a.Key == "href" {
					out[a.Val] = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}
