package docgen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Format selects how an API model is rendered.
type Format int

// Supported output formats.
const (
	// FormatMarkdown renders one Markdown document (the default).
	FormatMarkdown Format = iota
	// FormatJSON renders the model as one JSON document.
	FormatJSON
	// FormatHTML renders a multi-page HTML site.
	FormatHTML
)

var formatInfo = [...]struct {
	name    string
	textual bool
}{
	FormatMarkdown: {"md", true},
	FormatJSON:     {"json", true},
	FormatHTML:     {"html", false},
}

// ErrUnknownFormat is returned by ParseFormat for unrecognized names.
var ErrUnknownFormat = errors.New("invalid format given")

// Formats returns every supported format in registry order.
func Formats() []Format {
	return []Format{FormatMarkdown, FormatJSON, FormatHTML}
}

// FormatNames returns the names accepted by ParseFormat.
func FormatNames() []string {
	names := make([]string, 0, len(formatInfo))
	for _, f := range Formats() {
		names = append(names, f.String())
	}
	return names
}

// ParseFormat parses a format name. The empty string selects Markdown.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatMarkdown, nil
	}
	for _, f := range Formats() {
		if f.String() == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w %q: valid options are %s", ErrUnknownFormat, s, strings.Join(FormatNames(), ", "))
}

func (f Format) valid() bool {
	return f >= 0 && int(f) < len(formatInfo)
}

// String returns the format name, which doubles as the file extension of
// textual formats.
func (f Format) String() string {
	if !f.valid() {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatInfo[f].name
}

// Textual reports whether the format renders to a single document.
func (f Format) Textual() bool {
	return f.valid() && formatInfo[f].textual
}

// DefaultFilename is the output path used for textual formats when the
// caller gives none. Empty for the site format.
func (f Format) DefaultFilename() string {
	if !f.Textual() {
		return ""
	}
	return "API." + f.String()
}

// FormatOptions configures rendering. Fields a format does not use are
// ignored.
type FormatOptions struct {
	// Name is the project display name (site title; Markdown fallback title).
	Name string

	// Title overrides the Markdown document title.
	Title string

	// TableOfContents adds a table of contents to Markdown output.
	TableOfContents bool

	// SourceBaseURL is the base URL for source links. Empty disables them.
	SourceBaseURL string

	// Revision is inserted between SourceBaseURL and the file path.
	Revision string

	// FormatExamples normalizes Example sections that parse as Starlark.
	FormatExamples bool

	// Frontmatter prepends YAML frontmatter with a content fingerprint to
	// Markdown output.
	Frontmatter bool

	// Indent is the JSON indentation. Empty means two spaces.
	Indent string
}

// DefaultFormatOptions returns sensible defaults.
func DefaultFormatOptions() FormatOptions {
	return FormatOptions{TableOfContents: true}
}

// Page is one file of a multi-file output. Path is slash-separated and
// relative to the output root.
type Page struct {
	Path    string
	Content []byte
}

// Output is the result of rendering. Text is set for textual formats,
// Pages for the site format.
type Output struct {
	Text  []byte
	Pages []Page
}

// Renderer renders API models. It is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer returns a Renderer. Docstrings in HTML pages are rendered
// as GitHub-flavored Markdown.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Format renders api in the given format.
func (r *Renderer) Format(ctx context.Context, format Format, api *API, opts FormatOptions) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	if api == nil {
		api = &API{}
	}

	switch format {
	case FormatMarkdown:
		var buf bytes.Buffer
		if err := RenderMarkdown(&buf, api, opts); err != nil {
			return Output{}, err
		}
		return Output{Text: buf.Bytes()}, nil

	case FormatJSON:
		var buf bytes.Buffer
		if err := RenderJSON(&buf, api, opts); err != nil {
			return Output{}, err
		}
		return Output{Text: buf.Bytes()}, nil

	case FormatHTML:
		pages, err := r.RenderSite(api, opts)
		if err != nil {
			return Output{}, err
		}
		return Output{Pages: pages}, nil
	}

	return Output{}, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
}
