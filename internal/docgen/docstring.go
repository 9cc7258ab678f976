package docgen

import (
	"regexp"
	"strings"
)

// ParsedDocstring represents a parsed docstring with sections.
type ParsedDocstring struct {
	// Summary is the first paragraph (short description).
	Summary string `json:"summary,omitempty"`

	// Description is the full description (after summary, before sections).
	Description string `json:"description,omitempty"`

	// Args documents parameters in the order they are written.
	Args []ArgDoc `json:"args,omitempty"`

	// Returns is the return value description.
	Returns string `json:"returns,omitempty"`

	// Raises documents errors in the order they are written.
	Raises []ArgDoc `json:"raises,omitempty"`

	Example    string `json:"example,omitempty"`
	Note       string `json:"note,omitempty"`
	Deprecated string `json:"deprecated,omitempty"`
}

// ArgDoc is one "name: description" entry of an Args or Raises section.
type ArgDoc struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var sectionRegex = regexp.MustCompile(`(?m)^\s*(Args|Arguments|Parameters|Returns?|Yields?|Raises|Throws|Examples?|Notes?|See Also|Deprecated|Warning|Todo):`)

// ParseDocstring parses a Google-style docstring into structured sections.
func ParseDocstring(docstring string) *ParsedDocstring {
	parsed := &ParsedDocstring{}
	if docstring == "" {
		return parsed
	}

	docstring = strings.ReplaceAll(docstring, "\r\n", "\n")

	for _, sec := range splitSections(docstring) {
		switch strings.ToLower(sec.header) {
		case "":
			parts := splitSummaryDescription(sec.content)
			parsed.Summary = parts[0]
			if len(parts) > 1 {
				parsed.Description = parts[1]
			}

		case "args", "arguments", "parameters":
			// Indentation decides where one argument ends, so no TrimSpace.
			parsed.Args = parseArgsSection(sec.content)

		case "returns", "return", "yields", "yield":
			parsed.Returns = dedent(sec.content)

		case "raises", "throws":
			parsed.Raises = parseArgsSection(sec.content)

		case "example", "examples":
			parsed.Example = dedent(sec.content)

		case "note", "notes":
			parsed.Note = dedent(sec.content)

		case "deprecated":
			parsed.Deprecated = dedent(sec.content)
		}
	}

	return parsed
}

type section struct {
	header  string
	content string
}

// splitSections splits a docstring into sections in source order. The
// text before the first header has an empty header.
func splitSections(docstring string) []section {
	matches := sectionRegex.FindAllStringSubmatchIndex(docstring, -1)
	if len(matches) == 0 {
		return []section{{content: strings.TrimSpace(docstring)}}
	}

	var sections []section
	if lead := strings.TrimSpace(docstring[:matches[0][0]]); lead != "" {
		sections = append(sections, section{content: lead})
	}

	for i, m := range matches {
		header := docstring[m[2]:m[3]]
		contentEnd := len(docstring)
		if i+1 < len(matches) {
			contentEnd = matches[i+1][0]
		}
		// m[1] is just past the colon. Keep leading indentation.
		content := strings.TrimRight(docstring[m[1]:contentEnd], " \t\n\r")
		sections = append(sections, section{header: header, content: content})
	}
	return sections
}

// splitSummaryDescription splits text into summary (first paragraph) and
// description (rest).
func splitSummaryDescription(text string) []string {
	parts := strings.SplitN(strings.TrimSpace(text), "\n\n", 2)
	if len(parts) == 1 {
		return []string{strings.TrimSpace(parts[0])}
	}
	return []string{
		strings.TrimSpace(parts[0]),
		strings.TrimSpace(parts[1]),
	}
}

// parseArgsSection parses an Args: section into ordered entries.
func parseArgsSection(content string) []ArgDoc {
	var args []ArgDoc
	var cur *ArgDoc
	var desc strings.Builder
	baseIndent := -1

	save := func() {
		if cur != nil {
			cur.Description = strings.TrimSpace(desc.String())
			args = append(args, *cur)
		}
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		indent := indentWidth(line)
		if baseIndent < 0 {
			baseIndent = indent
		}

		colonIdx := strings.Index(trimmed, ":")
		if indent <= baseIndent && colonIdx > 0 {
			save()
			cur = &ArgDoc{Name: strings.TrimSpace(trimmed[:colonIdx])}
			desc.Reset()
			desc.WriteString(strings.TrimSpace(trimmed[colonIdx+1:]))
			continue
		}

		if cur != nil {
			if desc.Len() > 0 {
				desc.WriteString(" ")
			}
			desc.WriteString(trimmed)
		}
	}
	save()

	return args
}

func indentWidth(line string) int {
	n := 0
	for _, ch := range line {
		switch ch {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}

// dedent strips the common leading indentation and surrounding blank
// lines. Example blocks keep their relative indentation this way.
func dedent(s string) string {
	lines := strings.Split(strings.Trim(s, "\n"), "\n")
	common := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if w := indentWidth(line); common < 0 || w < common {
			common = w
		}
	}
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = line[leadingBytes(line, common):]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// leadingBytes returns the byte offset covering width columns of
// indentation.
func leadingBytes(line string, width int) int {
	n := 0
	for i, ch := range line {
		if n >= width {
			return i
		}
		switch ch {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return i
		}
	}
	return len(line)
}

// Arg returns the documented description for a parameter.
func (p *ParsedDocstring) Arg(name string) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, a := range p.Args {
		if a.Name == name {
			return a.Description, true
		}
	}
	return "", false
}

// HasDocumentation returns true if the parsed docstring has meaningful content.
func (p *ParsedDocstring) HasDocumentation() bool {
	if p == nil {
		return false
	}
	return p.Summary != "" || p.Description != "" || len(p.Args) > 0 ||
		p.Returns != "" || len(p.Raises) > 0 || p.Example != "" || p.Deprecated != ""
}
