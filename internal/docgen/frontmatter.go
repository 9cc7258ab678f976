package docgen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/bazelbuild/buildtools/build"
	"github.com/inful/mdfp"
	"gopkg.in/yaml.v3"
)

// frontmatter returns a YAML frontmatter block for a Markdown body. The
// fingerprint covers the other fields and the body, so a regenerated file
// only changes when its content does.
func frontmatter(title string, body []byte) ([]byte, error) {
	fields := map[string]any{"title": title}

	hashed, err := yaml.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("serializing frontmatter: %w", err)
	}
	fields[mdfp.FingerprintField] = mdfp.CalculateFingerprintFromParts(
		strings.TrimSuffix(string(hashed), "\n"), string(body))

	out, err := yaml.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("serializing frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(out)
	buf.WriteString("---\n\n")
	return buf.Bytes(), nil
}

// formatExample normalizes example code with the buildifier printer.
// Examples that do not parse (REPL transcripts, pseudo-code) are returned
// unchanged.
func formatExample(src string) string {
	f, err := build.ParseDefault("example.star", []byte(src))
	if err != nil {
		return src
	}
	return strings.TrimRight(string(build.Format(f)), "\n")
}
