package docgen

import (
	"encoding/json"
	"io"
)

// RenderJSON writes api as an indented JSON document followed by a newline.
func RenderJSON(w io.Writer, api *API, opts FormatOptions) error {
	indent := opts.Indent
	if indent == "" {
		indent = "  "
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", indent)
	enc.SetEscapeHTML(false)
	if api.Modules == nil {
		api = &API{Modules: []ModuleDoc{}}
	}
	return enc.Encode(api)
}
