package cli

import (
	"fmt"
	"io"
)

// Writef writes formatted output to w, ignoring write errors. There is no
// useful recovery when stdout or stderr is gone.
//
//	cli.Writef(stderr, "docstream: %d stale output(s)\n", n)
func Writef(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

// Writeln writes args followed by a newline to w, ignoring write errors.
func Writeln(w io.Writer, args ...any) {
	_, _ = fmt.Fprintln(w, args...)
}

// Write writes s to w, ignoring write errors.
//
//	cli.Write(stdout, stale.Diff())
func Write(w io.Writer, s string) {
	_, _ = io.WriteString(w, s)
}

// WriteBytes writes b to w, ignoring write errors.
func WriteBytes(w io.Writer, b []byte) {
	_, _ = w.Write(b)
}
