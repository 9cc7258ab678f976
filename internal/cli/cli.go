package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/albertocavalcante/docstream/internal/version"
)

// Command defines a single CLI entrypoint.
type Command struct {
	Name string

	// Usage follows the command name in the usage line, e.g.
	// "[flags] [path ...]".
	Usage string

	Summary string

	// Flags registers the command's flags. -version is always added.
	Flags func(fs *flag.FlagSet)

	// Run receives the arguments left after flag parsing.
	Run func(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

// UsageError reports a command line that cannot be run. Execute maps it
// to ExitUsage.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// Usagef returns a *UsageError with a formatted message.
func Usagef(format string, args ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// ErrSilent makes Execute return ExitError without printing anything. Use
// it when Run has already reported the failure.
var ErrSilent = errors.New("silent failure")

// Execute parses flags, handles -help and -version, runs cmd and returns a
// process exit code.
func Execute(ctx context.Context, cmd Command, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	showVersion := fs.Bool("version", false, "print version and exit")
	if cmd.Flags != nil {
		cmd.Flags(fs)
	}
	fs.Usage = func() {
		Writef(stderr, "Usage: %s %s\n\n", cmd.Name, cmd.Usage)
		if cmd.Summary != "" {
			Writeln(stderr, cmd.Summary)
			Writeln(stderr)
		}
		Writeln(stderr, "Flags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitUsage
	}

	if *showVersion {
		Writef(stdout, "%s %s\n", cmd.Name, version.String())
		return ExitOK
	}

	if cmd.Run == nil {
		Writef(stderr, "%s: no command configured\n", cmd.Name)
		return ExitError
	}

	return ExitCode(cmd.Name, cmd.Run(ctx, fs.Args(), stdout, stderr), stderr)
}

// ExitCode reports err on stderr, prefixed with name, and returns the
// matching exit code.
func ExitCode(name string, err error, stderr io.Writer) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, ErrSilent) {
		return ExitError
	}
	Writef(stderr, "%s: %v\n", name, err)

	var usage *UsageError
	if errors.As(err, &usage) {
		Writef(stderr, "Run '%s -help' for usage.\n", name)
		return ExitUsage
	}
	return ExitError
}
