// Package cli holds the plumbing shared by the docstream command: flag
// parsing, exit codes and best-effort output helpers.
package cli

// Exit codes returned by Execute.
const (
	// ExitOK means the run succeeded.
	ExitOK = 0

	// ExitError means the run failed, or a check found stale outputs.
	ExitError = 1

	// ExitUsage means the command line could not be used: unknown flags,
	// bad flag values or conflicting flags.
	ExitUsage = 2
)
