// Package cmdtest runs txtar scripts against the docstream command.
//
// Each script under testdata/ lists the command invocations and the
// expected outputs, followed by the input files:
//
//	# Markdown is written to docs/API.md by default
//	exec docstream lib.star
//	exists docs/API.md
//	grep '#### greet' docs/API.md
//
//	-- lib.star --
//	def greet(name):
//	    """Say hello."""
//	    pass
package cmdtest

import (
	"os"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/albertocavalcante/docstream/internal/cmd/docstream"
	"github.com/albertocavalcante/docstream/internal/docconfig"
)

// Run executes the testscript tests in the given directory.
func Run(t *testing.T, dir string) {
	testscript.Run(t, testscript.Params{
		Dir: dir,
		Setup: func(env *testscript.Env) error {
			// Keep the caller's config out of the scripts.
			env.Setenv(docconfig.EnvConfig, "")
			return nil
		},
	})
}

// Main is the TestMain function that should be called from test files.
// It registers docstream as a testscript command.
func Main(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"docstream": func() int { return docstream.Run(os.Args[1:]) },
	}))
}
