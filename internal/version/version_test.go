package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	old := Version
	Version = "v1.2.3"
	t.Cleanup(func() { Version = old })

	got := String()
	if !strings.HasPrefix(got, "v1.2.3 (commit ") {
		t.Errorf("String() = %q, want version first", got)
	}
	if !strings.Contains(got, ", built ") {
		t.Errorf("String() = %q, want build date", got)
	}
}
