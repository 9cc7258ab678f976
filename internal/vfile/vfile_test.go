package vfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestIsSource(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"lib.star", true},
		{"defs.bzl", true},
		{"BUILD.bazel", true},
		{"Tiltfile", true},
		{"config.sky", true},
		{"README.md", false},
		{"main.go", false},
		{"BUILD.txt", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsSource(tc.name); got != tc.want {
				t.Errorf("IsSource(%q) = %v, want %v", tc.name, got, tc.want)
			}
		})
	}
}

func TestRelative(t *testing.T) {
	tests := []struct {
		name string
		file File
		want string
	}{
		{"no base", File{Path: "API.md"}, "API.md"},
		{"under base", File{Base: "lib", Path: filepath.Join("lib", "a", "b.star")}, filepath.Join("a", "b.star")},
		{"outside base", File{Base: "lib", Path: filepath.Join("other", "b.star")}, filepath.Join("other", "b.star")},
		{"unclean", File{Path: "./assets//style.css"}, filepath.Join("assets", "style.css")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.file.Relative(); got != tc.want {
				t.Errorf("Relative() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.star"), "")
	writeFile(t, filepath.Join(dir, "pkg", "b.bzl"), "")
	writeFile(t, filepath.Join(dir, "pkg", "notes.txt"), "")
	writeFile(t, filepath.Join(dir, ".hidden", "c.star"), "")
	explicit := filepath.Join(dir, "pkg", "notes.txt")

	got, err := Expand([]string{dir, explicit, filepath.Join(dir, "a.star")})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	want := []string{
		filepath.Join(dir, "a.star"),
		filepath.Join(dir, "pkg", "b.bzl"),
		explicit,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Expand() mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_Missing(t *testing.T) {
	if _, err := Expand([]string{filepath.Join(t.TempDir(), "nope")}); err == nil {
		t.Error("Expand(missing) returned nil error")
	}
}

func TestSrc(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.star"), "x = 1\n")
	writeFile(t, filepath.Join(dir, "sub", "b.star"), "y = 2\n")

	ch, err := Src(context.Background(), dir)
	if err != nil {
		t.Fatalf("Src: %v", err)
	}

	var rel []string
	for f := range ch {
		if f.Contents != nil {
			t.Errorf("Src should not read contents, got %q for %s", f.Contents, f.Path)
		}
		rel = append(rel, f.Relative())
	}

	want := []string{"a.star", filepath.Join("sub", "b.star")}
	if diff := cmp.Diff(want, rel); diff != "" {
		t.Errorf("Src relative paths mismatch (-want +got):\n%s", diff)
	}
}

func TestDestWriteAndCheck(t *testing.T) {
	dir := t.TempDir()
	d := Dest{Dir: filepath.Join(dir, "docs")}
	files := []*File{
		New("API.md", []byte("# API\n")),
		New("assets/style.css", []byte("body{}\n")),
	}

	written, err := d.Write(files)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := []string{
		filepath.Join(d.Dir, "API.md"),
		filepath.Join(d.Dir, "assets", "style.css"),
	}
	if diff := cmp.Diff(want, written); diff != "" {
		t.Errorf("Write() paths mismatch (-want +got):\n%s", diff)
	}

	stale, err := d.Check(files)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("Check() after Write = %d stale, want 0", len(stale))
	}

	changed := []*File{
		New("API.md", []byte("# API\n\nnew line\n")),
		New("extra.md", []byte("x\n")),
	}
	stale, err = d.Check(changed)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(stale) != 2 {
		t.Fatalf("Check() = %d stale, want 2", len(stale))
	}
	if stale[0].Missing || !stale[1].Missing {
		t.Errorf("Missing flags = %v, %v; want false, true", stale[0].Missing, stale[1].Missing)
	}
	diff := stale[0].Diff()
	if !strings.Contains(diff, "+new line") {
		t.Errorf("Diff() = %q, want added line", diff)
	}
	if !strings.Contains(stale[1].Diff(), "/dev/null") {
		t.Errorf("Diff() for missing file should start from /dev/null, got %q", stale[1].Diff())
	}
}

func TestDestRejectsEscapingPaths(t *testing.T) {
	d := Dest{Dir: t.TempDir()}
	_, err := d.Write([]*File{New("../evil.md", []byte("x"))})
	if !errors.Is(err, ErrUnsafePath) {
		t.Errorf("Write(../evil.md) error = %v, want ErrUnsafePath", err)
	}
}
