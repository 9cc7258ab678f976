package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// waitFor collects events until every path in want has been reported.
func waitFor(t *testing.T, w *Watcher, want ...string) {
	t.Helper()
	seen := make(map[string]bool)
	deadline := time.After(5 * time.Second)
	for {
		missing := false
		for _, p := range want {
			if !seen[p] {
				missing = true
			}
		}
		if !missing {
			return
		}
		select {
		case ev := <-w.Events:
			for _, f := range ev.Files {
				seen[f] = true
			}
		case err := <-w.Errors:
			t.Fatalf("watcher error: %v", err)
		case <-deadline:
			t.Fatalf("timed out waiting for %v; saw %v", want, seen)
		}
	}
}

func TestWatchDirectory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "defs.bzl")
	writeFile(t, src, "X = 1\n")

	w, err := New([]string{dir}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	writeFile(t, src, "X = 2\n")
	waitFor(t, w, src)
}

func TestWatchIgnoresNonSources(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{dir}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	writeFile(t, filepath.Join(dir, "notes.txt"), "hello")
	select {
	case ev := <-w.Events:
		t.Errorf("unexpected event for non-source file: %v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatchNewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{dir}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	sub := filepath.Join(dir, "pkg")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for !contains(w.WatchedDirs(), sub) {
		if time.Now().After(deadline) {
			t.Fatalf("new directory not watched: %v", w.WatchedDirs())
		}
		time.Sleep(10 * time.Millisecond)
	}

	src := filepath.Join(sub, "rules.star")
	writeFile(t, src, "Y = 1\n")
	waitFor(t, w, src)
}

func TestWatchFileFollowsLoads(t *testing.T) {
	dir := t.TempDir()
	helper := filepath.Join(dir, "shared", "helpers.star")
	mainFile := filepath.Join(dir, "lib", "main.star")
	writeFile(t, helper, "def helper():\n    return 42\n")
	writeFile(t, mainFile, `load("../shared/helpers.star", "helper")
load("//lib:other.bzl", "other")
`)

	w, err := New([]string{mainFile}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	if !w.Relevant(helper) {
		t.Fatal("loaded helper is not watched")
	}
	if w.Relevant(filepath.Join(dir, "lib", "unrelated.star")) {
		t.Error("sibling of an explicit file is watched")
	}

	writeFile(t, helper, "def helper():\n    return 43\n")
	waitFor(t, w, helper)
}

func TestWatchDebounceBatches(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.star")
	b := filepath.Join(dir, "b.star")

	w, err := New([]string{dir}, 300*time.Millisecond)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	writeFile(t, a, "A = 1\n")
	writeFile(t, b, "B = 1\n")

	select {
	case ev := <-w.Events:
		if diff := cmp.Diff([]string{a, b}, ev.Files); diff != "" {
			t.Errorf("batch (-want +got):\n%s", diff)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestNewMissingPath(t *testing.T) {
	if _, err := New([]string{filepath.Join(t.TempDir(), "missing")}, 0); err == nil {
		t.Error("New with a missing path returned nil error")
	}
}

func TestCloseClosesEvents(t *testing.T) {
	w, err := New([]string{t.TempDir()}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	select {
	case _, ok := <-w.Events:
		if ok {
			t.Error("Events delivered a value after Close")
		}
	case <-time.After(time.Second):
		t.Error("Events not closed after Close")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
