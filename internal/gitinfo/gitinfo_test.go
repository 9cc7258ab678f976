package gitinfo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func initRepo(t *testing.T) (dir, commit string) {
	t.Helper()
	dir = t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "defs.bzl"), []byte("X = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("defs.bzl"); err != nil {
		t.Fatal(err)
	}
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return dir, hash.String()
}

func TestRootFromSubdirectory(t *testing.T) {
	dir, _ := initRepo(t)
	sub := filepath.Join(dir, "lib", "rules")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := Root(sub)
	if err != nil {
		t.Fatalf("Root failed: %v", err)
	}
	want, _ := filepath.EvalSymlinks(dir)
	got, _ = filepath.EvalSymlinks(got)
	if got != want {
		t.Errorf("Root() = %q, want %q", got, want)
	}
}

func TestHead(t *testing.T) {
	dir, commit := initRepo(t)
	got, err := Head(dir)
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if got != commit {
		t.Errorf("Head() = %q, want %q", got, commit)
	}
}

func TestNotRepository(t *testing.T) {
	dir := t.TempDir()
	if _, err := Root(dir); !errors.Is(err, ErrNotRepository) {
		t.Errorf("Root() error = %v, want ErrNotRepository", err)
	}
	if _, err := Head(dir); !errors.Is(err, ErrNotRepository) {
		t.Errorf("Head() error = %v, want ErrNotRepository", err)
	}
}

func TestHeadWithoutCommits(t *testing.T) {
	dir := t.TempDir()
	if _, err := git.PlainInit(dir, false); err != nil {
		t.Fatal(err)
	}
	if _, err := Head(dir); err == nil {
		t.Error("Head() on an empty repository returned nil error")
	}
}
