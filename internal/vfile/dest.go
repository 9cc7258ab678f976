package vfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pmezard/go-difflib/difflib"
)

// LockName is the lock file created in a destination directory while
// outputs are written.
const LockName = ".docstream.lock"

// ErrUnsafePath is returned for output paths that would escape the
// destination directory.
var ErrUnsafePath = errors.New("output path escapes destination directory")

// Dest writes output files below a directory.
type Dest struct {
	Dir string
}

// Target returns the on-disk path for f, or ErrUnsafePath.
func (d Dest) Target(f *File) (string, error) {
	rel := f.Relative()
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, rel)
	}
	return filepath.Join(d.Dir, rel), nil
}

// Write writes files below Dir while holding the directory lock, so two
// processes rebuilding the same docs never interleave. It returns the
// written paths in order.
func (d Dest) Write(files []*File) ([]string, error) {
	var written []string
	err := d.withLock(func() error {
		for _, f := range files {
			target, err := d.Target(f)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
			}
			if err := os.WriteFile(target, f.Contents, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", target, err)
			}
			written = append(written, target)
		}
		return nil
	})
	return written, err
}

func (d Dest) withLock(fn func() error) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", d.Dir, err)
	}

	fileLock := flock.New(filepath.Join(d.Dir, LockName))
	if err := fileLock.Lock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = fileLock.Unlock() }()

	return fn()
}

// Stale describes an output whose on-disk copy differs from the one just
// generated.
type Stale struct {
	// Path is the on-disk path.
	Path string

	// Missing is true when nothing exists at Path yet.
	Missing bool

	// Got is the current on-disk content.
	Got []byte

	// Want is the freshly generated content.
	Want []byte
}

// Diff returns a unified diff from Got to Want.
func (s Stale) Diff() string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(s.Got)),
		B:        difflib.SplitLines(string(s.Want)),
		FromFile: s.Path,
		ToFile:   s.Path,
		Context:  3,
	}
	if s.Missing {
		diff.FromFile = "/dev/null"
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}

// Check compares files with what is currently below Dir without writing
// anything. It returns one Stale per differing or missing file, in order.
func (d Dest) Check(files []*File) ([]Stale, error) {
	var stale []Stale
	for _, f := range files {
		target, err := d.Target(f)
		if err != nil {
			return nil, err
		}
		got, err := os.ReadFile(target)
		switch {
		case errors.Is(err, os.ErrNotExist):
			stale = append(stale, Stale{Path: target, Missing: true, Want: f.Contents})
		case err != nil:
			return nil, fmt.Errorf("reading %s: %w", target, err)
		case !bytes.Equal(got, f.Contents):
			stale = append(stale, Stale{Path: target, Got: got, Want: f.Contents})
		}
	}
	return stale, nil
}
