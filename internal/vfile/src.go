package vfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IsSource returns true if the filename is a recognized Starlark source.
// Supports files from: Bazel, Buck2, Pants, Please, Tilt, Copybara, Skycfg,
// Kurtosis, Drone CI, Isopod, Cirrus CI, and generic Starlark.
func IsSource(name string) bool {
	switch name {
	case "BUILD", "BUILD.bazel", "WORKSPACE", "WORKSPACE.bazel", "MODULE.bazel",
		"BUCK",
		"Tiltfile":
		return true
	}
	switch filepath.Ext(name) {
	case ".bzl", ".bxl", ".star", ".starlark", ".sky", ".skyi",
		".ipd", ".plz":
		return true
	}
	return false
}

// Expand resolves paths to a list of source files.
// Directories are walked recursively; hidden directories are skipped and
// only files accepted by IsSource are kept. Explicit file arguments are
// always kept, whatever their extension.
func Expand(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, path := range paths {
		expanded, err := expandPath(path)
		if err != nil {
			return nil, err
		}
		for _, f := range expanded {
			if seen[f] {
				continue
			}
			seen[f] = true
			files = append(files, f)
		}
	}
	return files, nil
}

func expandPath(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsSource(d.Name()) {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

// Src expands paths and sends one File per source on the returned
// channel. Contents are not read: downstream stages only need paths.
// The channel is closed when all files are sent or ctx is done.
func Src(ctx context.Context, paths ...string) (<-chan *File, error) {
	files, err := Expand(paths)
	if err != nil {
		return nil, fmt.Errorf("expanding sources: %w", err)
	}

	out := make(chan *File)
	go func() {
		defer close(out)
		for _, p := range files {
			f := &File{Base: baseFor(p, paths), Path: p}
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// baseFor picks the argument that produced p so Relative() matches what
// the user typed.
func baseFor(p string, roots []string) string {
	for _, root := range roots {
		if root == p {
			return filepath.Dir(p)
		}
		if hasPrefixDir(p, root) {
			return root
		}
	}
	return filepath.Dir(p)
}
