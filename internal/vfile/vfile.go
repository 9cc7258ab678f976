// Package vfile defines the file objects that flow through a docstream
// pipeline, plus helpers to read them from disk and write them back.
package vfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// File is a single item in a stream.
//
// Input files are usually read from disk by Src; stages may only look at
// Path. Output files are produced by stages and carry Contents to be
// written relative to a destination directory.
type File struct {
	// Base is the directory Path is relative to when written out.
	Base string

	// Path is the file path. For output files it is usually relative.
	Path string

	// Contents holds the file bytes. Nil for files read lazily.
	Contents []byte
}

// New returns an output file with the given relative path and contents.
func New(path string, contents []byte) *File {
	return &File{Path: path, Contents: contents}
}

// Read loads a file from disk.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return &File{Base: filepath.Dir(path), Path: path, Contents: data}, nil
}

// Relative returns Path relative to Base. Relative paths are returned
// unchanged.
func (f *File) Relative() string {
	if f.Base == "" || !hasPrefixDir(f.Path, f.Base) {
		return filepath.Clean(f.Path)
	}
	rel, err := filepath.Rel(f.Base, f.Path)
	if err != nil {
		return filepath.Clean(f.Path)
	}
	return rel
}

// Clone returns a copy of f with its own Contents slice.
func (f *File) Clone() *File {
	c := *f
	if f.Contents != nil {
		c.Contents = append([]byte(nil), f.Contents...)
	}
	return &c
}

func (f *File) String() string {
	return fmt.Sprintf("<File %q (%d bytes)>", f.Relative(), len(f.Contents))
}

func hasPrefixDir(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !filepath.IsAbs(rel) && (len(rel) < 3 || rel[:3] != ".."+string(filepath.Separator))
}
