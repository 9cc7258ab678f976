// Package watch reports changes to Starlark sources so docstream can
// rebuild documentation.
package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.starlark.net/syntax"

	"github.com/albertocavalcante/docstream/internal/vfile"
)

// DefaultDebounce is how long the watcher waits for further changes
// before reporting a batch.
const DefaultDebounce = 200 * time.Millisecond

// Event is a batch of changed files.
type Event struct {
	// Files are the absolute paths that changed, sorted.
	Files []string
}

// Watcher watches source trees and individual files. Directories are
// watched recursively for any Starlark source; explicit files are watched
// together with the files they load() by relative path.
type Watcher struct {
	mu sync.RWMutex

	fsWatcher *fsnotify.Watcher
	debounce  time.Duration

	// dirs are watched directories in which every source counts.
	dirs map[string]bool

	// files are individually watched files (explicit paths and their
	// load dependencies).
	files map[string]bool

	// Events receives batches of changes.
	Events chan Event

	// Errors receives watcher errors.
	Errors chan error

	done chan struct{}
	once sync.Once
}

// New watches paths, each a file or a directory. A debounce of zero
// selects DefaultDebounce.
func New(paths []string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		debounce:  debounce,
		dirs:      make(map[string]bool),
		files:     make(map[string]bool),
		Events:    make(chan Event, 16),
		Errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}

	for _, p := range paths {
		if err := w.add(p); err != nil {
			_ = fsWatcher.Close()
			return nil, err
		}
	}

	go w.run()
	return w, nil
}

func (w *Watcher) add(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("getting absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if info.IsDir() {
		return w.addTree(absPath)
	}
	return w.addFile(absPath)
}

// addTree watches root and every non-hidden directory below it.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if w.dirs[path] {
			return nil
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		w.dirs[path] = true
		return nil
	})
}

// addFile watches file through its directory, then follows its relative
// loads.
func (w *Watcher) addFile(file string) error {
	if w.files[file] {
		return nil
	}
	dir := filepath.Dir(file)
	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", file, err)
	}
	w.files[file] = true

	loads, err := extractLoads(file)
	if err != nil {
		// Syntax errors are reported by the build, not here.
		return nil
	}
	for _, l := range loads {
		if dep := resolveLoadPath(file, l); dep != "" {
			if err := w.addFile(dep); err != nil {
				return err
			}
		}
	}
	return nil
}

// extractLoads parses a Starlark file and returns its load() modules.
func extractLoads(file string) ([]string, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	f, err := syntax.Parse(file, src, 0)
	if err != nil {
		return nil, err
	}

	var loads []string
	for _, stmt := range f.Stmts {
		if load, ok := stmt.(*syntax.LoadStmt); ok {
			if module, ok := load.Module.Value.(string); ok {
				loads = append(loads, module)
			}
		}
	}
	return loads, nil
}

// resolveLoadPath resolves a load path relative to the loading file, or
// returns "" for labels and missing files.
func resolveLoadPath(fromFile, loadPath string) string {
	// Bazel-style labels (//pkg:file, @repo//pkg:file, :file) are not
	// plain paths.
	if strings.HasPrefix(loadPath, "//") || strings.HasPrefix(loadPath, "@") || strings.HasPrefix(loadPath, ":") {
		return ""
	}
	resolved := filepath.Join(filepath.Dir(fromFile), loadPath)
	if _, err := os.Stat(resolved); err != nil {
		return ""
	}
	return resolved
}

// Relevant reports whether a change to path should trigger a rebuild.
func (w *Watcher) Relevant(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.files[absPath] {
		return true
	}
	return w.dirs[filepath.Dir(absPath)] && vfile.IsSource(filepath.Base(absPath))
}

// WatchedDirs returns the watched directories, sorted.
func (w *Watcher) WatchedDirs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	dirs := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// Close stops the watcher and releases resources. Events is closed once
// the watcher has stopped.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.Events)

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-w.done:
			timer.Stop()
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event, pending)
			if len(pending) > 0 {
				timer.Reset(w.debounce)
			}

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			files := make([]string, 0, len(pending))
			for f := range pending {
				files = append(files, f)
			}
			sort.Strings(files)
			clear(pending)
			select {
			case w.Events <- Event{Files: files}:
			case <-w.done:
				return
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, pending map[string]bool) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// New directories under a watched tree join the tree.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.mu.Lock()
			parent := w.dirs[filepath.Dir(event.Name)]
			var addErr error
			if parent && !strings.HasPrefix(filepath.Base(event.Name), ".") {
				addErr = w.addTree(event.Name)
			}
			w.mu.Unlock()
			if addErr != nil {
				select {
				case w.Errors <- addErr:
				default:
				}
			}
			return
		}
	}

	if w.Relevant(event.Name) {
		absPath, _ := filepath.Abs(event.Name)
		pending[absPath] = true
	}
}
