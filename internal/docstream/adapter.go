// Package docstream provides a stream stage that documents the files
// flowing through it.
//
// An Adapter collects the path of every incoming file and emits nothing
// until upstream completes. It then hands the collected paths to a
// Builder, renders the resulting API model with a Formatter in the format
// chosen at construction, and emits the rendered output: a single file for
// the textual formats (md, json) or every page of the site (html), in the
// order the formatter returned them.
//
// Builder and formatter failures are returned as *StageError and nothing
// is emitted. Options.Tolerant switches to a best-effort policy that logs
// the failure and completes with no output.
package docstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/albertocavalcante/docstream/internal/docgen"
	"github.com/albertocavalcante/docstream/internal/logging"
	"github.com/albertocavalcante/docstream/internal/metrics"
	"github.com/albertocavalcante/docstream/internal/stream"
	"github.com/albertocavalcante/docstream/internal/vfile"
)

// Builder extracts an API model from source paths.
type Builder interface {
	Build(ctx context.Context, paths []string, opts docgen.BuildOptions) (*docgen.API, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context, paths []string, opts docgen.BuildOptions) (*docgen.API, error)

// Build calls fn.
func (fn BuilderFunc) Build(ctx context.Context, paths []string, opts docgen.BuildOptions) (*docgen.API, error) {
	return fn(ctx, paths, opts)
}

// Formatter renders an API model.
type Formatter interface {
	Format(ctx context.Context, format docgen.Format, api *docgen.API, opts docgen.FormatOptions) (docgen.Output, error)
}

// FormatterFunc adapts a function to Formatter.
type FormatterFunc func(ctx context.Context, format docgen.Format, api *docgen.API, opts docgen.FormatOptions) (docgen.Output, error)

// Format calls fn.
func (fn FormatterFunc) Format(ctx context.Context, format docgen.Format, api *docgen.API, opts docgen.FormatOptions) (docgen.Output, error) {
	return fn(ctx, format, api, opts)
}

// Options configures an Adapter.
type Options struct {
	// Filename overrides the output path of textual formats. The site
	// format ignores it.
	Filename string

	// Build is passed to the builder unchanged.
	Build docgen.BuildOptions

	// Format is passed to the formatter unchanged.
	Format docgen.FormatOptions

	// Builder defaults to docgen.NewBuilder().
	Builder Builder

	// Formatter defaults to docgen.NewRenderer().
	Formatter Formatter

	// Tolerant makes builder and formatter failures non-fatal: they are
	// logged and the stage completes without output.
	Tolerant bool

	Logger  *slog.Logger
	Metrics metrics.Recorder
}

// State is the lifecycle position of an Adapter.
type State int

const (
	StateCreated State = iota
	StateCollecting
	StateFinalizing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateCollecting:
		return "collecting"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	// ErrClosed is returned by Collect and Finalize once finalization
	// has started.
	ErrClosed = errors.New("docstream: adapter already finalized")

	// ErrNoPath is returned by Collect for a file without a path.
	ErrNoPath = errors.New("docstream: file has no path")

	// ErrBuild and ErrFormat match a *StageError of the respective phase
	// with errors.Is.
	ErrBuild  = errors.New("docstream: build failed")
	ErrFormat = errors.New("docstream: format failed")
)

// Phase names the step of finalization that failed.
type Phase string

const (
	PhaseBuild  Phase = "build"
	PhaseFormat Phase = "format"
)

// StageError is a builder or formatter failure.
type StageError struct {
	Phase Phase
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("docstream %s: %v", e.Phase, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's phase.
func (e *StageError) Is(target error) bool {
	switch target {
	case ErrBuild:
		return e.Phase == PhaseBuild
	case ErrFormat:
		return e.Phase == PhaseFormat
	}
	return false
}

// Adapter is a stream.Stage that turns collected sources into rendered
// documentation. An Adapter is single-use.
type Adapter struct {
	format    docgen.Format
	opts      Options
	builder   Builder
	formatter Formatter
	logger    *slog.Logger
	metrics   metrics.Recorder

	mu    sync.Mutex
	state State
	paths []string
}

var _ stream.Stage = (*Adapter)(nil)

// New returns an Adapter rendering to format ("" selects md). An unknown
// format fails here, before any file is collected, with an error that
// lists the valid names and matches docgen.ErrUnknownFormat.
func New(format string, opts Options) (*Adapter, error) {
	f, err := docgen.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	a := &Adapter{
		format:    f,
		opts:      opts,
		builder:   opts.Builder,
		formatter: opts.Formatter,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
	if a.builder == nil {
		a.builder = docgen.NewBuilder()
	}
	if a.formatter == nil {
		a.formatter = docgen.NewRenderer()
	}
	if a.logger == nil {
		a.logger = logging.Discard()
	}
	if a.metrics == nil {
		a.metrics = metrics.NoopRecorder{}
	}
	a.logger = a.logger.With(logging.Stage("docstream"), logging.Format(f.String()))
	return a, nil
}

// Format returns the output format.
func (a *Adapter) Format() docgen.Format { return a.format }

// State returns the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Paths returns a copy of the collected paths in arrival order.
func (a *Adapter) Paths() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.paths...)
}

// Collect records the path of f. It never emits.
func (a *Adapter) Collect(f *vfile.File) error {
	if f == nil || f.Path == "" {
		return ErrNoPath
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state >= StateFinalizing {
		return ErrClosed
	}
	a.state = StateCollecting
	a.paths = append(a.paths, f.Path)
	a.logger.Debug("collected", logging.Path(f.Path))
	return nil
}

// Finalize builds and renders the collected paths and returns the output
// files. It runs at most once; later calls return ErrClosed. On failure no
// files are returned.
func (a *Adapter) Finalize(ctx context.Context) ([]*vfile.File, error) {
	a.mu.Lock()
	if a.state >= StateFinalizing {
		a.mu.Unlock()
		return nil, ErrClosed
	}
	a.state = StateFinalizing
	paths := append([]string(nil), a.paths...)
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.state = StateClosed
		a.mu.Unlock()
	}()

	a.metrics.AddInputs(len(paths))
	start := time.Now()

	files, err := a.finalize(ctx, paths)
	if err != nil {
		return a.fail(err)
	}

	a.metrics.IncBuildResult(metrics.ResultSuccess)
	a.logger.Info("documentation generated",
		logging.Files(len(files)),
		logging.Duration(time.Since(start)))
	return files, nil
}

func (a *Adapter) finalize(ctx context.Context, paths []string) ([]*vfile.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Phase: PhaseBuild, Err: err}
	}

	start := time.Now()
	api, err := a.builder.Build(ctx, paths, a.opts.Build)
	a.metrics.ObservePhaseDuration(string(PhaseBuild), time.Since(start))
	if err != nil {
		return nil, &StageError{Phase: PhaseBuild, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Phase: PhaseFormat, Err: err}
	}

	start = time.Now()
	out, err := a.formatter.Format(ctx, a.format, api, a.opts.Format)
	a.metrics.ObservePhaseDuration(string(PhaseFormat), time.Since(start))
	if err != nil {
		return nil, &StageError{Phase: PhaseFormat, Err: err}
	}

	return a.files(out), nil
}

// files wraps formatter output. Textual formats yield exactly one file;
// site pages pass through in order.
func (a *Adapter) files(out docgen.Output) []*vfile.File {
	if a.format.Textual() {
		name := a.opts.Filename
		if name == "" {
			name = a.format.DefaultFilename()
		}
		return []*vfile.File{vfile.New(name, out.Text)}
	}

	if a.opts.Filename != "" {
		a.logger.Debug("filename ignored for multi-file output", logging.Path(a.opts.Filename))
	}
	files := make([]*vfile.File, 0, len(out.Pages))
	for _, p := range out.Pages {
		files = append(files, vfile.New(p.Path, p.Content))
	}
	return files
}

func (a *Adapter) fail(err error) ([]*vfile.File, error) {
	if stream.IsCanceled(err) {
		a.metrics.IncBuildResult(metrics.ResultCanceled)
		return nil, err
	}
	if a.opts.Tolerant {
		a.metrics.IncBuildResult(metrics.ResultTolerated)
		a.logger.Warn("documentation skipped", logging.Err(err))
		return nil, nil
	}
	a.metrics.IncBuildResult(metrics.ResultFailed)
	return nil, err
}

// Process implements stream.Stage by collecting f.
func (a *Adapter) Process(_ context.Context, f *vfile.File, _ stream.Emit) error {
	return a.Collect(f)
}

// Flush implements stream.Stage: it finalizes and emits the output files
// in order.
func (a *Adapter) Flush(ctx context.Context, emit stream.Emit) error {
	files, err := a.Finalize(ctx)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := emit(f); err != nil {
			return err
		}
		a.metrics.AddOutputs(1)
	}
	return nil
}
