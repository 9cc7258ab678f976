// Package stream runs vfile.File values through a sequence of stages.
//
// A stage sees items strictly one at a time. Once its input is exhausted
// it is flushed exactly once, and its output is closed only after the
// flush returns. The first error from any stage stops the whole pipe and is
// reported on the error channel; nothing is silently dropped.
package stream

import (
	"context"
	"errors"

	"github.com/albertocavalcante/docstream/internal/vfile"
)

// Emit pushes a file downstream. It fails when the pipe is shutting down.
type Emit func(*vfile.File) error

// Stage is one unit of a pipe.
type Stage interface {
	// Process handles one upstream item. It may emit zero or more files.
	Process(ctx context.Context, f *vfile.File, emit Emit) error

	// Flush is called once after upstream completes.
	Flush(ctx context.Context, emit Emit) error
}

// StageFunc turns a per-item function into a Stage with a no-op Flush.
type StageFunc func(ctx context.Context, f *vfile.File, emit Emit) error

// Process calls fn.
func (fn StageFunc) Process(ctx context.Context, f *vfile.File, emit Emit) error {
	return fn(ctx, f, emit)
}

// Flush does nothing.
func (StageFunc) Flush(context.Context, Emit) error { return nil }

// Pipe connects in to stages in order and returns the last stage's output
// and an error channel. The error channel carries at most one error and is
// closed after the output channel. Callers must drain the output channel.
func Pipe(ctx context.Context, in <-chan *vfile.File, stages ...Stage) (<-chan *vfile.File, <-chan error) {
	ctx, cancel := context.WithCancel(ctx)
	errc := make(chan error, 1)
	report := func(err error) {
		select {
		case errc <- err:
		default:
		}
		cancel()
	}

	cur := in
	var done []<-chan struct{}
	for _, s := range stages {
		out := make(chan *vfile.File)
		fin := make(chan struct{})
		go runStage(ctx, s, cur, out, fin, report)
		cur = out
		done = append(done, fin)
	}

	final := make(chan *vfile.File)
	go func() {
		defer func() {
			for _, fin := range done {
				<-fin
			}
			close(errc)
			cancel()
		}()
		defer close(final)
		for f := range cur {
			select {
			case final <- f:
			case <-ctx.Done():
				// Drain so upstream stages can exit.
				for range cur {
				}
				return
			}
		}
	}()
	return final, errc
}

func runStage(ctx context.Context, s Stage, in <-chan *vfile.File, out chan<- *vfile.File, fin chan<- struct{}, report func(error)) {
	defer close(fin)
	defer close(out)

	emit := func(f *vfile.File) error {
		select {
		case out <- f:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case f, ok := <-in:
			if !ok {
				if err := ctx.Err(); err != nil {
					report(err)
					return
				}
				if err := s.Flush(ctx, emit); err != nil {
					report(err)
				}
				return
			}
			if err := s.Process(ctx, f, emit); err != nil {
				report(err)
				drain(in)
				return
			}
		case <-ctx.Done():
			report(ctx.Err())
			drain(in)
			return
		}
	}
}

func drain(in <-chan *vfile.File) {
	go func() {
		for range in {
		}
	}()
}

// FromSlice returns a channel that yields files and then closes.
func FromSlice(ctx context.Context, files []*vfile.File) <-chan *vfile.File {
	out := make(chan *vfile.File)
	go func() {
		defer close(out)
		for _, f := range files {
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Collect drains a pipe. It returns every emitted file and the pipe error,
// if any. Files emitted before an error are discarded.
func Collect(out <-chan *vfile.File, errc <-chan error) ([]*vfile.File, error) {
	var files []*vfile.File
	for f := range out {
		files = append(files, f)
	}
	if err := <-errc; err != nil {
		return nil, err
	}
	return files, nil
}

// IsCanceled reports whether err stems from context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
