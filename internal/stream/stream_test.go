package stream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/albertocavalcante/docstream/internal/vfile"
)

func paths(files []*vfile.File) []string {
	var out []string
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

// batch buffers every item and emits a single summary file on Flush.
type batch struct {
	mu        sync.Mutex
	seen      []string
	processed chan struct{}
	flushes   atomic.Int32
	flushErr  error
}

func (b *batch) Process(_ context.Context, f *vfile.File, _ Emit) error {
	b.mu.Lock()
	b.seen = append(b.seen, f.Path)
	b.mu.Unlock()
	if b.processed != nil {
		b.processed <- struct{}{}
	}
	return nil
}

func (b *batch) Flush(_ context.Context, emit Emit) error {
	b.flushes.Add(1)
	if b.flushErr != nil {
		return b.flushErr
	}
	b.mu.Lock()
	joined := strings.Join(b.seen, ",")
	b.mu.Unlock()
	return emit(vfile.New("summary.txt", []byte(joined)))
}

func TestPipe_StageFunc(t *testing.T) {
	ctx := context.Background()
	upper := StageFunc(func(_ context.Context, f *vfile.File, emit Emit) error {
		return emit(vfile.New(strings.ToUpper(f.Path), nil))
	})

	in := FromSlice(ctx, []*vfile.File{{Path: "a.star"}, {Path: "b.star"}})
	got, err := Collect(Pipe(ctx, in, upper))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if diff := cmp.Diff([]string{"A.STAR", "B.STAR"}, paths(got)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestPipe_FlushWaitsForUpstream(t *testing.T) {
	ctx := context.Background()
	b := &batch{processed: make(chan struct{})}
	in := make(chan *vfile.File)
	out, errc := Pipe(ctx, in, b)

	for _, p := range []string{"a.star", "b.star", "c.star"} {
		in <- &vfile.File{Path: p}
		<-b.processed
		if n := b.flushes.Load(); n != 0 {
			t.Fatalf("Flush called %d times before upstream completed", n)
		}
	}
	close(in)

	got, err := Collect(out, errc)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if b.flushes.Load() != 1 {
		t.Errorf("Flush called %d times, want 1", b.flushes.Load())
	}
	if len(got) != 1 || string(got[0].Contents) != "a.star,b.star,c.star" {
		t.Errorf("got %v, want one summary of all inputs", got)
	}
}

func TestPipe_EmptyInputStillFlushes(t *testing.T) {
	ctx := context.Background()
	b := &batch{}
	got, err := Collect(Pipe(ctx, FromSlice(ctx, nil), b))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if b.flushes.Load() != 1 || len(got) != 1 {
		t.Errorf("flushes=%d outputs=%d, want 1 and 1", b.flushes.Load(), len(got))
	}
}

func TestPipe_ProcessErrorStopsPipe(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	failing := StageFunc(func(_ context.Context, f *vfile.File, emit Emit) error {
		if f.Path == "bad.star" {
			return boom
		}
		return emit(f)
	})
	b := &batch{}

	in := FromSlice(ctx, []*vfile.File{{Path: "a.star"}, {Path: "bad.star"}, {Path: "c.star"}})
	got, err := Collect(Pipe(ctx, in, failing, b))
	if !errors.Is(err, boom) {
		t.Fatalf("Collect error = %v, want %v", err, boom)
	}
	if got != nil {
		t.Errorf("Collect returned %d files on error, want none", len(got))
	}
	if b.flushes.Load() != 0 {
		t.Errorf("downstream Flush called %d times after upstream error, want 0", b.flushes.Load())
	}
}

func TestPipe_FlushError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("flush failed")
	b := &batch{flushErr: boom}

	_, err := Collect(Pipe(ctx, FromSlice(ctx, []*vfile.File{{Path: "a.star"}}), b))
	if !errors.Is(err, boom) {
		t.Errorf("Collect error = %v, want %v", err, boom)
	}
}

func TestPipe_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan *vfile.File)
	defer close(in)
	b := &batch{}
	out, errc := Pipe(ctx, in, b)
	cancel()

	_, err := Collect(out, errc)
	if !IsCanceled(err) {
		t.Errorf("Collect error = %v, want context canceled", err)
	}
	if b.flushes.Load() != 0 {
		t.Errorf("Flush called after cancellation")
	}
}
