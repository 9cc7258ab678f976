package docgen

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Builder turns source paths into an API model.
type Builder struct {
	readFile func(string) ([]byte, error)
}

// NewBuilder returns a Builder that reads sources from disk.
func NewBuilder() *Builder {
	return &Builder{readFile: os.ReadFile}
}

// Build parses every path and returns the model. Modules keep the order
// of paths even though files are parsed concurrently. The first failure
// cancels the remaining work.
func (b *Builder) Build(ctx context.Context, paths []string, opts BuildOptions) (*API, error) {
	modules := make([]ModuleDoc, len(paths))

	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := b.readFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			doc, err := ExtractFile(path, src, opts)
			if err != nil {
				return fmt.Errorf("extracting %s: %w", path, err)
			}
			modules[i] = *doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &API{Modules: modules}, nil
}
