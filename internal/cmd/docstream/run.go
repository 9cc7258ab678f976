// Package docstream implements the docstream command: it documents
// Starlark sources by piping them through the documentation stage and
// writing, printing or checking the rendered output.
package docstream

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/albertocavalcante/docstream/internal/cli"
	"github.com/albertocavalcante/docstream/internal/docconfig"
	"github.com/albertocavalcante/docstream/internal/docgen"
	stage "github.com/albertocavalcante/docstream/internal/docstream"
	"github.com/albertocavalcante/docstream/internal/gitinfo"
	"github.com/albertocavalcante/docstream/internal/logging"
	"github.com/albertocavalcante/docstream/internal/metrics"
	"github.com/albertocavalcante/docstream/internal/stream"
	"github.com/albertocavalcante/docstream/internal/vfile"
	"github.com/albertocavalcante/docstream/internal/watch"
)

// Stdout is the -dest value that prints textual output instead of writing
// files.
const Stdout = "-"

// ErrStale is returned by -check when an output is missing or differs.
var ErrStale = errors.New("documentation is out of date")

// Run executes docstream with the given arguments and returns the exit
// code. Interrupts cancel the run.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RunWithIO(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}

// RunWithIO allows custom IO for embedding and testing.
func RunWithIO(ctx context.Context, args []string, _ io.Reader, stdout, stderr io.Writer) int {
	var (
		f       flags
		flagset *flag.FlagSet
	)
	cmd := cli.Command{
		Name:    "docstream",
		Usage:   "[flags] [path ...]",
		Summary: summary,
		Flags: func(fs *flag.FlagSet) {
			f.register(fs)
			flagset = fs
		},
		Run: func(ctx context.Context, args []string, stdout, stderr io.Writer) error {
			set := make(map[string]bool)
			flagset.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
			return run(ctx, &f, set, args, stdout, stderr)
		},
	}
	return cli.Execute(ctx, cmd, args, stdout, stderr)
}

const summary = `Generates API documentation for Starlark sources.

Paths are files or directories; directories are walked recursively for
Starlark sources. With no paths, the configured sources are used, or the
current directory.

Formats:
  md    a single Markdown file, API.md (default)
  json  a single JSON file, API.json
  html  a static site: index.html, one page per module and a stylesheet

Configuration is read from docstream.star, docstream.toml or
docstream.yaml in the current directory or a parent up to the git
repository root. Flags given on the command line take precedence.`

// flags holds the raw command line. Only flags that were set override the
// configuration.
type flags struct {
	format         string
	filename       string
	dest           string
	name           string
	title          string
	private        bool
	sort           string
	toc            bool
	sourceURL      string
	frontmatter    bool
	formatExamples bool
	config         string
	check          bool
	diff           bool
	watch          bool
	metricsAddr    string
	tolerant       bool
	logLevel       string
	logFormat      string
}

func (f *flags) register(fs *flag.FlagSet) {
	def := docconfig.DefaultConfig()
	fs.StringVar(&f.format, "format", def.Format, "output format: "+strings.Join(docgen.FormatNames(), ", "))
	fs.StringVar(&f.filename, "o", "", "output file name for md and json (default API.<format>)")
	fs.StringVar(&f.dest, "dest", def.Dest, "output directory, or - to print md or json to stdout")
	fs.StringVar(&f.name, "name", "", "project name used in titles")
	fs.StringVar(&f.title, "title", "", "document title")
	fs.BoolVar(&f.private, "private", false, "include private (underscore) symbols")
	fs.StringVar(&f.sort, "sort", def.Build.Sort, "symbol order: name or source")
	fs.BoolVar(&f.toc, "toc", true, "include a table of contents in Markdown output")
	fs.StringVar(&f.sourceURL, "source-url", "", "base URL for source links; the HEAD commit is appended inside a git repository")
	fs.BoolVar(&f.frontmatter, "frontmatter", false, "prepend YAML frontmatter to Markdown output")
	fs.BoolVar(&f.formatExamples, "format-examples", false, "reformat code in Example sections")
	fs.StringVar(&f.config, "config", "", "config file (overrides discovery and $"+docconfig.EnvConfig+")")
	fs.BoolVar(&f.check, "check", false, "exit with status 1 if outputs in -dest are missing or out of date")
	fs.BoolVar(&f.diff, "d", false, "with -check, print a diff for each stale output")
	fs.BoolVar(&f.watch, "watch", false, "rebuild whenever a source changes")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address in watch mode")
	fs.BoolVar(&f.tolerant, "tolerant", false, "log build and format failures instead of failing")
	fs.StringVar(&f.logLevel, "log-level", def.Log.Level, "log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", def.Log.Format, "log format: auto, text, json")
}

// apply copies explicitly set flags onto cfg.
func (f *flags) apply(cfg *docconfig.Config, set map[string]bool) {
	if set["format"] {
		cfg.Format = f.format
	}
	if set["o"] {
		cfg.Filename = f.filename
	}
	if set["dest"] {
		cfg.Dest = f.dest
	}
	if set["name"] {
		cfg.Output.Name = f.name
	}
	if set["title"] {
		cfg.Output.Title = f.title
	}
	if set["private"] {
		cfg.Build.IncludePrivate = f.private
	}
	if set["sort"] {
		cfg.Build.Sort = f.sort
	}
	if set["toc"] {
		toc := f.toc
		cfg.Output.TOC = &toc
	}
	if set["source-url"] {
		cfg.Output.SourceURL = f.sourceURL
	}
	if set["frontmatter"] {
		cfg.Output.Frontmatter = f.frontmatter
	}
	if set["format-examples"] {
		cfg.Output.FormatExamples = f.formatExamples
	}
	if set["log-level"] {
		cfg.Log.Level = f.logLevel
	}
	if set["log-format"] {
		cfg.Log.Format = f.logFormat
	}
}

// validate rejects flag combinations that cannot run.
func (f *flags) validate(cfg *docconfig.Config) error {
	format, err := docgen.ParseFormat(cfg.Format)
	if err != nil {
		return &cli.UsageError{Msg: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return &cli.UsageError{Msg: err.Error()}
	}
	switch {
	case f.diff && !f.check:
		return cli.Usagef("-d requires -check")
	case f.check && f.watch:
		return cli.Usagef("cannot use -check and -watch together")
	case f.metricsAddr != "" && !f.watch:
		return cli.Usagef("-metrics-addr requires -watch")
	case cfg.Dest == Stdout && !format.Textual():
		return cli.Usagef("-dest %s requires a single-file format, not %s", Stdout, format)
	case cfg.Dest == Stdout && (f.check || f.watch):
		return cli.Usagef("-dest %s cannot be combined with -check or -watch", Stdout)
	}
	return nil
}

func run(ctx context.Context, f *flags, set map[string]bool, args []string, stdout, stderr io.Writer) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := loadConfig(f.config)
	if err != nil {
		return err
	}
	f.apply(cfg, set)
	if err := f.validate(cfg); err != nil {
		return err
	}

	logger, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return &cli.UsageError{Msg: err.Error()}
	}
	logger = logger.With(logging.RunID(uuid.NewString()))

	sources := args
	if len(sources) == 0 {
		sources = cfg.Sources
	}
	if len(sources) == 0 {
		sources = []string{"."}
	}

	r := &runner{
		cfg:     cfg,
		flags:   f,
		sources: sources,
		logger:  logger,
		metrics: metrics.NoopRecorder{},
		stdout:  stdout,
	}
	r.formatOpts = r.formatOptions()

	if f.watch {
		return r.watch(ctx)
	}
	return r.once(ctx)
}

func loadConfig(path string) (*docconfig.Config, error) {
	if path != "" {
		return docconfig.LoadConfig(path)
	}
	cfg, _, err := docconfig.DiscoverConfig("")
	return cfg, err
}

type runner struct {
	cfg        *docconfig.Config
	flags      *flags
	sources    []string
	formatOpts docgen.FormatOptions
	logger     *slog.Logger
	metrics    metrics.Recorder
	stdout     io.Writer
}

// formatOptions pins source links to the checked-out commit when the
// sources live in a git repository.
func (r *runner) formatOptions() docgen.FormatOptions {
	opts := r.cfg.FormatOptions()
	if opts.SourceBaseURL == "" {
		return opts
	}
	dir := r.sources[0]
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	rev, err := gitinfo.Head(dir)
	if err != nil {
		r.logger.Debug("source links without revision", logging.Err(err))
		return opts
	}
	opts.Revision = rev
	return opts
}

// generate runs the sources through a fresh documentation stage.
func (r *runner) generate(ctx context.Context) ([]*vfile.File, error) {
	adapter, err := stage.New(r.cfg.Format, stage.Options{
		Filename: r.cfg.Filename,
		Build:    r.cfg.BuildOptions(),
		Format:   r.formatOpts,
		Tolerant: r.flags.tolerant,
		Logger:   r.logger,
		Metrics:  r.metrics,
	})
	if err != nil {
		return nil, err
	}

	in, err := vfile.Src(ctx, r.sources...)
	if err != nil {
		return nil, err
	}
	return stream.Collect(stream.Pipe(ctx, in, adapter))
}

func (r *runner) once(ctx context.Context) error {
	files, err := r.generate(ctx)
	if err != nil {
		return err
	}

	switch {
	case r.cfg.Dest == Stdout:
		for _, f := range files {
			cli.WriteBytes(r.stdout, f.Contents)
		}
		return nil
	case r.flags.check:
		return r.check(files)
	}
	return r.write(files)
}

func (r *runner) write(files []*vfile.File) error {
	written, err := vfile.Dest{Dir: r.cfg.Dest}.Write(files)
	if err != nil {
		return err
	}
	for _, p := range written {
		r.logger.Debug("wrote", logging.Path(p))
	}
	r.logger.Info("outputs written", logging.Files(len(written)), slog.String("dest", r.cfg.Dest))
	return nil
}

func (r *runner) check(files []*vfile.File) error {
	stale, err := vfile.Dest{Dir: r.cfg.Dest}.Check(files)
	if err != nil {
		return err
	}
	for _, s := range stale {
		if r.flags.diff {
			cli.Write(r.stdout, s.Diff())
			continue
		}
		cli.Writeln(r.stdout, s.Path)
	}
	if len(stale) > 0 {
		return fmt.Errorf("%w: %d of %d output(s) stale", ErrStale, len(stale), len(files))
	}
	return nil
}

// watch builds once and then on every batch of source changes until ctx
// is done. Build failures are logged and do not stop watching.
func (r *runner) watch(ctx context.Context) error {
	if r.flags.metricsAddr != "" {
		defer r.serveMetrics()()
	}

	w, err := watch.New(r.sources, r.cfg.Watch.Debounce.Duration)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	r.rebuild(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			r.logger.Info("sources changed", logging.Files(len(ev.Files)))
			r.rebuild(ctx)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watcher error", logging.Err(err))
		}
	}
}

func (r *runner) rebuild(ctx context.Context) {
	files, err := r.generate(ctx)
	if err == nil {
		err = r.write(files)
	}
	if err != nil && !stream.IsCanceled(err) {
		r.logger.Error("rebuild failed", logging.Err(err))
	}
}

// serveMetrics starts the /metrics endpoint and switches the runner to a
// Prometheus recorder.
func (r *runner) serveMetrics() (shutdown func()) {
	reg := prometheus.NewRegistry()
	r.metrics = metrics.NewPrometheusRecorder(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	srv := &http.Server{
		Addr:              r.flags.metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("metrics server stopped", logging.Err(err))
		}
	}()
	r.logger.Info("serving metrics", slog.String("addr", r.flags.metricsAddr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
