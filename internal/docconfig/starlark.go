package docconfig

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.starlark.net/starlark"
)

// DefaultStarlarkTimeout is the default execution timeout for Starlark config files.
const DefaultStarlarkTimeout = 5 * time.Second

// ErrConfigureNotFound is returned when docstream.star doesn't define a configure() function.
var ErrConfigureNotFound = errors.New("docstream.star must define a configure() function")

// ErrConfigureReturnType is returned when configure() doesn't return a dict.
var ErrConfigureReturnType = errors.New("configure() must return a dict")

// LoadStarlarkConfig loads a configuration from a Starlark file.
// The file must define a configure() function that returns a dict.
// The execution is sandboxed: no filesystem or network access, with a timeout.
func LoadStarlarkConfig(path string, timeout time.Duration) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	thread := &starlark.Thread{Name: path}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel("execution timeout")
		case <-done:
		}
	}()
	defer close(done)

	globals, err := starlark.ExecFile(thread, path, data, configPredeclared())
	if err != nil {
		return nil, fmt.Errorf("executing config %s: %w", path, err)
	}

	configureFn, ok := globals["configure"]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrConfigureNotFound)
	}
	fn, ok := configureFn.(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("%s: configure must be a function, got %s", path, configureFn.Type())
	}

	result, err := starlark.Call(thread, fn, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: calling configure(): %w", path, err)
	}

	dict, ok := result.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("%s: %w, got %s", path, ErrConfigureReturnType, result.Type())
	}

	cfg, err := dictToConfig(dict)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// configPredeclared returns the predeclared values for config Starlark files.
// This is a sandboxed environment with no filesystem or network access.
func configPredeclared() starlark.StringDict {
	return starlark.StringDict{
		"getenv":    starlark.NewBuiltin("getenv", builtinGetenv),
		"host_os":   starlark.String(runtime.GOOS),
		"host_arch": starlark.String(runtime.GOARCH),
		"duration":  starlark.NewBuiltin("duration", builtinDuration),
		"struct":    starlark.NewBuiltin("struct", builtinStruct),
	}
}

// builtinGetenv implements getenv(name, default="") -> string.
func builtinGetenv(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var defaultVal starlark.String
	if err := starlark.UnpackArgs("getenv", args, kwargs, "name", &name, "default?", &defaultVal); err != nil {
		return nil, err
	}

	val := os.Getenv(name)
	if val == "" {
		return defaultVal, nil
	}
	return starlark.String(val), nil
}

// builtinDuration implements duration(s) -> string, validating s.
func builtinDuration(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackArgs("duration", args, kwargs, "s", &s); err != nil {
		return nil, err
	}
	if _, err := time.ParseDuration(s); err != nil {
		return nil, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return starlark.String(s), nil
}

// builtinStruct implements struct(**kwargs) as a dict constructor.
func builtinStruct(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, errors.New("struct: positional arguments not allowed")
	}
	d := starlark.NewDict(len(kwargs))
	for _, kv := range kwargs {
		if err := d.SetKey(kv[0], kv[1]); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// dictReader reads typed fields out of a Starlark dict.
type dictReader struct {
	d   *starlark.Dict
	err error
}

func (r *dictReader) get(key string) (starlark.Value, bool) {
	if r.err != nil {
		return nil, false
	}
	v, found, err := r.d.Get(starlark.String(key))
	if err != nil {
		r.err = err
		return nil, false
	}
	return v, found
}

func (r *dictReader) getString(key string, dst *string) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	s, ok := starlark.AsString(v)
	if !ok {
		r.err = fmt.Errorf("%s must be a string, got %s", key, v.Type())
		return
	}
	*dst = s
}

func (r *dictReader) getBool(key string, dst *bool) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	b, ok := v.(starlark.Bool)
	if !ok {
		r.err = fmt.Errorf("%s must be a bool, got %s", key, v.Type())
		return
	}
	*dst = bool(b)
}

func (r *dictReader) getInt(key string, dst *int) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	i, ok := v.(starlark.Int)
	if !ok {
		r.err = fmt.Errorf("%s must be an int, got %s", key, v.Type())
		return
	}
	n, ok := i.Int64()
	if !ok {
		r.err = fmt.Errorf("%s is out of range", key)
		return
	}
	*dst = int(n)
}

func (r *dictReader) getStrings(key string, dst *[]string) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	list, ok := v.(*starlark.List)
	if !ok {
		r.err = fmt.Errorf("%s must be a list, got %s", key, v.Type())
		return
	}
	out := make([]string, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		s, ok := starlark.AsString(list.Index(i))
		if !ok {
			r.err = fmt.Errorf("%s[%d] must be a string", key, i)
			return
		}
		out = append(out, s)
	}
	*dst = out
}

func (r *dictReader) getDuration(key string, dst *Duration) {
	var s string
	r.getString(key, &s)
	if r.err != nil || s == "" {
		return
	}
	if err := dst.UnmarshalText([]byte(s)); err != nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
}

// section returns a reader for a nested dict, or nil if key is absent.
func (r *dictReader) section(key string) *dictReader {
	v, ok := r.get(key)
	if !ok {
		return nil
	}
	d, ok := v.(*starlark.Dict)
	if !ok {
		r.err = fmt.Errorf("%s must be a dict, got %s", key, v.Type())
		return nil
	}
	return &dictReader{d: d}
}

// dictToConfig converts a Starlark dict to a Config struct.
func dictToConfig(d *starlark.Dict) (*Config, error) {
	cfg := DefaultConfig()
	r := &dictReader{d: d}

	r.getString("format", &cfg.Format)
	r.getString("filename", &cfg.Filename)
	r.getString("dest", &cfg.Dest)
	r.getStrings("sources", &cfg.Sources)

	if b := r.section("build"); b != nil {
		b.getBool("include_private", &cfg.Build.IncludePrivate)
		b.getString("sort", &cfg.Build.Sort)
		b.getInt("concurrency", &cfg.Build.Concurrency)
		if b.err != nil {
			return nil, fmt.Errorf("parsing build config: %w", b.err)
		}
	}

	if o := r.section("output"); o != nil {
		o.getString("name", &cfg.Output.Name)
		o.getString("title", &cfg.Output.Title)
		var toc bool
		if _, found := o.get("toc"); found {
			o.getBool("toc", &toc)
			cfg.Output.TOC = &toc
		}
		o.getString("source_url", &cfg.Output.SourceURL)
		o.getBool("frontmatter", &cfg.Output.Frontmatter)
		o.getBool("format_examples", &cfg.Output.FormatExamples)
		if o.err != nil {
			return nil, fmt.Errorf("parsing output config: %w", o.err)
		}
	}

	if l := r.section("log"); l != nil {
		l.getString("level", &cfg.Log.Level)
		l.getString("format", &cfg.Log.Format)
		if l.err != nil {
			return nil, fmt.Errorf("parsing log config: %w", l.err)
		}
	}

	if w := r.section("watch"); w != nil {
		w.getDuration("debounce", &cfg.Watch.Debounce)
		if w.err != nil {
			return nil, fmt.Errorf("parsing watch config: %w", w.err)
		}
	}

	if r.err != nil {
		return nil, r.err
	}
	return cfg, nil
}
