// Package docconfig loads docstream configuration.
//
// Three formats are supported:
//   - docstream.star: Starlark, defining configure() that returns a dict
//   - docstream.toml: TOML
//   - docstream.yaml: YAML
//
// DiscoverConfig walks up from a directory to the enclosing git
// repository root looking for one of them. DOCSTREAM_CONFIG names a file
// explicitly and skips discovery.
package docconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/albertocavalcante/docstream/internal/docgen"
	"github.com/albertocavalcante/docstream/internal/gitinfo"
	"github.com/albertocavalcante/docstream/internal/logging"
)

// Config file names in priority order.
const (
	ConfigStar = "docstream.star"
	ConfigTOML = "docstream.toml"
	ConfigYAML = "docstream.yaml"
)

var configNames = []string{ConfigStar, ConfigTOML, ConfigYAML}

// EnvConfig is the environment variable naming a config file.
const EnvConfig = "DOCSTREAM_CONFIG"

// ErrConflict is returned when multiple config files exist in the same directory.
var ErrConflict = errors.New("multiple config files found in the same directory; use only one")

// Config is the docstream configuration.
type Config struct {
	// Format is md, json or html.
	Format string `toml:"format" yaml:"format"`

	// Filename overrides API.<ext> for textual formats.
	Filename string `toml:"filename" yaml:"filename"`

	// Dest is the output directory; "-" writes textual output to stdout.
	Dest string `toml:"dest" yaml:"dest"`

	// Sources are the files or directories documented when none are
	// given on the command line. Relative entries are resolved against
	// the directory of the config file.
	Sources []string `toml:"sources" yaml:"sources"`

	Build  BuildConfig  `toml:"build" yaml:"build"`
	Output OutputConfig `toml:"output" yaml:"output"`
	Log    LogConfig    `toml:"log" yaml:"log"`
	Watch  WatchConfig  `toml:"watch" yaml:"watch"`
}

// BuildConfig maps to docgen.BuildOptions.
type BuildConfig struct {
	IncludePrivate bool   `toml:"include_private" yaml:"include_private"`
	Sort           string `toml:"sort" yaml:"sort"`
	Concurrency    int    `toml:"concurrency" yaml:"concurrency"`
}

// OutputConfig maps to docgen.FormatOptions.
type OutputConfig struct {
	Name  string `toml:"name" yaml:"name"`
	Title string `toml:"title" yaml:"title"`

	// TOC is nil when unset, which means enabled.
	TOC *bool `toml:"toc" yaml:"toc"`

	SourceURL      string `toml:"source_url" yaml:"source_url"`
	Frontmatter    bool   `toml:"frontmatter" yaml:"frontmatter"`
	FormatExamples bool   `toml:"format_examples" yaml:"format_examples"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	// Debounce is how long to wait for more changes before rebuilding.
	Debounce Duration `toml:"debounce" yaml:"debounce"`
}

// Duration wraps time.Duration for TOML/YAML string parsing.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	if d.Duration == 0 {
		return nil, nil
	}
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns a Config with the defaults of the docstream command.
func DefaultConfig() *Config {
	return &Config{
		Format: "md",
		Dest:   "docs",
		Build:  BuildConfig{Sort: string(docgen.SortName)},
		Log:    LogConfig{Level: "warn", Format: logging.FormatAuto},
		Watch:  WatchConfig{Debounce: Duration{200 * time.Millisecond}},
	}
}

// TableOfContents reports whether Markdown output gets a table of contents.
func (o OutputConfig) TableOfContents() bool {
	return o.TOC == nil || *o.TOC
}

// BuildOptions returns the builder options described by c.
func (c *Config) BuildOptions() docgen.BuildOptions {
	return docgen.BuildOptions{
		IncludePrivate: c.Build.IncludePrivate,
		Sort:           docgen.SortOrder(c.Build.Sort),
		Concurrency:    c.Build.Concurrency,
	}
}

// FormatOptions returns the formatter options described by c.
func (c *Config) FormatOptions() docgen.FormatOptions {
	return docgen.FormatOptions{
		Name:            c.Output.Name,
		Title:           c.Output.Title,
		TableOfContents: c.Output.TableOfContents(),
		SourceBaseURL:   c.Output.SourceURL,
		FormatExamples:  c.Output.FormatExamples,
		Frontmatter:     c.Output.Frontmatter,
	}
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	if _, err := docgen.ParseFormat(c.Format); err != nil {
		return err
	}
	switch docgen.SortOrder(c.Build.Sort) {
	case "", docgen.SortName, docgen.SortSource:
	default:
		return fmt.Errorf("invalid sort %q: valid options are %s, %s", c.Build.Sort, docgen.SortName, docgen.SortSource)
	}
	if c.Build.Concurrency < 0 {
		return fmt.Errorf("invalid concurrency %d: must not be negative", c.Build.Concurrency)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", logging.FormatAuto, logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("invalid log format %q: valid options are auto, text, json", c.Log.Format)
	}
	return nil
}

// LoadConfig loads configuration from the specified path.
// The format is auto-detected based on file extension.
func LoadConfig(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	switch ext := filepath.Ext(path); ext {
	case ".toml":
		cfg, err = LoadTOMLConfig(path)
	case ".yaml", ".yml":
		cfg, err = LoadYAMLConfig(path)
	case ".star":
		cfg, err = LoadStarlarkConfig(path, DefaultStarlarkTimeout)
	default:
		return nil, fmt.Errorf("unsupported config file extension: %s (expected .star, .toml or .yaml)", ext)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolveSources(filepath.Dir(path))
	return cfg, nil
}

func (c *Config) resolveSources(dir string) {
	for i, s := range c.Sources {
		if !filepath.IsAbs(s) {
			c.Sources[i] = filepath.Join(dir, s)
		}
	}
}

// DiscoverConfig searches for a configuration file.
//
// Resolution order:
//  1. If DOCSTREAM_CONFIG is set, use that path
//  2. Walk up from startDir to the git repository root (or the
//     filesystem root outside a repository) looking for config files
//
// If multiple config files exist in the same directory, ErrConflict is
// returned. If no config is found, it returns (DefaultConfig(), "", nil).
func DiscoverConfig(startDir string) (*Config, string, error) {
	if envPath := os.Getenv(EnvConfig); envPath != "" {
		cfg, err := LoadConfig(envPath)
		if err != nil {
			return nil, "", fmt.Errorf("loading config from %s: %w", EnvConfig, err)
		}
		return cfg, envPath, nil
	}

	if startDir == "" {
		var err error
		startDir, err = os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("getting working directory: %w", err)
		}
	}

	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, "", fmt.Errorf("resolving path: %w", err)
	}

	gitRoot, err := gitinfo.Root(absDir)
	if err != nil {
		gitRoot = ""
	}

	dir := absDir
	for {
		configPath, err := findConfigInDir(dir)
		if err != nil {
			return nil, "", err
		}
		if configPath != "" {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return nil, "", err
			}
			return cfg, configPath, nil
		}

		if gitRoot != "" && sameDir(dir, gitRoot) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return DefaultConfig(), "", nil
}

// findConfigInDir returns the config file in dir, "" if there is none,
// or ErrConflict if there are several.
func findConfigInDir(dir string) (string, error) {
	var found []string
	for _, name := range configNames {
		if fileExists(filepath.Join(dir, name)) {
			found = append(found, name)
		}
	}
	switch len(found) {
	case 0:
		return "", nil
	case 1:
		return filepath.Join(dir, found[0]), nil
	}
	return "", fmt.Errorf("%w: found %s in %s", ErrConflict, strings.Join(found, ", "), dir)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func sameDir(a, b string) bool {
	if a == b {
		return true
	}
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	return errA == nil && errB == nil && ra == rb
}

// Merge merges the other config into this one.
// Non-zero values from other override values in c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Format != "" {
		c.Format = other.Format
	}
	if other.Filename != "" {
		c.Filename = other.Filename
	}
	if other.Dest != "" {
		c.Dest = other.Dest
	}
	if len(other.Sources) > 0 {
		c.Sources = append([]string(nil), other.Sources...)
	}

	if other.Build.IncludePrivate {
		c.Build.IncludePrivate = true
	}
	if other.Build.Sort != "" {
		c.Build.Sort = other.Build.Sort
	}
	if other.Build.Concurrency != 0 {
		c.Build.Concurrency = other.Build.Concurrency
	}

	if other.Output.Name != "" {
		c.Output.Name = other.Output.Name
	}
	if other.Output.Title != "" {
		c.Output.Title = other.Output.Title
	}
	if other.Output.TOC != nil {
		toc := *other.Output.TOC
		c.Output.TOC = &toc
	}
	if other.Output.SourceURL != "" {
		c.Output.SourceURL = other.Output.SourceURL
	}
	if other.Output.Frontmatter {
		c.Output.Frontmatter = true
	}
	if other.Output.FormatExamples {
		c.Output.FormatExamples = true
	}

	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}

	if other.Watch.Debounce.Duration != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}
}
