// Package config loads arbor.yaml, the project file that tells the arbor
// command which grammars to use for which files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/odvcencio/arbor/generate"
	"github.com/odvcencio/arbor/grammar"
	"github.com/odvcencio/arbor/grammars"
	"github.com/odvcencio/arbor/internal/artifactcache"
	"github.com/odvcencio/arbor/sitter"
)

// FileName is the name Find looks for.
const FileName = "arbor.yaml"

// ErrNotFound is returned by Find when no configuration file exists.
var ErrNotFound = errors.New("no " + FileName + " found")

// Language configures one grammar.
type Language struct {
	Name       string   `yaml:"name"`
	Grammar    string   `yaml:"grammar"`
	Extensions []string `yaml:"extensions"`
	// Files are doublestar patterns matched against slash-separated paths.
	Files   []string          `yaml:"files"`
	Queries map[string]string `yaml:"queries"`
	// Strict makes unresolved grammar conflicts compile errors.
	Strict bool `yaml:"strict"`
}

// Config is the contents of arbor.yaml. Relative paths are resolved against
// the directory holding the file.
type Config struct {
	Cache     string     `yaml:"cache"`
	Jobs      int        `yaml:"jobs"`
	Languages []Language `yaml:"languages"`

	dir string
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	if c.Jobs <= 0 {
		c.Jobs = runtime.NumCPU()
	}
	if c.Cache == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			c.Cache = filepath.Join(dir, "arbor", "artifacts.db")
		}
	}
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.dir = filepath.Dir(path)
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if c.Cache != "" {
		c.Cache = c.resolve(c.Cache)
	}
	c.setDefaults()
	return &c, nil
}

// Find looks for arbor.yaml in dir and its parents.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

func (c *Config) validate() error {
	seen := make(map[string]bool)
	for i, l := range c.Languages {
		switch {
		case l.Name == "":
			return fmt.Errorf("language %d: missing name", i)
		case seen[l.Name]:
			return fmt.Errorf("language %q: defined twice", l.Name)
		case l.Grammar == "":
			return fmt.Errorf("language %q: missing grammar", l.Name)
		}
		seen[l.Name] = true
		for role := range l.Queries {
			if _, ok := sitter.ParseQueryRole(role); !ok {
				return fmt.Errorf("language %q: unknown query role %q", l.Name, role)
			}
		}
		for _, pat := range l.Files {
			if !doublestar.ValidatePattern(pat) {
				return fmt.Errorf("language %q: bad file pattern %q", l.Name, pat)
			}
		}
	}
	return nil
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.dir == "" {
		return path
	}
	return filepath.Join(c.dir, path)
}

// GrammarPath returns the resolved path of l's grammar document.
func (c *Config) GrammarPath(l Language) string { return c.resolve(l.Grammar) }

// ReadQueries reads l's query files keyed by role.
func (c *Config) ReadQueries(l Language) (map[sitter.QueryRole]string, error) {
	out := make(map[sitter.QueryRole]string, len(l.Queries))
	for name, path := range l.Queries {
		role, _ := sitter.ParseQueryRole(name)
		data, err := os.ReadFile(c.resolve(path))
		if err != nil {
			return nil, fmt.Errorf("language %q %s query: %w", l.Name, name, err)
		}
		out[role] = string(data)
	}
	return out, nil
}

// Register adds every configured language to the grammars registry.
// Grammars are compiled, or loaded from cache when it is not nil, the
// first time a language is used.
func (c *Config) Register(cache *artifactcache.Cache) error {
	for _, l := range c.Languages {
		queries, err := c.ReadQueries(l)
		if err != nil {
			return err
		}
		grammars.Register(grammars.LangEntry{
			Name:       l.Name,
			Extensions: l.Extensions,
			Patterns:   l.Files,
			Language:   c.loader(l, cache),
			Queries:    queries,
		})
	}
	return nil
}

func (c *Config) loader(l Language, cache *artifactcache.Cache) func() (*sitter.Language, error) {
	path := c.GrammarPath(l)
	var opts []generate.Option
	if l.Strict {
		opts = append(opts, generate.WithStrictConflicts())
	}
	return sync.OnceValues(func() (*sitter.Language, error) {
		g, err := grammar.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if cache != nil {
			return cache.Language(g, opts...)
		}
		res, err := generate.Compile(g, opts...)
		if err != nil {
			return nil, err
		}
		return res.Language, nil
	})
}
