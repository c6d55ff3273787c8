// Command arbor compiles grammars and parses, queries and highlights files
// with them.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/odvcencio/arbor/internal/artifactcache"
	"github.com/odvcencio/arbor/internal/config"
)

var log = commonlog.GetLogger("arbor.cli")

// env is the state shared by every subcommand once the root command has
// loaded the configuration.
type env struct {
	configPath string
	cachePath  string
	noCache    bool
	verbose    int
	logPath    string

	cfg   *config.Config
	cache *artifactcache.Cache
}

func main() {
	if err := execute(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// execute runs the command line args, closing the artifact cache however
// the command ends.
func execute(args []string, stdout, stderr io.Writer) error {
	e := &env{}
	root := newRootCmd(e)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	if cerr := e.close(); err == nil {
		err = cerr
	}
	return err
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "arbor",
		Short:         "Incremental parsing toolkit",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&e.configPath, "config", "c", "", "path to "+config.FileName+" (default: search upward from the working directory)")
	flags.StringVar(&e.cachePath, "cache", "", "artifact cache file (overrides the config)")
	flags.BoolVar(&e.noCache, "no-cache", false, "compile grammars without the artifact cache")
	flags.CountVarP(&e.verbose, "verbose", "v", "increase log verbosity (repeatable)")
	flags.StringVar(&e.logPath, "log", "", "write logs to this file instead of stderr")

	root.AddCommand(newGenerateCmd(e))
	root.AddCommand(newParseCmd(e))
	root.AddCommand(newQueryCmd(e))
	root.AddCommand(newHighlightCmd(e))
	root.AddCommand(newDiffCmd(e))
	root.AddCommand(newServeCmd(e))
	root.AddCommand(newLanguagesCmd(e))
	return root
}

func (e *env) setup() error {
	var logPath *string
	if e.logPath != "" {
		logPath = &e.logPath
	}
	commonlog.Configure(e.verbose, logPath)

	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	e.cfg = cfg
	if e.cachePath != "" {
		cfg.Cache = e.cachePath
	}

	if !e.noCache && cfg.Cache != "" && len(cfg.Languages) > 0 {
		if err := os.MkdirAll(filepath.Dir(cfg.Cache), 0o755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
		cache, err := artifactcache.Open(cfg.Cache)
		if err != nil {
			// Grammars still compile without it.
			log.Warningf("artifact cache disabled: %v", err)
		} else {
			e.cache = cache
		}
	}
	return cfg.Register(e.cache)
}

func (e *env) loadConfig() (*config.Config, error) {
	path := e.configPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		path, err = config.Find(wd)
		if errors.Is(err, config.ErrNotFound) {
			log.Debug("no configuration file, using bundled languages only")
			return config.Default(), nil
		}
		if err != nil {
			return nil, err
		}
	}
	log.Debugf("using configuration %s", path)
	return config.Load(path)
}

func (e *env) close() error {
	if e.cache == nil {
		return nil
	}
	err := e.cache.Close()
	e.cache = nil
	return err
}
