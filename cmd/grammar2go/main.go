// Command grammar2go compiles a grammar document and writes a Go source
// file that embeds the compiled language artifact, so programs can use the
// language without compiling the grammar at start-up.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("arbor.cli")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		input      string
		output     string
		pkg        string
		name       string
		queries    string
		extensions string
		register   string
		manifest   string
		outDir     string
		verbose    int
	)

	cmd := &cobra.Command{
		Use:   "grammar2go --input grammar.json --output grammar.go",
		Short: "Embed a compiled grammar in a Go source file",
		Example: `  grammar2go --input src/grammar.json --output mini_grammar.go --package grammars --queries queries
  grammar2go --manifest languages.txt --out-dir grammars`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			commonlog.Configure(verbose, nil)
			if manifest != "" {
				if outDir == "" {
					return fmt.Errorf("--manifest needs --out-dir")
				}
				return RunBatchManifest(manifest, outDir, pkg)
			}
			if input == "" || output == "" {
				return fmt.Errorf("need --input and --output, or --manifest")
			}

			g, err := Build(input, name)
			if err != nil {
				return err
			}
			if queries != "" {
				if g.Queries, err = ReadQueries(queries); err != nil {
					return err
				}
			}
			if extensions != "" {
				g.Extensions = splitList(extensions)
			}
			if err := writeGo(output, func() (string, error) { return GenerateGo(g, pkg) }); err != nil {
				return err
			}
			if register != "" {
				if err := writeGo(register, func() (string, error) { return GenerateRegister(g, pkg) }); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Generated %s (%s language, %d states, %d symbols)\n",
				output, g.Name, g.StateCount, g.SymbolCount)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&input, "input", "", "path to grammar.json or grammar.yaml")
	flags.StringVar(&output, "output", "", "output Go file path")
	flags.StringVar(&pkg, "package", "grammars", "Go package name")
	flags.StringVar(&name, "name", "", "language name (default: the grammar's name)")
	flags.StringVar(&queries, "queries", "", "directory of <role>.scm query files to embed")
	flags.StringVar(&extensions, "extensions", "", "comma-separated file extensions for the register file")
	flags.StringVar(&register, "register", "", "also write a file registering the language")
	flags.StringVar(&manifest, "manifest", "", "batch manifest: name repo [subdir] [ext1,ext2]")
	flags.StringVar(&outDir, "out-dir", "", "output directory for --manifest")
	flags.CountVarP(&verbose, "verbose", "v", "increase log verbosity")
	return cmd
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func writeGo(path string, gen func() (string, error)) error {
	code, err := gen()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
