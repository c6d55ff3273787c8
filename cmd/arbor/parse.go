package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rivo/uniseg"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/arbor/sitter"
)

// previewWidth is the display width of leaf text shown by parse --tree.
const previewWidth = 40

type parseResult struct {
	file     *sourceFile
	tree     *sitter.Tree
	elapsed  time.Duration
	errors   int
	firstErr *sitter.Node
}

func newParseCmd(e *env) *cobra.Command {
	var (
		langName string
		showTree bool
		showSexp bool
		jobs     int
	)

	cmd := &cobra.Command{
		Use:   "parse <file|glob>...",
		Short: "Parse files and report syntax errors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expandGlobs(args)
			if err != nil {
				return err
			}
			if jobs <= 0 {
				jobs = e.cfg.Jobs
			}

			results := make([]parseResult, len(paths))
			var g errgroup.Group
			g.SetLimit(jobs)
			for i, path := range paths {
				g.Go(func() error {
					f, err := readSource(path, langName)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					start := time.Now()
					tree := f.parse()
					results[i] = parseResult{file: f, tree: tree, elapsed: time.Since(start)}
					countErrors(&results[i])
					log.Debugf("parsed %s as %s in %s", path, f.entry.Name, results[i].elapsed)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, r := range results {
				switch {
				case showSexp:
					fmt.Fprintln(out, r.tree.RootNode().String())
				case showTree:
					writeTree(out, r.tree.RootNode(), r.file.text)
				}
				if r.errors > 0 {
					failed++
					p := r.firstErr.StartPoint()
					fmt.Fprintf(out, "%s\t%s\t%s\t%d errors, first at %d:%d\n",
						r.file.path, r.file.entry.Name, r.elapsed.Round(time.Microsecond), r.errors, p.Row+1, p.Column+1)
				} else if !showSexp && !showTree {
					fmt.Fprintf(out, "%s\t%s\t%s\tok\n", r.file.path, r.file.entry.Name, r.elapsed.Round(time.Microsecond))
				}
				r.tree.Release()
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files have syntax errors", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&langName, "lang", "l", "", "language to parse with (default: detect from the file name)")
	cmd.Flags().BoolVar(&showTree, "tree", false, "print an indented tree with positions")
	cmd.Flags().BoolVar(&showSexp, "sexp", false, "print the tree as an S-expression")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "files to parse in parallel (default: from config)")
	cmd.MarkFlagsMutuallyExclusive("tree", "sexp")
	return cmd
}

// expandGlobs resolves doublestar patterns. Arguments without glob
// characters are kept as given so missing files are reported when read.
func expandGlobs(args []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, arg := range args {
		matches := []string{arg}
		if strings.ContainsAny(arg, "*?[{") {
			var err error
			matches, err = doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
			}
			if len(matches) == 0 {
				log.Warningf("pattern %q matched no files", arg)
			}
		}
		for _, m := range matches {
			m = filepath.Clean(m)
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func countErrors(r *parseResult) {
	for n := range sitter.Descendants(r.tree.RootNode()) {
		if n.IsError() || n.IsMissing() {
			if r.errors == 0 {
				r.firstErr = n
			}
			r.errors++
		}
	}
}

// writeTree prints one named node per line, indented by depth, with its
// range and a preview of leaf text.
func writeTree(w io.Writer, root *sitter.Node, source []byte) {
	c := sitter.NewTreeCursor(root)
	for {
		n := c.Node()
		if n.IsNamed() || n.IsMissing() {
			var b strings.Builder
			b.WriteString(strings.Repeat("  ", c.Depth()))
			if field := c.FieldName(); field != "" {
				b.WriteString(field)
				b.WriteString(": ")
			}
			if n.IsMissing() {
				b.WriteString("MISSING ")
			}
			sp, ep := n.StartPoint(), n.EndPoint()
			fmt.Fprintf(&b, "%s [%d:%d - %d:%d]", n.Type(), sp.Row, sp.Column, ep.Row, ep.Column)
			if n.NamedChildCount() == 0 && n.EndByte() > n.StartByte() {
				b.WriteString(" ")
				b.WriteString(preview(n.Text(source), previewWidth))
			}
			fmt.Fprintln(w, b.String())
		}
		if c.GotoFirstChild() {
			continue
		}
		for !c.GotoNextSibling() {
			if !c.GotoParent() {
				return
			}
		}
	}
}

// preview quotes text on one line, cut to at most width display columns.
func preview(text string, width int) string {
	text = strings.Join(strings.Fields(text), " ")
	if uniseg.StringWidth(text) <= width {
		return fmt.Sprintf("%q", text)
	}
	var b strings.Builder
	used := 0
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		w := g.Width()
		if used+w > width-1 {
			break
		}
		b.WriteString(g.Str())
		used += w
	}
	return fmt.Sprintf("%q", b.String()+"…")
}
