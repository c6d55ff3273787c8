package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/arbor/sitter"
)

func newQueryCmd(e *env) *cobra.Command {
	var (
		langName  string
		roleName  string
		byteRange string
	)

	cmd := &cobra.Command{
		Use:   "query [query.scm] <file>",
		Short: "Run a query against a file and print its captures",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (roleName == "") == (len(args) == 1) {
				return fmt.Errorf("give either a query file or --role")
			}
			f, err := readSource(args[len(args)-1], langName)
			if err != nil {
				return err
			}

			var q *sitter.Query
			if roleName != "" {
				role, ok := sitter.ParseQueryRole(roleName)
				if !ok {
					return fmt.Errorf("unknown query role %q", roleName)
				}
				if q, err = f.roleQuery(role); err != nil {
					return err
				}
				if q == nil {
					return fmt.Errorf("%s has no %s query", f.entry.Name, role)
				}
			} else {
				src, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				if q, err = sitter.NewQuery(string(src), f.lang); err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
			}

			tree := f.parse()
			defer tree.Release()
			c := q.Cursor(tree.RootNode())
			c.SetSource(f.text)
			if byteRange != "" {
				start, end, err := parseByteRange(byteRange)
				if err != nil {
					return err
				}
				c.SetByteRange(start, end)
			}

			out := cmd.OutOrStdout()
			for m, capture := range c.Captures() {
				n := capture.Node
				sp, ep := n.StartPoint(), n.EndPoint()
				fmt.Fprintf(out, "pattern %d  @%s  %s [%d:%d - %d:%d] %s\n",
					m.PatternIndex, capture.Name, n.Type(), sp.Row, sp.Column, ep.Row, ep.Column,
					preview(n.Text(f.text), previewWidth))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&langName, "lang", "l", "", "language of the file (default: detect from the file name)")
	cmd.Flags().StringVar(&roleName, "role", "", "run the language's bundled query for this role instead of a file")
	cmd.Flags().StringVar(&byteRange, "range", "", "only report matches intersecting the byte range start:end")
	return cmd
}

// parseByteRange parses "start:end"; either side may be empty.
func parseByteRange(s string) (uint32, uint32, error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("bad range %q: want start:end", s)
	}
	start, end := uint64(0), uint64(^uint32(0))
	var err error
	if a != "" {
		if start, err = strconv.ParseUint(a, 10, 32); err != nil {
			return 0, 0, fmt.Errorf("bad range start %q: %w", a, err)
		}
	}
	if b != "" {
		if end, err = strconv.ParseUint(b, 10, 32); err != nil {
			return 0, 0, fmt.Errorf("bad range end %q: %w", b, err)
		}
	}
	if start > end {
		return 0, 0, fmt.Errorf("bad range %q: start after end", s)
	}
	return uint32(start), uint32(end), nil
}
