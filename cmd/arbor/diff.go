package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/odvcencio/arbor/internal/document"
	"github.com/odvcencio/arbor/sitter"
)

func newDiffCmd(e *env) *cobra.Command {
	var (
		langName     string
		at           int
		insert       string
		remove       int
		mode         string
		contextLines int
	)

	cmd := &cobra.Command{
		Use:   "diff <file>",
		Short: "Apply an edit to a file in memory and show how its tree changes",
		Long: `Diff parses a file, applies one edit, re-parses incrementally and prints
a unified diff of the two trees followed by the changed ranges. The
incremental tree is checked against a fresh parse of the edited text.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := readSource(args[0], langName)
			if err != nil {
				return err
			}
			if at < 0 || at > len(f.text) {
				return fmt.Errorf("--at %d is outside the file (%d bytes)", at, len(f.text))
			}
			if remove < 0 || at+remove > len(f.text) {
				return fmt.Errorf("--delete %d runs past the end of the file", remove)
			}

			doc := document.New(f.lang, f.text)
			defer doc.Close()
			var before bytes.Buffer
			writeTree(&before, doc.Tree().RootNode(), doc.Source())

			change, err := doc.Edit(uint32(at), uint32(at+remove), []byte(insert))
			if err != nil {
				return err
			}
			var after bytes.Buffer
			writeTree(&after, doc.Tree().RootNode(), doc.Source())

			diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
				A:        difflib.SplitLines(before.String()),
				B:        difflib.SplitLines(after.String()),
				FromFile: f.path,
				ToFile:   f.path + " (edited)",
				Context:  contextLines,
			})
			if err != nil {
				return err
			}
			colorize, err := useColor(mode, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if diff == "" {
				fmt.Fprintln(out, "trees are identical")
			} else {
				fmt.Fprint(out, colorDiff(diff, colorize))
			}
			for _, r := range change.Changed {
				fmt.Fprintf(out, "changed [%d:%d - %d:%d] bytes %d-%d\n",
					r.StartPoint.Row, r.StartPoint.Column, r.EndPoint.Row, r.EndPoint.Column, r.StartByte, r.EndByte)
			}

			fresh := sitter.NewParser(f.lang).Parse(doc.Source())
			defer fresh.Release()
			if got, want := doc.Tree().RootNode().String(), fresh.RootNode().String(); got != want {
				return fmt.Errorf("incremental tree differs from a fresh parse:\n  incremental: %s\n  fresh:       %s", got, want)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&langName, "lang", "l", "", "language of the file (default: detect from the file name)")
	cmd.Flags().IntVar(&at, "at", 0, "byte offset of the edit")
	cmd.Flags().StringVar(&insert, "insert", "", "text to insert at the offset")
	cmd.Flags().IntVar(&remove, "delete", 0, "number of bytes to delete at the offset")
	cmd.Flags().StringVar(&mode, "color", "auto", "colour output: auto, always or never")
	cmd.Flags().IntVarP(&contextLines, "context", "U", 3, "lines of context in the diff")
	return cmd
}

var (
	addedLine   = color.New(color.FgGreen, color.Bold)
	removedLine = color.New(color.FgRed, color.Bold)
	hunkLine    = color.New(color.FgCyan)
)

func colorDiff(diff string, colorize bool) string {
	if !colorize {
		return diff
	}
	lines := strings.SplitAfter(diff, "\n")
	for i, l := range lines {
		var c *color.Color
		switch {
		case strings.HasPrefix(l, "+++"), strings.HasPrefix(l, "---"):
			continue
		case strings.HasPrefix(l, "+"):
			c = addedLine
		case strings.HasPrefix(l, "-"):
			c = removedLine
		case strings.HasPrefix(l, "@@"):
			c = hunkLine
		default:
			continue
		}
		c.EnableColor()
		lines[i] = c.Sprint(strings.TrimSuffix(l, "\n")) + "\n"
	}
	return strings.Join(lines, "")
}
