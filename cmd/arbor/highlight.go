package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/odvcencio/arbor/sitter"
)

// captureColors maps the leading component of a capture name to a colour.
// "function.call" falls back to "function".
var captureColors = map[string]*color.Color{
	"keyword":     color.New(color.FgMagenta, color.Bold),
	"string":      color.New(color.FgGreen),
	"escape":      color.New(color.FgHiGreen),
	"number":      color.New(color.FgYellow),
	"boolean":     color.New(color.FgYellow),
	"constant":    color.New(color.FgYellow),
	"comment":     color.New(color.FgHiBlack, color.Italic),
	"function":    color.New(color.FgBlue),
	"type":        color.New(color.FgCyan),
	"property":    color.New(color.FgHiBlue),
	"variable":    color.New(color.Reset),
	"operator":    color.New(color.FgHiWhite),
	"punctuation": color.New(color.FgWhite),
	"label":       color.New(color.FgHiMagenta),
	"module":      color.New(color.FgHiCyan),
	"attribute":   color.New(color.FgHiYellow),
}

func colorFor(capture string) *color.Color {
	for name := capture; name != ""; {
		if c, ok := captureColors[name]; ok {
			return c
		}
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			break
		}
		name = name[:i]
	}
	return nil
}

func newHighlightCmd(e *env) *cobra.Command {
	var (
		langName string
		mode     string
		ranges   bool
	)

	cmd := &cobra.Command{
		Use:   "highlight <file>",
		Short: "Print a file with syntax highlighting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := readSource(args[0], langName)
			if err != nil {
				return err
			}
			src := f.entry.Query(sitter.RoleHighlights)
			if src == "" {
				return fmt.Errorf("%s has no highlights query", f.entry.Name)
			}
			h, err := sitter.NewHighlighter(f.lang, src)
			if err != nil {
				return fmt.Errorf("%s highlights query: %w", f.entry.Name, err)
			}
			spans := h.Highlight(f.text)

			out := cmd.OutOrStdout()
			if ranges {
				for _, s := range spans {
					fmt.Fprintf(out, "%d\t%d\t%s\t%q\n", s.StartByte, s.EndByte, s.Capture, f.text[s.StartByte:s.EndByte])
				}
				return nil
			}
			colorize, err := useColor(mode, out)
			if err != nil {
				return err
			}
			return writeHighlighted(out, f.text, spans, colorize)
		},
	}

	cmd.Flags().StringVarP(&langName, "lang", "l", "", "language of the file (default: detect from the file name)")
	cmd.Flags().StringVar(&mode, "color", "auto", "colour output: auto, always or never")
	cmd.Flags().BoolVar(&ranges, "ranges", false, "print the highlight spans instead of coloured text")
	return cmd
}

func useColor(mode string, out io.Writer) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto":
		f, ok := out.(*os.File)
		if !ok || os.Getenv("NO_COLOR") != "" {
			return false, nil
		}
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()), nil
	}
	return false, fmt.Errorf("bad --color %q: want auto, always or never", mode)
}

// writeHighlighted writes source with each span wrapped in its capture's
// colour. Spans must be sorted and non-overlapping.
func writeHighlighted(w io.Writer, source []byte, spans []sitter.HighlightRange, colorize bool) error {
	var b strings.Builder
	pos := uint32(0)
	for _, s := range spans {
		b.Write(source[pos:s.StartByte])
		text := string(source[s.StartByte:s.EndByte])
		if c := colorFor(s.Capture); colorize && c != nil {
			c.EnableColor()
			text = c.Sprint(text)
		}
		b.WriteString(text)
		pos = s.EndByte
	}
	b.Write(source[pos:])
	_, err := io.WriteString(w, b.String())
	return err
}
