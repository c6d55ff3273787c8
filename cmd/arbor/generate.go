package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/arbor/generate"
	"github.com/odvcencio/arbor/grammar"
)

func newGenerateCmd(e *env) *cobra.Command {
	var (
		output      string
		nodeTypes   string
		grammarJSON string
		strict      bool
	)

	cmd := &cobra.Command{
		Use:   "generate <grammar.json|grammar.yaml>",
		Short: "Compile a grammar document into a language artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := grammar.ReadFile(args[0])
			if err != nil {
				return err
			}
			opts := []generate.Option{}
			if strict {
				opts = append(opts, generate.WithStrictConflicts())
			}
			res, err := generate.Compile(g, opts...)
			if err != nil {
				return fmt.Errorf("compile %s: %w", args[0], err)
			}
			for _, w := range res.Warnings {
				log.Warningf("%s: %s", g.Name, w.Message)
			}

			if output == "" {
				output = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0])) + ".arbor"
			}
			data, err := res.Language.MarshalBinary()
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}

			if nodeTypes != "" {
				data, err := generate.MarshalNodeTypes(res.NodeTypes)
				if err != nil {
					return err
				}
				if err := os.WriteFile(nodeTypes, data, 0o644); err != nil {
					return err
				}
			}
			if grammarJSON != "" {
				data, err := g.MarshalJSON()
				if err != nil {
					return err
				}
				if err := os.WriteFile(grammarJSON, data, 0o644); err != nil {
					return err
				}
			}

			lang := res.Language
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d symbols, %d states, %d conflicts resolved -> %s\n",
				g.Name, lang.SymbolCount, lang.StateCount, len(res.Warnings), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "artifact path (default: <grammar>.arbor)")
	cmd.Flags().StringVar(&nodeTypes, "node-types", "", "also write the node-types catalogue to this file")
	cmd.Flags().StringVar(&grammarJSON, "grammar-json", "", "also write the normalized grammar.json to this file")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on conflicts the grammar does not declare")
	return cmd
}
