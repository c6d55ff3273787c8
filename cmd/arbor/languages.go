package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odvcencio/arbor/grammars"
)

func newLanguagesCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the registered languages and how they parse",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			files := make(map[string]string)
			for _, l := range grammars.AllLanguages() {
				files[l.Name] = strings.Join(append(append([]string{}, l.Extensions...), l.Patterns...), " ")
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tBACKEND\tSYMBOLS\tSTATES\tQUERIES\tFILES")
			var broken []string
			for _, r := range grammars.AuditParseSupport() {
				roles := make([]string, len(r.Roles))
				for i, role := range r.Roles {
					roles[i] = string(role)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
					r.Name, r.Backend, r.SymbolCount, r.StateCount, strings.Join(roles, ","), files[r.Name])
				if r.Backend == grammars.ParseBackendUnsupported {
					broken = append(broken, fmt.Sprintf("%s: %s", r.Name, r.Reason))
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}
			for _, b := range broken {
				log.Warning(b)
			}
			return nil
		},
	}
}
