package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nickandperla.net/pipes/internal/args"
	"nickandperla.net/pipes/internal/registry"
)

func newPipesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "pipes",
		Aliases: []string{"builtins"},
		Short:   "List the built-in pipes, sources and spouts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, kind := range []registry.Kind{registry.Pipe, registry.Source, registry.Spout} {
				entries := a.runtime.Registry().Entries(kind)
				if len(entries) == 0 {
					continue
				}
				fmt.Fprintln(out, mutedStyle.Render(kind.String()+"s"))
				for _, e := range entries {
					fmt.Fprintf(out, "  %s%s  %s\n", nameStyle.Render(e.Name), signature(e.Signature), e.Desc)
				}
			}
			return nil
		},
	}
}

func signature(sig args.Signature) string {
	var b strings.Builder
	for _, p := range sig {
		b.WriteString(" ")
		b.WriteString(p.Name)
		switch {
		case p.Required:
			b.WriteString("=!")
		case p.Default != "":
			fmt.Fprintf(&b, "=%q", p.Default)
		default:
			b.WriteString("=")
		}
	}
	return b.String()
}
