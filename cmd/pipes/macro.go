package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"nickandperla.net/pipes/internal/store"
)

func newMacroCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "macro",
		Short: "Manage stored macros",
	}
	cmd.AddCommand(
		newMacroListCmd(a),
		newMacroShowCmd(a),
		newMacroAddCmd(a),
		newMacroRmCmd(a),
		newMacroImportCmd(a),
		newMacroHistoryCmd(a),
	)
	return cmd
}

func newMacroListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored macros",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			macros, err := a.runtime.Macros()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range macros {
				line := fmt.Sprintf("%s %s", nameStyle.Render(m.Name), mutedStyle.Render("("+string(m.Kind)+")"))
				if m.Desc != "" {
					line += "  " + m.Desc
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func newMacroShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show a macro's code and parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := lookupMacro(a, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", nameStyle.Render(m.Name), m.Kind)
			if m.Desc != "" {
				fmt.Fprintln(out, m.Desc)
			}
			for _, p := range m.Params {
				fmt.Fprintf(out, "  %s=%q", p.Name, p.Default)
				if p.Required {
					fmt.Fprint(out, " (required)")
				}
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out, m.Code)
			return nil
		},
	}
}

func newMacroAddCmd(a *app) *cobra.Command {
	var (
		kind   string
		desc   string
		params []string
	)
	cmd := &cobra.Command{
		Use:   "add NAME CODE...",
		Short: "Define or redefine a macro",
		Example: `  pipes macro add shout 'upper > replace from=. to=!'
  pipes macro add greet --kind source --param who=world 'Hello {$who}'`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := &store.Macro{
				Name: args[0],
				Kind: store.Kind(kind),
				Code: strings.Join(args[1:], " "),
				Desc: desc,
			}
			for _, p := range params {
				param, err := parseParam(p)
				if err != nil {
					return err
				}
				m.Params = append(m.Params, param)
			}
			if err := a.runtime.Define(m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "defined %s\n", m.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(store.PipeMacro), "pipe or source")
	cmd.Flags().StringVar(&desc, "desc", "", "description")
	cmd.Flags().StringArrayVar(&params, "param", nil, "parameter as name, name=default or name! for required")
	return cmd
}

// parseParam reads name, name=default or name! (required).
func parseParam(s string) (store.Param, error) {
	var p store.Param
	name, def, hasDefault := strings.Cut(s, "=")
	if strings.HasSuffix(name, "!") {
		if hasDefault {
			return p, errors.Errorf("parameter %q: a required parameter takes no default", s)
		}
		name = strings.TrimSuffix(name, "!")
		p.Required = true
	}
	p.Name = strings.TrimSpace(name)
	p.Default = def
	return p, nil
}

func newMacroRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm NAME...",
		Aliases: []string{"remove"},
		Short:   "Delete macros",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				if _, err := lookupMacro(a, name); err != nil {
					return err
				}
				if err := a.runtime.Undefine(name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", name)
			}
			return nil
		},
	}
}

func newMacroImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import macros from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "opening macro file")
			}
			defer f.Close()
			n, err := store.Import(a.runtime.Store(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d macros\n", n)
			return nil
		},
	}
}

func newMacroHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history NAME",
		Short: "Show earlier versions of a macro",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hs, ok := a.runtime.Store().(store.HistoryStore)
			if !ok {
				return errors.Errorf("the %s store keeps no history", a.cfg.Store.Driver)
			}
			versions, err := hs.GetHistory(args[0], limit)
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				return errors.Errorf("no history for %s", args[0])
			}
			out := cmd.OutOrStdout()
			for _, v := range versions {
				fmt.Fprintf(out, "%s %s\n  %s\n", nameStyle.Render(fmt.Sprintf("v%d", v.Version)), mutedStyle.Render(v.Ts), v.Code)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of versions to show; 0 shows all")
	return cmd
}

func lookupMacro(a *app, name string) (*store.Macro, error) {
	m, err := a.runtime.Store().Get(name)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.Errorf("no macro named %s", name)
	}
	return m, nil
}
