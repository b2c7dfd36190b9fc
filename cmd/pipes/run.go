package main

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		file   string
		origin string
	)
	cmd := &cobra.Command{
		Use:   "run [script]",
		Short: "Run a script",
		Long: `Run a script given as arguments, read from a file with -f, or read
from stdin when neither is given.`,
		Example: `  pipes run 'Hello|Goodbye > upper'
  pipes run -f greet.pipes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := readScript(cmd.InOrStdin(), file, args)
			if err != nil {
				return err
			}
			out, res, err := a.runtime.Execute(cmd.Context(), origin, script)
			printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), out, res)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the script from a file")
	cmd.Flags().StringVar(&origin, "origin", "cli", "origin label for the previous source")
	return cmd
}

func readScript(stdin io.Reader, file string, args []string) (string, error) {
	switch {
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", errors.Wrap(err, "reading script")
		}
		return scriptText(string(b)), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", errors.Wrap(err, "reading stdin")
	}
	return strings.TrimSpace(string(b)), nil
}
