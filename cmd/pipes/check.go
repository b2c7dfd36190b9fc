package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"nickandperla.net/pipes/internal/eval"
)

const scriptExt = ".pipes"

func newCheckCmd() *cobra.Command {
	var dirs []string
	cmd := &cobra.Command{
		Use:   "check [--dir DIR] [FILE...]",
		Short: "Check script files for syntax errors",
		Long: `Check parses script files without running them. A file containing a
"# EXPECTED: Error" line is expected to fail.`,
		RunE: func(cmd *cobra.Command, files []string) error {
			for _, dir := range dirs {
				found, err := findScripts(dir)
				if err != nil {
					return errors.Wrapf(err, "scanning %s", dir)
				}
				files = append(files, found...)
			}
			if len(files) == 0 {
				return errors.New("no script files found")
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, f := range files {
				res := checkFile(f)
				switch {
				case res.expectsError && res.err != nil:
					fmt.Fprintf(out, "OK   %s (expected error)\n", f)
				case res.expectsError:
					failed++
					fmt.Fprintf(out, "FAIL %s (expected an error, parsed fine)\n", f)
				case res.err != nil:
					failed++
					fmt.Fprintf(out, "FAIL %s\n     %v\n", f, res.err)
				default:
					fmt.Fprintf(out, "OK   %s\n", f)
				}
			}
			fmt.Fprintf(out, "\n%d checked, %d failed\n", len(files), failed)
			if failed > 0 {
				return errors.Errorf("%d of %d files failed", failed, len(files))
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&dirs, "dir", nil, "check every "+scriptExt+" file under a directory")
	return cmd
}

type checkResult struct {
	err          error
	expectsError bool
}

func checkFile(path string) checkResult {
	content, err := os.ReadFile(path)
	if err != nil {
		return checkResult{err: err}
	}
	var res checkResult
	for _, line := range strings.Split(string(content), "\n") {
		if rest, ok := strings.CutPrefix(line, "# EXPECTED:"); ok && strings.HasPrefix(strings.TrimSpace(rest), "Error") {
			res.expectsError = true
		}
	}
	_, res.err = eval.ParseScript(scriptText(string(content)))
	return res
}

// scriptText joins the non-comment lines of a script file.
func scriptText(content string) string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, " ")
}

func findScripts(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), scriptExt) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}
