package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"nickandperla.net/pipes/internal/errs"
	"nickandperla.net/pipes/pkg/pipes"
)

var (
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75")).Bold(true)
	nameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#61AFEF")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7F848E"))
)

// printResult writes the rendered output to out and the warnings to errOut.
func printResult(out, errOut io.Writer, rendered string, res *pipes.Result) {
	if rendered != "" {
		fmt.Fprintln(out, rendered)
	}
	if res == nil {
		return
	}
	for _, w := range res.Warnings {
		style := warnStyle
		if w.Category == errs.Invocation {
			style = errStyle
		}
		fmt.Fprintln(errOut, style.Render("⚠ "+w.String()))
	}
}
