// Package render formats run output as text.
package render

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"nickandperla.net/pipes/internal/eval"
)

const (
	// EmptyString stands in for a single empty item.
	EmptyString = "`empty string`"
	// NoOutput stands in for a run that produced no items.
	NoOutput = "`no output`"

	arrow   = " → "
	noArrow = "   "
)

// Result renders what a run shows: its print log, followed by the final
// items if the run should post them.
func Result(res *eval.Result) string {
	cols := res.PrintLog
	if res.ShouldPost() {
		cols = append(append([][]string{}, cols...), res.Items)
	}
	if len(cols) == 0 {
		return ""
	}
	return Columns(cols)
}

// Columns lays out a print log. A single column holding one item is shown as
// is; several columns become an arrow table aligned by display width.
func Columns(cols [][]string) string {
	if len(cols) == 1 {
		switch col := cols[0]; len(col) {
		case 0:
			return NoOutput
		case 1:
			if strings.TrimSpace(col[0]) == "" {
				return EmptyString
			}
			return col[0]
		}
	}

	height := 0
	for _, col := range cols {
		height = max(height, len(col))
	}
	rows := make([]strings.Builder, height)
	for c, col := range cols {
		if len(col) == 0 {
			continue
		}
		width := 0
		for _, item := range col {
			width = max(width, runewidth.StringWidth(item))
		}
		for r := range rows {
			cell := ""
			if r < len(col) {
				cell = col[r]
			}
			rows[r].WriteString(runewidth.FillRight(cell, width))
			if c+1 < len(cols) && r < len(cols[c+1]) {
				rows[r].WriteString(arrow)
			} else {
				rows[r].WriteString(noArrow)
			}
		}
	}

	lines := make([]string, height)
	for r := range rows {
		lines[r] = strings.TrimRight(rows[r].String(), " ")
	}
	return strings.Join(lines, "\n")
}

// Warnings renders one warning per line.
func Warnings(ws []eval.Warning) string {
	lines := make([]string, len(ws))
	for i, w := range ws {
		lines[i] = w.String()
	}
	return strings.Join(lines, "\n")
}
