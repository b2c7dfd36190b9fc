package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newReplCmd(a *app) *cobra.Command {
	var origin string
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Run scripts interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := &repl{app: a, origin: origin, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
			in := cmd.InOrStdin()
			if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				return r.runRaw(cmd.Context(), f)
			}
			return r.runBasic(cmd.Context(), in)
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "repl", "origin label for the previous source")
	return cmd
}

type repl struct {
	app     *app
	origin  string
	out     io.Writer
	errOut  io.Writer
	history []string
}

func (r *repl) banner() {
	fmt.Fprintln(r.out, "pipes REPL (Ctrl+D to exit)")
	fmt.Fprintln(r.out, "  end a line with \\ to continue it, :q quits")
	fmt.Fprintln(r.out)
}

// eval runs one input and reports whether the REPL should keep going.
func (r *repl) eval(ctx context.Context, input string, w io.Writer) bool {
	input = strings.TrimSpace(input)
	switch input {
	case "":
		return true
	case ":q", ":quit":
		return false
	}
	r.history = append(r.history, input)

	out, res, err := r.app.runtime.Execute(ctx, r.origin, input)
	printResult(w, w, out, res)
	if err != nil {
		fmt.Fprintln(w, errStyle.Render("Error: "+err.Error()))
	}
	return ctx.Err() == nil
}

// runBasic handles non-TTY input.
func (r *repl) runBasic(ctx context.Context, in io.Reader) error {
	r.banner()
	reader := bufio.NewReader(in)
	var multiline strings.Builder

	for {
		if multiline.Len() > 0 {
			fmt.Fprint(r.out, "... ")
		} else {
			fmt.Fprint(r.out, ">>> ")
		}

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(r.out)
			return nil
		}
		line = strings.TrimRight(line, "\r\n")

		if strings.HasSuffix(line, "\\") {
			multiline.WriteString(strings.TrimSuffix(line, "\\"))
			multiline.WriteString(" ")
			continue
		}
		multiline.WriteString(line)
		input := multiline.String()
		multiline.Reset()

		if !r.eval(ctx, input, r.out) {
			return nil
		}
	}
}

// crlf translates newlines for a terminal in raw mode.
type crlf struct{ w io.Writer }

func (c crlf) Write(p []byte) (int, error) {
	_, err := io.WriteString(c.w, strings.ReplaceAll(string(p), "\n", "\r\n"))
	return len(p), err
}

// runRaw handles TTY input with line editing and history.
func (r *repl) runRaw(ctx context.Context, f *os.File) error {
	fd := int(f.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(r.errOut, "Failed to set raw mode: %v\n", err)
		return r.runBasic(ctx, f)
	}
	defer term.Restore(fd, oldState)

	w := crlf{r.out}
	r.out = w
	r.banner()

	var multiline strings.Builder
	for {
		prompt := ">>> "
		if multiline.Len() > 0 {
			prompt = "... "
		}
		fmt.Fprint(w, prompt)

		line, eof := r.readLineRaw(f, w)
		if eof {
			fmt.Fprint(w, "\n")
			return nil
		}

		if strings.HasSuffix(line, "\\") {
			multiline.WriteString(strings.TrimSuffix(line, "\\"))
			multiline.WriteString(" ")
			continue
		}
		multiline.WriteString(line)
		input := multiline.String()
		multiline.Reset()

		if !r.eval(ctx, input, w) {
			return nil
		}
	}
}

// readLineRaw reads a line in raw mode. It returns the line and whether EOF
// was encountered.
func (r *repl) readLineRaw(in io.Reader, w io.Writer) (string, bool) {
	var line []rune
	cursor := 0
	recall := len(r.history)
	buf := make([]byte, 1)

	redrawFromCursor := func() {
		fmt.Fprint(w, "\x1b[K")
		fmt.Fprint(w, string(line[cursor:]))
		if cursor < len(line) {
			fmt.Fprintf(w, "\x1b[%dD", len(line)-cursor)
		}
	}
	replaceLine := func(s string) {
		if cursor > 0 {
			fmt.Fprintf(w, "\x1b[%dD", cursor)
		}
		line = []rune(s)
		cursor = 0
		redrawFromCursor()
		if len(line) > 0 {
			fmt.Fprintf(w, "\x1b[%dC", len(line))
		}
		cursor = len(line)
	}
	insert := func(rs ...rune) {
		next := make([]rune, 0, len(line)+len(rs))
		next = append(next, line[:cursor]...)
		next = append(next, rs...)
		next = append(next, line[cursor:]...)
		line = next
		fmt.Fprint(w, string(rs))
		cursor += len(rs)
		if cursor < len(line) {
			redrawFromCursor()
		}
	}
	readByte := func() (byte, bool) {
		n, err := in.Read(buf)
		if err != nil || n == 0 {
			return 0, false
		}
		return buf[0], true
	}

	for {
		b, ok := readByte()
		if !ok {
			return string(line), true
		}

		switch b {
		case 0x04: // Ctrl+D
			if len(line) == 0 {
				return "", true
			}
			if cursor < len(line) {
				line = append(line[:cursor], line[cursor+1:]...)
				redrawFromCursor()
			}

		case 0x03: // Ctrl+C
			fmt.Fprint(w, "^C\n")
			return "", false

		case 0x0d, 0x0a:
			fmt.Fprint(w, "\n")
			return string(line), false

		case 0x7f, 0x08:
			if cursor > 0 {
				cursor--
				line = append(line[:cursor], line[cursor+1:]...)
				fmt.Fprint(w, "\b")
				redrawFromCursor()
			}

		case 0x1b: // ESC [ A/B/C/D/3~
			if next, ok := readByte(); !ok || next != '[' {
				continue
			}
			key, ok := readByte()
			if !ok {
				continue
			}
			switch key {
			case 'A':
				if recall > 0 {
					recall--
					replaceLine(r.history[recall])
				}
			case 'B':
				if recall < len(r.history) {
					recall++
					if recall == len(r.history) {
						replaceLine("")
					} else {
						replaceLine(r.history[recall])
					}
				}
			case 'C':
				if cursor < len(line) {
					cursor++
					fmt.Fprint(w, "\x1b[C")
				}
			case 'D':
				if cursor > 0 {
					cursor--
					fmt.Fprint(w, "\x1b[D")
				}
			case '3':
				if tilde, ok := readByte(); ok && tilde == '~' && cursor < len(line) {
					line = append(line[:cursor], line[cursor+1:]...)
					redrawFromCursor()
				}
			}

		case 0x01: // Ctrl+A
			if cursor > 0 {
				fmt.Fprintf(w, "\x1b[%dD", cursor)
				cursor = 0
			}

		case 0x05: // Ctrl+E
			if cursor < len(line) {
				fmt.Fprintf(w, "\x1b[%dC", len(line)-cursor)
				cursor = len(line)
			}

		case 0x0b: // Ctrl+K
			if cursor < len(line) {
				line = line[:cursor]
				fmt.Fprint(w, "\x1b[K")
			}

		case 0x15: // Ctrl+U
			if cursor > 0 {
				fmt.Fprintf(w, "\x1b[%dD", cursor)
				line = line[cursor:]
				cursor = 0
				redrawFromCursor()
			}

		default:
			switch {
			case b >= 0x20 && b < 0x7f:
				insert(rune(b))
			case b >= 0x80:
				utf := []byte{b}
				extra := 0
				switch {
				case b&0xE0 == 0xC0:
					extra = 1
				case b&0xF0 == 0xE0:
					extra = 2
				case b&0xF8 == 0xF0:
					extra = 3
				}
				for range extra {
					c, ok := readByte()
					if !ok {
						break
					}
					utf = append(utf, c)
				}
				insert([]rune(string(utf))[0])
			}
		}
	}
}
