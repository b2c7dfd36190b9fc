package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

// executeCommand runs a fresh root command with args and returns the
// captured output.
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	if root.Use != "pipes" {
		t.Errorf("root.Use = %q, want %q", root.Use, "pipes")
	}
	cmds := map[string]bool{}
	for _, c := range root.Commands() {
		cmds[c.Name()] = true
	}
	for _, want := range []string{"run", "repl", "macro", "pipes", "check"} {
		if !cmds[want] {
			t.Errorf("expected subcommand %q", want)
		}
	}
}

func TestRunScript(t *testing.T) {
	out, err := executeCommand(t, "", "--driver", "memory", "run", "Hello|Bye -> upper")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Hello → HELLO") || !strings.Contains(out, "Bye   → BYE") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunFromStdinAndFile(t *testing.T) {
	out, err := executeCommand(t, "a|b > join s=+\n", "--driver", "memory", "run")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if strings.TrimSpace(out) != "a+b" {
		t.Errorf("stdin: got %q", out)
	}

	path := filepath.Join(t.TempDir(), "script.pipes")
	if err := os.WriteFile(path, []byte("x|y > count\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err = executeCommand(t, "", "--driver", "memory", "run", "-f", path)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if strings.TrimSpace(out) != "2" {
		t.Errorf("file: got %q", out)
	}
}

func TestRunWarnings(t *testing.T) {
	out, err := executeCommand(t, "", "--driver", "memory", "run", "a > nosuchpipe")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "nosuchpipe") {
		t.Errorf("expected a warning naming the pipe, got:\n%s", out)
	}
}

func TestRunParseErrorFails(t *testing.T) {
	if _, err := executeCommand(t, "", "--driver", "memory", "run", "[a|b"); err == nil {
		t.Fatal("expected a parse error")
	}
}

// TestMacroPersists verifies that a macro added in one invocation is
// available to the next through the database.
func TestMacroPersists(t *testing.T) {
	db := filepath.Join(t.TempDir(), "macros.db")

	out, err := executeCommand(t, "", "--db", db, "macro", "add", "yell", "upper > replace from=. to=!!")
	if err != nil {
		t.Fatalf("macro add failed: %v\n%s", err, out)
	}

	out, err = executeCommand(t, "", "--db", db, "run", "hey. > yell")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if strings.TrimSpace(out) != "HEY!!" {
		t.Errorf("got %q", out)
	}

	if _, err := executeCommand(t, "", "--db", db, "macro", "add", "yell", "upper"); err != nil {
		t.Fatalf("macro redefine failed: %v", err)
	}
	out, err = executeCommand(t, "", "--db", db, "macro", "history", "yell")
	if err != nil {
		t.Fatalf("macro history failed: %v", err)
	}
	if !strings.Contains(out, "v2") || !strings.Contains(out, "v1") {
		t.Errorf("expected two versions, got:\n%s", out)
	}

	out, err = executeCommand(t, "", "--db", db, "macro", "list")
	if err != nil {
		t.Fatalf("macro list failed: %v", err)
	}
	if !strings.Contains(out, "yell") || !strings.Contains(out, "shout") {
		t.Errorf("expected the new and prelude macros, got:\n%s", out)
	}

	if _, err := executeCommand(t, "", "--db", db, "macro", "rm", "yell"); err != nil {
		t.Fatalf("macro rm failed: %v", err)
	}
	if _, err := executeCommand(t, "", "--db", db, "macro", "rm", "yell"); err == nil {
		t.Error("expected removing a missing macro to fail")
	}
}

func TestMacroImportAndParams(t *testing.T) {
	db := filepath.Join(t.TempDir(), "macros.db")
	file := filepath.Join(t.TempDir(), "macros.yaml")
	body := "macros:\n  - name: greet\n    kind: source\n    code: Hello {$who}\n    params:\n      - name: who\n        default: world\n"
	if err := os.WriteFile(file, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := executeCommand(t, "", "--db", db, "macro", "import", file)
	if err != nil {
		t.Fatalf("macro import failed: %v", err)
	}
	if !strings.Contains(out, "imported 1 macros") {
		t.Errorf("got %q", out)
	}

	out, err = executeCommand(t, "", "--db", db, "run", "{greet who=there}")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if strings.TrimSpace(out) != "Hello there" {
		t.Errorf("got %q", out)
	}
}

func TestParseParam(t *testing.T) {
	p, err := parseParam("sep=, ")
	if err != nil || p.Name != "sep" || p.Default != ", " || p.Required {
		t.Errorf("sep=, : got %+v, %v", p, err)
	}
	p, err = parseParam("who!")
	if err != nil || p.Name != "who" || !p.Required {
		t.Errorf("who!: got %+v, %v", p, err)
	}
	if _, err := parseParam("who!=x"); err == nil {
		t.Error("expected an error for a required parameter with a default")
	}
}

func TestPipesCommand(t *testing.T) {
	out, err := executeCommand(t, "", "--driver", "memory", "pipes")
	if err != nil {
		t.Fatalf("pipes failed: %v", err)
	}
	for _, want := range []string{"upper", "join", "uuid", "post"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
}

func TestBasicREPL(t *testing.T) {
	input := "a|b > upper\nx \\\n> lower\n:q\nnever > upper\n"
	out, err := executeCommand(t, input, "--driver", "memory", "repl")
	if err != nil {
		t.Fatalf("repl failed: %v", err)
	}
	if !strings.Contains(out, "A\nB") {
		t.Errorf("expected the first result, got:\n%s", out)
	}
	if !strings.Contains(out, "... ") {
		t.Errorf("expected a continuation prompt, got:\n%s", out)
	}
	if strings.Contains(out, "NEVER") {
		t.Errorf("input after :q should not run:\n%s", out)
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("good.pipes", "# greet\nHello|Bye\n> upper\n")
	write("bad.pipes", "# EXPECTED: Error: malformed choice\n[a|b > upper\n")
	write("notes.txt", "[ignored")

	out, err := executeCommand(t, "", "--driver", "memory", "check", "--dir", dir)
	if err != nil {
		t.Fatalf("check failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "2 checked, 0 failed") {
		t.Errorf("unexpected summary:\n%s", out)
	}

	write("broken.pipes", "a > [x|y\n")
	out, err = executeCommand(t, "", "--driver", "memory", "check", "--dir", dir)
	if err == nil {
		t.Fatalf("expected check to fail:\n%s", out)
	}
	if !strings.Contains(out, "FAIL "+filepath.Join(dir, "broken.pipes")) {
		t.Errorf("expected broken.pipes to fail:\n%s", out)
	}
}
