package pipes

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"nickandperla.net/pipes/internal/errs"
	"nickandperla.net/pipes/internal/registry"
	"nickandperla.net/pipes/internal/store"
)

func newRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	r, err := New(append([]Option{WithMemoryStore(), WithFs(afero.NewMemMapFs())}, opts...)...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestPreludeMacros(t *testing.T) {
	r := newRuntime(t)
	ctx := context.Background()

	res, err := r.Run(ctx, "test", "a|b|c > list")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0] != "a, b, c" {
		t.Errorf("list: got %q", res.Items)
	}

	res, err = r.Run(ctx, "test", "hi. > shout")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0] != "HI!" {
		t.Errorf("shout: got %q", res.Items)
	}

	res, err = r.Run(ctx, "test", "{coin}")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Items) != 1 || (res.Items[0] != "heads" && res.Items[0] != "tails") {
		t.Errorf("coin: got %q", res.Items)
	}
}

func TestNoStdlibOption(t *testing.T) {
	r := newRuntime(t, WithNoStdlib())

	macros, err := r.Macros()
	if err != nil {
		t.Fatalf("Macros failed: %v", err)
	}
	if len(macros) != 0 {
		t.Errorf("expected no prelude macros, got %d", len(macros))
	}

	res, err := r.Run(context.Background(), "test", "a > upper")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Items) != 0 || len(res.Warnings) != 1 {
		t.Errorf("expected an unknown-name warning, got items %q warnings %v", res.Items, res.Warnings)
	}
}

func TestCustomPrelude(t *testing.T) {
	prelude := "macros:\n  - name: greet\n    kind: source\n    code: hello world\n"
	r := newRuntime(t, WithPrelude(prelude))

	res, err := r.Run(context.Background(), "test", "{greet}")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0] != "hello world" {
		t.Errorf("expected 'hello world', got %q", res.Items)
	}
	if m, _ := r.Store().Get("shout"); m != nil {
		t.Error("default prelude should not load with a custom prelude")
	}
}

func TestStoredMacroOverridesPrelude(t *testing.T) {
	path := filepath.Join(t.TempDir(), "macros.db")
	s, err := store.NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	if err := s.Put(&store.Macro{Name: "shout", Kind: store.PipeMacro, Code: "lower"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	r := newRuntime(t, WithStore(s))
	res, err := r.Run(context.Background(), "test", "HEY > shout")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0] != "hey" {
		t.Errorf("expected the stored macro to win, got %q", res.Items)
	}
}

func TestPreviousPerOrigin(t *testing.T) {
	r := newRuntime(t)
	ctx := context.Background()

	if _, err := r.Run(ctx, "alice", "one|two"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := r.Run(ctx, "bob", "three"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	res, err := r.Run(ctx, "alice", "{previous} > upper")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if strings.Join(res.Items, ",") != "ONE,TWO" {
		t.Errorf("expected alice's previous output, got %q", res.Items)
	}
}

func TestExecute(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := newRuntime(t, WithFs(fs))
	ctx := context.Background()

	out, _, err := r.Execute(ctx, "test", "Hello|Bye -> upper")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if want := "Hello → HELLO\nBye   → BYE"; out != want {
		t.Errorf("got %q, want %q", out, want)
	}

	out, res, err := r.Execute(ctx, "test", "a|b > write path=/out.txt")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "" || res.ShouldPost() {
		t.Errorf("spout run should not post, got %q", out)
	}
	body, err := afero.ReadFile(fs, "/out.txt")
	if err != nil || string(body) != "a\nb\n" {
		t.Errorf("write spout: %q, %v", body, err)
	}
}

func TestFilesRoot(t *testing.T) {
	dir := t.TempDir()
	r := newRuntime(t, WithFilesRoot(dir))
	ctx := context.Background()

	if _, _, err := r.Execute(ctx, "test", "a|b > write path=/out/list.txt"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	body, err := os.ReadFile(filepath.Join(dir, "out", "list.txt"))
	if err != nil || string(body) != "a\nb\n" {
		t.Errorf("write under files root: %q, %v", body, err)
	}

	if _, _, err := r.Execute(ctx, "test", "a > write path=../escape.txt"); err == nil {
		t.Error("writing outside the files root should fail")
	}
}

func TestRunawayScriptsAreBounded(t *testing.T) {
	r := newRuntime(t, WithJSTimeout(50*time.Millisecond))
	ctx := context.Background()

	if _, err := r.Run(ctx, "test", "a > %30000000 upper"); !errors.Is(err, errs.ErrUnknownGroupMode) {
		t.Errorf("oversized group count: got %v", err)
	}

	for _, script := range []string{
		"a > %64%65 upper",
		`a > js expr="new Function('for (;;);')()"`,
	} {
		start := time.Now()
		res, err := r.Run(ctx, "test", script)
		if err != nil {
			t.Fatalf("Run(%q) failed: %v", script, err)
		}
		if len(res.Warnings) == 0 {
			t.Errorf("Run(%q): expected a warning", script)
		}
		if d := time.Since(start); d > 5*time.Second {
			t.Errorf("Run(%q) took %s", script, d)
		}
	}
}

func TestExtension(t *testing.T) {
	r := newRuntime(t, WithExtension(func(reg *registry.Registry) error {
		return reg.RegisterPipe("twice", nil, "", func(_ context.Context, call *registry.Call) ([]string, error) {
			return append(call.Items, call.Items...), nil
		})
	}))
	if !r.Registry().Sealed() {
		t.Error("registry should be sealed after New")
	}

	res, err := r.Run(context.Background(), "test", "x > twice")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Items) != 2 {
		t.Errorf("expected 2 items, got %q", res.Items)
	}
}

func TestBadStoreOption(t *testing.T) {
	_, err := New(WithSQLiteStore(filepath.Join(t.TempDir(), "missing", "dir", "macros.db")))
	if err == nil {
		t.Fatal("expected an error opening a store in a missing directory")
	}
}

func TestMockProvider(t *testing.T) {
	r := newRuntime(t, WithMockProvider("Bonjour"))
	res, err := r.Run(context.Background(), "test", "Hello > llm system=translate")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0] != "Bonjour" {
		t.Errorf("got %q", res.Items)
	}
}
