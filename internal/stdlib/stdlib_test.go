package stdlib_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"nickandperla.net/pipes/internal/eval"
	"nickandperla.net/pipes/internal/provider"
	"nickandperla.net/pipes/internal/registry"
	"nickandperla.net/pipes/internal/stdlib"
)

func newEvaluator(t *testing.T, fs afero.Fs, opts ...eval.Option) *eval.Evaluator {
	t.Helper()
	r := registry.New()
	require.NoError(t, stdlib.Register(r, stdlib.WithFs(fs)))
	r.Seal()
	return eval.New(append([]eval.Option{eval.WithRegistry(r)}, opts...)...)
}

func run(t *testing.T, e *eval.Evaluator, script string) *eval.Result {
	t.Helper()
	res, err := e.RunString(context.Background(), script, nil)
	require.NoError(t, err)
	return res
}

func TestPipes(t *testing.T) {
	e := newEvaluator(t, afero.NewMemMapFs())

	tests := []struct {
		script string
		want   []string
	}{
		{"hello world > upper", []string{"HELLO WORLD"}},
		{"HeLLo > lower", []string{"hello"}},
		{"hello world > title", []string{"Hello World"}},
		{"a|b|c > join s=-", []string{"a-b-c"}},
		{"a|b > join", []string{"a b"}},
		{`"one two  three" > split`, []string{"one", "two", "three"}},
		{"x,y,z > split on=,", []string{"x", "y", "z"}},
		{"a|b > repeat n=3", []string{"a", "b", "a", "b", "a", "b"}},
		{"a|b|c > reverse", []string{"c", "b", "a"}},
		{"b|c|a > sort", []string{"a", "b", "c"}},
		{"a|b|c > count", []string{"3"}},
		{"banana > replace from=a to=o", []string{"bonono"}},
		{"banana > replace from=an", []string{"ba"}},
	}
	for _, tt := range tests {
		t.Run(tt.script, func(t *testing.T) {
			res := run(t, e, tt.script)
			assert.Empty(t, res.Warnings)
			assert.Equal(t, tt.want, res.Items)
		})
	}
}

func TestJavaScript(t *testing.T) {
	e := newEvaluator(t, afero.NewMemMapFs())

	res := run(t, e, `a|b|c > js expr="index % 2 == 0 ? item.toUpperCase() : null"`)
	assert.Equal(t, []string{"A", "C"}, res.Items)

	res = run(t, e, `x,y > js expr="item.split(',')"`)
	assert.Equal(t, []string{"x", "y"}, res.Items)

	res = run(t, e, `a|b > js expr="items.length * 2"`)
	assert.Equal(t, []string{"4", "4"}, res.Items)

	res = run(t, e, `a > js expr="item +"`)
	assert.Empty(t, res.Items)
	require.Len(t, res.Warnings, 1)
}

func TestJavaScriptTimeout(t *testing.T) {
	r := registry.New()
	require.NoError(t, stdlib.Register(r, stdlib.WithFs(afero.NewMemMapFs()), stdlib.WithJSTimeout(50*time.Millisecond)))
	r.Seal()
	e := eval.New(eval.WithRegistry(r))

	start := time.Now()
	res := run(t, e, `x > js expr="new Function('while (true);')()"`)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Empty(t, res.Items)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Message, "timed out")
}

func TestItemLimits(t *testing.T) {
	e := newEvaluator(t, afero.NewMemMapFs())

	for _, script := range []string{
		"a > repeat n=1000000000",
		"a|b|c > repeat n=5000",
		"{uuid n=20000}",
		"{range from=1 to=20000}",
	} {
		res := run(t, e, script)
		assert.Empty(t, res.Items, script)
		assert.NotEmpty(t, res.Warnings, script)
	}
}

func TestDefaultFsIsRootedInConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	ctx := context.Background()

	r := registry.New()
	require.NoError(t, stdlib.Register(r))
	r.Seal()
	e := eval.New(eval.WithRegistry(r))

	res := run(t, e, "a|b > write path=notes/out.txt")
	require.NoError(t, res.Flush(ctx))
	body, err := os.ReadFile(filepath.Join(home, "pipes", "files", "notes", "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(body))

	res = run(t, e, "a > write path=../../escape.txt")
	assert.Error(t, res.Flush(ctx))
	_, err = os.Stat(filepath.Join(home, "escape.txt"))
	assert.True(t, os.IsNotExist(err))

	res = run(t, e, "{file path=notes/out.txt}")
	assert.Equal(t, []string{"a", "b"}, res.Items)

	res = run(t, e, "{file path=../../../etc/hostname}")
	assert.Empty(t, res.Items)
	assert.NotEmpty(t, res.Warnings)
}

func TestSources(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/notes.txt", []byte("first\nsecond\nthird\n"), 0o644))
	e := newEvaluator(t, fs, eval.WithSeed(7))

	res := run(t, e, "{range from=1 to=4}")
	assert.Equal(t, []string{"1", "2", "3", "4"}, res.Items)

	res = run(t, e, "{range from=3 to=1}")
	assert.Equal(t, []string{"3", "2", "1"}, res.Items)

	res = run(t, e, "n={range from=5 to=9}")
	assert.Equal(t, []string{"n=5"}, res.Items)

	res = run(t, e, "{uuid n=3}")
	require.Len(t, res.Items, 3)
	assert.Len(t, res.Items[0], 36)
	assert.NotEqual(t, res.Items[0], res.Items[1])

	res = run(t, e, "{choose a,b,c}")
	require.Len(t, res.Items, 1)
	assert.Contains(t, []string{"a", "b", "c"}, res.Items[0])

	res = run(t, e, "{file path=/notes.txt}")
	assert.Equal(t, []string{"first", "second", "third"}, res.Items)

	res = run(t, e, "{file path=/missing.txt}")
	assert.Empty(t, res.Items)
	assert.NotEmpty(t, res.Warnings)
}

func TestSeededChooseIsStable(t *testing.T) {
	e := newEvaluator(t, afero.NewMemMapFs(), eval.WithSeed(42))
	first := run(t, e, "{choose a,b,c,d,e,f}").Items
	for range 5 {
		assert.Equal(t, first, run(t, e, "{choose a,b,c,d,e,f}").Items)
	}
}

func TestPrevious(t *testing.T) {
	e := newEvaluator(t, afero.NewMemMapFs())
	env := &registry.Env{Previous: []string{"old", "items"}}
	res, err := e.RunString(context.Background(), "{previous} > upper", env)
	require.NoError(t, err)
	assert.Equal(t, []string{"OLD", "ITEMS"}, res.Items)

	res = run(t, e, "{previous}")
	assert.Empty(t, res.Items)
}

func TestSpouts(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	core, logs := observer.New(zap.InfoLevel)
	e := newEvaluator(t, fs, eval.WithLogger(zap.New(core)))

	res := run(t, e, "a|b > write path=/out.txt")
	assert.True(t, res.HasSpout)
	assert.False(t, res.ShouldPost())
	assert.Equal(t, []string{"a", "b"}, res.Items)
	ok, err := afero.Exists(fs, "/out.txt")
	require.NoError(t, err)
	assert.False(t, ok, "nothing is written before flushing")

	require.NoError(t, res.Flush(ctx))
	body, err := afero.ReadFile(fs, "/out.txt")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(body))

	res = run(t, e, "a > post")
	assert.True(t, res.ShouldPost())

	res = run(t, e, "a|b > log msg=seen")
	assert.Equal(t, 0, logs.Len())
	require.NoError(t, res.Flush(ctx))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "seen", entry.Message)
	assert.Equal(t, []interface{}{"a", "b"}, entry.ContextMap()["items"])
}

func TestRegisterTwiceAfterSeal(t *testing.T) {
	r := registry.New()
	r.Seal()
	assert.ErrorIs(t, stdlib.Register(r), registry.ErrSealed)
}

func TestLLM(t *testing.T) {
	r := registry.New()
	mock := provider.NewMockHandler(func(system, user string) string {
		return " " + system + ":" + user + " "
	})
	require.NoError(t, stdlib.Register(r, stdlib.WithFs(afero.NewMemMapFs()), stdlib.WithProvider(mock)))
	r.Seal()
	e := eval.New(eval.WithRegistry(r))

	res := run(t, e, "Hello|Bye > llm system=fr")
	assert.Equal(t, []string{"fr:Hello", "fr:Bye"}, res.Items)

	_, ok := e.Registry().Lookup("llm")
	assert.True(t, ok)

	plain := newEvaluator(t, afero.NewMemMapFs())
	_, ok = plain.Registry().Lookup("llm")
	assert.False(t, ok, "llm needs a provider")
}
