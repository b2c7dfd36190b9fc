package expr_test

import (
	"math/rand/v2"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nickandperla.net/pipes/internal/errs"
	"nickandperla.net/pipes/internal/expr"
)

func expandStrings(t *testing.T, input string, opts expr.Options) []string {
	t.Helper()
	tree, err := expr.Parse(input, opts)
	require.NoError(t, err)
	expanded, err := tree.Expand()
	require.NoError(t, err)
	out := make([]string, len(expanded))
	for i, ts := range expanded {
		out[i] = ts.String()
	}
	return out
}

func TestExpandCartesianOrder(t *testing.T) {
	t.Parallel()

	got := expandStrings(t, "my name is [John|Jane] [Smith|Doe]", expr.Options{})
	assert.Equal(t, []string{
		"my name is John Smith",
		"my name is John Doe",
		"my name is Jane Smith",
		"my name is Jane Doe",
	}, got)
}

func TestExpandNestedAndEmpty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "bx", "by", "c"}, expandStrings(t, "[a|b[x|y]|c]", expr.Options{}))
	assert.Equal(t, []string{"", "x"}, expandStrings(t, "[|x]", expr.Options{}))
	assert.Equal(t, []string{""}, expandStrings(t, "[]", expr.Options{}))
	assert.Equal(t, []string{"plain"}, expandStrings(t, "plain", expr.Options{}))
}

func TestWrapTopLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"Hello", "fr"}, expandStrings(t, "Hello|fr", expr.Options{WrapTopLevel: true}))
	assert.Equal(t, []string{"a|b"}, expandStrings(t, "a|b", expr.Options{}))
}

func TestEscapes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"[a|b]"}, expandStrings(t, `\[a\|b\]`, expr.Options{WrapTopLevel: true}))
	assert.Equal(t, []string{`\n`}, expandStrings(t, `\n`, expr.Options{}))
	assert.Equal(t, []string{"{x}"}, expandStrings(t, `\{x\}`, expr.Options{}))
}

func TestLiteralMode(t *testing.T) {
	t.Parallel()

	got := expandStrings(t, "[a|b] {}", expr.Options{Literal: true, WrapTopLevel: true})
	assert.Equal(t, []string{"[a|b] {}"}, got)

	tree, err := expr.Parse("[a|b] {}", expr.Options{Literal: true})
	require.NoError(t, err)
	expanded, err := tree.Expand()
	require.NoError(t, err)
	require.Len(t, expanded, 1)
	assert.False(t, expanded[0].IsLiteral())
}

func TestTripleQuotedRegion(t *testing.T) {
	t.Parallel()

	got := expandStrings(t, `say text="""[a|b] {}""" [x|y]`, expr.Options{})
	assert.Equal(t, []string{`say text="""[a|b] {}""" x`, `say text="""[a|b] {}""" y`}, got)

	_, err := expr.Parse(`say """oops`, expr.Options{})
	assert.True(t, errors.Is(err, errs.ErrUnterminatedQuote))
}

func TestProtectParens(t *testing.T) {
	t.Parallel()

	got := expandStrings(t, "(upper > [a|b]) | x", expr.Options{ProtectParens: true})
	assert.Equal(t, []string{"(upper > [a|b]) | x"}, got)

	got = expandStrings(t, "[(x [a|b])|y]", expr.Options{ProtectParens: true})
	assert.Equal(t, []string{"(x a)", "(x b)", "y"}, got)
}

func TestMalformedChoice(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"[a|b", "a]b", "[[a]", "x [y|z]]"} {
		_, err := expr.Parse(input, expr.Options{})
		assert.Truef(t, errors.Is(err, errs.ErrMalformedChoice), "%q: got %v", input, err)
		assert.Equal(t, errs.Parse, errs.Classify(err))
	}
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	tree, err := expr.Parse("{} {2} {-1!} {!} {$who} {word} {3 word n=1} {ALL word}", expr.Options{})
	require.NoError(t, err)
	expanded, err := tree.Expand()
	require.NoError(t, err)
	require.Len(t, expanded, 1)

	var frags []expr.Expr
	for _, p := range expanded[0].Parts {
		if _, ok := p.(expr.Text); !ok {
			frags = append(frags, p)
		}
	}
	require.Len(t, frags, 8)
	assert.Equal(t, expr.Item{}, frags[0])
	assert.Equal(t, expr.Item{Index: 2, Explicit: true}, frags[1])
	assert.Equal(t, expr.Item{Index: -1, Explicit: true, Retain: true}, frags[2])
	assert.Equal(t, expr.Item{Retain: true}, frags[3])
	assert.Equal(t, expr.Var{Name: "who"}, frags[4])

	src, ok := frags[5].(expr.Source)
	require.True(t, ok)
	assert.Equal(t, "word", src.Name)
	assert.True(t, src.Args.IsEmpty())

	src, ok = frags[6].(expr.Source)
	require.True(t, ok)
	assert.Equal(t, 3, src.Amount)
	assert.Equal(t, "n=1", src.Args.String())

	src, ok = frags[7].(expr.Source)
	require.True(t, ok)
	assert.Equal(t, expr.AmountAll, src.Amount)
}

func TestSourceArgsExpand(t *testing.T) {
	t.Parallel()

	got := expandStrings(t, "{word kind=[noun|verb]}!", expr.Options{})
	assert.Equal(t, []string{"{word kind=noun}!", "{word kind=verb}!"}, got)

	got = expandStrings(t, `{say text="a } b"}`, expr.Options{})
	assert.Equal(t, []string{`{say text="a } b"}`}, got)
}

func TestMalformedPlaceholder(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"{", "{word", "{-}", "{$}", "{2 x", "{.x}", "{0 word}"} {
		_, err := expr.Parse(input, expr.Options{})
		assert.Truef(t, errors.Is(err, errs.ErrMalformedPlaceholder), "%q: got %v", input, err)
	}
}

func TestSingleSource(t *testing.T) {
	t.Parallel()

	tree, err := expr.Parse("{word}", expr.Options{})
	require.NoError(t, err)
	expanded, err := tree.Expand()
	require.NoError(t, err)
	_, ok := expanded[0].SingleSource()
	assert.True(t, ok)

	tree, err = expr.Parse("a {word}", expr.Options{})
	require.NoError(t, err)
	expanded, err = tree.Expand()
	require.NoError(t, err)
	_, ok = expanded[0].SingleSource()
	assert.False(t, ok)
}

func TestCountAndLimit(t *testing.T) {
	t.Parallel()

	tree, err := expr.Parse("[a|b|c][x|y]", expr.Options{})
	require.NoError(t, err)
	assert.Equal(t, 6, tree.Count())

	tree, err = expr.Parse("[0|1|2|3|4|5|6|7][0|1|2|3|4|5|6|7][0|1|2|3|4|5|6|7][0|1|2|3|4|5|6|7][a|b]", expr.Options{})
	require.NoError(t, err)
	_, err = tree.Expand()
	assert.True(t, errors.Is(err, errs.ErrExpansionLimit))
}

func TestPickOneUniform(t *testing.T) {
	t.Parallel()

	tree, err := expr.Parse("[?][a|[b|c]]", expr.Options{})
	require.NoError(t, err)
	require.True(t, tree.PickOne)

	rng := rand.New(rand.NewPCG(1, 2))
	counts := map[string]int{}
	const draws = 3000
	for i := 0; i < draws; i++ {
		picked, err := tree.Strings(rng)
		require.NoError(t, err)
		require.Len(t, picked, 1)
		counts[picked[0].String()]++
	}
	for _, leaf := range []string{"a", "b", "c"} {
		assert.InDelta(t, draws/3, counts[leaf], draws/10, "leaf %s", leaf)
	}
}
