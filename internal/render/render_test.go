package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nickandperla.net/pipes/internal/errs"
	"nickandperla.net/pipes/internal/eval"
)

func TestColumns(t *testing.T) {
	tests := []struct {
		name string
		cols [][]string
		want string
	}{
		{"single item", [][]string{{"hello"}}, "hello"},
		{"empty item", [][]string{{"  "}}, EmptyString},
		{"no items", [][]string{{}}, NoOutput},
		{"one column", [][]string{{"a", "b"}}, "a\nb"},
		{
			"arrow table",
			[][]string{{"Hello", "Bye"}, {"Bonjour", "Au revoir"}},
			"Hello → Bonjour\nBye   → Au revoir",
		},
		{
			"ragged",
			[][]string{{"a", "b", "c"}, {"x"}},
			"a → x\nb\nc",
		},
		{
			"wide runes",
			[][]string{{"日本", "a"}, {"x", "y"}},
			"日本 → x\na    → y",
		},
		{
			"skips empty columns",
			[][]string{{"a"}, {}, {"b"}},
			"a   b",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Columns(tt.cols))
		})
	}
}

func TestResult(t *testing.T) {
	res := &eval.Result{Items: []string{"B"}, PrintLog: [][]string{{"a"}}}
	assert.Equal(t, "a → B", Result(res))

	res.HasSpout = true
	assert.Equal(t, "a", Result(res))

	res.PrintLog = nil
	assert.Equal(t, "", Result(res))

	res.AlwaysPost = true
	assert.Equal(t, "B", Result(res))

	assert.Equal(t, NoOutput, Result(&eval.Result{}))
}

func TestWarnings(t *testing.T) {
	ws := []eval.Warning{
		{Category: errs.Resolution, Message: "unknown source `x`"},
		{Category: errs.Invocation, Segment: "fail", Message: "boom"},
	}
	assert.Equal(t, "unknown source `x`\nin `fail`: boom", Warnings(ws))
}
